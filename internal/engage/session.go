package engage

import (
	"fmt"
	"time"

	"github.com/STRATINT/engager/internal/config"
)

// ClockTime is a time of day in seconds after midnight.
type ClockTime int

// Clock builds a ClockTime from hours and minutes.
func Clock(hour, minute int) ClockTime {
	return ClockTime(hour*3600 + minute*60)
}

// ClockOf returns the time of day of t in t's location.
func ClockOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/3600, int(c)%3600/60)
}

// Window is an inclusive time-of-day range. Start after End wraps past
// midnight.
type Window struct {
	Start ClockTime
	End   ClockTime
}

// Contains reports whether c falls inside the window, bounds included.
func (w Window) Contains(c ClockTime) bool {
	if w.Start <= w.End {
		return w.Start <= c && c <= w.End
	}
	return c >= w.Start || c <= w.End
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// SessionGate decides whether the engine may act at a given instant. A nil
// gate is always open.
type SessionGate struct {
	Windows  []Window
	NightOff *Window
	// Location converts instants before comparison; nil keeps the instant's own.
	Location *time.Location
}

// NewSessionGate builds a gate from configuration, or returns nil when
// sessions are disabled.
func NewSessionGate(cfg config.SessionsConfig) *SessionGate {
	if !cfg.Enabled {
		return nil
	}

	g := &SessionGate{Location: cfg.Location}
	for _, b := range cfg.Blocks {
		g.Windows = append(g.Windows, windowFromConfig(b))
	}
	if cfg.NightOff != nil {
		w := windowFromConfig(*cfg.NightOff)
		g.NightOff = &w
	}
	return g
}

func windowFromConfig(r config.ClockRange) Window {
	return Window{Start: ClockTime(r.Start * 60), End: ClockTime(r.End * 60)}
}

// Eligible reports whether now is inside an allowed session. Night-off takes
// precedence over every session window; no windows means always eligible.
func (g *SessionGate) Eligible(now time.Time) bool {
	if g == nil {
		return true
	}
	if g.Location != nil {
		now = now.In(g.Location)
	}
	c := ClockOf(now)

	if g.NightOff != nil && g.NightOff.Contains(c) {
		return false
	}

	if len(g.Windows) == 0 {
		return true
	}

	for _, w := range g.Windows {
		if w.Contains(c) {
			return true
		}
	}
	return false
}
