package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Paths      PathsConfig
	Engagement EngagementConfig
	Sessions   SessionsConfig
	X          XConfig
	Database   DatabaseConfig
	Auth       AuthConfig
}

// ServerConfig holds status HTTP server runtime parameters. An empty Port
// disables the server.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// PathsConfig locates the query list and the persisted seen set.
type PathsConfig struct {
	Queries string
	Seen    string
}

// Range is an inclusive [Min, Max] interval of whole seconds.
type Range struct {
	Min int
	Max int
}

// Durations returns the bounds as durations.
func (r Range) Durations() (time.Duration, time.Duration) {
	return time.Duration(r.Min) * time.Second, time.Duration(r.Max) * time.Second
}

// EngagementConfig holds filter bounds, action switches, daily caps and cadence.
type EngagementConfig struct {
	MinFollowers    int64
	MaxFollowers    int64
	Languages       []string
	MaxAgeHours     int
	ExcludeKeywords []string

	DryRun   bool
	DoLike   bool
	DoFollow bool

	LikePerDay   int
	FollowPerDay int

	LikeInterval      Range
	FollowInterval    Range
	MicroBreakAfter   int
	MicroBreakSeconds Range
}

// ClockRange is a time-of-day window in "HH:MM" form, kept as minutes after
// midnight. Start may be after End when the window wraps past midnight.
type ClockRange struct {
	Start int
	End   int
}

// SessionsConfig controls time-of-day gating.
type SessionsConfig struct {
	Enabled  bool
	Location *time.Location
	Blocks   []ClockRange
	NightOff *ClockRange
}

// XConfig holds credentials and transport settings for the X API adapter.
type XConfig struct {
	BaseURL           string
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
	UserID            string
	SearchMode        string
	RequestsPerMinute int
	HTTPTimeout       time.Duration
}

// DatabaseConfig enables the optional Postgres action log. An empty URL
// disables it.
type DatabaseConfig struct {
	URL string
}

// AuthConfig guards the status API.
type AuthConfig struct {
	JWTSecret         string
	AdminPasswordHash string
	TokenDuration     time.Duration
}

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultQueriesPath = "queries.txt"
	defaultSeenPath    = "seen.json"

	defaultSessionBlocks = "09:00-12:00,19:00-23:00,23:30-06:00"

	defaultXBaseURL          = "https://api.twitter.com"
	defaultSearchMode        = "recent"
	defaultRequestsPerMinute = 50
	defaultXHTTPTimeout      = 30 * time.Second
	defaultAuthTokenDuration = 24 * time.Hour
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:            getEnv("STATUS_PORT", ""),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Paths: PathsConfig{
			Queries: getEnv("QUERIES_PATH", defaultQueriesPath),
			Seen:    getEnv("SEEN_PATH", defaultSeenPath),
		},
		Engagement: EngagementConfig{
			MinFollowers:      0,
			MaxFollowers:      1000,
			MaxAgeHours:       24,
			DoLike:            true,
			DoFollow:          true,
			LikePerDay:        1500,
			FollowPerDay:      333,
			LikeInterval:      Range{Min: 20, Max: 40},
			FollowInterval:    Range{Min: 60, Max: 150},
			MicroBreakAfter:   25,
			MicroBreakSeconds: Range{Min: 120, Max: 300},
		},
		Sessions: SessionsConfig{
			Location: time.UTC,
		},
		X: XConfig{
			BaseURL:           getEnv("X_API_BASE_URL", defaultXBaseURL),
			APIKey:            os.Getenv("X_API_KEY"),
			APISecret:         os.Getenv("X_API_SECRET"),
			AccessToken:       os.Getenv("X_ACCESS_TOKEN"),
			AccessTokenSecret: os.Getenv("X_ACCESS_TOKEN_SECRET"),
			UserID:            os.Getenv("X_USER_ID"),
			SearchMode:        getEnv("X_SEARCH_MODE", defaultSearchMode),
			RequestsPerMinute: defaultRequestsPerMinute,
			HTTPTimeout:       defaultXHTTPTimeout,
		},
		Auth: AuthConfig{
			JWTSecret:         os.Getenv("ADMIN_JWT_SECRET"),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			TokenDuration:     defaultAuthTokenDuration,
		},
	}

	if err := loadServer(&cfg.Server); err != nil {
		return Config{}, err
	}
	if err := loadLogging(&cfg.Logging); err != nil {
		return Config{}, err
	}
	if err := loadEngagement(&cfg.Engagement); err != nil {
		return Config{}, err
	}
	if err := loadSessions(&cfg.Sessions); err != nil {
		return Config{}, err
	}
	if err := loadX(&cfg.X); err != nil {
		return Config{}, err
	}
	if err := loadDatabase(&cfg.Database); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadServer(s *ServerConfig) error {
	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		s.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		s.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		s.ShutdownTimeout = d
	}
	return nil
}

func loadLogging(l *LoggingConfig) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		l.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			l.Format = v
		default:
			return fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}
	return nil
}

func loadEngagement(e *EngagementConfig) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"FILTER_MAX_AGE_HOURS", &e.MaxAgeHours},
		{"LIMIT_LIKE_PER_DAY", &e.LikePerDay},
		{"LIMIT_FOLLOW_PER_DAY", &e.FollowPerDay},
		{"CADENCE_MICRO_BREAK_AFTER", &e.MicroBreakAfter},
	}
	for _, it := range ints {
		if v := os.Getenv(it.key); v != "" {
			n, err := parseNonNegative(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", it.key, err)
			}
			*it.dst = n
		}
	}

	followers := []struct {
		key string
		dst *int64
	}{
		{"FILTER_MIN_FOLLOWERS", &e.MinFollowers},
		{"FILTER_MAX_FOLLOWERS", &e.MaxFollowers},
	}
	for _, it := range followers {
		if v := os.Getenv(it.key); v != "" {
			n, err := parseNonNegative(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", it.key, err)
			}
			*it.dst = int64(n)
		}
	}
	if e.MinFollowers > e.MaxFollowers {
		return fmt.Errorf("invalid FILTER_MIN_FOLLOWERS: exceeds FILTER_MAX_FOLLOWERS")
	}

	e.Languages = splitLower(getEnv("FILTER_LANGUAGES", "en"))
	if len(e.Languages) == 0 {
		e.Languages = []string{"en"}
	}
	e.ExcludeKeywords = splitLower(os.Getenv("FILTER_EXCLUDE_KEYWORDS"))

	bools := []struct {
		key string
		dst *bool
	}{
		{"ACTION_DRY_RUN", &e.DryRun},
		{"ACTION_LIKE", &e.DoLike},
		{"ACTION_FOLLOW", &e.DoFollow},
	}
	for _, it := range bools {
		if v := os.Getenv(it.key); v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid %s: must be a boolean", it.key)
			}
			*it.dst = b
		}
	}

	ranges := []struct {
		key string
		dst *Range
	}{
		{"CADENCE_LIKE_INTERVAL_SECONDS", &e.LikeInterval},
		{"CADENCE_FOLLOW_INTERVAL_SECONDS", &e.FollowInterval},
		{"CADENCE_MICRO_BREAK_SECONDS", &e.MicroBreakSeconds},
	}
	for _, it := range ranges {
		if v := os.Getenv(it.key); v != "" {
			r, err := ParseRange(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", it.key, err)
			}
			*it.dst = r
		}
	}
	return nil
}

func loadSessions(s *SessionsConfig) error {
	if v := os.Getenv("SESSIONS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid SESSIONS_ENABLED: must be a boolean")
		}
		s.Enabled = b
	}

	if v := os.Getenv("SESSIONS_TIMEZONE"); v != "" {
		loc, err := time.LoadLocation(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid SESSIONS_TIMEZONE: %w", err)
		}
		s.Location = loc
	}

	blocks, err := ParseBlocks(getEnv("SESSIONS_BLOCKS", defaultSessionBlocks))
	if err != nil {
		return fmt.Errorf("invalid SESSIONS_BLOCKS: %w", err)
	}
	s.Blocks = blocks

	if v := stripInlineComment(os.Getenv("SESSIONS_NIGHT_OFF")); v != "" {
		r, err := parseClockRange(v)
		if err != nil {
			return fmt.Errorf("invalid SESSIONS_NIGHT_OFF: %w", err)
		}
		s.NightOff = &r
	}
	return nil
}

func loadX(x *XConfig) error {
	if v := os.Getenv("X_REQUESTS_PER_MINUTE"); v != "" {
		n, err := parseNonNegative(v)
		if err != nil || n == 0 {
			return fmt.Errorf("invalid X_REQUESTS_PER_MINUTE: must be a positive integer")
		}
		x.RequestsPerMinute = n
	}

	if v := os.Getenv("X_HTTP_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid X_HTTP_TIMEOUT_SECONDS: %w", err)
		}
		x.HTTPTimeout = d
	}

	switch x.SearchMode {
	case "recent", "all":
	default:
		return fmt.Errorf("invalid X_SEARCH_MODE: must be 'recent' or 'all'")
	}
	return nil
}

// loadDatabase takes DATABASE_URL as is. Without it, a Cloud SQL instance
// named by INSTANCE_CONNECTION_NAME is reached over the unix socket Cloud Run
// mounts under /cloudsql.
func loadDatabase(d *DatabaseConfig) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		d.URL = v
		return nil
	}

	instance := os.Getenv("INSTANCE_CONNECTION_NAME")
	if instance == "" {
		return nil
	}

	user, name := os.Getenv("DB_USER"), os.Getenv("DB_NAME")
	if user == "" || name == "" {
		return fmt.Errorf("DB_USER and DB_NAME must be set when using INSTANCE_CONNECTION_NAME")
	}

	d.URL = fmt.Sprintf("host=/cloudsql/%s user=%s dbname=%s sslmode=disable", instance, user, name)
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		// Without a password the connection relies on IAM authentication.
		d.URL += " password=" + password
	}
	return nil
}

// Redacted returns the connection string with any password masked, for logs.
func (d DatabaseConfig) Redacted() string {
	if u, err := url.Parse(d.URL); err == nil && u.Scheme != "" {
		return u.Redacted()
	}

	fields := strings.Fields(d.URL)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}

// Validate reports missing credentials required to talk to the platform.
func (x XConfig) Validate() error {
	missing := make([]string, 0, 4)
	for key, v := range map[string]string{
		"X_API_KEY":             x.APIKey,
		"X_API_SECRET":          x.APISecret,
		"X_ACCESS_TOKEN":        x.AccessToken,
		"X_ACCESS_TOKEN_SECRET": x.AccessTokenSecret,
	} {
		if v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("missing X credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ParseRange parses "a,b" into an inclusive range, swapping reversed bounds.
func ParseRange(raw string) (Range, error) {
	raw = stripInlineComment(raw)
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("must be two comma-separated integers")
	}
	a, err := parseNonNegative(parts[0])
	if err != nil {
		return Range{}, err
	}
	b, err := parseNonNegative(parts[1])
	if err != nil {
		return Range{}, err
	}
	if a > b {
		a, b = b, a
	}
	return Range{Min: a, Max: b}, nil
}

// ParseBlocks parses a comma-separated list of "HH:MM-HH:MM" windows.
func ParseBlocks(raw string) ([]ClockRange, error) {
	raw = stripInlineComment(raw)
	var out []ClockRange
	for _, chunk := range strings.Split(raw, ",") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		r, err := parseClockRange(chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func parseClockRange(raw string) (ClockRange, error) {
	left, right, ok := strings.Cut(raw, "-")
	if !ok {
		return ClockRange{}, fmt.Errorf("window %q must look like HH:MM-HH:MM", raw)
	}
	start, err := ParseClock(left)
	if err != nil {
		return ClockRange{}, err
	}
	end, err := ParseClock(right)
	if err != nil {
		return ClockRange{}, err
	}
	return ClockRange{Start: start, End: end}, nil
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(raw string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, fmt.Errorf("time %q must look like HH:MM", raw)
	}
	hour, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("time %q has an invalid hour", raw)
	}
	minute, err := strconv.Atoi(strings.TrimSpace(m))
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q has an invalid minute", raw)
	}
	return hour*60 + minute, nil
}

// stripInlineComment drops a trailing "; ..." or "# ..." comment. The marker
// only counts at the start of the value or after whitespace, so "#tag" inside
// a value survives.
func stripInlineComment(s string) string {
	for i, r := range s {
		if r != ';' && r != '#' {
			continue
		}
		if i == 0 || s[i-1] == ' ' || s[i-1] == '\t' {
			s = s[:i]
			break
		}
	}
	return strings.TrimSpace(s)
}

// splitLower splits a comma list without comment handling; "#" is a valid
// keyword character.
func splitLower(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseNonNegative(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return n, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := parseNonNegative(raw)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
