package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/STRATINT/engager/internal/models"
	"github.com/google/uuid"
)

// ActionLogRepository stores a row per dispatched action.
type ActionLogRepository struct {
	db *sql.DB
}

// NewActionLogRepository creates a new action log repository.
func NewActionLogRepository(db *sql.DB) *ActionLogRepository {
	return &ActionLogRepository{db: db}
}

// Record stores a new action log entry.
func (r *ActionLogRepository) Record(ctx context.Context, entry models.ActionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	query := `
		INSERT INTO action_logs (id, timestamp, run_id, kind, target_id, candidate_id, query, outcome, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp,
		entry.RunID,
		entry.Kind,
		entry.TargetID,
		entry.CandidateID,
		entry.Query,
		entry.Outcome,
		entry.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action log: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first, optionally narrowed to
// one kind.
func (r *ActionLogRepository) List(ctx context.Context, limit int, kind models.ActionKind) ([]models.ActionLog, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, timestamp, run_id, kind, target_id, candidate_id, query, outcome, error
		FROM action_logs
		WHERE 1=1
	`
	args := []interface{}{}
	argPos := 1

	if kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argPos)
		args = append(args, kind)
		argPos++
	}

	query += " ORDER BY timestamp DESC"
	query += fmt.Sprintf(" LIMIT $%d", argPos)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.ActionLog{}
	for rows.Next() {
		var entry models.ActionLog
		err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&entry.RunID,
			&entry.Kind,
			&entry.TargetID,
			&entry.CandidateID,
			&entry.Query,
			&entry.Outcome,
			&entry.Error,
		)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}

// CountSince counts successful actions of kind since the given instant.
func (r *ActionLogRepository) CountSince(ctx context.Context, kind models.ActionKind, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM action_logs WHERE kind = $1 AND outcome = $2 AND timestamp >= $3`,
		kind, models.OutcomeOK, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count actions: %w", err)
	}
	return n, nil
}
