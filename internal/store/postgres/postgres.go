package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/store"
)

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{"console_runs"}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run migrations/001_console_runs.sql)", table)
		}
	}
	return nil
}

func (p *PostgresStore) CreateRun(ctx context.Context, run store.RunRecord) error {
	counts, err := encodeCounts(run.EnvironmentCounts)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO console_runs (
			id,
			instruction,
			status,
			message,
			step_count,
			environment_counts,
			report_generated,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = p.db.ExecContext(
		ctx,
		query,
		run.ID,
		run.Instruction,
		run.Status,
		nullString(run.Message),
		run.StepCount,
		counts,
		run.ReportGenerated,
		parseTimestampValue(run.CreatedAt),
	)
	return err
}

func (p *PostgresStore) CompleteRun(ctx context.Context, run store.RunRecord) error {
	counts, err := encodeCounts(run.EnvironmentCounts)
	if err != nil {
		return err
	}
	const query = `
		UPDATE console_runs
		SET status = $2,
			message = $3,
			step_count = $4,
			environment_counts = $5,
			report_generated = $6,
			completed_at = $7
		WHERE id = $1
	`
	result, err := p.db.ExecContext(
		ctx,
		query,
		run.ID,
		run.Status,
		nullString(run.Message),
		run.StepCount,
		counts,
		run.ReportGenerated,
		parseTimestampValue(run.CompletedAt),
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

const selectRunColumns = `
	SELECT id,
		instruction,
		status,
		message,
		step_count,
		environment_counts,
		report_generated,
		created_at,
		completed_at
	FROM console_runs
`

func (p *PostgresStore) GetRun(ctx context.Context, runID string) (*store.RunRecord, error) {
	runs, err := p.queryRuns(ctx, selectRunColumns+" WHERE id = $1", runID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func (p *PostgresStore) ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error) {
	if limit <= 0 {
		return p.queryRuns(ctx, selectRunColumns+" ORDER BY created_at DESC, id DESC")
	}
	return p.queryRuns(ctx, selectRunColumns+" ORDER BY created_at DESC, id DESC LIMIT $1", limit)
}

func (p *PostgresStore) queryRuns(ctx context.Context, query string, args ...any) ([]store.RunRecord, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []store.RunRecord{}
	for rows.Next() {
		var run store.RunRecord
		var message sql.NullString
		var countsBytes []byte
		var createdAt time.Time
		var completedAt sql.NullTime
		if err := rows.Scan(
			&run.ID,
			&run.Instruction,
			&run.Status,
			&message,
			&run.StepCount,
			&countsBytes,
			&run.ReportGenerated,
			&createdAt,
			&completedAt,
		); err != nil {
			return nil, err
		}
		if message.Valid {
			run.Message = message.String
		}
		run.EnvironmentCounts = decodeCounts(countsBytes)
		run.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		if completedAt.Valid {
			run.CompletedAt = completedAt.Time.UTC().Format(time.RFC3339Nano)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func encodeCounts(counts map[string]int) ([]byte, error) {
	if counts == nil {
		counts = map[string]int{}
	}
	return json.Marshal(counts)
}

func decodeCounts(raw []byte) map[string]int {
	if len(raw) == 0 {
		return nil
	}
	counts := map[string]int{}
	if err := json.Unmarshal(raw, &counts); err != nil {
		return nil
	}
	return counts
}

func parseTimestampValue(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Now().UTC()
	}
	return parsed.UTC()
}

func nullString(value string) any {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return value
}
