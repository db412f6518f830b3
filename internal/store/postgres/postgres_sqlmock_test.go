package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/store"
)

var runColumns = []string{"id", "instruction", "status", "message", "step_count", "environment_counts", "report_generated", "created_at", "completed_at"}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	cleanup := func() {
		_ = db.Close()
	}
	return &PostgresStore{db: db}, mock, cleanup
}

func TestNew_OpenError(t *testing.T) {
	prev := openDB
	openDB = func(driverName string, dataSourceName string) (*sql.DB, error) {
		return nil, errors.New("open error")
	}
	defer func() { openDB = prev }()

	if _, err := New("postgres://example"); err == nil {
		t.Fatalf("expected open error")
	}
}

func TestNew_SchemaMissing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	prev := openDB
	openDB = func(driverName string, dataSourceName string) (*sql.DB, error) {
		require.Equal(t, "pgx", driverName)
		return db, nil
	}
	defer func() { openDB = prev }()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT to_regclass").
		WithArgs("public.console_runs").
		WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow(nil))

	_, err = New("postgres://example")
	require.Error(t, err)
	require.Contains(t, err.Error(), "console_runs table not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_Success(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	prev := openDB
	openDB = func(driverName string, dataSourceName string) (*sql.DB, error) {
		return db, nil
	}
	defer func() { openDB = prev }()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT to_regclass").
		WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow("console_runs"))

	pgStore, err := New("postgres://example")
	require.NoError(t, err)
	require.NotNil(t, pgStore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifySchema_QueryError(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT to_regclass").WillReturnError(errors.New("query error"))
	if err := verifySchema(ctx, pgStore.db); err == nil {
		t.Fatalf("expected schema verification error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateRun(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO console_runs").
		WithArgs("run-1", "list files", "processing", nil, 0, []byte("{}"), false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := pgStore.CreateRun(ctx, store.RunRecord{
		ID:          "run-1",
		Instruction: "list files",
		Status:      "processing",
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteRun(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("UPDATE console_runs").
		WithArgs("run-1", "failed", "timeout", 0, []byte(`{"error":1}`), false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := pgStore.CompleteRun(ctx, store.RunRecord{
		ID:                "run-1",
		Status:            "failed",
		Message:           "timeout",
		EnvironmentCounts: map[string]int{"error": 1},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteRun_NotFound(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec("UPDATE console_runs").WillReturnResult(sqlmock.NewResult(0, 0))

	err := pgStore.CompleteRun(ctx, store.RunRecord{ID: "missing", Status: "completed"})
	require.EqualError(t, err, "run missing not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows(runColumns).
		AddRow("run-1", "list files", "completed", nil, int64(2), []byte(`{"terminal":2}`), true, created, created.Add(time.Second))
	mock.ExpectQuery("SELECT id,").WithArgs("run-1").WillReturnRows(rows)

	run, err := pgStore.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	require.Equal(t, "completed", run.Status)
	require.Equal(t, "", run.Message)
	require.Equal(t, 2, run.StepCount)
	require.Equal(t, map[string]int{"terminal": 2}, run.EnvironmentCounts)
	require.True(t, run.ReportGenerated)
	require.Equal(t, "2026-01-02T03:04:05Z", run.CreatedAt)
	require.Equal(t, "2026-01-02T03:04:06Z", run.CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun_NotFound(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id,").WithArgs("missing").WillReturnRows(sqlmock.NewRows(runColumns))

	run, err := pgStore.GetRun(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, run)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns_Limit(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows(runColumns).
		AddRow("run-2", "b", "processing", nil, int64(0), []byte(`{}`), false, now, nil).
		AddRow("run-1", "a", "failed", "timeout", int64(0), nil, false, now.Add(-time.Minute), now)
	mock.ExpectQuery("LIMIT").WithArgs(5).WillReturnRows(rows)

	runs, err := pgStore.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "run-2", runs[0].ID)
	require.Equal(t, "", runs[0].CompletedAt)
	require.Equal(t, "timeout", runs[1].Message)
	require.Nil(t, runs[1].EnvironmentCounts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns_QueryError(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id,").WillReturnError(errors.New("query error"))
	if _, err := pgStore.ListRuns(ctx, 0); err == nil {
		t.Fatalf("expected query error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRuns_RowsErr(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	rows := sqlmock.NewRows(runColumns).
		AddRow("run-1", "a", "completed", nil, int64(1), []byte(`{}`), false, time.Now(), nil).
		AddRow("run-2", "b", "completed", nil, int64(1), []byte(`{}`), false, time.Now(), nil)
	rows.RowError(1, errors.New("row error"))

	mock.ExpectQuery("SELECT id,").WillReturnRows(rows)
	if _, err := pgStore.ListRuns(ctx, 0); err == nil {
		t.Fatalf("expected rows error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRuns_ScanError(t *testing.T) {
	ctx := context.Background()
	pgStore, mock, cleanup := newMockStore(t)
	defer cleanup()

	rows := sqlmock.NewRows(runColumns).
		AddRow("run-1", "a", "completed", nil, "not-int", []byte(`{}`), false, time.Now(), nil)

	mock.ExpectQuery("SELECT id,").WillReturnRows(rows)
	if _, err := pgStore.ListRuns(ctx, 0); err == nil {
		t.Fatalf("expected scan error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDecodeCounts(t *testing.T) {
	require.Nil(t, decodeCounts(nil))
	require.Nil(t, decodeCounts([]byte("not json")))
	require.Equal(t, map[string]int{"browser": 3}, decodeCounts([]byte(`{"browser":3}`)))
}
