package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/backend"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/config"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/events"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/metrics"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/render"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/report"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/store"
)

type MockConsole struct {
	mock.Mock
}

func (m *MockConsole) Submit(ctx context.Context, instruction string) (*render.RunView, error) {
	args := m.Called(ctx, instruction)
	if value := args.Get(0); value != nil {
		return value.(*render.RunView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConsole) Current() *render.RunView {
	args := m.Called()
	return args.Get(0).(*render.RunView)
}

func (m *MockConsole) Busy() bool {
	args := m.Called()
	return args.Bool(0)
}

type MockJournal struct {
	mock.Mock
}

func (m *MockJournal) CreateRun(ctx context.Context, run store.RunRecord) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockJournal) CompleteRun(ctx context.Context, run store.RunRecord) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockJournal) GetRun(ctx context.Context, runID string) (*store.RunRecord, error) {
	args := m.Called(ctx, runID)
	if value := args.Get(0); value != nil {
		return value.(*store.RunRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockJournal) ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error) {
	args := m.Called(ctx, limit)
	var result []store.RunRecord
	if value := args.Get(0); value != nil {
		result = value.([]store.RunRecord)
	}
	return result, args.Error(1)
}

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Subscribe(ctx context.Context) <-chan events.StatusEvent {
	args := m.Called(ctx)
	if value := args.Get(0); value != nil {
		if ch, ok := value.(chan events.StatusEvent); ok {
			return ch
		}
		if ch, ok := value.(<-chan events.StatusEvent); ok {
			return ch
		}
	}
	return nil
}

type MockBackendHealth struct {
	mock.Mock
}

func (m *MockBackendHealth) Health(ctx context.Context) (backend.Health, error) {
	args := m.Called(ctx)
	var health backend.Health
	if value := args.Get(0); value != nil {
		health = value.(backend.Health)
	}
	return health, args.Error(1)
}

type testDeps struct {
	console *MockConsole
	journal *MockJournal
	broker  *MockBroker
	backend *MockBackendHealth
	metrics *metrics.Metrics
	cfg     config.Config
}

func newTestDeps() *testDeps {
	return &testDeps{
		console: &MockConsole{},
		journal: &MockJournal{},
		broker:  &MockBroker{},
		backend: &MockBackendHealth{},
		metrics: metrics.New(),
		cfg:     config.Config{JournalListLimit: 50},
	}
}

func newTestServer(t *testing.T, deps *testDeps) *httptest.Server {
	t.Helper()
	renderer, err := render.NewRenderer(report.Lite{})
	require.NoError(t, err)
	server := NewServer(deps.console, renderer, deps.journal, deps.broker, deps.backend, deps.metrics, deps.cfg)
	return httptest.NewServer(server.Router())
}

func completedView(t *testing.T) *render.RunView {
	t.Helper()
	renderer, err := render.NewRenderer(report.Lite{})
	require.NoError(t, err)
	view := render.NewRunView("run-1", "list files", render.StatusCompleted)
	text := "# Done\nall **good**"
	renderer.RenderReport(view, &text)
	return view
}
