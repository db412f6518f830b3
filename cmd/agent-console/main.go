package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/api"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/backend"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/config"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/console"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/events"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/metrics"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/render"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/report"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/store"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/store/memory"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/store/postgres"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	newBroker  = events.NewBroker
	newJournal = func(cfg config.Config) (store.Journal, func(), error) {
		if cfg.JournalMode != config.JournalModePostgres {
			return memory.New(), func() {}, nil
		}
		st, err := postgres.New(cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	}
	newBackend = func(cfg config.Config) *backend.Client {
		return backend.NewClient(backend.Config{
			BaseURL:       cfg.BackendURL,
			Timeout:       cfg.BackendTimeout,
			HealthTimeout: cfg.BackendHealthTimeout,
		})
	}
	newRenderer = func(cfg config.Config) (*render.Renderer, error) {
		return render.NewRenderer(report.New(cfg.ReportFormat))
	}
	newServer = func(c *console.Console, renderer *render.Renderer, journal store.Journal, broker *events.Broker, client *backend.Client, m *metrics.Metrics, cfg config.Config) server {
		return api.NewServer(c, renderer, journal, broker, client, m, cfg)
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	journal, closeJournal, err := newJournal(cfg)
	if err != nil {
		return err
	}
	defer closeJournal()

	renderer, err := newRenderer(cfg)
	if err != nil {
		return err
	}

	broker := newBroker()
	m := metrics.New()
	client := newBackend(cfg)
	agentConsole := console.New(client, renderer, journal, broker, m)

	server := newServer(agentConsole, renderer, journal, broker, client, m, cfg)

	addr := fmt.Sprintf(":%s", cfg.ConsolePort)
	log.Printf("Agent console listening on %s (backend %s, journal %s)", addr, client.BaseURL(), cfg.JournalMode)
	if err := server.Start(ctx, addr); err != nil {
		return err
	}

	return nil
}
