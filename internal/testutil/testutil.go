package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dom/jober-auth/internal/api"
	"github.com/dom/jober-auth/internal/config"
	"github.com/dom/jober-auth/internal/metrics"
	"github.com/dom/jober-auth/internal/repository"
	"github.com/dom/jober-auth/internal/repository/memory"
	repoPostgres "github.com/dom/jober-auth/internal/repository/postgres"
	"github.com/dom/jober-auth/internal/service"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer and returns a connection
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_jober"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := db.AutoMigrate(repoPostgres.Models...); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
	}

	t.Cleanup(func() {
		testDB.Cleanup()
	})

	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		ctx := context.Background()
		tdb.Container.Terminate(ctx)
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	tables := []string{
		"job_postings",
		"phone_otps",
		"refresh_tokens",
		"user_roles",
		"users",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:             "0", // Random port
		Environment:      "test",
		Store:            config.StoreMemory,
		JWTSecret:        "test-jwt-secret-key-for-testing-only",
		RefreshRetention: 24 * time.Hour,
		Policy:           config.DefaultPolicy,
	}
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Env is a memory-backed service graph.
type Env struct {
	Store    *memory.Store
	Repos    *repository.Repositories
	Services *service.Services
	Sender   *CaptureSender
	Metrics  *metrics.Recorder
	Config   *config.Config
}

// NewEnv wires every service over a fresh memory store.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	cfg := TestConfig()
	store := memory.NewStore()
	repos := memory.NewRepositories(store)
	sender := NewCaptureSender()
	rec := metrics.New()

	services, err := service.NewServices(repos, cfg, sender, zap.NewNop(), rec)
	if err != nil {
		t.Fatalf("failed to build services: %v", err)
	}

	return &Env{
		Store:    store,
		Repos:    repos,
		Services: services,
		Sender:   sender,
		Metrics:  rec,
		Config:   cfg,
	}
}

// TestServer holds all components for integration testing
type TestServer struct {
	*Env
	Server *httptest.Server
}

// NewTestServer creates a complete test server backed by the memory store
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	env := NewEnv(t)
	router := api.NewRouter(env.Services, env.Metrics, env.Config, zap.NewNop())
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
	})

	return &TestServer{Env: env, Server: server}
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api%s", ts.Server.URL, path)
}
