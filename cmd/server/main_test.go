package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"gorm.io/gorm"

	"foodgram/internal/config"
	"foodgram/internal/server"
)

type stubServer struct {
	startErr       error
	stopErr        error
	blockUntilStop bool

	startCalled bool
	stopCalled  bool

	startGate   chan struct{}
	startNotify chan struct{}
}

func newStubServer(startErr, stopErr error, block bool) *stubServer {
	s := &stubServer{
		startErr:       startErr,
		stopErr:        stopErr,
		blockUntilStop: block,
		startNotify:    make(chan struct{}),
	}
	if block {
		s.startGate = make(chan struct{})
	}
	return s
}

func (s *stubServer) Start() error {
	s.startCalled = true
	close(s.startNotify)
	if s.blockUntilStop {
		<-s.startGate
	}
	return s.startErr
}

func (s *stubServer) Stop() error {
	s.stopCalled = true
	if s.blockUntilStop {
		close(s.startGate)
	}
	return s.stopErr
}

// stubRun replaces every injectable dependency of run with a harmless default
// that serves cfg, and restores the originals when the test ends.
func stubRun(t *testing.T, cfg config.Config) {
	t.Helper()
	originalLoadConfig := loadConfigFunc
	originalSetLogLevel := setLogLevelFunc
	originalConfigureLogging := configureLoggingFunc
	originalMock := newMockDatabaseFunc
	originalConfigure := configureDatabase
	originalNewServer := newServerFunc
	originalSubscribe := subscribeShutdownSig
	t.Cleanup(func() {
		loadConfigFunc = originalLoadConfig
		setLogLevelFunc = originalSetLogLevel
		configureLoggingFunc = originalConfigureLogging
		newMockDatabaseFunc = originalMock
		configureDatabase = originalConfigure
		newServerFunc = originalNewServer
		subscribeShutdownSig = originalSubscribe
	})

	loadConfigFunc = func() (config.Config, error) { return cfg, nil }
	setLogLevelFunc = func(string) error { return nil }
	configureLoggingFunc = func(config.LoggingConfig) error { return nil }
	newMockDatabaseFunc = func(context.Context) (*gorm.DB, error) { return &gorm.DB{}, nil }
	configureDatabase = func(config.DatabaseConfig) (*gorm.DB, error) { return &gorm.DB{}, nil }
	subscribeShutdownSig = func() (<-chan os.Signal, func()) {
		return make(chan os.Signal), func() {}
	}
}

// stopOnStart delivers SIGTERM once the stub server has started.
func stopOnStart(srv *stubServer) {
	shutdownCh := make(chan os.Signal, 1)
	subscribeShutdownSig = func() (<-chan os.Signal, func()) {
		return shutdownCh, func() {}
	}
	go func() {
		<-srv.startNotify
		shutdownCh <- syscall.SIGTERM
	}()
}

func TestRunUsesMockDatabaseWhenConfigured(t *testing.T) {
	stubRun(t, config.Config{
		Server:   config.ServerConfig{Addr: ":8080"},
		Database: config.DatabaseConfig{URL: "postgres://ignored", UseMock: true},
		Logging:  config.LoggingConfig{Level: "debug"},
		Auth: config.AuthConfig{
			Session: config.SessionConfig{
				Lifetime:     time.Hour,
				CookieName:   "test",
				CookieSecure: true,
			},
		},
	})

	var mockCalled bool
	newMockDatabaseFunc = func(ctx context.Context) (*gorm.DB, error) {
		mockCalled = true
		return &gorm.DB{}, nil
	}
	configureDatabase = func(config.DatabaseConfig) (*gorm.DB, error) {
		t.Fatal("configureDatabase should not be called when mock is enabled")
		return nil, nil
	}

	serverStub := newStubServer(http.ErrServerClosed, nil, true)
	newServerFunc = func(server.Config) (serverLifecycle, error) {
		return serverStub, nil
	}
	stopOnStart(serverStub)

	code := run(context.Background())
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !mockCalled {
		t.Fatal("expected mock database to be used")
	}
	if !serverStub.startCalled || !serverStub.stopCalled {
		t.Fatal("expected server start and stop to be invoked")
	}
}

func TestRunPassesSettingsToServer(t *testing.T) {
	limits := config.DefaultLimits()
	limits.TagMaxLen = 16
	limits.RecipesLimit = 5
	token := config.TokenConfig{Secret: "s3cret", TTL: 2 * time.Hour}
	logging := config.LoggingConfig{Level: "info", File: "foodgram.log"}

	stubRun(t, config.Config{
		Server:   config.ServerConfig{Addr: ":9090"},
		Database: config.DatabaseConfig{URL: "  "},
		Logging:  logging,
		Auth: config.AuthConfig{
			Session: config.SessionConfig{Lifetime: time.Hour, CookieName: "foodgram_session", CookieDomain: "example.com"},
			Token:   token,
		},
		Limits: limits,
	})

	var loggingCfg config.LoggingConfig
	configureLoggingFunc = func(cfg config.LoggingConfig) error {
		loggingCfg = cfg
		return nil
	}
	demo := &gorm.DB{}
	newMockDatabaseFunc = func(context.Context) (*gorm.DB, error) { return demo, nil }
	configureDatabase = func(config.DatabaseConfig) (*gorm.DB, error) {
		t.Fatal("a blank database URL should fall back to the demo database")
		return nil, nil
	}

	var got server.Config
	serverStub := newStubServer(http.ErrServerClosed, nil, true)
	newServerFunc = func(cfg server.Config) (serverLifecycle, error) {
		got = cfg
		return serverStub, nil
	}
	stopOnStart(serverStub)

	if code := run(context.Background()); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if loggingCfg != logging {
		t.Fatalf("expected log file settings %+v, got %+v", logging, loggingCfg)
	}
	if got.Database != demo {
		t.Fatal("expected the demo database to reach the server")
	}
	if got.Addr != ":9090" || got.Limits != limits || got.Token != token {
		t.Fatalf("unexpected server config %+v", got)
	}
	if got.Session.CookieName != "foodgram_session" || got.Session.CookieDomain != "example.com" || got.Session.Lifetime != time.Hour {
		t.Fatalf("unexpected session config %+v", got.Session)
	}
}

func TestRunReturnsErrorWhenServerStartFails(t *testing.T) {
	stubRun(t, config.Config{
		Server:   config.ServerConfig{Addr: ":8080"},
		Database: config.DatabaseConfig{UseMock: true},
		Logging:  config.LoggingConfig{Level: "info"},
		Auth:     config.AuthConfig{Session: config.SessionConfig{Lifetime: time.Hour}},
	})

	serverStub := newStubServer(errors.New("listener failure"), nil, false)
	newServerFunc = func(server.Config) (serverLifecycle, error) {
		return serverStub, nil
	}

	code := run(context.Background())
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if serverStub.stopCalled {
		t.Fatal("server stop should not be called on start error")
	}
}

func TestRunReturnsErrorWhenServerBuildFails(t *testing.T) {
	stubRun(t, config.Config{Database: config.DatabaseConfig{UseMock: true}})
	newServerFunc = func(server.Config) (serverLifecycle, error) {
		return nil, errors.New("bad session settings")
	}

	if code := run(context.Background()); code != 1 {
		t.Fatalf("expected exit code 1 when the server cannot be built, got %d", code)
	}
}

func TestRunHandlesDatabaseConfigurationError(t *testing.T) {
	stubRun(t, config.Config{
		Server:   config.ServerConfig{Addr: ":8080"},
		Database: config.DatabaseConfig{URL: "postgres://example", UseMock: false},
		Logging:  config.LoggingConfig{Level: "info"},
	})

	newMockDatabaseFunc = func(context.Context) (*gorm.DB, error) {
		t.Fatal("mock database should not be used when URL is configured")
		return nil, nil
	}
	configureDatabase = func(config.DatabaseConfig) (*gorm.DB, error) {
		return nil, errors.New("db connection refused")
	}

	code := run(context.Background())
	if code != 1 {
		t.Fatalf("expected exit code 1 on database configuration failure, got %d", code)
	}
}

func TestRunReturnsErrorWhenLogLevelInvalid(t *testing.T) {
	stubRun(t, config.Config{Logging: config.LoggingConfig{Level: "invalid"}})
	setLogLevelFunc = func(string) error { return errors.New("invalid level") }

	code := run(context.Background())
	if code != 1 {
		t.Fatalf("expected exit code 1 for invalid log level, got %d", code)
	}
}

func TestRunReturnsErrorWhenLogFileFails(t *testing.T) {
	stubRun(t, config.Config{Logging: config.LoggingConfig{Level: "info", File: "/nonexistent/foodgram.log"}})
	configureLoggingFunc = func(config.LoggingConfig) error { return errors.New("permission denied") }
	newMockDatabaseFunc = func(context.Context) (*gorm.DB, error) {
		t.Fatal("database should not be opened when logging fails")
		return nil, nil
	}

	if code := run(context.Background()); code != 1 {
		t.Fatalf("expected exit code 1 when the log file cannot be configured, got %d", code)
	}
}
