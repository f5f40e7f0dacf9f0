// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "device-link/docs"
	"device-link/internal/config"
	"device-link/internal/database"
	"device-link/internal/discovery"
	serialscan "device-link/internal/discovery/serial"
	usbscan "device-link/internal/discovery/usb"
	"device-link/internal/repository"
	"device-link/internal/routes"
	"device-link/internal/service"
	"device-link/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB

	sessionService *service.SessionService
	scanners       *discovery.ScannerManager

	commandRepo   repository.CommandRepository
	telemetryRepo repository.TelemetryRepository
	otaRepo       repository.OTARepository
}

// @title Device Link API
// @version 1.0.0
// @description Device channel service for browser-based IoT development. Bridges REST and WebSocket clients to microcontroller boards over serial, socket, and MQTT links.
// @termsOfService http://swagger.io/terms/

// @contact.name Device Link API Support
// @contact.email support@devicelink.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8084
// @BasePath /api/v1
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "device-link")
	serviceLogger.LogServiceStart(cfg.App.Version)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initializeRepositories()
	app.initializeDiscovery()
	app.initializeServices()
	app.initializeServer()

	return app, nil
}

// initializeDatabase sets up the optional history store and runs
// migrations. With the database disabled the service runs fully
// in-memory.
func (app *Application) initializeDatabase() error {
	if !app.config.Database.Enabled {
		app.logger.Info("History persistence disabled, running in-memory")
		return nil
	}

	db, err := database.NewConnection(&app.config.Database, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	migrator := database.NewMigrator(db, app.logger)
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeRepositories creates repository instances. They stay nil
// without a database; the session service treats nil repositories as
// history-off.
func (app *Application) initializeRepositories() {
	if app.database == nil {
		return
	}

	app.commandRepo = repository.NewCommandRepository(app.database, app.logger)
	app.telemetryRepo = repository.NewTelemetryRepository(app.database, app.logger)
	app.otaRepo = repository.NewOTARepository(app.database, app.logger)

	app.logger.Info("Repositories initialized successfully")
}

// initializeDiscovery sets up board scanners
func (app *Application) initializeDiscovery() {
	app.scanners = discovery.NewScannerManager(app.logger)
	app.scanners.RegisterScanner(serialscan.NewScanner(app.logger))
	app.scanners.RegisterScanner(usbscan.NewScanner(app.logger))

	app.logger.Info("Discovery initialized successfully",
		zap.Strings("scanners", app.scanners.GetAvailableScanners()),
	)
}

// initializeServices creates service instances
func (app *Application) initializeServices() {
	app.sessionService = service.NewSessionService(
		app.config,
		app.commandRepo,
		app.telemetryRepo,
		app.otaRepo,
		app.logger,
	)
	app.sessionService.Start()

	app.logger.Info("Services initialized successfully")
}

// initializeServer sets up the HTTP server
func (app *Application) initializeServer() {
	router := routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.sessionService,
		app.scanners,
	)

	app.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", app.config.Server.Host, app.config.Server.Port),
		Handler:      router.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized", zap.String("address", app.server.Addr))
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "device-link")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	// Close every device link before dropping the database handle so
	// command history for in-flight work is still recorded.
	app.sessionService.Shutdown()

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}

	app.logger.Info("Application shutdown completed")
}

func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.waitForShutdown()

	return nil
}
