package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "irrigation_controller/docs"
	"irrigation_controller/internal/config"
	"irrigation_controller/internal/handlers"
	"irrigation_controller/internal/logger"
	"irrigation_controller/internal/metrics"
	"irrigation_controller/internal/relay"
	"irrigation_controller/internal/repository"
	"irrigation_controller/internal/repository/db"
	"irrigation_controller/internal/server"
	"irrigation_controller/internal/service"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var configDir string

var rootCmd = &cobra.Command{
	Use:          "irrigation-controller",
	Short:        "Zone valve and watering program controller",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the program scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "configs", "Directory containing config.yml")
	rootCmd.AddCommand(serveCmd)
}

// @title                       Irrigation Controller API
// @version                     1.0
// @description                 Manual zone control, scheduled watering programs and the event log.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the wired process dependencies shared by every command.
type app struct {
	cfg         *config.Config
	log         *logger.Logger
	db          *sql.DB
	metrics     *metrics.Metrics
	services    *service.Service
	closeDriver func()
}

func bootstrap() (*app, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.Get(cfg.Log.Level)

	database, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("init sqlite: %w", err)
	}

	driver, closeDriver, err := openDriver(cfg, log)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	m := metrics.New()
	repos := repository.NewRepository(database)
	services := service.NewService(repos, service.Deps{
		Driver:  driver,
		Metrics: m,
		Log:     log,
		Timing: service.EngineTiming{
			StepTick:     cfg.Scheduler.StepTick,
			PreemptGrace: cfg.Scheduler.PreemptGrace,
		},
		RetentionDays: cfg.Events.RetentionDays,
		SigningKey:    cfg.Auth.SigningKey,
		TokenTTL:      cfg.Auth.TokenTTL,
	})

	return &app{
		cfg:         cfg,
		log:         log,
		db:          database,
		metrics:     m,
		services:    services,
		closeDriver: closeDriver,
	}, nil
}

func (a *app) close() {
	a.closeDriver()
	if err := a.db.Close(); err != nil {
		a.log.Errorw("failed to close sqlite", "err", err)
	}
	_ = a.log.Sync()
}

// openDriver selects the relay backend named in relay.driver.
func openDriver(cfg *config.Config, log *logger.Logger) (relay.Driver, func(), error) {
	if cfg.Relay.Driver == config.RelayDriverMQTT {
		d, err := relay.DialMQTT(cfg.Relay.MQTT)
		if err != nil {
			return nil, nil, fmt.Errorf("connect relay broker: %w", err)
		}
		log.Infow("relay driver ready", "driver", config.RelayDriverMQTT, "broker", cfg.Relay.MQTT.Broker, "prefix", cfg.Relay.MQTT.TopicPrefix)
		return d, d.Close, nil
	}
	log.Infow("relay driver ready", "driver", config.RelayDriverSimulated)
	return relay.NewBoard(), func() {}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.services.Start(ctx); err != nil {
		log.Errorw("outputs not confirmed closed at startup", "err", err)
	}

	go a.services.Scheduler.Run(ctx, a.cfg.Scheduler.ScanInterval)

	apiHandler := handlers.NewHandler(a.services, log, a.metrics)
	srv := &server.Server{}
	runHTTPServer(srv, a.cfg.Server.Port, apiHandler, log)

	waitForShutdown(cancel, srv, a.services, log)
	return nil
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		log.Infow("http server listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals, then stops the API, any running program and
// every open valve.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, services *service.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Infow("shutting down", "signal", sig.String())

	// stop the scheduler
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	if err := services.Shutdown(ctx); err != nil {
		log.Errorw("outputs not confirmed closed at shutdown", "err", err)
	}
}
