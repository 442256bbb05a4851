package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"esphub/internal/config"
	"esphub/internal/events"
	"esphub/internal/handlers"
	"esphub/internal/logger"
	"esphub/internal/models"
	"esphub/internal/mqtt"
	"esphub/internal/repository"
	"esphub/internal/repository/db"
	"esphub/internal/server"
	"esphub/internal/service"
)

func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load config.yml
	if err := loadServerConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	// open DB
	sqlDB, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)

	cfgStore := config.NewStore(repos.Config)
	if err := cfgStore.Load(context.Background()); err != nil {
		log.Fatalw("failed to load hub config", "err", err)
	}

	hub := events.NewHub(log)
	session := mqtt.NewClient(log)

	services := service.NewService(service.Deps{
		Repos:          repos,
		Config:         cfgStore,
		Hub:            hub,
		Session:        session,
		Log:            log,
		UTCOffsetHours: viper.GetInt("automation.utc_offset_hours"),
		RelayTimeout:   time.Duration(viper.GetInt("relay.timeout_seconds")) * time.Second,
	})

	// telemetry published by the device lands in the same pipeline as /upload
	session.OnTelemetry(func(body []byte) {
		if _, err := services.Ingest.Process(context.Background(), body, models.SourceMQTT); err != nil {
			log.Errorw("mqtt_telemetry_rejected", "err", err)
		}
	})
	if err := session.Configure(cfgStore.Get().MQTT); err != nil {
		log.Warnw("mqtt session not established", "err", err)
	}

	apiHandler := handlers.NewHandler(services, hub, log)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(srv, log)
}

func loadServerConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	viper.SetDefault("automation.utc_offset_hours", 2)
	viper.SetDefault("relay.timeout_seconds", 5)
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "esphub.db")
		dbPath = "esphub.db"
	}
	return db.InitDB(dbPath)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// allow in-flight requests to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
