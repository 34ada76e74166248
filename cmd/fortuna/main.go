package main

import (
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/core-coin/fortuna/internal/config"
	"github.com/core-coin/fortuna/internal/fortuna"
	"github.com/core-coin/fortuna/internal/http_api"
	"github.com/core-coin/fortuna/internal/models"
	"github.com/core-coin/fortuna/internal/notificator"
	"github.com/core-coin/fortuna/internal/repository"
	"github.com/core-coin/fortuna/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "fortuna",
		Usage: "Fortuna is a recurring raffle with metered randomness",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "HTTP API port"},
			&cli.StringFlag{Name: "entrance-fee", Aliases: []string{"f"}, Usage: "Raffle entrance fee in native units"},
			&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Usage: "Raffle cycle interval"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("entrance-fee") {
		entranceFee, ok := new(big.Int).SetString(c.String("entrance-fee"), 10)
		if ok {
			cfg.EntranceFee = entranceFee
		}
	}
	if c.IsSet("interval") {
		cfg.Interval = c.Duration("interval")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize the event journal. Without a Postgres host the journal is
	// kept in memory.
	var db models.Repository
	if cfg.PostgresHost != "" {
		db, err = repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %v", err)
		}
	} else {
		log.Info("No Postgres host configured, using in-memory journal")
		db = repository.NewMemoryDB()
	}

	// Initialize notification channels
	var telNotif *notificator.TelegramNotificator
	if cfg.TelegramBotToken != "" {
		telNotif = notificator.NewTelegramNotificator(log, cfg.TelegramBotToken, cfg.TelegramChatID)
	}
	var emailNotif *notificator.EmailNotificator
	if cfg.SMTPHost != "" {
		emailNotif = notificator.NewEmailNotificator(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender, cfg.NotifyEmail)
	}
	notif := notificator.NewNotificator(log, telNotif, emailNotif)

	// Create Fortuna instance
	fortunaApp, err := fortuna.NewFortuna(cfg, db, notif, log)
	if err != nil {
		return fmt.Errorf("failed to bootstrap fortuna: %v", err)
	}

	// Initialize API server
	apiServer := http_api.NewHTTPServer(fortunaApp, cfg.APIPort, log)

	go apiServer.Start()
	// Start the application
	fortunaApp.Start()

	// Wait for a termination signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	if err := apiServer.Shutdown(); err != nil {
		log.Error("API shutdown failed: ", err)
	}
	fortunaApp.Stop()
	// Give in-flight notification goroutines a moment to finish.
	time.Sleep(100 * time.Millisecond)
	return nil
}
