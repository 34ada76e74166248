package repository

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/core-coin/fortuna/internal/models"
	"github.com/core-coin/fortuna/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(&models.Event{}, &models.WinnerRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) RecordEvent(event *models.Event) error {
	if err := db.Conn.Create(event).Error; err != nil {
		return fmt.Errorf("failed to record event: %s", err)
	}

	return nil
}

func (db *PostgresDB) RecentEvents(limit int) ([]*models.Event, error) {
	var events []*models.Event
	if err := db.Conn.Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %s", err)
	}

	return events, nil
}

func (db *PostgresDB) RecordWinner(winner *models.WinnerRecord) error {
	if err := db.Conn.Create(winner).Error; err != nil {
		return fmt.Errorf("failed to record winner: %s", err)
	}

	return nil
}

func (db *PostgresDB) ListWinners(limit int) ([]*models.WinnerRecord, error) {
	var winners []*models.WinnerRecord
	if err := db.Conn.Order("timestamp DESC").Limit(limit).Find(&winners).Error; err != nil {
		return nil, fmt.Errorf("failed to list winners: %s", err)
	}

	return winners, nil
}
