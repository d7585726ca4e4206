package database

import (
	"fmt"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Partial indexes AutoMigrate cannot express.
var partialIndexes = []string{
	// one seat per member per class; guests and cancelled rows are exempt
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_active_primary
	ON reservations (class_id, user_id)
	WHERE status = 'CONFIRMED' AND NOT is_guest_reservation`,
	// at most one open refund request per purchase
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_refund_requests_open
	ON refund_requests (purchase_id)
	WHERE status IN ('PENDING', 'PROCESSING')`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_discount_codes_upper_code
	ON discount_codes (UPPER(code))`,
}

func NewPostgresDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		logrus.Fatalf("failed to connect to database: %v", err)
	}

	if err := Migrate(db); err != nil {
		logrus.Fatalf("failed to migrate: %v", err)
	}

	return db
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
