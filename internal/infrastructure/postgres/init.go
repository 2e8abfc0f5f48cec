package postgres

import (
	"log"

	"github.com/billvault/checkout-service/internal/config"
	"github.com/billvault/checkout-service/internal/infrastructure/postgres/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func MustInitDB(cfg *config.CheckoutConfig) *gorm.DB {
	dsn := cfg.CheckoutDB.Dsn
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to init db: %v\n", err.Error())
	}

	db.AutoMigrate(&models.TransactionModel{}, &models.TransactionEventModel{})

	return db
}
