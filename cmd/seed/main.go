package main

import (
	"context"
	"os"

	"hospital-inventory/internal/database"
	"hospital-inventory/internal/repository"
	"hospital-inventory/internal/service"
	"hospital-inventory/pkg/config"
	"hospital-inventory/pkg/logger"

	"github.com/joho/godotenv"
)

// seed inserts the default accounts, suppliers and items. Running it twice is safe.
func main() {
	logg := logger.New(logger.Options{ServiceName: "seed"})

	if err := godotenv.Load("configs/.env"); err != nil {
		logg.Warn(context.Background(), "no configs/.env file found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(cfg.DB)
	if err != nil {
		logg.Error(context.Background(), "database connection failed", err)
		os.Exit(1)
	}

	seeder := service.NewSeedService(
		repository.NewUserRepository(db),
		repository.NewSupplierRepository(db),
		repository.NewItemRepository(db),
		repository.NewStockMovementRepository(db),
		repository.NewTransactionManager(db),
		cfg.Seed,
		logg,
	)

	report, err := seeder.Seed(context.Background())
	if err != nil {
		logg.Error(context.Background(), "seeding failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithFields(context.Background(), map[string]any{
		"users":     report.Users,
		"suppliers": report.Suppliers,
		"items":     report.Items,
	}), "seed complete")
}
