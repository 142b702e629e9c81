package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/angelmondragon/trackline-backend/internal/orders"
	"github.com/angelmondragon/trackline-backend/internal/users"
	"github.com/angelmondragon/trackline-backend/pkg/config"
	"github.com/angelmondragon/trackline-backend/pkg/db"
	"github.com/angelmondragon/trackline-backend/pkg/db/models"
	"github.com/angelmondragon/trackline-backend/pkg/enums"
	"github.com/angelmondragon/trackline-backend/pkg/logger"
	"github.com/angelmondragon/trackline-backend/pkg/migrate"
	"github.com/angelmondragon/trackline-backend/pkg/security"
)

const demoPassword = "password123"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logg, dbClient.DB()); err != nil {
		logg.Error(ctx, "seed failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, gdb *gorm.DB) error {
	var count int64
	if err := gdb.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logg.Info(ctx, "database already seeded, skipping")
		return nil
	}

	hash, err := security.HashPassword(demoPassword, cfg.Password)
	if err != nil {
		return err
	}

	userRepo := users.NewRepository(gdb)
	demo := []*models.User{
		{ID: uuid.New(), Name: "Demo Vendor", Email: "vendor@example.com", PasswordHash: hash, Role: enums.ActorRoleVendor},
		{ID: uuid.New(), Name: "Demo Delivery", Email: "delivery@example.com", PasswordHash: hash, Role: enums.ActorRoleDelivery},
		{ID: uuid.New(), Name: "Demo Customer", Email: "customer@example.com", PasswordHash: hash, Role: enums.ActorRoleCustomer},
	}
	for _, user := range demo {
		if err := userRepo.Create(ctx, user); err != nil {
			return err
		}
	}
	vendor, delivery, customer := demo[0], demo[1], demo[2]

	orderRepo := orders.NewRepository(gdb)
	pending := &models.Order{
		ID:         uuid.New(),
		CustomerID: customer.ID,
		VendorID:   vendor.ID,
		Status:     enums.DeliveryStatusPending,
	}
	if err := orderRepo.Create(ctx, pending); err != nil {
		return err
	}
	assigned := &models.Order{
		ID:                uuid.New(),
		CustomerID:        customer.ID,
		VendorID:          vendor.ID,
		DeliveryPartnerID: &delivery.ID,
		Status:            enums.DeliveryStatusAccepted,
	}
	if err := orderRepo.Create(ctx, assigned); err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"users":          len(demo),
		"pending_order":  pending.ID.String(),
		"assigned_order": assigned.ID.String(),
	})
	logg.Info(ctx, "database seeded")
	return nil
}
