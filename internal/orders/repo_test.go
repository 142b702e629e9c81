package orders

import (
	"context"
	"fmt"
	"testing"

	"github.com/angelmondragon/trackline-backend/pkg/db/models"
	"github.com/angelmondragon/trackline-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/trackline-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:orders_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  delivery_partner_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func insertOrder(t *testing.T, db *gorm.DB, partnerID *uuid.UUID) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:                uuid.New(),
		CustomerID:        uuid.New(),
		VendorID:          uuid.New(),
		DeliveryPartnerID: partnerID,
		Status:            enums.DeliveryStatusPending,
	}
	require.NoError(t, NewRepository(db).Create(context.Background(), order))
	return order
}

func TestRepositoryFind(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	partnerID := uuid.New()
	order := insertOrder(t, db, &partnerID)

	found, err := repo.Find(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, order.CustomerID, found.CustomerID)
	require.Equal(t, order.VendorID, found.VendorID)
	require.NotNil(t, found.DeliveryPartnerID)
	require.Equal(t, partnerID, *found.DeliveryPartnerID)

	missing, err := repo.Find(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestRepositoryUpdateAssignment(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	order := insertOrder(t, db, nil)

	partnerID := uuid.New()
	require.NoError(t, repo.UpdateAssignment(context.Background(), order.ID, &partnerID))

	found, err := repo.Find(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, found.DeliveryPartnerID)
	require.Equal(t, partnerID, *found.DeliveryPartnerID)

	require.NoError(t, repo.UpdateAssignment(context.Background(), order.ID, nil))
	found, err = repo.Find(context.Background(), order.ID)
	require.NoError(t, err)
	require.Nil(t, found.DeliveryPartnerID)
}

func TestServiceResolveParties(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	partnerID := uuid.New()
	order := insertOrder(t, db, &partnerID)

	parties, err := svc.ResolveParties(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, parties.OrderID)
	require.Equal(t, order.CustomerID, parties.CustomerID)
	require.Equal(t, order.VendorID, parties.VendorID)
	require.NotNil(t, parties.DeliveryPartnerID)
	require.Equal(t, partnerID, *parties.DeliveryPartnerID)
}

func TestServiceResolvePartiesNotFound(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	_, err = svc.ResolveParties(context.Background(), uuid.New())
	coded := pkgerrors.As(err)
	require.NotNil(t, coded)
	require.Equal(t, pkgerrors.CodeNotFound, coded.Code())

	_, err = svc.ResolveParties(context.Background(), uuid.Nil)
	coded = pkgerrors.As(err)
	require.NotNil(t, coded)
	require.Equal(t, pkgerrors.CodeValidation, coded.Code())
}
