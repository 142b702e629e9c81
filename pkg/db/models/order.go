package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/trackline-backend/pkg/enums"
)

// Order holds the party references the tracking core needs: who placed it,
// who fulfills it, and which delivery partner (if any) is currently assigned.
type Order struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID        uuid.UUID            `gorm:"column:customer_id;type:uuid;not null;index"`
	VendorID          uuid.UUID            `gorm:"column:vendor_id;type:uuid;not null;index"`
	DeliveryPartnerID *uuid.UUID           `gorm:"column:delivery_partner_id;type:uuid;index"`
	Status            enums.DeliveryStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
