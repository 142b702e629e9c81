package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/trackline-backend/pkg/types"
)

// PositionRecord is one persisted location sample from a delivery partner.
// Records are append-only; Timestamp ordering is not enforced at write time.
// Geom mirrors the lat/lng pair so proximity queries can use the spatial index.
type PositionRecord struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ActorID   uuid.UUID            `gorm:"column:actor_id;type:uuid;not null;index"`
	OrderID   uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index:idx_position_records_order_ts"`
	Latitude  float64              `gorm:"column:latitude;not null"`
	Longitude float64              `gorm:"column:longitude;not null"`
	Geom      types.GeographyPoint `gorm:"column:geom;type:geography(Point,4326)"`
	Timestamp time.Time            `gorm:"column:timestamp;not null;index:idx_position_records_order_ts"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}
