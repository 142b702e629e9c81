// Package positions is the append-only position store behind the tracking
// router, plus the read side the HTTP layer serves: latest sample per
// order and a paginated history.
package positions

import (
	"context"
	"time"

	"github.com/angelmondragon/trackline-backend/internal/tracking"
	"github.com/angelmondragon/trackline-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/trackline-backend/pkg/errors"
	"github.com/angelmondragon/trackline-backend/pkg/logger"
	"github.com/angelmondragon/trackline-backend/pkg/pagination"
	"github.com/angelmondragon/trackline-backend/pkg/pubsub"
	"github.com/angelmondragon/trackline-backend/pkg/types"
	"github.com/google/uuid"
)

// TelemetrySink receives accepted position samples for downstream export.
type TelemetrySink interface {
	PublishPosition(ctx context.Context, payload pubsub.PositionTelemetry) error
}

// Service persists and reads position samples.
type Service interface {
	Append(ctx context.Context, sample tracking.PositionSample) error
	Latest(ctx context.Context, orderID uuid.UUID) (*tracking.PositionSample, error)
	History(ctx context.Context, params HistoryParams) (*HistoryResult, error)
}

type service struct {
	repo      Repository
	telemetry TelemetrySink
	logg      *logger.Logger
}

// NewService wires the position store. Telemetry is optional; pass nil to
// disable export.
func NewService(repo Repository, telemetry TelemetrySink, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "positions repository required")
	}
	return &service{repo: repo, telemetry: telemetry, logg: logg}, nil
}

// HistoryParams configures a cursor page over one order's samples, newest
// first.
type HistoryParams struct {
	OrderID uuid.UUID
	Limit   int
	Cursor  string
}

// HistoryResult wraps one page of samples and the cursor for the next page.
type HistoryResult struct {
	Items  []PositionPoint `json:"items"`
	Cursor string          `json:"cursor"`
}

// PositionPoint is the read-side shape of one sample.
type PositionPoint struct {
	OrderID   uuid.UUID `json:"orderId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Append stores exactly one record per accepted sample. Telemetry export is
// best effort and never fails the write.
func (s *service) Append(ctx context.Context, sample tracking.PositionSample) error {
	if sample.OrderID == uuid.Nil || sample.ActorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor and order ids required")
	}

	record := &models.PositionRecord{
		ID:        uuid.New(),
		ActorID:   sample.ActorID,
		OrderID:   sample.OrderID,
		Latitude:  sample.Coordinates.Latitude,
		Longitude: sample.Coordinates.Longitude,
		Geom: types.GeographyPoint{
			Lat: sample.Coordinates.Latitude,
			Lng: sample.Coordinates.Longitude,
		},
		Timestamp: sample.Timestamp,
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inserting position record")
	}

	if s.telemetry != nil {
		if err := s.telemetry.PublishPosition(ctx, pubsub.PositionTelemetry{
			OrderID:   sample.OrderID.String(),
			ActorID:   sample.ActorID.String(),
			Latitude:  sample.Coordinates.Latitude,
			Longitude: sample.Coordinates.Longitude,
			Timestamp: sample.Timestamp,
		}); err != nil && s.logg != nil {
			s.logg.Warn(ctx, "position telemetry publish failed")
		}
	}
	return nil
}

// Latest returns the most recent sample for an order, or nil when none
// exists.
func (s *service) Latest(ctx context.Context, orderID uuid.UUID) (*tracking.PositionSample, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	record, err := s.repo.Latest(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading latest position")
	}
	if record == nil {
		return nil, nil
	}
	return &tracking.PositionSample{
		ActorID: record.ActorID,
		OrderID: record.OrderID,
		Coordinates: tracking.Coordinates{
			Latitude:  record.Latitude,
			Longitude: record.Longitude,
		},
		Timestamp: record.Timestamp,
	}, nil
}

// History returns one page of an order's samples, newest first.
func (s *service) History(ctx context.Context, params HistoryParams) (*HistoryResult, error) {
	if params.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	query := listPositionsParams{
		OrderID: params.OrderID,
		Limit:   pagination.NormalizeLimit(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	records, next, err := s.repo.ListByOrder(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing positions")
	}

	result := &HistoryResult{Items: make([]PositionPoint, 0, len(records))}
	for _, record := range records {
		result.Items = append(result.Items, PositionPoint{
			OrderID:   record.OrderID,
			Latitude:  record.Latitude,
			Longitude: record.Longitude,
			Timestamp: record.Timestamp,
		})
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}
