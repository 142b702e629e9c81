package positions

import (
	"context"
	"errors"

	"github.com/angelmondragon/trackline-backend/pkg/db/models"
	"github.com/angelmondragon/trackline-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for position records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, record *models.PositionRecord) error
	Latest(ctx context.Context, orderID uuid.UUID) (*models.PositionRecord, error)
	ListByOrder(ctx context.Context, params listPositionsParams) ([]models.PositionRecord, *pagination.Cursor, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a positions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listPositionsParams struct {
	OrderID uuid.UUID
	Limit   int
	Cursor  *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Insert(ctx context.Context, record *models.PositionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repositoryImpl) Latest(ctx context.Context, orderID uuid.UUID) (*models.PositionRecord, error) {
	var record models.PositionRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("timestamp DESC, id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repositoryImpl) ListByOrder(ctx context.Context, params listPositionsParams) ([]models.PositionRecord, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Model(&models.PositionRecord{}).
		Where("order_id = ?", params.OrderID)
	if params.Cursor != nil {
		query = query.Where("(timestamp, id) < (?, ?)", params.Cursor.Timestamp, params.Cursor.ID)
	}

	var records []models.PositionRecord
	if err := query.Order("timestamp DESC, id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, nil, err
	}

	if len(records) > normalized {
		records = records[:normalized]
		last := records[len(records)-1]
		return records, &pagination.Cursor{Timestamp: last.Timestamp, ID: last.ID}, nil
	}
	return records, nil, nil
}
