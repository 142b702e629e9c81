// Package orders is the ownership oracle for the tracking core: given an
// order id it answers who the customer, vendor and assigned delivery
// partner are. It reads order rows, it never drives the order workflow.
package orders

import (
	"context"

	"github.com/angelmondragon/trackline-backend/internal/tracking"
	pkgerrors "github.com/angelmondragon/trackline-backend/pkg/errors"
	"github.com/google/uuid"
)

// Service resolves order parties for fan-out target computation.
type Service interface {
	ResolveParties(ctx context.Context, orderID uuid.UUID) (*tracking.OrderParties, error)
}

type service struct {
	repo Repository
}

// NewService wires the orders oracle.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	return &service{repo: repo}, nil
}

// ResolveParties is called on every publish rather than cached at join
// time, so a reassigned delivery partner is picked up on the next update.
func (s *service) ResolveParties(ctx context.Context, orderID uuid.UUID) (*tracking.OrderParties, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.Find(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "looking up order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return &tracking.OrderParties{
		OrderID:           order.ID,
		CustomerID:        order.CustomerID,
		VendorID:          order.VendorID,
		DeliveryPartnerID: order.DeliveryPartnerID,
	}, nil
}
