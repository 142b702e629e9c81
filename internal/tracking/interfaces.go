package tracking

import (
	"context"
	"time"

	"github.com/angelmondragon/trackline-backend/pkg/enums"
	"github.com/google/uuid"
)

// Identity is the verified subject attached to a session at authentication
// time. It never changes for the life of the session.
type Identity struct {
	SubjectID uuid.UUID
	Role      enums.ActorRole
}

// CredentialVerifier authenticates a bearer credential before any session
// object exists.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, token string) (Identity, error)
}

// OrderParties is the ownership view of one order used to compute fan-out
// targets. DeliveryPartnerID is nil until the order is assigned.
type OrderParties struct {
	OrderID           uuid.UUID
	CustomerID        uuid.UUID
	VendorID          uuid.UUID
	DeliveryPartnerID *uuid.UUID
}

// OrderResolver looks up the parties of an order. Resolution happens on
// every publish so a reassigned delivery partner takes effect on the next
// update without any transition event.
type OrderResolver interface {
	ResolveParties(ctx context.Context, orderID uuid.UUID) (*OrderParties, error)
}

// PositionSample is one accepted location report.
type PositionSample struct {
	ActorID     uuid.UUID
	OrderID     uuid.UUID
	Coordinates Coordinates
	Timestamp   time.Time
}

// PositionStore is append-only persistence for position samples. Appends
// from different publishers are independent; the store does not enforce
// timestamp monotonicity.
type PositionStore interface {
	Append(ctx context.Context, sample PositionSample) error
	Latest(ctx context.Context, orderID uuid.UUID) (*PositionSample, error)
}

// Transport is the outbound half of one live connection. WriteEvent is
// called from the session's writer goroutine only.
type Transport interface {
	WriteEvent(ctx context.Context, evt OutboundEvent) error
	Close(reason string) error
}
