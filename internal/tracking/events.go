package tracking

import (
	"time"

	"github.com/angelmondragon/trackline-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/trackline-backend/pkg/errors"
	"github.com/google/uuid"
)

// EventKind names one event on the realtime boundary.
type EventKind string

const (
	EventOrderJoin      EventKind = "order:join"
	EventOrderLeave     EventKind = "order:leave"
	EventLocationUpdate EventKind = "location:update"
	EventDeliveryStatus EventKind = "delivery:status"

	EventLocationUpdated EventKind = "location:updated"
	EventError           EventKind = "error"
)

// Coordinates is one reported position sample.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the coordinates are on the globe.
func (c Coordinates) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return pkgerrors.New(pkgerrors.CodeValidation, "latitude must be between -90 and 90")
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return pkgerrors.New(pkgerrors.CodeValidation, "longitude must be between -180 and 180")
	}
	return nil
}

// OrderTopicRequest is the payload of order:join and order:leave.
type OrderTopicRequest struct {
	OrderID uuid.UUID `json:"orderId"`
}

// Validate rejects a missing order id.
func (r OrderTopicRequest) Validate() error {
	if r.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return nil
}

// LocationUpdate is the payload of an inbound location:update event.
type LocationUpdate struct {
	OrderID     uuid.UUID   `json:"orderId"`
	Coordinates Coordinates `json:"coordinates"`
}

// Validate checks the order id and coordinate ranges.
func (u LocationUpdate) Validate() error {
	if u.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return u.Coordinates.Validate()
}

// StatusChange is the payload of an inbound delivery:status event.
type StatusChange struct {
	OrderID uuid.UUID            `json:"orderId"`
	Status  enums.DeliveryStatus `json:"status"`
}

// Validate checks the order id and that the status is a known value.
func (c StatusChange) Validate() error {
	if c.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !c.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery status")
	}
	return nil
}

// OutboundEvent is one event queued for delivery to a session.
type OutboundEvent struct {
	Event EventKind `json:"event"`
	Data  any       `json:"data"`
}

type locationUpdatedData struct {
	OrderID  uuid.UUID       `json:"orderId"`
	Location locationPayload `json:"location"`
}

type locationPayload struct {
	Coordinates Coordinates `json:"coordinates"`
	Timestamp   time.Time   `json:"timestamp"`
}

type statusChangedData struct {
	OrderID uuid.UUID            `json:"orderId"`
	Status  enums.DeliveryStatus `json:"status"`
}

type errorData struct {
	Message string `json:"message"`
}

func newLocationUpdatedEvent(orderID uuid.UUID, coords Coordinates, ts time.Time) OutboundEvent {
	return OutboundEvent{
		Event: EventLocationUpdated,
		Data: locationUpdatedData{
			OrderID: orderID,
			Location: locationPayload{
				Coordinates: coords,
				Timestamp:   ts,
			},
		},
	}
}

func newStatusChangedEvent(orderID uuid.UUID, status enums.DeliveryStatus) OutboundEvent {
	return OutboundEvent{
		Event: EventDeliveryStatus,
		Data:  statusChangedData{OrderID: orderID, Status: status},
	}
}

// NewErrorEvent builds the error event delivered only to the session that
// caused the failure.
func NewErrorEvent(message string) OutboundEvent {
	return OutboundEvent{Event: EventError, Data: errorData{Message: message}}
}
