package tracking

import (
	"context"
	"time"

	"github.com/angelmondragon/trackline-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/trackline-backend/pkg/errors"
	"github.com/angelmondragon/trackline-backend/pkg/logger"
	"github.com/angelmondragon/trackline-backend/pkg/metrics"
)

const (
	outcomeAccepted     = "accepted"
	outcomeRejected     = "rejected"
	outcomeUnresolvable = "unresolvable"
	outcomeFailed       = "failed"
)

// RouterOptions configures one Router instance.
type RouterOptions struct {
	Verifier  CredentialVerifier
	Orders    OrderResolver
	Positions PositionStore
	Registry  *Registry
	Metrics   *metrics.TrackingMetrics
	Logger    *logger.Logger

	// EnforceOwnership rejects a location update from a delivery partner
	// other than the one assigned to the order. When the order has no
	// assignment yet the update is accepted.
	EnforceOwnership bool

	SendBuffer   int
	WriteTimeout time.Duration

	// Now is overridable for tests.
	Now func() time.Time
}

// Router is the gatekeeper and fan-out engine for all realtime events. It
// owns a membership registry, admits and validates every inbound event, and
// delivers outbound events to the current membership snapshot.
type Router struct {
	verifier  CredentialVerifier
	orders    OrderResolver
	positions PositionStore
	registry  *Registry
	metrics   *metrics.TrackingMetrics
	logg      *logger.Logger

	enforceOwnership bool
	sendBuffer       int
	writeTimeout     time.Duration
	now              func() time.Time
}

// NewRouter wires the router's collaborators.
func NewRouter(opts RouterOptions) (*Router, error) {
	if opts.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "credential verifier required")
	}
	if opts.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "order resolver required")
	}
	if opts.Positions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "position store required")
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Router{
		verifier:         opts.Verifier,
		orders:           opts.Orders,
		positions:        opts.Positions,
		registry:         registry,
		metrics:          opts.Metrics,
		logg:             opts.Logger,
		enforceOwnership: opts.EnforceOwnership,
		sendBuffer:       opts.SendBuffer,
		writeTimeout:     opts.WriteTimeout,
		now:              now,
	}, nil
}

// Authenticate verifies a bearer credential. The caller must refuse the
// transport connection on error; no session exists until this succeeds.
func (r *Router) Authenticate(ctx context.Context, token string) (Identity, error) {
	identity, err := r.verifier.VerifyCredential(ctx, token)
	if err != nil {
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid credential")
	}
	return identity, nil
}

// Register creates the session for a verified identity, auto-joins its role
// channel and starts the writer goroutine. The session is Active on return.
func (r *Router) Register(ctx context.Context, identity Identity, transport Transport) *Session {
	s := newSession(identity, transport, r.sendBuffer, r.writeTimeout, func(closed *Session) {
		r.registry.RemoveSession(closed)
		r.metrics.ConnClosed(closed.identity.Role.String())
	})
	r.registry.JoinChannel(s.RoleChannel(), s)
	go s.writeLoop()
	s.markActive()
	r.metrics.ConnOpened(identity.Role.String())
	if r.logg != nil {
		ctx = r.logg.WithSessionID(ctx, s.ID().String())
		ctx = r.logg.WithActorRole(ctx, identity.Role.String())
		r.logg.Info(ctx, "session registered")
	}
	return s
}

// JoinOrderTopic subscribes the session to an order's updates. Idempotent.
// Any authenticated identity may join; party membership is checked at
// publish time, not join time.
func (r *Router) JoinOrderTopic(ctx context.Context, s *Session, req OrderTopicRequest) error {
	if err := r.requireActive(s); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		r.metrics.IncEvent(string(EventOrderJoin), outcomeRejected)
		return err
	}
	r.registry.JoinOrder(req.OrderID, s)
	s.trackJoin(req.OrderID)
	r.metrics.IncEvent(string(EventOrderJoin), outcomeAccepted)
	return nil
}

// LeaveOrderTopic unsubscribes the session; no-op when not a member.
func (r *Router) LeaveOrderTopic(ctx context.Context, s *Session, req OrderTopicRequest) error {
	if err := r.requireActive(s); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		r.metrics.IncEvent(string(EventOrderLeave), outcomeRejected)
		return err
	}
	r.registry.LeaveOrder(req.OrderID, s)
	s.trackLeave(req.OrderID)
	r.metrics.IncEvent(string(EventOrderLeave), outcomeAccepted)
	return nil
}

// PublishLocationUpdate admits one position report: authorize, persist,
// resolve the order's parties and fan the update out to their role
// channels. A resolution failure never loses the position write; fan-out
// is skipped and the failure reported to the publisher only.
func (r *Router) PublishLocationUpdate(ctx context.Context, s *Session, update LocationUpdate) error {
	if err := r.requireActive(s); err != nil {
		return err
	}
	if !CanPublish(s.Identity(), EventLocationUpdate) {
		r.metrics.IncEvent(string(EventLocationUpdate), outcomeRejected)
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "only delivery partners can publish location updates")
	}
	if err := update.Validate(); err != nil {
		r.metrics.IncEvent(string(EventLocationUpdate), outcomeRejected)
		return err
	}

	if r.logg != nil {
		ctx = r.logg.WithOrderID(ctx, update.OrderID.String())
	}

	parties, resolveErr := r.orders.ResolveParties(ctx, update.OrderID)
	if resolveErr == nil && r.enforceOwnership && parties.DeliveryPartnerID != nil &&
		*parties.DeliveryPartnerID != s.Identity().SubjectID {
		r.metrics.IncEvent(string(EventLocationUpdate), outcomeRejected)
		return pkgerrors.New(pkgerrors.CodeForbidden, "order is assigned to a different delivery partner")
	}

	ts := r.now().UTC()
	sample := PositionSample{
		ActorID:     s.Identity().SubjectID,
		OrderID:     update.OrderID,
		Coordinates: update.Coordinates,
		Timestamp:   ts,
	}
	if err := r.positions.Append(ctx, sample); err != nil {
		r.metrics.IncEvent(string(EventLocationUpdate), outcomeFailed)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting position")
	}

	if resolveErr != nil {
		// The write above is kept; only delivery to subscribers is skipped.
		r.metrics.IncEvent(string(EventLocationUpdate), outcomeUnresolvable)
		if r.logg != nil {
			r.logg.Error(ctx, "order resolution failed, skipping fan-out", resolveErr)
		}
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, resolveErr, "order could not be resolved")
	}

	evt := newLocationUpdatedEvent(update.OrderID, update.Coordinates, ts)
	delivered := r.fanOutToParties(parties, evt)
	r.metrics.IncEvent(string(EventLocationUpdate), outcomeAccepted)
	r.metrics.AddFanout(string(EventLocationUpdated), delivered)
	return nil
}

// PublishStatusChange relays a delivery status to the order's customer and
// vendor channels. Nothing is persisted; status transitions belong to the
// order workflow, this is purely a notification.
func (r *Router) PublishStatusChange(ctx context.Context, s *Session, change StatusChange) error {
	if err := r.requireActive(s); err != nil {
		return err
	}
	if !CanPublish(s.Identity(), EventDeliveryStatus) {
		r.metrics.IncEvent(string(EventDeliveryStatus), outcomeRejected)
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "only delivery partners can publish status changes")
	}
	if err := change.Validate(); err != nil {
		r.metrics.IncEvent(string(EventDeliveryStatus), outcomeRejected)
		return err
	}

	if r.logg != nil {
		ctx = r.logg.WithOrderID(ctx, change.OrderID.String())
	}

	parties, err := r.orders.ResolveParties(ctx, change.OrderID)
	if err != nil {
		r.metrics.IncEvent(string(EventDeliveryStatus), outcomeUnresolvable)
		if r.logg != nil {
			r.logg.Error(ctx, "order resolution failed, skipping fan-out", err)
		}
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "order could not be resolved")
	}

	evt := newStatusChangedEvent(change.OrderID, change.Status)
	delivered := r.fanOutToParties(parties, evt)
	r.metrics.IncEvent(string(EventDeliveryStatus), outcomeAccepted)
	r.metrics.AddFanout(string(EventDeliveryStatus), delivered)
	return nil
}

// Disconnect releases all memberships and closes the session. Idempotent.
func (r *Router) Disconnect(s *Session, reason string) {
	if s == nil {
		return
	}
	s.Close(reason)
}

// LatestPosition reads the most recent stored sample for an order.
func (r *Router) LatestPosition(ctx context.Context, update OrderTopicRequest) (*PositionSample, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	return r.positions.Latest(ctx, update.OrderID)
}

// fanOutToParties delivers one event to the customer and vendor channels of
// the resolved parties, at most once per member even when a session sits in
// both target channels.
func (r *Router) fanOutToParties(parties *OrderParties, evt OutboundEvent) int {
	targets := make(map[*Session]struct{})
	for _, member := range r.registry.ChannelMembers(RoleChannel(enums.ActorRoleCustomer, parties.CustomerID)) {
		targets[member] = struct{}{}
	}
	for _, member := range r.registry.ChannelMembers(RoleChannel(enums.ActorRoleVendor, parties.VendorID)) {
		targets[member] = struct{}{}
	}

	delivered := 0
	for member := range targets {
		if member.Enqueue(evt) {
			delivered++
		}
	}
	return delivered
}

func (r *Router) requireActive(s *Session) error {
	if s == nil || s.State() != StateActive {
		return pkgerrors.New(pkgerrors.CodeValidation, "session is not active")
	}
	return nil
}
