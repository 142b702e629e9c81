// Package ws is the websocket transport in front of the tracking router.
// One goroutine reads each connection, so a client's join/publish/leave
// sequence reaches the router in the order it was sent.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/angelmondragon/trackline-backend/api/middleware"
	"github.com/angelmondragon/trackline-backend/internal/tracking"
	"github.com/angelmondragon/trackline-backend/pkg/config"
	"github.com/angelmondragon/trackline-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/trackline-backend/pkg/errors"
	"github.com/angelmondragon/trackline-backend/pkg/logger"
	"github.com/angelmondragon/trackline-backend/pkg/redis"
)

// ConnLimiter throttles handshakes per client address.
type ConnLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// HandlerOptions configures the websocket endpoint.
type HandlerOptions struct {
	Router      *tracking.Router
	WS          config.WSConfig
	RateLimit   config.ConnRateLimitConfig
	PresenceTTL time.Duration
	Limiter     ConnLimiter
	Presence    redis.PresenceStore
	Logger      *logger.Logger
}

// Handler upgrades HTTP requests to tracked websocket sessions.
type Handler struct {
	router      *tracking.Router
	ws          config.WSConfig
	rateLimit   config.ConnRateLimitConfig
	presenceTTL time.Duration
	limiter     ConnLimiter
	presence    redis.PresenceStore
	logg        *logger.Logger
}

// NewHandler wires the websocket endpoint.
func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.Router == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tracking router required")
	}
	return &Handler{
		router:      opts.Router,
		ws:          opts.WS,
		rateLimit:   opts.RateLimit,
		presenceTTL: opts.PresenceTTL,
		limiter:     opts.Limiter,
		presence:    opts.Presence,
		logg:        opts.Logger,
	}, nil
}

// inboundEnvelope is the wire shape of every client event.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServeHTTP authenticates the handshake, upgrades the connection and runs
// the read loop until the client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.limiter != nil && h.rateLimit.IPLimit > 0 {
		ip := middleware.ClientIP(r)
		allowed, _, err := h.limiter.FixedWindowAllow(ctx, "ws:"+ip, int64(h.rateLimit.IPLimit), h.rateLimit.Window)
		if err != nil {
			if h.logg != nil {
				h.logg.Error(ctx, "ws rate limiter unavailable", err)
			}
		} else if !allowed {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
	}

	// authenticate before any session exists; a bad credential refuses the
	// upgrade outright
	identity, err := h.router.Authenticate(ctx, credentialFrom(r))
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	acceptOpts := &websocket.AcceptOptions{}
	if len(h.ws.AllowedOrigins) > 0 {
		acceptOpts.OriginPatterns = h.ws.AllowedOrigins
	}
	conn, err := websocket.Accept(w, r, acceptOpts)
	if err != nil {
		return
	}

	transport := &wsTransport{conn: conn}
	session := h.router.Register(ctx, identity, transport)

	if h.logg != nil {
		ctx = h.logg.WithSessionID(ctx, session.ID().String())
		ctx = h.logg.WithUserID(ctx, identity.SubjectID.String())
		ctx = h.logg.WithActorRole(ctx, identity.Role.String())
	}

	if h.presence != nil && identity.Role == enums.ActorRoleDelivery {
		if err := h.presence.MarkPresent(ctx, identity.SubjectID.String(), h.presenceTTL); err != nil && h.logg != nil {
			h.logg.Warn(ctx, "marking presence failed")
		}
		defer func() {
			if err := h.presence.ClearPresence(context.WithoutCancel(ctx), identity.SubjectID.String()); err != nil && h.logg != nil {
				h.logg.Warn(ctx, "clearing presence failed")
			}
		}()
	}

	h.readLoop(ctx, conn, session)
	h.router.Disconnect(session, "connection closed")
}

// readLoop processes the client's events to completion, one at a time.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, session *tracking.Session) {
	for {
		var envelope inboundEnvelope
		if err := wsjson.Read(ctx, conn, &envelope); err != nil {
			return
		}
		if err := h.dispatch(ctx, session, envelope); err != nil {
			// failures are reported to the offending session only
			session.Enqueue(tracking.NewErrorEvent(publicMessage(err)))
		}
		select {
		case <-session.Done():
			return
		default:
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, session *tracking.Session, envelope inboundEnvelope) error {
	switch tracking.EventKind(envelope.Event) {
	case tracking.EventOrderJoin:
		var req tracking.OrderTopicRequest
		if err := decodeData(envelope.Data, &req); err != nil {
			return err
		}
		return h.router.JoinOrderTopic(ctx, session, req)
	case tracking.EventOrderLeave:
		var req tracking.OrderTopicRequest
		if err := decodeData(envelope.Data, &req); err != nil {
			return err
		}
		return h.router.LeaveOrderTopic(ctx, session, req)
	case tracking.EventLocationUpdate:
		var update tracking.LocationUpdate
		if err := decodeData(envelope.Data, &update); err != nil {
			return err
		}
		if err := h.router.PublishLocationUpdate(ctx, session, update); err != nil {
			return err
		}
		if h.presence != nil {
			_ = h.presence.MarkPresent(ctx, session.Identity().SubjectID.String(), h.presenceTTL)
		}
		return nil
	case tracking.EventDeliveryStatus:
		var change tracking.StatusChange
		if err := decodeData(envelope.Data, &change); err != nil {
			return err
		}
		return h.router.PublishStatusChange(ctx, session, change)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown event")
	}
}

func decodeData(raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "event data required")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed event data")
	}
	return nil
}

func publicMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return "request failed"
}

// credentialFrom accepts the token from the Authorization header or, for
// browser clients that cannot set headers on websocket upgrades, the token
// query parameter.
func credentialFrom(r *http.Request) string {
	if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
		return raw
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// wsTransport adapts a websocket connection to the session's outbound
// surface.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) WriteEvent(ctx context.Context, evt tracking.OutboundEvent) error {
	return wsjson.Write(ctx, t.conn, evt)
}

func (t *wsTransport) Close(reason string) error {
	// closing an already-closed connection is not an error worth surfacing
	_ = t.conn.Close(websocket.StatusNormalClosure, reason)
	return nil
}
