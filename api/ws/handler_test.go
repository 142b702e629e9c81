package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/trackline-backend/internal/identity"
	"github.com/angelmondragon/trackline-backend/internal/tracking"
	pkgauth "github.com/angelmondragon/trackline-backend/pkg/auth"
	"github.com/angelmondragon/trackline-backend/pkg/config"
	"github.com/angelmondragon/trackline-backend/pkg/enums"
)

type memResolver struct {
	mu      sync.Mutex
	parties map[uuid.UUID]*tracking.OrderParties
}

func (m *memResolver) ResolveParties(ctx context.Context, orderID uuid.UUID) (*tracking.OrderParties, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.parties[orderID]; ok {
		return p, nil
	}
	return nil, errNotFound
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "order not found" }

type memStore struct {
	mu      sync.Mutex
	samples []tracking.PositionSample
}

func (m *memStore) Append(ctx context.Context, sample tracking.PositionSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, sample)
	return nil
}

func (m *memStore) Latest(ctx context.Context, orderID uuid.UUID) (*tracking.PositionSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.samples) - 1; i >= 0; i-- {
		if m.samples[i].OrderID == orderID {
			s := m.samples[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

type wsFixture struct {
	server   *httptest.Server
	jwtCfg   config.JWTConfig
	resolver *memResolver
	store    *memStore
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()

	jwtCfg := config.JWTConfig{Secret: "ws-test-secret", Issuer: "trackline-test", ExpirationMinutes: 10}
	verifier, err := identity.NewVerifier(jwtCfg)
	require.NoError(t, err)

	resolver := &memResolver{parties: make(map[uuid.UUID]*tracking.OrderParties)}
	store := &memStore{}
	router, err := tracking.NewRouter(tracking.RouterOptions{
		Verifier:     verifier,
		Orders:       resolver,
		Positions:    store,
		WriteTimeout: time.Second,
	})
	require.NoError(t, err)

	handler, err := NewHandler(HandlerOptions{
		Router: router,
		WS:     config.WSConfig{WriteTimeout: time.Second, SendBuffer: 8},
	})
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &wsFixture{server: server, jwtCfg: jwtCfg, resolver: resolver, store: store}
}

func (fx *wsFixture) mintToken(t *testing.T, userID uuid.UUID, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(fx.jwtCfg, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
	})
	require.NoError(t, err)
	return token
}

func (fx *wsFixture) dial(t *testing.T, userID uuid.UUID, role enums.ActorRole) *websocket.Conn {
	t.Helper()
	url := strings.Replace(fx.server.URL, "http", "ws", 1) + "?token=" + fx.mintToken(t, userID, role)
	conn, _, err := websocket.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"event": event, "data": json.RawMessage(payload)}))
}

func read(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var evt wireEvent
	require.NoError(t, wsjson.Read(ctx, conn, &evt))
	return evt
}

func TestHandshakeRequiresCredential(t *testing.T) {
	fx := newWSFixture(t)

	_, resp, err := websocket.Dial(context.Background(), strings.Replace(fx.server.URL, "http", "ws", 1), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 401, resp.StatusCode)
}

func TestLocationUpdateReachesCustomer(t *testing.T) {
	fx := newWSFixture(t)
	customerID := uuid.New()
	partnerID := uuid.New()
	orderID := uuid.New()
	fx.resolver.parties[orderID] = &tracking.OrderParties{
		OrderID:    orderID,
		CustomerID: customerID,
		VendorID:   uuid.New(),
	}

	customer := fx.dial(t, customerID, enums.ActorRoleCustomer)
	partner := fx.dial(t, partnerID, enums.ActorRoleDelivery)

	send(t, partner, "location:update", map[string]any{
		"orderId": orderID,
		"coordinates": map[string]float64{
			"latitude":  40.7128,
			"longitude": -74.006,
		},
	})

	evt := read(t, customer)
	require.Equal(t, "location:updated", evt.Event)

	var data struct {
		OrderID  uuid.UUID `json:"orderId"`
		Location struct {
			Coordinates struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"coordinates"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"location"`
	}
	require.NoError(t, json.Unmarshal(evt.Data, &data))
	require.Equal(t, orderID, data.OrderID)
	require.Equal(t, 40.7128, data.Location.Coordinates.Latitude)
	require.Equal(t, -74.006, data.Location.Coordinates.Longitude)
	require.False(t, data.Location.Timestamp.IsZero())

	require.Eventually(t, func() bool { return fx.store.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestNonDeliveryPublisherGetsErrorEvent(t *testing.T) {
	fx := newWSFixture(t)
	customerID := uuid.New()
	orderID := uuid.New()
	fx.resolver.parties[orderID] = &tracking.OrderParties{
		OrderID:    orderID,
		CustomerID: customerID,
		VendorID:   uuid.New(),
	}

	customer := fx.dial(t, customerID, enums.ActorRoleCustomer)
	send(t, customer, "location:update", map[string]any{
		"orderId": orderID,
		"coordinates": map[string]float64{
			"latitude":  1,
			"longitude": 2,
		},
	})

	evt := read(t, customer)
	require.Equal(t, "error", evt.Event)

	var data struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(evt.Data, &data))
	require.NotEmpty(t, data.Message)
	require.Zero(t, fx.store.count())
}

func TestDeliveryStatusRelay(t *testing.T) {
	fx := newWSFixture(t)
	vendorID := uuid.New()
	orderID := uuid.New()
	fx.resolver.parties[orderID] = &tracking.OrderParties{
		OrderID:    orderID,
		CustomerID: uuid.New(),
		VendorID:   vendorID,
	}

	vendor := fx.dial(t, vendorID, enums.ActorRoleVendor)
	partner := fx.dial(t, uuid.New(), enums.ActorRoleDelivery)

	send(t, partner, "delivery:status", map[string]any{
		"orderId": orderID,
		"status":  "in_transit",
	})

	evt := read(t, vendor)
	require.Equal(t, "delivery:status", evt.Event)

	var data struct {
		OrderID uuid.UUID `json:"orderId"`
		Status  string    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(evt.Data, &data))
	require.Equal(t, orderID, data.OrderID)
	require.Equal(t, "in_transit", data.Status)
	require.Zero(t, fx.store.count())
}

func TestUnknownEventGetsError(t *testing.T) {
	fx := newWSFixture(t)
	customer := fx.dial(t, uuid.New(), enums.ActorRoleCustomer)

	send(t, customer, "order:teleport", map[string]any{"orderId": uuid.New()})
	evt := read(t, customer)
	require.Equal(t, "error", evt.Event)
}
