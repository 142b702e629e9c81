package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/trackline-backend/internal/auth"
	"github.com/angelmondragon/trackline-backend/internal/positions"
	"github.com/angelmondragon/trackline-backend/internal/tracking"
	"github.com/angelmondragon/trackline-backend/internal/users"
	pkgauth "github.com/angelmondragon/trackline-backend/pkg/auth"
	"github.com/angelmondragon/trackline-backend/pkg/config"
	"github.com/angelmondragon/trackline-backend/pkg/db/models"
	"github.com/angelmondragon/trackline-backend/pkg/enums"
	"github.com/angelmondragon/trackline-backend/pkg/logger"
	"github.com/angelmondragon/trackline-backend/pkg/security"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "routes-secret", Issuer: "trackline-test", ExpirationMinutes: 15},
	}
}

func setupRoutesDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:routes_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS position_records (
  id TEXT PRIMARY KEY,
  actor_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  latitude REAL NOT NULL,
  longitude REAL NOT NULL,
  geom TEXT,
  timestamp DATETIME NOT NULL,
  created_at DATETIME
);`).Error)
	return db
}

func newTestServer(t *testing.T) (*httptest.Server, *gorm.DB, *config.Config) {
	t.Helper()
	cfg := testConfig()
	db := setupRoutesDB(t)

	authService, err := auth.NewService(users.NewRepository(db), cfg.JWT)
	require.NoError(t, err)
	positionsService, err := positions.NewService(positions.NewRepository(db), nil, nil)
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Config:    cfg,
		Logger:    logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard}),
		DB:        stubPinger{},
		Auth:      authService,
		Positions: positionsService,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, db, cfg
}

func TestHealthLive(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/health/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "test", resp.Header.Get("X-Trackline-Env"))
}

func TestLoginFlow(t *testing.T) {
	server, db, cfg := newTestServer(t)

	hash, err := security.HashPassword("courier-pass-1", config.PasswordConfig{
		ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32,
	})
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		Name:         "Test Courier",
		Email:        "courier@example.com",
		PasswordHash: hash,
		Role:         enums.ActorRoleDelivery,
	}
	require.NoError(t, users.NewRepository(db).Create(context.Background(), user))

	body, _ := json.Marshal(map[string]string{
		"email":    "courier@example.com",
		"password": "courier-pass-1",
	})
	resp, err := http.Post(server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotEmpty(t, envelope.Data.Token)

	claims, err := pkgauth.ParseAccessToken(cfg.JWT, envelope.Data.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	server, _, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]string{
		"email":    "nobody@example.com",
		"password": "wrong-password",
	})
	resp, err := http.Post(server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOrderLocationRequiresAuth(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/orders/" + uuid.NewString() + "/location")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOrderLocationRejectsDeliveryRole(t *testing.T) {
	server, _, cfg := newTestServer(t)

	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.ActorRoleDelivery,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/v1/orders/"+uuid.NewString()+"/location", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestOrderLocationEndpoints(t *testing.T) {
	server, db, cfg := newTestServer(t)
	orderID := uuid.New()

	positionsService, err := positions.NewService(positions.NewRepository(db), nil, nil)
	require.NoError(t, err)
	base := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, positionsService.Append(context.Background(), tracking.PositionSample{
			ActorID:     uuid.New(),
			OrderID:     orderID,
			Coordinates: tracking.Coordinates{Latitude: float64(i), Longitude: float64(-i)},
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.ActorRoleCustomer,
	})
	require.NoError(t, err)

	get := func(path string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, server.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := get("/api/v1/orders/" + orderID.String() + "/location")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var latest struct {
		Data struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&latest))
	require.Equal(t, 2.0, latest.Data.Latitude)

	historyResp := get("/api/v1/orders/" + orderID.String() + "/location/history?limit=2")
	defer historyResp.Body.Close()
	require.Equal(t, http.StatusOK, historyResp.StatusCode)

	var history struct {
		Data struct {
			Items []struct {
				Latitude float64 `json:"latitude"`
			} `json:"items"`
			Cursor string `json:"cursor"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(historyResp.Body).Decode(&history))
	require.Len(t, history.Data.Items, 2)
	require.NotEmpty(t, history.Data.Cursor)

	missingResp := get("/api/v1/orders/" + uuid.NewString() + "/location")
	defer missingResp.Body.Close()
	require.Equal(t, http.StatusNotFound, missingResp.StatusCode)
}
