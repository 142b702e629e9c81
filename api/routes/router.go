package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/trackline-backend/api/controllers"
	"github.com/angelmondragon/trackline-backend/api/middleware"
	"github.com/angelmondragon/trackline-backend/api/ws"
	"github.com/angelmondragon/trackline-backend/internal/auth"
	"github.com/angelmondragon/trackline-backend/internal/positions"
	"github.com/angelmondragon/trackline-backend/pkg/config"
	"github.com/angelmondragon/trackline-backend/pkg/db"
	"github.com/angelmondragon/trackline-backend/pkg/enums"
	"github.com/angelmondragon/trackline-backend/pkg/logger"
	"github.com/angelmondragon/trackline-backend/pkg/redis"
)

// Deps bundles everything the router serves.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        db.Pinger
	Redis     *redis.Client
	Auth      auth.Service
	Positions positions.Service
	WSHandler *ws.Handler
	Metrics   http.Handler
}

// NewRouter assembles the HTTP surface: health, login, position reads and
// the websocket endpoint.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.WS.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.ConnRateLimit.Window,
		cfg.ConnRateLimit.IPLimit,
		cfg.ConnRateLimit.EmailLimit,
	)

	var redisPinger redis.Pinger
	if deps.Redis != nil {
		redisPinger = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, redisPinger))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		login := r
		if deps.Redis != nil {
			login = r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg))
		}
		login.Post("/login", controllers.AuthLogin(deps.Auth, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRoles(logg, enums.ActorRoleCustomer, enums.ActorRoleVendor))
		r.Get("/{orderID}/location", controllers.OrderLatestPosition(deps.Positions, logg))
		r.Get("/{orderID}/location/history", controllers.OrderPositionHistory(deps.Positions, logg))
	})

	if deps.WSHandler != nil {
		r.Handle("/ws", deps.WSHandler)
	}

	return r
}
