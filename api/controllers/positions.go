package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/trackline-backend/api/responses"
	"github.com/angelmondragon/trackline-backend/api/validators"
	"github.com/angelmondragon/trackline-backend/internal/positions"
	pkgerrors "github.com/angelmondragon/trackline-backend/pkg/errors"
	"github.com/angelmondragon/trackline-backend/pkg/logger"
	"github.com/angelmondragon/trackline-backend/pkg/pagination"
)

type latestPositionResponse struct {
	OrderID   uuid.UUID `json:"orderId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderLatestPosition serves the most recent stored sample for an order.
func OrderLatestPosition(svc positions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sample, err := svc.Latest(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if sample == nil {
			err := pkgerrors.New(pkgerrors.CodeNotFound, "no position recorded for order")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, latestPositionResponse{
			OrderID:   sample.OrderID,
			Latitude:  sample.Coordinates.Latitude,
			Longitude: sample.Coordinates.Longitude,
			Timestamp: sample.Timestamp,
		})
	}
}

// OrderPositionHistory serves one cursor page of an order's samples.
func OrderPositionHistory(svc positions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.History(r.Context(), positions.HistoryParams{
			OrderID: orderID,
			Limit:   limit,
			Cursor:  strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderID"))
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id must be a uuid")
	}
	return orderID, nil
}
