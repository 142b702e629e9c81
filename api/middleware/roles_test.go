package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/trackline-backend/pkg/enums"
	"github.com/angelmondragon/trackline-backend/pkg/logger"
)

func TestRequireRoles(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireRoles(logg, enums.ActorRoleCustomer, enums.ActorRoleVendor)(next)

	cases := []struct {
		name string
		role string
		want int
	}{
		{"customer allowed", string(enums.ActorRoleCustomer), http.StatusNoContent},
		{"vendor allowed", string(enums.ActorRoleVendor), http.StatusNoContent},
		{"delivery rejected", string(enums.ActorRoleDelivery), http.StatusForbidden},
		{"missing role rejected", "", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.role != "" {
				req = req.WithContext(WithRole(req.Context(), tc.role))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}
