// README: Handler tests for the rider endpoints with stub services.
package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/http/handlers"
	"dispatch/internal/modules/wallet"
	"dispatch/internal/types"
)

type stubRiders struct {
	err error
}

func (s *stubRiders) SetOnline(_ context.Context, _ types.ID, _ bool) error { return s.err }

func (s *stubRiders) UpdateLocation(_ context.Context, _ types.ID, _ types.Point) error {
	return s.err
}

type stubWallets struct {
	w   *wallet.Wallet
	err error
}

func (s *stubWallets) ByRider(_ context.Context, _ types.ID) (*wallet.Wallet, error) {
	return s.w, s.err
}

func buildRiderRouter(riders *stubRiders, wallets *stubWallets) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handlers.NewRiderHandler(riders, wallets)
	r.PUT("/api/riders/:id/availability", h.SetAvailability)
	r.PUT("/api/riders/:id/location", h.UpdateLocation)
	r.GET("/api/riders/:id/wallet", h.Wallet)
	return r
}

func TestSetAvailability_RequiresFlag(t *testing.T) {
	r := buildRiderRouter(&stubRiders{}, &stubWallets{})

	w := doRequest(r, http.MethodPut, "/api/riders/r1/availability", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without is_online, got %d", w.Code)
	}
}

func TestSetAvailability_Online(t *testing.T) {
	r := buildRiderRouter(&stubRiders{}, &stubWallets{})

	w := doRequest(r, http.MethodPut, "/api/riders/r1/availability", map[string]any{"is_online": true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestUpdateLocation_RejectsZeroFix(t *testing.T) {
	r := buildRiderRouter(&stubRiders{}, &stubWallets{})

	w := doRequest(r, http.MethodPut, "/api/riders/r1/location", map[string]any{"lat": 0, "lng": 0})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for the (0,0) sentinel, got %d", w.Code)
	}
}

func TestWallet_ReturnsBalance(t *testing.T) {
	wallets := &stubWallets{w: &wallet.Wallet{
		RiderID:    "r1",
		CashInHand: types.Money{Amount: 420, Currency: "INR"},
		UpdatedAt:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}}
	r := buildRiderRouter(&stubRiders{}, wallets)

	w := doRequest(r, http.MethodGet, "/api/riders/r1/wallet", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["cash_in_hand"] != float64(420) || resp["currency"] != "INR" {
		t.Fatalf("unexpected balance payload: %v", resp)
	}
}

func TestWallet_NotFound(t *testing.T) {
	r := buildRiderRouter(&stubRiders{}, &stubWallets{err: wallet.ErrNotFound})

	w := doRequest(r, http.MethodGet, "/api/riders/missing/wallet", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a rider without a wallet, got %d", w.Code)
	}
}
