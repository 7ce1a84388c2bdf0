// README: Rider handlers: availability toggle and location updates.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/modules/wallet"
	"dispatch/internal/types"
)

// RiderService is the slice of the rider service the handlers need.
type RiderService interface {
	SetOnline(ctx context.Context, id types.ID, online bool) error
	UpdateLocation(ctx context.Context, id types.ID, pos types.Point) error
}

// WalletService reads rider cash-in-hand balances.
type WalletService interface {
	ByRider(ctx context.Context, riderID types.ID) (*wallet.Wallet, error)
}

type RiderHandler struct {
	riders  RiderService
	wallets WalletService
}

func NewRiderHandler(svc RiderService, wallets WalletService) *RiderHandler {
	return &RiderHandler{riders: svc, wallets: wallets}
}

type availabilityReq struct {
	IsOnline *bool `json:"is_online"`
}

func (h *RiderHandler) SetAvailability(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing rider id")
		return
	}
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil || req.IsOnline == nil {
		writeError(c, http.StatusBadRequest, "missing is_online")
		return
	}
	if err := h.riders.SetOnline(c.Request.Context(), types.ID(id), *req.IsOnline); err != nil {
		writeRiderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rider_id": id, "is_online": *req.IsOnline})
}

type locationReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *RiderHandler) UpdateLocation(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing rider id")
		return
	}
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	pos := types.Point{Lat: req.Lat, Lng: req.Lng}
	if pos.IsZero() {
		writeError(c, http.StatusBadRequest, "missing coordinates")
		return
	}
	if err := h.riders.UpdateLocation(c.Request.Context(), types.ID(id), pos); err != nil {
		writeRiderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// Wallet returns the rider's cash-in-hand balance, the figure the COD
// eligibility filter reads.
func (h *RiderHandler) Wallet(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing rider id")
		return
	}
	w, err := h.wallets.ByRider(c.Request.Context(), types.ID(id))
	if err != nil {
		writeWalletError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"rider_id":     w.RiderID,
		"cash_in_hand": w.CashInHand.Amount,
		"currency":     w.CashInHand.Currency,
		"updated_at":   w.UpdatedAt,
	})
}
