// README: Dispatch handlers: assign a courier, broadcast, list candidates.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"dispatch/internal/modules/dispatch"
	"dispatch/internal/modules/order"
	"dispatch/internal/types"
)

// Dispatcher is the slice of the dispatch coordinator the handlers need.
type Dispatcher interface {
	Assign(ctx context.Context, ord *order.Order, origin types.Point, restaurantID types.ID) (*dispatch.AssignmentResult, error)
	Broadcast(ctx context.Context, ord *order.Order, origin types.Point, restaurantID types.ID) ([]dispatch.RankedCandidate, error)
	State(ctx context.Context, orderID types.ID) (*dispatch.DispatchState, error)
}

// CandidateFinder ranks available riders around an origin.
type CandidateFinder interface {
	FindAllWithinRadius(ctx context.Context, origin types.Point, restaurantID types.ID, opts dispatch.SearchOptions) ([]dispatch.RankedCandidate, error)
}

type DispatchHandler struct {
	orders     OrderService
	dispatcher Dispatcher
	candidates CandidateFinder
}

func NewDispatchHandler(orders OrderService, dispatcher Dispatcher, candidates CandidateFinder) *DispatchHandler {
	return &DispatchHandler{orders: orders, dispatcher: dispatcher, candidates: candidates}
}

// Assign picks and persists the nearest eligible rider for the order. 200 with
// the assignment on success, 202 when nobody is available right now.
func (h *DispatchHandler) Assign(c *gin.Context) {
	ord, ok := h.loadOrder(c)
	if !ok {
		return
	}
	res, err := h.dispatcher.Assign(c.Request.Context(), ord, ord.RestaurantLocation, ord.RestaurantID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "assignment failed")
		return
	}
	if res == nil {
		writeJSON(c, http.StatusAccepted, gin.H{
			"order_id": ord.ID,
			"assigned": false,
		})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"order_id":              res.OrderID,
		"assigned":              true,
		"delivery_partner_id":   res.DeliveryPartnerID,
		"delivery_partner_name": res.DeliveryPartnerName,
		"pickup_distance_km":    res.DistanceKm,
	})
}

// Dispatch broadcasts the order to every rider inside the priority radius.
func (h *DispatchHandler) Dispatch(c *gin.Context) {
	ord, ok := h.loadOrder(c)
	if !ok {
		return
	}
	ranked, err := h.dispatcher.Broadcast(c.Request.Context(), ord, ord.RestaurantLocation, ord.RestaurantID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "broadcast failed")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"order_id": ord.ID,
		"notified": len(ranked),
	})
}

// DispatchStatus reports the offer history of an order: first dispatch time,
// broadcast flag, and the notified riders.
func (h *DispatchHandler) DispatchStatus(c *gin.Context) {
	ord, ok := h.loadOrder(c)
	if !ok {
		return
	}
	st, err := h.dispatcher.State(c.Request.Context(), ord.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "dispatch state lookup failed")
		return
	}
	resp := gin.H{
		"order_id":        ord.ID,
		"broadcast":       st.Broadcast,
		"notified_riders": st.NotifiedRiders,
	}
	if st.DispatchedAt != nil {
		resp["dispatched_at"] = st.DispatchedAt
	}
	writeJSON(c, http.StatusOK, resp)
}

// Candidates lists available riders around a point, nearest first. Query
// params: lat, lng (required), restaurant_id, radius_km, limit, cod.
func (h *DispatchHandler) Candidates(c *gin.Context) {
	lat := cast.ToFloat64(c.Query("lat"))
	lng := cast.ToFloat64(c.Query("lng"))
	origin := types.Point{Lat: lat, Lng: lng}
	if origin.IsZero() {
		writeError(c, http.StatusBadRequest, "missing lat/lng")
		return
	}

	opts := dispatch.SearchOptions{
		RadiusKm: cast.ToFloat64(c.Query("radius_km")),
		Limit:    cast.ToInt(c.Query("limit")),
		COD:      cast.ToBool(c.Query("cod")),
	}
	ranked, err := h.candidates.FindAllWithinRadius(c.Request.Context(), origin, types.ID(c.Query("restaurant_id")), opts)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "candidate search failed")
		return
	}

	out := make([]gin.H, len(ranked))
	for i, r := range ranked {
		out[i] = gin.H{
			"delivery_partner_id": r.DeliveryPartnerID,
			"name":                r.Name,
			"distance_km":         r.DistanceKm,
		}
	}
	writeJSON(c, http.StatusOK, gin.H{"candidates": out})
}

func (h *DispatchHandler) loadOrder(c *gin.Context) (*order.Order, bool) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return nil, false
	}
	ord, err := h.orders.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeOrderError(c, err)
		return nil, false
	}
	return ord, true
}
