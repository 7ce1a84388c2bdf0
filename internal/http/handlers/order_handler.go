// README: Order handlers for create/get/cancel/status.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"dispatch/internal/modules/order"
	"dispatch/internal/types"
)

// OrderService is the slice of the order service the handlers need.
type OrderService interface {
	Create(ctx context.Context, cmd order.CreateCommand) (types.ID, error)
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	Transition(ctx context.Context, cmd order.TransitionCommand) error
	Cancel(ctx context.Context, id types.ID) error
}

type OrderHandler struct {
	order OrderService
}

func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{order: svc}
}

type createOrderReq struct {
	RestaurantID  string  `json:"restaurant_id"`
	CustomerID    string  `json:"customer_id"`
	RestaurantLat float64 `json:"restaurant_lat"`
	RestaurantLng float64 `json:"restaurant_lng"`
	DropoffLat    float64 `json:"dropoff_lat"`
	DropoffLng    float64 `json:"dropoff_lng"`
	PaymentMethod string  `json:"payment_method"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.RestaurantID == "" || req.CustomerID == "" {
		writeError(c, http.StatusBadRequest, "missing fields")
		return
	}
	id, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		RestaurantID:       types.ID(req.RestaurantID),
		CustomerID:         types.ID(req.CustomerID),
		RestaurantLocation: types.Point{Lat: req.RestaurantLat, Lng: req.RestaurantLng},
		Dropoff:            types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		PaymentMethod:      order.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"order_id": id, "status": order.StatusPending})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	o, err := h.order.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	resp := gin.H{
		"order_id":        o.ID,
		"status":          o.Status,
		"delivery_status": o.DeliveryStatus,
		"payment_method":  o.Payment.Method,
	}
	if o.Assigned() {
		resp["delivery_partner_id"] = *o.DeliveryPartnerID
		resp["assigned_by"] = o.Assignment.AssignedBy
	}
	if o.Assignment.DistanceKm != nil {
		resp["distance_km"] = *o.Assignment.DistanceKm
	}
	writeJSON(c, http.StatusOK, resp)
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeError(c, http.StatusBadRequest, "missing status")
		return
	}
	err := h.order.Transition(c.Request.Context(), order.TransitionCommand{
		OrderID: types.ID(id),
		To:      order.Status(req.Status),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": req.Status})
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	if err := h.order.Cancel(c.Request.Context(), types.ID(id)); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusCancelled})
}
