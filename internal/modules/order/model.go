// README: Order aggregate, status flow, and assignment fields.
package order

import (
	"time"

	"dispatch/internal/types"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// DeliveryStatus tracks the courier leg independently of the order status.
type DeliveryStatus string

const (
	DeliveryNone      DeliveryStatus = ""
	DeliveryAssigned  DeliveryStatus = "assigned"
	DeliveryHeading   DeliveryStatus = "heading_to_restaurant"
	DeliveryPickedUp  DeliveryStatus = "picked_up"
	DeliveryCompleted DeliveryStatus = "completed"
	DeliveryDelivered DeliveryStatus = "delivered"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCOD    PaymentMethod = "cod"
	PaymentCard   PaymentMethod = "card"
	PaymentUPI    PaymentMethod = "upi"
	PaymentWallet PaymentMethod = "wallet"
)

// IsCOD reports whether the rider collects cash on delivery.
func (m PaymentMethod) IsCOD() bool {
	return m == PaymentCash || m == PaymentCOD
}

type Payment struct {
	Method PaymentMethod
}

// Assignment is the courier assignment record on an order. DistanceKm is the
// canonical restaurant→customer distance used for fees; it is set at creation
// and must never be overwritten with the rider→restaurant pickup distance.
type Assignment struct {
	DeliveryPartnerID *types.ID
	DistanceKm        *float64
	AssignedAt        *time.Time
	AssignedBy        string
}

type Order struct {
	ID                 types.ID
	RestaurantID       types.ID
	CustomerID         types.ID
	RestaurantLocation types.Point
	Dropoff            types.Point
	Status             Status
	DeliveryStatus     DeliveryStatus
	DeliveryPartnerID  *types.ID
	Assignment         Assignment
	Payment            Payment
	DeliveryFee        types.Money
	CreatedAt          time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
}

// Assigned reports whether a courier already holds this order.
func (o *Order) Assigned() bool {
	return o.DeliveryPartnerID != nil && *o.DeliveryPartnerID != ""
}

// Terminal reports whether the order can no longer be dispatched.
func (o *Order) Terminal() bool {
	if o.Status == StatusCancelled || o.Status == StatusDelivered {
		return true
	}
	return o.DeliveryStatus == DeliveryCompleted || o.DeliveryStatus == DeliveryDelivered
}

// AssignmentEvent is one audit row per assignment attempt that stuck.
type AssignmentEvent struct {
	ID         int64
	OrderID    types.ID
	RiderID    types.ID
	AssignedBy string
	// PickupDistanceKm is the rider→restaurant distance at assignment time,
	// kept for audit; distinct from the canonical order distance.
	PickupDistanceKm float64
	CreatedAt        time.Time
}

// AllowedTransitions represents the order status flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady, StatusCancelled},
	StatusReady:          {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
