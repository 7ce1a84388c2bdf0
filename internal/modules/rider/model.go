// README: Delivery partner directory model.
package rider

import (
	"time"

	"dispatch/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusRejected  Status = "rejected"
)

// Availability is the live dispatchability state of a rider. A (0,0) location
// means no GPS fix yet and the rider is not matchable. LastUpdate is recorded
// but no freshness window is enforced on it.
type Availability struct {
	IsOnline   bool
	Location   types.Point
	LastUpdate *time.Time
}

type Rider struct {
	ID     types.ID
	Name   string
	Phone  string
	Status Status
	// IsActive is the soft-disable flag; NULL counts as active.
	IsActive     *bool
	ZoneID       *types.ID
	Availability Availability
}

// Dispatchable reports whether the rider can be offered work at all.
// Geography is decided elsewhere.
func (r *Rider) Dispatchable() bool {
	if !r.Availability.IsOnline {
		return false
	}
	if r.Status != StatusApproved && r.Status != StatusActive {
		return false
	}
	if r.IsActive != nil && !*r.IsActive {
		return false
	}
	return !r.Availability.Location.IsZero()
}
