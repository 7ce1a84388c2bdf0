// README: Dispatch candidates and search options.
package dispatch

import (
	"dispatch/internal/types"
)

const (
	// DefaultMaxRadiusKm bounds single-rider matching.
	DefaultMaxRadiusKm = 50.0
	// DefaultPriorityRadiusKm bounds the broadcast notification set.
	DefaultPriorityRadiusKm = 5.0
)

// RankedCandidate is a matchable rider with its rider→restaurant pickup
// distance attached. Never persisted.
type RankedCandidate struct {
	DeliveryPartnerID types.ID
	Name              string
	Phone             string
	// DistanceKm is rider→restaurant, not the order's canonical distance.
	DistanceKm float64
	Location   types.Point
}

// SearchOptions carries the optional knobs of a matching call. Zero values
// select the defaults.
type SearchOptions struct {
	// RadiusKm caps the search radius; 0 selects the per-operation default.
	RadiusKm float64
	// Limit truncates the ranked result; 0 means unlimited.
	Limit int
	// ExcludeIDs removes riders already notified for this order.
	ExcludeIDs []types.ID
	// COD applies the cash-in-hand eligibility filter.
	COD bool
}

// AssignmentResult is returned to the order workflow after a successful
// assignment.
type AssignmentResult struct {
	OrderID             types.ID
	DeliveryPartnerID   types.ID
	DeliveryPartnerName string
	// DistanceKm is the rider→restaurant pickup distance of the match.
	DistanceKm float64
}
