// README: Delivery zone aggregate with polygon containment.
package zone

import (
	"dispatch/internal/types"
)

// Zone is a geographic service area tied to a restaurant. The boundary is an
// ordered polygon ring; a zone without a usable boundary is advisory only.
type Zone struct {
	ID           types.ID
	RestaurantID types.ID
	Name         string
	IsActive     bool
	Boundary     []types.Point
}

// Admits decides zone membership for a rider. An explicit zone assignment that
// differs from this zone rejects the rider regardless of geography; otherwise
// the polygon boundary decides; a zone with no usable boundary admits everyone.
func (z *Zone) Admits(riderZoneID *types.ID, pos types.Point) bool {
	if z == nil {
		return true
	}
	if riderZoneID != nil && *riderZoneID != "" && *riderZoneID != z.ID {
		return false
	}
	return z.Contains(pos.Lat, pos.Lng)
}

// Contains runs an even-odd ray-casting test of the point against the
// boundary ring. Fewer than 3 vertices means no polygon, which passes.
func (z *Zone) Contains(lat, lng float64) bool {
	if z == nil || len(z.Boundary) < 3 {
		return true
	}
	inside := false
	n := len(z.Boundary)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		yi, xi := z.Boundary[i].Lat, z.Boundary[i].Lng
		yj, xj := z.Boundary[j].Lat, z.Boundary[j].Lng
		if (yi > lat) != (yj > lat) &&
			lng < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
