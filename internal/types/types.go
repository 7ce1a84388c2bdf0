// README: Common identifier and coordinate value objects used across modules.
package types

// ID is an opaque entity identifier.
type ID string

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// IsZero reports whether the point is the (0,0) "no fix" sentinel.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}
