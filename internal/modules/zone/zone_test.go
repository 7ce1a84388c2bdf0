package zone

import (
	"testing"

	"dispatch/internal/types"
)

// Square roughly around central Indore.
func squareZone() *Zone {
	return &Zone{
		ID:           "z1",
		RestaurantID: "r1",
		Name:         "central",
		IsActive:     true,
		Boundary: []types.Point{
			{Lat: 22.70, Lng: 75.80},
			{Lat: 22.70, Lng: 75.92},
			{Lat: 22.78, Lng: 75.92},
			{Lat: 22.78, Lng: 75.80},
		},
	}
}

func TestContains(t *testing.T) {
	z := squareZone()
	tests := []struct {
		name string
		lat  float64
		lng  float64
		want bool
	}{
		{"center", 22.7196, 75.8577, true},
		{"outside north", 22.80, 75.85, false},
		{"outside east", 22.72, 75.95, false},
		{"near corner inside", 22.701, 75.801, true},
		{"far away", 19.07, 72.87, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := z.Contains(tt.lat, tt.lng); got != tt.want {
				t.Errorf("Contains(%v, %v) = %v, want %v", tt.lat, tt.lng, got, tt.want)
			}
		})
	}
}

func TestContainsDegeneratePolygonPasses(t *testing.T) {
	z := &Zone{ID: "z2", Boundary: []types.Point{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}}
	if !z.Contains(50, 50) {
		t.Error("zone with fewer than 3 vertices must admit everyone")
	}
	var empty Zone
	if !empty.Contains(50, 50) {
		t.Error("zone with no boundary must admit everyone")
	}
}

func TestAdmitsExplicitZoneOverridesGeometry(t *testing.T) {
	z := squareZone()
	inside := types.Point{Lat: 22.7196, Lng: 75.8577}

	other := types.ID("z_other")
	if z.Admits(&other, inside) {
		t.Error("rider pinned to a different zone must be rejected even inside the polygon")
	}

	same := types.ID("z1")
	if !z.Admits(&same, inside) {
		t.Error("rider pinned to this zone and inside the polygon must be admitted")
	}

	if !z.Admits(nil, inside) {
		t.Error("rider with no explicit zone inside the polygon must be admitted")
	}

	empty := types.ID("")
	if !z.Admits(&empty, inside) {
		t.Error("empty explicit zone id must not reject")
	}
}

func TestAdmitsNilZonePassesEveryone(t *testing.T) {
	var z *Zone
	other := types.ID("z_other")
	if !z.Admits(&other, types.Point{Lat: 1, Lng: 1}) {
		t.Error("no resolved zone means zone filtering is skipped")
	}
}
