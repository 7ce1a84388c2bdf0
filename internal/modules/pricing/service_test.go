package pricing

import "testing"

func TestQuote(t *testing.T) {
	rate := Rate{BaseFare: 2000, PerKm: 500, Currency: "INR"}

	tests := []struct {
		name       string
		distanceKm float64
		want       int64
	}{
		{"zero distance", 0, 2000},
		{"fractional km rounds up", 2.3, 2000 + 3*500},
		{"exact km", 4.0, 2000 + 4*500},
		{"negative clamps to base", -1, 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := quote(rate, tt.distanceKm)
			if got.Amount != tt.want {
				t.Errorf("quote(%v) = %d, want %d", tt.distanceKm, got.Amount, tt.want)
			}
			if got.Currency != "INR" {
				t.Errorf("currency = %s, want INR", got.Currency)
			}
		})
	}
}
