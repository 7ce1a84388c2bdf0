package eta

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/types"
)

type stubEstimator struct {
	dur time.Duration
	km  float64
	err error
}

func (s *stubEstimator) PickupETA(_ context.Context, _, _ types.Point) (time.Duration, float64, error) {
	return s.dur, s.km, s.err
}

var (
	riderPos      = types.Point{Lat: 22.7196, Lng: 75.8577}
	restaurantPos = types.Point{Lat: 22.7400, Lng: 75.8700}
)

func TestEstimateUsesDirections(t *testing.T) {
	n := NewNotifier(&stubEstimator{dur: 7 * time.Minute, km: 3.2}, nil, zap.NewNop())

	dur, km, src := n.estimate(context.Background(), "o1", riderPos, restaurantPos)
	if src != "directions" {
		t.Fatalf("expected directions source, got %s", src)
	}
	if dur != 7*time.Minute || km != 3.2 {
		t.Fatalf("unexpected estimate: %v %f", dur, km)
	}
}

func TestEstimateFallsBackOnError(t *testing.T) {
	n := NewNotifier(&stubEstimator{err: errors.New("quota exceeded")}, nil, zap.NewNop())

	dur, km, src := n.estimate(context.Background(), "o1", riderPos, restaurantPos)
	if src != "heuristic" {
		t.Fatalf("expected heuristic source, got %s", src)
	}
	if km <= 0 || dur <= 0 {
		t.Fatalf("heuristic must produce a positive estimate, got %v %f", dur, km)
	}
}

func TestEstimateWithoutEstimator(t *testing.T) {
	n := NewNotifier(nil, nil, zap.NewNop())

	dur, km, src := n.estimate(context.Background(), "o1", riderPos, restaurantPos)
	if src != "heuristic" {
		t.Fatalf("expected heuristic source, got %s", src)
	}

	// ~2.6km at 20km/h is roughly 8 minutes.
	wantKm := straightLineKm(riderPos, restaurantPos)
	if math.Abs(km-wantKm) > 0.001 {
		t.Fatalf("km = %f, want %f", km, wantKm)
	}
	wantDur := time.Duration(wantKm / fallbackSpeedKmh * float64(time.Hour))
	if dur != wantDur {
		t.Fatalf("dur = %v, want %v", dur, wantDur)
	}
}

func TestStraightLineKmZero(t *testing.T) {
	if d := straightLineKm(riderPos, riderPos); d > 0.0001 {
		t.Fatalf("same point distance = %f", d)
	}
}
