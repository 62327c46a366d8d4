package geo

import (
	"math"
	"math/rand"
	"testing"
)

func TestBearing_CardinalDirections(t *testing.T) {
	origin := LatLng{Lat: 40.0, Lng: -73.0}

	tests := []struct {
		name     string
		to       LatLng
		expected float64
	}{
		{"due north", LatLng{Lat: 41.0, Lng: -73.0}, 0},
		{"due east", LatLng{Lat: 40.0, Lng: -72.0}, 90},
		{"due south", LatLng{Lat: 39.0, Lng: -73.0}, 180},
		{"due west", LatLng{Lat: 40.0, Lng: -74.0}, 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(origin, tt.to)
			// Meridian convergence skews east/west slightly at this latitude.
			if math.Abs(ShortestTurn(tt.expected, got)) > 1.0 {
				t.Errorf("Bearing() = %v, want ~%v", got, tt.expected)
			}
		})
	}
}

func TestBearing_Northwest(t *testing.T) {
	// The two-fix scenario from the tracker: a small hop up and to the left.
	got := Bearing(LatLng{Lat: 40.0, Lng: -73.0}, LatLng{Lat: 40.001, Lng: -73.001})
	if got < 310 || got > 320 {
		t.Errorf("Bearing() = %v, want ~315 (northwest)", got)
	}
}

func TestShortestTurn_NeverExceedsHalfTurn(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		from := rng.Float64() * 360
		to := rng.Float64() * 360
		d := ShortestTurn(from, to)
		if d <= -180 || d > 180 {
			t.Fatalf("ShortestTurn(%v, %v) = %v, outside (-180, 180]", from, to, d)
		}
		if NormalizeBearing(from+d) != NormalizeBearing(to) {
			diff := math.Abs(ShortestTurn(from+d, to))
			if diff > 1e-9 {
				t.Fatalf("ShortestTurn(%v, %v) = %v does not land on target (off by %v)", from, to, d, diff)
			}
		}
	}
}

func TestShortestTurn_Wraparound(t *testing.T) {
	tests := []struct {
		name     string
		from, to float64
		expected float64
	}{
		{"across north, clockwise", 350, 10, 20},
		{"across north, counterclockwise", 10, 350, -20},
		{"opposite", 0, 180, 180},
		{"no turn", 90, 90, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShortestTurn(tt.from, tt.to); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("ShortestTurn(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestLerpAngle(t *testing.T) {
	tests := []struct {
		name     string
		from, to float64
		t        float64
		expected float64
	}{
		{"halfway across north", 350, 10, 0.5, 0},
		{"start", 350, 10, 0, 350},
		{"end", 350, 10, 1, 10},
		{"clamped above", 0, 90, 1.5, 90},
		{"clamped below", 0, 90, -0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LerpAngle(tt.from, tt.to, tt.t); math.Abs(ShortestTurn(tt.expected, got)) > 1e-9 {
				t.Errorf("LerpAngle(%v, %v, %v) = %v, want %v", tt.from, tt.to, tt.t, got, tt.expected)
			}
		})
	}
}

func TestLerp(t *testing.T) {
	a := LatLng{Lat: 40.0, Lng: -73.0}
	b := LatLng{Lat: 41.0, Lng: -74.0}

	mid := Lerp(a, b, 0.5)
	if mid.Lat != 40.5 || mid.Lng != -73.5 {
		t.Errorf("Lerp midpoint = %+v, want {40.5 -73.5}", mid)
	}
	if got := Lerp(a, b, 0); got != a {
		t.Errorf("Lerp at 0 = %+v, want %+v", got, a)
	}
	if got := Lerp(a, b, 2); got != b {
		t.Errorf("Lerp clamps above 1, got %+v, want %+v", got, b)
	}
}

func TestDistance_KnownValue(t *testing.T) {
	// Amsterdam Centraal to Utrecht Centraal, roughly 35 km.
	d := Distance(LatLng{Lat: 52.3791, Lng: 4.9003}, LatLng{Lat: 52.0894, Lng: 5.1100})
	if d < 34000 || d > 37000 {
		t.Errorf("Distance() = %v, want ~35km", d)
	}
}

func TestBoundsOf(t *testing.T) {
	b := BoundsOf(
		LatLng{Lat: 40.0, Lng: -73.0},
		LatLng{Lat: 41.0, Lng: -74.0},
		LatLng{Lat: 40.5, Lng: -73.5},
	)
	want := Bounds{MinLat: 40.0, MinLng: -74.0, MaxLat: 41.0, MaxLng: -73.0}
	if b != want {
		t.Errorf("BoundsOf() = %+v, want %+v", b, want)
	}

	c := b.Center()
	if c.Lat != 40.5 || c.Lng != -73.5 {
		t.Errorf("Center() = %+v, want {40.5 -73.5}", c)
	}
}
