package geo

import (
	"math"
	"testing"
)

func TestDecodePolyline(t *testing.T) {
	tests := []struct {
		name     string
		encoded  string
		expected Path
	}{
		{
			name:     "empty",
			encoded:  "",
			expected: nil,
		},
		{
			name:    "single point",
			encoded: "_p~iF~ps|U",
			expected: Path{
				{Lat: 38.5, Lng: -120.2},
			},
		},
		{
			name:    "three points - Google example",
			encoded: "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
			expected: Path{
				{Lat: 38.5, Lng: -120.2},
				{Lat: 40.7, Lng: -120.95},
				{Lat: 43.252, Lng: -126.453},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodePolyline(tt.encoded)
			if len(got) != len(tt.expected) {
				t.Fatalf("got %d points, want %d", len(got), len(tt.expected))
			}
			for i := range got {
				if math.Abs(got[i].Lat-tt.expected[i].Lat) > 1e-5 ||
					math.Abs(got[i].Lng-tt.expected[i].Lng) > 1e-5 {
					t.Errorf("point %d = %+v, want %+v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestEncodePolyline_RoundTrip(t *testing.T) {
	original := Path{
		{Lat: 52.3676, Lng: 4.9041},
		{Lat: 52.3580, Lng: 4.8910},
		{Lat: 52.3400, Lng: 4.8720},
	}

	decoded := DecodePolyline(EncodePolyline(original))
	if len(decoded) != len(original) {
		t.Fatalf("got %d points, want %d", len(decoded), len(original))
	}
	for i := range decoded {
		if math.Abs(decoded[i].Lat-original[i].Lat) > 1e-5 ||
			math.Abs(decoded[i].Lng-original[i].Lng) > 1e-5 {
			t.Errorf("point %d = %+v, want %+v", i, decoded[i], original[i])
		}
	}
}

func TestPath_Length(t *testing.T) {
	if got := (Path{}).Length(); got != 0 {
		t.Errorf("empty path length = %v, want 0", got)
	}
	if got := (Path{{Lat: 1, Lng: 1}}).Length(); got != 0 {
		t.Errorf("single point length = %v, want 0", got)
	}

	// Two points one degree of latitude apart: ~111 km.
	p := Path{{Lat: 40.0, Lng: -73.0}, {Lat: 41.0, Lng: -73.0}}
	if got := p.Length(); got < 110000 || got > 112500 {
		t.Errorf("length = %v, want ~111km", got)
	}
}

func TestPath_PointAt(t *testing.T) {
	p := Path{{Lat: 40.0, Lng: -73.0}, {Lat: 41.0, Lng: -73.0}}
	total := p.Length()

	if got := p.PointAt(0); got != p[0] {
		t.Errorf("PointAt(0) = %+v, want start", got)
	}
	if got := p.PointAt(total * 2); got != p[1] {
		t.Errorf("PointAt past end = %+v, want end", got)
	}

	mid := p.PointAt(total / 2)
	if math.Abs(mid.Lat-40.5) > 0.01 {
		t.Errorf("PointAt(half) = %+v, want lat ~40.5", mid)
	}
}
