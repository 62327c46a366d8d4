// Package geo provides the geographic primitives used by the realtime
// tracking core: coordinates, bearings, interpolation and polyline geometry.
package geo

import (
	"math"
)

const earthRadiusMeters = 6371000

// LatLng represents a geographic point (WGS 84).
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Path is an ordered sequence of geographic points forming a polyline.
type Path []LatLng

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"minLat"`
	MinLng float64 `json:"minLng"`
	MaxLat float64 `json:"maxLat"`
	MaxLng float64 `json:"maxLng"`
}

// BoundsOf returns the smallest bounding box containing all given points.
// Returns the zero Bounds when pts is empty.
func BoundsOf(pts ...LatLng) Bounds {
	if len(pts) == 0 {
		return Bounds{}
	}
	b := Bounds{
		MinLat: pts[0].Lat, MaxLat: pts[0].Lat,
		MinLng: pts[0].Lng, MaxLng: pts[0].Lng,
	}
	for _, p := range pts[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLng = math.Min(b.MinLng, p.Lng)
		b.MaxLng = math.Max(b.MaxLng, p.Lng)
	}
	return b
}

// Center returns the midpoint of the bounding box.
func (b Bounds) Center() LatLng {
	return LatLng{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lng: (b.MinLng + b.MaxLng) / 2,
	}
}

// Distance calculates the great-circle distance between two points in meters
// using the haversine formula.
func Distance(a, b LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLng := math.Sin(dLng / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLng*sinDLng
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Bearing computes the initial forward azimuth from one point toward another,
// in degrees [0, 360). North is 0, east is 90.
func Bearing(from, to LatLng) float64 {
	lat1 := from.Lat * math.Pi / 180
	lat2 := to.Lat * math.Pi / 180
	dLng := (to.Lng - from.Lng) * math.Pi / 180

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	return NormalizeBearing(math.Atan2(y, x) * 180 / math.Pi)
}

// NormalizeBearing maps an angle in degrees onto [0, 360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// ShortestTurn returns the signed angular delta that rotates from one bearing
// to another along the shortest path, in (-180, 180].
func ShortestTurn(from, to float64) float64 {
	d := math.Mod(to-from, 360)
	if d > 180 {
		d -= 360
	}
	if d <= -180 {
		d += 360
	}
	return d
}

// Lerp linearly interpolates between two points in the geographic plane.
// t is clamped to [0, 1].
func Lerp(a, b LatLng, t float64) LatLng {
	t = clamp01(t)
	return LatLng{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: a.Lng + (b.Lng-a.Lng)*t,
	}
}

// LerpAngle interpolates between two bearings along the shortest angular
// path, so animation never rotates the long way around. The result is
// normalized to [0, 360). t is clamped to [0, 1].
func LerpAngle(from, to, t float64) float64 {
	return NormalizeBearing(from + ShortestTurn(from, to)*clamp01(t))
}

func clamp01(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}
