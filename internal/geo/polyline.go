package geo

import (
	"math"
)

// DecodePolyline decodes a Google-format polyline string (precision 5) into a
// Path. The algorithm is documented at:
// https://developers.google.com/maps/documentation/utilities/polylinealgorithm
func DecodePolyline(encoded string) Path {
	if encoded == "" {
		return nil
	}

	var path Path
	index := 0
	lat := 0
	lng := 0

	for index < len(encoded) {
		latDelta, newIndex := decodePolylineValue(encoded, index)
		index = newIndex
		lat += latDelta

		lngDelta, newIndex := decodePolylineValue(encoded, index)
		index = newIndex
		lng += lngDelta

		path = append(path, LatLng{
			Lat: float64(lat) / 1e5,
			Lng: float64(lng) / 1e5,
		})
	}

	return path
}

func decodePolylineValue(encoded string, index int) (int, int) {
	shift := 0
	result := 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	// Two's complement for negative values.
	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}

// EncodePolyline encodes a Path into a polyline string (precision 5).
func EncodePolyline(path Path) string {
	if len(path) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(path)*4)
	prevLat := 0
	prevLng := 0

	for _, p := range path {
		lat := int(math.Round(p.Lat * 1e5))
		lng := int(math.Round(p.Lng * 1e5))

		encoded = encodePolylineValue(encoded, lat-prevLat)
		encoded = encodePolylineValue(encoded, lng-prevLng)

		prevLat = lat
		prevLng = lng
	}

	return string(encoded)
}

func encodePolylineValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	buf = append(buf, byte(value)+63)

	return buf
}

// Length returns the total length of a path in meters.
func (p Path) Length() float64 {
	if len(p) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(p); i++ {
		total += Distance(p[i-1], p[i])
	}
	return total
}

// PointAt returns the position a given distance (meters) along the path,
// interpolating within segments. Distances past either end clamp to the
// nearest endpoint.
func (p Path) PointAt(meters float64) LatLng {
	if len(p) == 0 {
		return LatLng{}
	}
	if meters <= 0 || len(p) == 1 {
		return p[0]
	}

	remaining := meters
	for i := 1; i < len(p); i++ {
		seg := Distance(p[i-1], p[i])
		if remaining <= seg && seg > 0 {
			return Lerp(p[i-1], p[i], remaining/seg)
		}
		remaining -= seg
	}
	return p[len(p)-1]
}
