package match

import "math"

const earthRadiusKm = 6371

// DistanceKm is the great-circle distance between two points (haversine).
func DistanceKm(a, b GeoPoint) float64 {
	dLat := (b.Lat - a.Lat) * (math.Pi / 180)
	dLon := (b.Lon - a.Lon) * (math.Pi / 180)
	lat1 := a.Lat * (math.Pi / 180)
	lat2 := b.Lat * (math.Pi / 180)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// distanceBetween returns nil unless both points are known.
func distanceBetween(a, b *GeoPoint) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := DistanceKm(*a, *b)
	return &d
}
