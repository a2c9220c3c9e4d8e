package quest

import "math"

const earthRadiusKm = 6371.0

// CalculateDistance returns the haversine great-circle distance in km.
func CalculateDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// DistanceTo returns the distance from (lat, lon) to q, and false when
// either side lacks coordinates. Unknown is never reported as zero.
func DistanceTo(lat, lon *float64, lat2, lon2 *float64) (float64, bool) {
	if lat == nil || lon == nil || lat2 == nil || lon2 == nil {
		return 0, false
	}
	return CalculateDistance(*lat, *lon, *lat2, *lon2), true
}
