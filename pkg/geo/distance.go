package geo

import "math"

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in kilometres between two
// coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// EstimateMinutes returns the estimated travel time in minutes for a given
// distance in kilometres at the given average speed.
func EstimateMinutes(distanceKm, averageSpeedKmh float64) int {
	if averageSpeedKmh <= 0 {
		return 0
	}
	return int(math.Round((distanceKm / averageSpeedKmh) * 60))
}
