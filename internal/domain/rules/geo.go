package rules

import "math"

const earthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance between two points in km.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Min(1, math.Sqrt(a)))

	return earthRadiusKM * c
}

// RoundKM rounds a distance to the nearest whole kilometre for display.
func RoundKM(km float64) int {
	return int(math.Round(km))
}

// LocationSet reports whether coordinates were ever recorded. The pair
// (0, 0) is the unset sentinel and never counts as a real position.
func LocationSet(lat, lon float64) bool {
	return lat != 0 || lon != 0
}

func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
