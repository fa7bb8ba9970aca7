package geo

import (
	"math"

	"palmshell-dispatch/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// DefaultRadiusKm is the completion tolerance around a destination.
const DefaultRadiusKm = 0.5

const (
	// RoadFactor approximates road curvature over a straight line.
	RoadFactor = 1.4
	// AverageSpeedKmh is the assumed truck speed.
	AverageSpeedKmh = 40.0
)

func rad(deg float64) float64 { return deg * math.Pi / 180 }

// Distance returns the great-circle distance between a and b in kilometres (Haversine).
func Distance(a, b domain.Location) float64 {
	dLat := rad(b.Lat - a.Lat)
	dLng := rad(b.Lng - a.Lng)

	s := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
}

// Within reports the distance and whether it is inside radiusKm.
func Within(pos, target domain.Location, radiusKm float64) (float64, bool) {
	d := Distance(pos, target)
	return d, d <= radiusKm
}

// Estimate turns a straight line into a road estimate.
func Estimate(from, to domain.Location) domain.Estimate {
	km := Distance(from, to) * RoadFactor
	return domain.Estimate{
		DistanceKm:  Round2(km),
		DurationMin: int(math.Round(km / AverageSpeedKmh * 60)),
	}
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
