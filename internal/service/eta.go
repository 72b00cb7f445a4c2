package service

import (
	"math"

	"github.com/lorenz-liu/disaster-agent/internal/domain"
)

// earthRadiusKM is the mean Earth radius used by the haversine formula.
const earthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance between two coordinates in
// kilometers.
func HaversineKM(a, b domain.Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKM * c
}

// ETAMinutes estimates travel time between two optional coordinates at the
// given speed. A missing endpoint or non-positive speed yields +Inf, which
// every caller must treat as "unreachable" rather than zero.
func ETAMinutes(from, to *domain.Location, speedKMH float64) float64 {
	if from == nil || to == nil || speedKMH <= 0 {
		return math.Inf(1)
	}
	return HaversineKM(*from, *to) / speedKMH * 60
}
