package geo

import (
	"math"
)

const earthRadiusM = 6371000

// Zones holds the geofence radii, in meters, used to classify how confident
// we are that a driver is actually at a charging location.
type Zones struct {
	ChargerInnerM float64
	ChargerOuterM float64
	ApproachM     float64
	MerchantZoneM float64
}

// Confidence tiers. Tier A drives the richest UI and the billable arrival
// path; tier C only surfaces teaser perks.
const (
	TierA = "A"
	TierB = "B"
	TierC = "C"
)

type Point struct {
	Lat float64
	Lng float64
}

// DistanceM returns the haversine distance between two points in meters.
func DistanceM(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

// WithinM reports whether b is within radiusM meters of a.
func WithinM(a, b Point, radiusM float64) bool {
	return DistanceM(a, b) <= radiusM
}

// ClassifyTier maps the distance between a driver fix and the nearest charger
// onto a confidence tier. chargingVerified short-circuits to tier A: a
// telematics plug-in report beats any geometry.
func (z Zones) ClassifyTier(fix, charger Point, chargingVerified bool) (string, bool) {
	if chargingVerified {
		return TierA, true
	}

	d := DistanceM(fix, charger)
	switch {
	case d <= z.ChargerInnerM:
		return TierA, true
	case d <= z.ChargerOuterM:
		return TierB, true
	case d <= z.ApproachM:
		return TierC, true
	}

	return "", false
}

// VerifiesArrival reports whether a fix satisfies the dual-zone check: the
// driver must be inside the charger's outer zone (tier A or B) and inside the
// merchant's own zone at the same time. Tier C never verifies an arrival.
func (z Zones) VerifiesArrival(tier string, fix, merchant Point, merchantRadiusM float64) bool {
	if tier != TierA && tier != TierB {
		return false
	}

	if merchantRadiusM <= 0 {
		merchantRadiusM = z.MerchantZoneM
	}

	return WithinM(fix, merchant, merchantRadiusM)
}
