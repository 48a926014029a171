package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var testZones = Zones{
	ChargerInnerM: 75,
	ChargerOuterM: 250,
	ApproachM:     1000,
	MerchantZoneM: 150,
}

// pointAtMetersEast offsets a point east by roughly d meters. Good enough at
// these latitudes for radius checks with wide margins.
func pointAtMetersEast(p Point, d float64) Point {
	return Point{
		Lat: p.Lat,
		Lng: p.Lng + d/78846.8,
	}
}

func TestDistanceM(t *testing.T) {
	// Austin downtown to Austin airport is a shade over 10km.
	downtown := Point{Lat: 30.2672, Lng: -97.7431}
	airport := Point{Lat: 30.1975, Lng: -97.6664}

	d := DistanceM(downtown, airport)
	require.InDelta(t, 10600, d, 500)

	require.Zero(t, DistanceM(downtown, downtown))
}

func TestClassifyTier(t *testing.T) {
	charger := Point{Lat: 30.4015, Lng: -97.7265}

	tests := []struct {
		name             string
		fix              Point
		chargingVerified bool
		wantTier         string
		wantOK           bool
	}{
		{
			name:     "at the charger",
			fix:      pointAtMetersEast(charger, 20),
			wantTier: TierA,
			wantOK:   true,
		},
		{
			name:     "inside outer zone",
			fix:      pointAtMetersEast(charger, 180),
			wantTier: TierB,
			wantOK:   true,
		},
		{
			name:     "approaching",
			fix:      pointAtMetersEast(charger, 700),
			wantTier: TierC,
			wantOK:   true,
		},
		{
			name:   "too far away",
			fix:    pointAtMetersEast(charger, 5000),
			wantOK: false,
		},
		{
			name:             "far away but plugged in",
			fix:              pointAtMetersEast(charger, 5000),
			chargingVerified: true,
			wantTier:         TierA,
			wantOK:           true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, ok := testZones.ClassifyTier(tt.fix, charger, tt.chargingVerified)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantTier, tier)
		})
	}
}

func TestVerifiesArrival(t *testing.T) {
	merchant := Point{Lat: 30.4015, Lng: -97.7265}

	inside := pointAtMetersEast(merchant, 50)
	outside := pointAtMetersEast(merchant, 400)

	require.True(t, testZones.VerifiesArrival(TierA, inside, merchant, 150))
	require.True(t, testZones.VerifiesArrival(TierB, inside, merchant, 150))

	// Tier C never verifies, even inside the merchant zone.
	require.False(t, testZones.VerifiesArrival(TierC, inside, merchant, 150))

	// In the charger zone but not at the merchant is not an arrival.
	require.False(t, testZones.VerifiesArrival(TierA, outside, merchant, 150))

	// Zero merchant radius falls back to the configured default zone.
	require.True(t, testZones.VerifiesArrival(TierA, inside, merchant, 0))
}
