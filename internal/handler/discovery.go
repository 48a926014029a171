package handler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/cache"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/context"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/geo"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/nrel"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/overpass"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/places"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/request"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/response"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/smartcar"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/validator"
)

const (
	defaultChargerRadiusM = 2000.0
	maxChargerRadiusM     = 10000.0
	metersPerMile         = 1609.34

	// walkRadiusM is how far around a charger we look for merchants. Anything
	// beyond a few minutes on foot is not worth surfacing while charging.
	walkRadiusM = 800.0

	chargersCacheTTL = 5 * time.Minute
)

type discoveryHandler struct {
	db         repository.Database
	errHandler *errHandler.ErrorRepository
	cache      *cache.Cache
	zones      geo.Zones
	nrel       *nrel.Client
	overpass   *overpass.Client
	places     *places.Client
	smartcar   *smartcar.Client
}

func NewDiscoveryHandler(db repository.Database, errHandler *errHandler.ErrorRepository, cache *cache.Cache, zones geo.Zones, nrelClient *nrel.Client, overpassClient *overpass.Client, placesClient *places.Client, smartcarClient *smartcar.Client) *discoveryHandler {
	return &discoveryHandler{
		db:         db,
		errHandler: errHandler,
		cache:      cache,
		zones:      zones,
		nrel:       nrelClient,
		overpass:   overpassClient,
		places:     placesClient,
		smartcar:   smartcarClient,
	}
}

type chargerView struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Network        string  `json:"network"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	ConnectorTypes string  `json:"connector_types"`
	DistanceM      float64 `json:"distance_m"`
}

func (h *discoveryHandler) HandleNearbyChargers(w http.ResponseWriter, r *http.Request) {
	var v validator.Validator

	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)

	v.Check(latErr == nil && lngErr == nil, "lat and lng query parameters are required")
	if latErr == nil && lngErr == nil {
		v.Check(validator.IsLatitude(lat), "Latitude is out of range")
		v.Check(validator.IsLongitude(lng), "Longitude is out of range")
	}

	radiusM := defaultChargerRadiusM
	if radiusStr := r.URL.Query().Get("radius_m"); radiusStr != "" {
		parsed, err := strconv.ParseFloat(radiusStr, 64)
		v.Check(err == nil && parsed > 0, "radius_m must be a positive number")
		if err == nil && parsed > 0 {
			radiusM = parsed
		}
	}
	if radiusM > maxChargerRadiusM {
		radiusM = maxChargerRadiusM
	}

	if v.HasErrors() {
		h.errHandler.FailedValidation(w, r, v.Errors)
		return
	}

	cacheKey := cache.NearbyKey("chargers", lat, lng, radiusM)
	if cached, hit, err := h.cache.Get(cacheKey); err == nil && hit {
		var views []chargerView
		if err := json.Unmarshal([]byte(cached), &views); err == nil {
			err = response.JSONOkResponse(w, views, "Chargers fetched successfully", nil)
			if err != nil {
				h.errHandler.ServerError(w, r, err)
			}
			return
		}
	}

	fix := geo.Point{Lat: lat, Lng: lng}

	views, err := h.nearbyChargerViews(fix, radiusM)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	// Nothing cached locally for this area yet: pull from the providers,
	// upsert what they return, and look again.
	if len(views) == 0 {
		if err := h.refreshChargersAround(r, fix, radiusM); err != nil {
			h.errHandler.ReportServerError(r, err)
		}

		views, err = h.nearbyChargerViews(fix, radiusM)
		if err != nil {
			h.errHandler.ServerError(w, r, err)
			return
		}
	}

	if encoded, err := json.Marshal(views); err == nil {
		if err := h.cache.Set(cacheKey, string(encoded), chargersCacheTTL); err != nil {
			h.errHandler.ReportServerError(r, err)
		}
	}

	err = response.JSONOkResponse(w, views, "Chargers fetched successfully", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *discoveryHandler) nearbyChargerViews(fix geo.Point, radiusM float64) ([]chargerView, error) {
	chargers, err := h.db.Charger().Nearby(fix.Lat, fix.Lng, radiusM)
	if err != nil {
		return nil, err
	}

	views := make([]chargerView, 0, len(chargers))
	for _, c := range chargers {
		d := geo.DistanceM(fix, geo.Point{Lat: c.Lat, Lng: c.Lng})
		if d > radiusM {
			continue
		}

		views = append(views, chargerView{
			ID:             c.ID,
			Name:           c.Name,
			Network:        c.Network.String,
			Lat:            c.Lat,
			Lng:            c.Lng,
			ConnectorTypes: c.ConnectorTypes.String,
			DistanceM:      d,
		})
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].DistanceM < views[j].DistanceM
	})

	return views, nil
}

// refreshChargersAround fills a cold area from NREL, falling back to
// Overpass when NREL has nothing for the region.
func (h *discoveryHandler) refreshChargersAround(r *http.Request, fix geo.Point, radiusM float64) error {
	stations, err := h.nrel.NearestStations(r.Context(), fix.Lat, fix.Lng, radiusM/metersPerMile, 50)
	if err != nil {
		h.errHandler.ReportServerError(r, err)
	}

	for _, s := range stations {
		charger := &models.Charger{
			ExternalID: fmt.Sprintf("nrel:%d", s.ID),
			Source:     repository.ChargerSourceNrel,
			Name:       s.StationName,
			Lat:        s.Latitude,
			Lng:        s.Longitude,
		}
		if s.EvNetwork != "" {
			charger.Network = sql.NullString{String: s.EvNetwork, Valid: true}
		}
		if len(s.EvConnectorTypes) > 0 {
			charger.ConnectorTypes = sql.NullString{String: strings.Join(s.EvConnectorTypes, ","), Valid: true}
		}

		if _, err := h.db.Charger().Upsert(charger, nil); err != nil {
			return err
		}
	}

	if len(stations) > 0 {
		return nil
	}

	elements, err := h.overpass.ChargingStations(r.Context(), fix.Lat, fix.Lng, radiusM)
	if err != nil {
		return err
	}

	for _, e := range elements {
		name := e.Tags["name"]
		if name == "" {
			name = "Charging station"
		}

		charger := &models.Charger{
			ExternalID: fmt.Sprintf("osm:%d", e.ID),
			Source:     repository.ChargerSourceOverpass,
			Name:       name,
			Lat:        e.Lat,
			Lng:        e.Lon,
		}
		if network := e.Tags["network"]; network != "" {
			charger.Network = sql.NullString{String: network, Valid: true}
		}

		if _, err := h.db.Charger().Upsert(charger, nil); err != nil {
			return err
		}
	}

	return nil
}

// HandleCreateIntent records that a driver is at, or heading to, a charger.
// The fix is classified into a confidence tier, and when the client shares
// Smartcar credentials a live CHARGING report upgrades straight to tier A.
func (h *discoveryHandler) HandleCreateIntent(w http.ResponseWriter, r *http.Request) {
	driver := context.ContextGetAuthenticatedDriver(r)

	var input struct {
		Lat                 float64             `json:"lat"`
		Lng                 float64             `json:"lng"`
		AccuracyM           float64             `json:"accuracy_m"`
		ChargerID           string              `json:"charger_id"`
		SmartcarVehicleID   string              `json:"smartcar_vehicle_id"`
		SmartcarAccessToken string              `json:"smartcar_access_token"`
		Validator           validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.IsLatitude(input.Lat), "Latitude is out of range")
	input.Validator.Check(validator.IsLongitude(input.Lng), "Longitude is out of range")
	input.Validator.Check(input.AccuracyM >= 0, "Accuracy must not be negative")

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	fix := geo.Point{Lat: input.Lat, Lng: input.Lng}

	charger, err := h.resolveCharger(input.ChargerID, fix)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if charger == nil {
		h.errHandler.BadRequest(w, r, ErrOutsideServiceArea)
		return
	}

	chargingVerified := false
	if input.SmartcarVehicleID != "" && input.SmartcarAccessToken != "" {
		// Best effort. A Smartcar outage should not block intent capture.
		status, err := h.smartcar.ChargeStatus(r.Context(), input.SmartcarVehicleID, input.SmartcarAccessToken)
		if err != nil {
			h.errHandler.ReportServerError(r, err)
		} else if status.State == smartcar.ChargingStateCharging {
			chargingVerified = true
		}
	}

	tier, ok := h.zones.ClassifyTier(fix, geo.Point{Lat: charger.Lat, Lng: charger.Lng}, chargingVerified)
	if !ok {
		h.errHandler.BadRequest(w, r, ErrOutsideServiceArea)
		return
	}

	intent := &models.DriverIntent{
		DriverID:       driver.ID,
		ChargerID:      sql.NullString{String: charger.ID, Valid: true},
		Lat:            input.Lat,
		Lng:            input.Lng,
		ConfidenceTier: tier,
	}
	if input.AccuracyM > 0 {
		intent.AccuracyM = sql.NullFloat64{Float64: input.AccuracyM, Valid: true}
	}

	intentID, err := h.db.Intent().Insert(intent)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	merchants, perksByMerchant, err := h.merchantsAroundCharger(charger, tier)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"id":              intentID,
		"confidence_tier": tier,
		"charger": map[string]any{
			"id":   charger.ID,
			"name": charger.Name,
			"lat":  charger.Lat,
			"lng":  charger.Lng,
		},
		"merchants": merchants,
	}

	// Curated partners win; Places suggestions only fill an empty map.
	if len(perksByMerchant) == 0 && len(merchants) == 0 {
		suggestions, err := h.places.NearbySearch(r.Context(), charger.Lat, charger.Lng, walkRadiusM, "cafe")
		if err != nil {
			h.errHandler.ReportServerError(r, err)
		} else {
			data["suggested_places"] = placeViews(suggestions)
		}
	}

	err = response.JSONCreatedResponse(w, data, "Intent recorded")
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

// HandleLatestIntent returns the caller's most recent intent, which clients
// use to restore discovery state after a restart.
func (h *discoveryHandler) HandleLatestIntent(w http.ResponseWriter, r *http.Request) {
	driver := context.ContextGetAuthenticatedDriver(r)

	intent, found, err := h.db.Intent().LatestByDriver(driver.ID)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}

	data := map[string]any{
		"id":              intent.ID,
		"charger_id":      intent.ChargerID.String,
		"lat":             intent.Lat,
		"lng":             intent.Lng,
		"confidence_tier": intent.ConfidenceTier,
		"created_at":      intent.CreatedAt,
	}

	err = response.JSONOkResponse(w, data, "Intent fetched successfully", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

// resolveCharger finds the charger an intent refers to, either by explicit ID
// or by proximity. A nil charger with a nil error means nothing is in range.
func (h *discoveryHandler) resolveCharger(chargerID string, fix geo.Point) (*models.Charger, error) {
	if chargerID != "" {
		charger, found, err := h.db.Charger().GetOne(chargerID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		return charger, nil
	}

	chargers, err := h.db.Charger().Nearby(fix.Lat, fix.Lng, h.zones.ApproachM)
	if err != nil {
		return nil, err
	}

	var nearest *models.Charger
	nearestDistance := h.zones.ApproachM
	for i := range chargers {
		d := geo.DistanceM(fix, geo.Point{Lat: chargers[i].Lat, Lng: chargers[i].Lng})
		if d <= nearestDistance {
			nearest = &chargers[i]
			nearestDistance = d
		}
	}

	return nearest, nil
}

// merchantsAroundCharger lists active partners within walking distance of a
// charger, each with the perks the given tier can see.
func (h *discoveryHandler) merchantsAroundCharger(charger *models.Charger, tier string) ([]map[string]any, map[string][]models.Perk, error) {
	chargerPoint := geo.Point{Lat: charger.Lat, Lng: charger.Lng}

	candidates, err := h.db.Merchant().Nearby(charger.Lat, charger.Lng, walkRadiusM)
	if err != nil {
		return nil, nil, err
	}

	merchantIDs := make([]string, 0, len(candidates))
	inRange := make([]models.Merchant, 0, len(candidates))
	for _, m := range candidates {
		if m.Status != repository.MerchantActiveStatus {
			continue
		}
		if !geo.WithinM(chargerPoint, geo.Point{Lat: m.Lat, Lng: m.Lng}, walkRadiusM) {
			continue
		}

		inRange = append(inRange, m)
		merchantIDs = append(merchantIDs, m.ID)
	}

	perksByMerchant := make(map[string][]models.Perk)
	if len(merchantIDs) > 0 {
		perks, err := h.db.Perk().ListActiveByMerchantIDs(merchantIDs)
		if err != nil {
			return nil, nil, err
		}

		for _, p := range perks {
			if !tierSatisfies(tier, p.MinTier) {
				continue
			}
			perksByMerchant[p.MerchantID] = append(perksByMerchant[p.MerchantID], p)
		}
	}

	views := make([]map[string]any, 0, len(inRange))
	for i := range inRange {
		m := &inRange[i]

		view := merchantView(m)
		view["distance_m"] = geo.DistanceM(chargerPoint, geo.Point{Lat: m.Lat, Lng: m.Lng})
		view["perks"] = perkViews(perksByMerchant[m.ID])
		views = append(views, view)
	}

	return views, perksByMerchant, nil
}

// tierSatisfies reports whether a driver's tier meets a perk's minimum.
// A is the strongest tier, C the weakest.
func tierSatisfies(tier, minTier string) bool {
	rank := map[string]int{geo.TierA: 3, geo.TierB: 2, geo.TierC: 1}
	return rank[tier] >= rank[minTier]
}

func placeViews(results []places.Place) []map[string]any {
	views := make([]map[string]any, 0, len(results))
	for _, p := range results {
		views = append(views, map[string]any{
			"place_id": p.PlaceID,
			"name":     p.Name,
			"vicinity": p.Vicinity,
			"rating":   p.Rating,
			"lat":      p.Geometry.Location.Lat,
			"lng":      p.Geometry.Location.Lng,
		})
	}
	return views
}
