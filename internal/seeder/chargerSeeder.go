package seeders

import (
	"database/sql"
	"log"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
)

// seedChargers loads a starter set of Austin chargers so discovery works on
// a fresh database before the NREL refresh has ever run. Upsert keys on the
// external ID, so re-running the seeder never duplicates rows.
func (seeder *Seeder) seedChargers() {
	count, err := seeder.DB.Charger().Count()
	if err != nil {
		log.Fatalf("Failed to count chargers: %v", err)
	}
	if count > 0 {
		return
	}

	chargers := []models.Charger{
		{
			ExternalID:     "seed:austin-domain-1",
			Source:         repository.ChargerSourceSeed,
			Network:        sql.NullString{String: "Tesla", Valid: true},
			Name:           "The Domain Supercharger",
			Lat:            30.4021,
			Lng:            -97.7265,
			ConnectorTypes: sql.NullString{String: "NACS", Valid: true},
		},
		{
			ExternalID:     "seed:austin-mueller-1",
			Source:         repository.ChargerSourceSeed,
			Network:        sql.NullString{String: "ChargePoint", Valid: true},
			Name:           "Mueller Town Center Station",
			Lat:            30.2986,
			Lng:            -97.7046,
			ConnectorTypes: sql.NullString{String: "J1772,CCS", Valid: true},
		},
		{
			ExternalID:     "seed:austin-downtown-1",
			Source:         repository.ChargerSourceSeed,
			Network:        sql.NullString{String: "Electrify America", Valid: true},
			Name:           "2nd Street District Fast Charger",
			Lat:            30.2645,
			Lng:            -97.7472,
			ConnectorTypes: sql.NullString{String: "CCS,CHAdeMO", Valid: true},
		},
		{
			ExternalID:     "seed:austin-southcongress-1",
			Source:         repository.ChargerSourceSeed,
			Network:        sql.NullString{String: "ChargePoint", Valid: true},
			Name:           "South Congress Garage Station",
			Lat:            30.2499,
			Lng:            -97.7494,
			ConnectorTypes: sql.NullString{String: "J1772", Valid: true},
		},
	}

	for i := range chargers {
		if _, err := seeder.DB.Charger().Upsert(&chargers[i], nil); err != nil {
			log.Fatalf("Failed to seed charger %s: %v", chargers[i].ExternalID, err)
		}
	}

	log.Printf("Seeded %d chargers", len(chargers))
}
