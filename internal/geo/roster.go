package geo

import (
	"context"
	"fmt"

	"github.com/example/ride-booking/internal/models"
)

// DemoRoster is the simulated driver pool offered to passengers. Positions
// sit around Lagos so every gazetteer area has a driver within
// DefaultSearchRadiusKm.
func DemoRoster() []models.Driver {
	return []models.Driver{
		{ID: "drv-1", Name: "Tunde Adewale", Car: "Toyota Corolla 2022", License: "LAG-1234", Rating: 4.9, Trips: 1247, Loc: models.Coord{Lat: 6.5960, Lng: 3.3420}, Online: true},
		{ID: "drv-2", Name: "Chinedu Okoro", Car: "Honda Accord 2021", License: "LAG-5678", Rating: 4.8, Trips: 892, Loc: models.Coord{Lat: 6.5200, Lng: 3.3750}, Online: true},
		{ID: "drv-3", Name: "Emeka Nwosu", Car: "Toyota Camry 2023", License: "LAG-9012", Rating: 4.7, Trips: 567, Loc: models.Coord{Lat: 6.4400, Lng: 3.4300}, Online: true},
		{ID: "drv-4", Name: "Aisha Bello", Car: "Hyundai Elantra 2022", License: "LAG-3456", Rating: 4.9, Trips: 1103, Loc: models.Coord{Lat: 6.4680, Lng: 3.5600}, Online: true},
	}
}

// Seed upserts every driver into g.
func Seed(ctx context.Context, g Geo, drivers []models.Driver) error {
	for _, d := range drivers {
		if err := g.Upsert(ctx, d); err != nil {
			return fmt.Errorf("seed driver %s: %w", d.ID, err)
		}
	}
	return nil
}
