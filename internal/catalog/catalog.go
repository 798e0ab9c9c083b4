// Package catalog holds the vehicle classes a passenger can book.
package catalog

import (
	"errors"
	"fmt"

	"github.com/example/ride-booking/internal/models"
)

var ErrUnknownClass = errors.New("unknown vehicle class")

type Catalog struct {
	classes []models.VehicleClass
	byID    map[string]int
}

// New builds a catalog; ids must be unique and non-empty.
func New(classes []models.VehicleClass) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(classes))}
	for i, vc := range classes {
		if vc.ID == "" {
			return nil, fmt.Errorf("catalog: class %d has empty id", i)
		}
		if _, dup := c.byID[vc.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate class id %q", vc.ID)
		}
		if vc.RatePerKm < 0 {
			return nil, fmt.Errorf("catalog: class %q has negative rate", vc.ID)
		}
		c.byID[vc.ID] = i
		c.classes = append(c.classes, cloneClass(vc))
	}
	return c, nil
}

// Default is the Lagos catalog: economy, comfort, premium, xl.
func Default() *Catalog {
	c, err := New([]models.VehicleClass{
		{ID: "economy", Name: "Economy", Description: "Affordable everyday rides", RatePerKm: 200, Capacity: 4, ETAMinutes: 5, Features: []string{"Air conditioning", "Standard comfort"}},
		{ID: "comfort", Name: "Comfort", Description: "Extra legroom and newer cars", RatePerKm: 300, Capacity: 4, ETAMinutes: 7, Features: []string{"Extra legroom", "Newer cars", "Premium comfort"}, Popular: true},
		{ID: "premium", Name: "Premium", Description: "Luxury vehicles with professional drivers", RatePerKm: 450, Capacity: 4, ETAMinutes: 10, Features: []string{"Luxury vehicle", "Professional driver", "Bottled water"}},
		{ID: "xl", Name: "XL", Description: "Extra space for groups", RatePerKm: 350, Capacity: 6, ETAMinutes: 8, Features: []string{"6 seats", "Extra luggage space", "Great for groups"}},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// List returns the classes in catalog order. The result is a copy.
func (c *Catalog) List() []models.VehicleClass {
	out := make([]models.VehicleClass, len(c.classes))
	for i, vc := range c.classes {
		out[i] = cloneClass(vc)
	}
	return out
}

func (c *Catalog) Get(id string) (models.VehicleClass, error) {
	i, ok := c.byID[id]
	if !ok {
		return models.VehicleClass{}, fmt.Errorf("%w: %q", ErrUnknownClass, id)
	}
	return cloneClass(c.classes[i]), nil
}

func cloneClass(vc models.VehicleClass) models.VehicleClass {
	vc.Features = append([]string(nil), vc.Features...)
	return vc
}
