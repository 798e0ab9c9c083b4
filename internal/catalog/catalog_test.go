package catalog

import (
	"errors"
	"testing"

	"github.com/example/ride-booking/internal/models"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	want := []struct {
		id       string
		rate     int64
		capacity int
	}{
		{"economy", 200, 4},
		{"comfort", 300, 4},
		{"premium", 450, 4},
		{"xl", 350, 6},
	}
	got := c.List()
	if len(got) != len(want) {
		t.Fatalf("expected %d classes, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].ID != w.id || got[i].RatePerKm != w.rate || got[i].Capacity != w.capacity {
			t.Errorf("class %d = %+v, want %+v", i, got[i], w)
		}
	}
}

func TestListIsRestartable(t *testing.T) {
	c := Default()
	first := c.List()
	first[0].ID = "mutated"
	first[0].Features[0] = "mutated"
	second := c.List()
	if second[0].ID != "economy" || second[0].Features[0] != "Air conditioning" {
		t.Fatalf("List leaked internal state: %+v", second[0])
	}
}

func TestGet(t *testing.T) {
	c := Default()
	vc, err := c.Get("comfort")
	if err != nil || vc.Name != "Comfort" || !vc.Popular {
		t.Fatalf("Get(comfort) = %+v, %v", vc, err)
	}
	if _, err := c.Get("helicopter"); !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("expected ErrUnknownClass, got %v", err)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]models.VehicleClass{{ID: "a"}, {ID: "a"}})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
	if _, err := New([]models.VehicleClass{{ID: ""}}); err == nil {
		t.Fatal("expected empty id error")
	}
}
