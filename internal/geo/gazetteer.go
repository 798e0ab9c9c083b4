package geo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/ride-booking/internal/models"
)

// CurrentLocation is the label a client sends when it wants device
// geolocation; without coordinates it resolves to the default place.
const CurrentLocation = "Current Location"

var (
	ErrMissingLocation = errors.New("missing location")
	ErrUnknownLocation = errors.New("unknown location")
)

// Place is a resolved pickup or destination.
type Place struct {
	Name     string       `json:"name"`
	Coord    models.Coord `json:"coord"`
	Fallback bool         `json:"fallback,omitempty"`
}

type namedCoord struct {
	name  string
	coord models.Coord
}

var lagosAreas = []namedCoord{
	{"Ikeja", models.Coord{Lat: 6.6059, Lng: 3.3491}},
	{"Victoria Island", models.Coord{Lat: 6.4281, Lng: 3.4210}},
	{"Lekki", models.Coord{Lat: 6.4650, Lng: 3.5770}},
	{"Ajah", models.Coord{Lat: 6.4730, Lng: 3.5770}},
	{"Surulere", models.Coord{Lat: 6.5010, Lng: 3.3580}},
	{"Yaba", models.Coord{Lat: 6.5090, Lng: 3.3710}},
	{"Ikoyi", models.Coord{Lat: 6.4520, Lng: 3.4380}},
	{"Maryland", models.Coord{Lat: 6.5780, Lng: 3.3610}},
	{"Gbagada", models.Coord{Lat: 6.5480, Lng: 3.3810}},
	{"Oshodi", models.Coord{Lat: 6.5550, Lng: 3.3430}},
	{"Agege", models.Coord{Lat: 6.6150, Lng: 3.3230}},
	{"Ikorodu", models.Coord{Lat: 6.6190, Lng: 3.5110}},
	{"Badagry", models.Coord{Lat: 6.4150, Lng: 2.8870}},
}

// Gazetteer is the static name -> coordinate table standing in for a
// geocoding service. It is immutable after construction.
type Gazetteer struct {
	entries []namedCoord
	index   map[string]int
	def     Place
	strict  bool
}

// NewLagosGazetteer builds the Lagos table. defaultName must be one of its
// entries; strict turns unknown names into ErrUnknownLocation.
func NewLagosGazetteer(defaultName string, strict bool) (*Gazetteer, error) {
	return newGazetteer(lagosAreas, defaultName, strict)
}

func newGazetteer(entries []namedCoord, defaultName string, strict bool) (*Gazetteer, error) {
	g := &Gazetteer{
		entries: append([]namedCoord(nil), entries...),
		index:   make(map[string]int, len(entries)),
		strict:  strict,
	}
	for i, e := range g.entries {
		key := normalize(e.name)
		if _, dup := g.index[key]; dup {
			return nil, fmt.Errorf("gazetteer: duplicate name %q", e.name)
		}
		g.index[key] = i
	}
	i, ok := g.index[normalize(defaultName)]
	if !ok {
		return nil, fmt.Errorf("gazetteer: default %q is not a known place", defaultName)
	}
	g.def = Place{Name: g.entries[i].name, Coord: g.entries[i].coord}
	return g, nil
}

func (g *Gazetteer) Names() []string {
	out := make([]string, len(g.entries))
	for i, e := range g.entries {
		out[i] = e.name
	}
	return out
}

func (g *Gazetteer) Default() Place { return g.def }

func (g *Gazetteer) Lookup(name string) (models.Coord, bool) {
	i, ok := g.index[normalize(name)]
	if !ok {
		return models.Coord{}, false
	}
	return g.entries[i].coord, true
}

// Resolve turns a request location into a place. Raw coordinates win over
// names; "Current Location" without coordinates and unknown names fall back
// to the default place unless the gazetteer is strict.
func (g *Gazetteer) Resolve(loc models.Location) (Place, error) {
	if loc.IsZero() || (strings.TrimSpace(loc.Name) == "" && !loc.HasCoord()) {
		return Place{}, ErrMissingLocation
	}
	if loc.HasCoord() {
		c, err := Validate(models.Coord{Lat: *loc.Lat, Lng: *loc.Lng})
		if err != nil {
			return Place{}, err
		}
		name := strings.TrimSpace(loc.Name)
		if name == "" {
			name = fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lng)
		}
		return Place{Name: name, Coord: c}, nil
	}
	name := strings.TrimSpace(loc.Name)
	if strings.EqualFold(name, CurrentLocation) {
		p := g.def
		p.Fallback = true
		return p, nil
	}
	if i, ok := g.index[normalize(name)]; ok {
		return Place{Name: g.entries[i].name, Coord: g.entries[i].coord}, nil
	}
	if g.strict {
		return Place{}, fmt.Errorf("%w: %q", ErrUnknownLocation, name)
	}
	p := g.def
	p.Fallback = true
	return p, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
