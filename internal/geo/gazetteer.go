package geo

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

const defaultRegionRadius = 50.0 // meters

// Region is a user-defined named area: photos within Radius meters of the
// center resolve to Name instead of a geocoded address.
type Region struct {
	Name    string   `yaml:"name"`
	Lat     float64  `yaml:"latitude"`
	Lng     float64  `yaml:"longitude"`
	Radius  float64  `yaml:"radius"`
	Address string   `yaml:"address,omitempty"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// Center returns the region's center coordinate.
func (r Region) Center() Coordinate {
	return Coordinate{Lat: r.Lat, Lng: r.Lng}
}

// RegionMatch is the result of matching a coordinate against the gazetteer.
type RegionMatch struct {
	Region   Region
	Distance float64 // meters from the region center
}

type gazetteerFile struct {
	Regions []Region `yaml:"regions"`
}

// Gazetteer holds the loaded set of named regions. Matching is a pure
// function of the loaded state; Reload replaces the whole set atomically.
type Gazetteer struct {
	path string

	mu      sync.RWMutex
	regions []Region
}

// LoadGazetteer reads regions from a YAML file. A missing file yields an
// empty gazetteer, not an error; individual invalid entries are skipped.
func LoadGazetteer(path string) (*Gazetteer, error) {
	g := &Gazetteer{path: path}
	if err := g.Reload(); err != nil {
		return nil, err
	}
	return g, nil
}

// Reload re-reads the gazetteer file. Idempotent; safe to call concurrently
// with Match.
func (g *Gazetteer) Reload() error {
	data, err := os.ReadFile(g.path)
	if os.IsNotExist(err) {
		slog.Debug("gazetteer file not found, using zero regions", "path", g.path)
		g.mu.Lock()
		g.regions = nil
		g.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not read gazetteer: %w", err)
	}

	var parsed gazetteerFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("could not parse gazetteer YAML: %w", err)
	}

	regions := make([]Region, 0, len(parsed.Regions))
	for i, r := range parsed.Regions {
		if err := validateRegion(r); err != nil {
			slog.Warn("skipping invalid gazetteer region", "index", i, "name", r.Name, "err", err)
			continue
		}
		if r.Radius == 0 {
			r.Radius = defaultRegionRadius
		}
		regions = append(regions, r)
	}

	g.mu.Lock()
	g.regions = regions
	g.mu.Unlock()

	slog.Info("gazetteer loaded", "path", g.path, "regions", len(regions))
	return nil
}

func validateRegion(r Region) error {
	if r.Name == "" {
		return fmt.Errorf("missing name")
	}
	if _, err := NewCoordinate(r.Lat, r.Lng); err != nil {
		return err
	}
	if r.Radius < 0 {
		return fmt.Errorf("negative radius %f", r.Radius)
	}
	return nil
}

// Regions returns a copy of the loaded region list.
func (g *Gazetteer) Regions() []Region {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Region, len(g.regions))
	copy(out, g.regions)
	return out
}

// Match returns the closest region whose radius contains the coordinate,
// or nil if no region matches. No I/O, deterministic.
func (g *Gazetteer) Match(coord Coordinate) *RegionMatch {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var best *RegionMatch
	for _, region := range g.regions {
		distance := Haversine(coord, region.Center())
		if distance > region.Radius {
			continue
		}
		if best == nil || distance < best.Distance {
			best = &RegionMatch{Region: region, Distance: distance}
		}
	}
	return best
}
