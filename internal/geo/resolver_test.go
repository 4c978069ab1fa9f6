package geo

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type fakeGeocoder struct {
	addr  *Address
	err   error
	calls int
}

func (f *fakeGeocoder) Reverse(_ context.Context, _ Coordinate) (*Address, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.addr, nil
}

type fakePOIFinder struct {
	pois   []POI
	err    error
	calls  int
	radius float64
}

func (f *fakePOIFinder) Nearby(_ context.Context, _ Coordinate, radiusM float64) ([]POI, error) {
	f.calls++
	f.radius = radiusM
	if f.err != nil {
		return nil, f.err
	}
	return f.pois, nil
}

func newTestGazetteer(t *testing.T, regions string) *Gazetteer {
	t.Helper()
	g, err := LoadGazetteer(writeGazetteer(t, regions))
	if err != nil {
		t.Fatalf("could not load gazetteer: %v", err)
	}
	return g
}

func TestResolve_AdministrativeAddress(t *testing.T) {
	geocoder := &fakeGeocoder{addr: &Address{
		City:    "Louisville",
		County:  "Jefferson County",
		State:   "Kentucky",
		Country: "United States",
	}}
	r := NewResolver(nil, geocoder, &fakePOIFinder{}, nil, io.Discard)

	res := r.Resolve(context.Background(), Coordinate{Lat: 38.2527, Lng: -85.7585}, ResolveOptions{})
	want := "Louisville, Jefferson, Kentucky, United States"
	if res.Display != want {
		t.Errorf("Display = %q, want %q", res.Display, want)
	}
	if res.Custom {
		t.Error("geocoded result should not be marked custom")
	}
}

func TestResolve_VenueFromGeocoder(t *testing.T) {
	geocoder := &fakeGeocoder{addr: &Address{
		Venue:   "Churchill Downs",
		City:    "Louisville",
		State:   "Kentucky",
		Country: "United States",
	}}
	pois := &fakePOIFinder{pois: []POI{{Name: "Should Not Be Used"}}}
	r := NewResolver(nil, geocoder, pois, nil, io.Discard)

	res := r.Resolve(context.Background(), Coordinate{Lat: 38.2049, Lng: -85.7708}, ResolveOptions{})
	want := "Churchill Downs, Louisville, Kentucky, United States"
	if res.Display != want {
		t.Errorf("Display = %q, want %q", res.Display, want)
	}
	if pois.calls != 0 {
		t.Error("POI search should be skipped when the geocoder names a venue")
	}
}

func TestResolve_VenueFromPOIFallback(t *testing.T) {
	geocoder := &fakeGeocoder{addr: &Address{
		City:    "Prague",
		Country: "Czechia",
	}}
	pois := &fakePOIFinder{pois: []POI{
		{Name: "Cafe Slavia", Category: "amenity", Distance: 12},
		{Name: "National Theatre", Category: "tourism", Distance: 80},
	}}
	r := NewResolver(nil, geocoder, pois, nil, io.Discard)

	res := r.Resolve(context.Background(), Coordinate{Lat: 50.0811, Lng: 14.4137}, ResolveOptions{})
	want := "Cafe Slavia, Prague, Czechia"
	if res.Display != want {
		t.Errorf("Display = %q, want %q", res.Display, want)
	}
}

func TestResolve_ConfiguredPOIRadius(t *testing.T) {
	geocoder := &fakeGeocoder{addr: &Address{City: "Prague", Country: "Czechia"}}
	pois := &fakePOIFinder{pois: []POI{{Name: "Cafe Slavia", Distance: 12}}}
	r := NewResolver(nil, geocoder, pois, nil, io.Discard)
	r.SetPOIRadius(350)

	r.Resolve(context.Background(), Coordinate{Lat: 50.0811, Lng: 14.4137}, ResolveOptions{})
	if pois.radius != 350 {
		t.Errorf("POI search radius = %v, want 350", pois.radius)
	}
}

func TestResolve_DefaultPOIRadius(t *testing.T) {
	geocoder := &fakeGeocoder{addr: &Address{City: "Prague", Country: "Czechia"}}
	pois := &fakePOIFinder{pois: []POI{{Name: "Cafe Slavia", Distance: 12}}}
	r := NewResolver(nil, geocoder, pois, nil, io.Discard)
	r.SetPOIRadius(0) // non-positive values are ignored

	r.Resolve(context.Background(), Coordinate{Lat: 50.0811, Lng: 14.4137}, ResolveOptions{})
	if pois.radius != defaultPOIRadius {
		t.Errorf("POI search radius = %v, want %v", pois.radius, defaultPOIRadius)
	}
}

func TestResolve_InteractiveVenueSelection(t *testing.T) {
	geocoder := &fakeGeocoder{addr: &Address{City: "Prague", Country: "Czechia"}}
	pois := &fakePOIFinder{pois: []POI{
		{Name: "Cafe Slavia", Category: "amenity", Distance: 12},
		{Name: "National Theatre", Category: "tourism", Distance: 80},
	}}
	var out strings.Builder
	r := NewResolver(nil, geocoder, pois, strings.NewReader("2\n"), &out)

	res := r.Resolve(context.Background(), Coordinate{Lat: 50.0811, Lng: 14.4137}, ResolveOptions{Interactive: true})
	want := "National Theatre, Prague, Czechia"
	if res.Display != want {
		t.Errorf("Display = %q, want %q", res.Display, want)
	}
	if !strings.Contains(out.String(), "1. Cafe Slavia") {
		t.Errorf("prompt missing ranked list:\n%s", out.String())
	}
}

func TestResolve_InteractiveConsumesOneLinePerPrompt(t *testing.T) {
	geocoder := &fakeGeocoder{addr: &Address{City: "Prague", Country: "Czechia"}}
	pois := &fakePOIFinder{pois: []POI{
		{Name: "Cafe Slavia", Distance: 12},
		{Name: "National Theatre", Distance: 80},
	}}
	r := NewResolver(nil, geocoder, pois, strings.NewReader("1\n2\n"), io.Discard)

	first := r.Resolve(context.Background(), Coordinate{Lat: 50.0811, Lng: 14.4137}, ResolveOptions{Interactive: true})
	if !strings.HasPrefix(first.Display, "Cafe Slavia") {
		t.Errorf("first prompt: Display = %q, want Cafe Slavia", first.Display)
	}

	// The second prompt must read the second line, not hit EOF because
	// the first prompt over-buffered the input.
	second := r.Resolve(context.Background(), Coordinate{Lat: 50.0870, Lng: 14.4208}, ResolveOptions{Interactive: true})
	if !strings.HasPrefix(second.Display, "National Theatre") {
		t.Errorf("second prompt: Display = %q, want National Theatre", second.Display)
	}
}

func TestResolve_InteractiveDefaultsToClosest(t *testing.T) {
	geocoder := &fakeGeocoder{addr: &Address{City: "Prague", Country: "Czechia"}}
	pois := &fakePOIFinder{pois: []POI{
		{Name: "Cafe Slavia", Distance: 12},
		{Name: "National Theatre", Distance: 80},
	}}
	r := NewResolver(nil, geocoder, pois, strings.NewReader("\n"), io.Discard)

	res := r.Resolve(context.Background(), Coordinate{Lat: 50.0811, Lng: 14.4137}, ResolveOptions{Interactive: true})
	if !strings.HasPrefix(res.Display, "Cafe Slavia") {
		t.Errorf("empty input should pick the closest venue, got %q", res.Display)
	}
}

func TestResolve_PreferCustomShortCircuits(t *testing.T) {
	g := newTestGazetteer(t, `
regions:
  - name: Grandma's Garden
    latitude: 38.2527
    longitude: -85.7585
    radius: 100
    aliases: [family, garden]
`)
	geocoder := &fakeGeocoder{addr: &Address{City: "Louisville"}}
	r := NewResolver(g, geocoder, &fakePOIFinder{}, nil, io.Discard)

	res := r.Resolve(context.Background(), Coordinate{Lat: 38.2527, Lng: -85.7585}, ResolveOptions{PreferCustom: true})
	if res.Display != "Grandma's Garden" {
		t.Errorf("Display = %q, want region name", res.Display)
	}
	if !res.Custom {
		t.Error("gazetteer match should be marked custom")
	}
	if len(res.Aliases) != 2 {
		t.Errorf("Aliases = %v, want 2 entries", res.Aliases)
	}
	if geocoder.calls != 0 {
		t.Error("geocoder should not be called when a region matches with PreferCustom")
	}
}

func TestResolve_GeocoderPreferredWithoutPreferCustom(t *testing.T) {
	g := newTestGazetteer(t, `
regions:
  - name: Grandma's Garden
    latitude: 38.2527
    longitude: -85.7585
    radius: 100
`)
	geocoder := &fakeGeocoder{addr: &Address{City: "Louisville", Country: "United States"}}
	r := NewResolver(g, geocoder, &fakePOIFinder{}, nil, io.Discard)

	res := r.Resolve(context.Background(), Coordinate{Lat: 38.2527, Lng: -85.7585}, ResolveOptions{})
	if res.Display != "Louisville, United States" {
		t.Errorf("Display = %q, want geocoded address", res.Display)
	}
}

func TestResolve_DegradesToGazetteerOnNetworkError(t *testing.T) {
	g := newTestGazetteer(t, `
regions:
  - name: Home
    latitude: 38.2527
    longitude: -85.7585
    radius: 100
`)
	geocoder := &fakeGeocoder{err: errors.New("connection refused")}
	r := NewResolver(g, geocoder, &fakePOIFinder{}, nil, io.Discard)

	res := r.Resolve(context.Background(), Coordinate{Lat: 38.2527, Lng: -85.7585}, ResolveOptions{})
	if res.Display != "Home" {
		t.Errorf("Display = %q, want gazetteer fallback", res.Display)
	}
}

func TestResolve_EmptyWhenNothingResolves(t *testing.T) {
	geocoder := &fakeGeocoder{err: errors.New("timeout")}
	r := NewResolver(nil, geocoder, &fakePOIFinder{}, nil, io.Discard)

	res := r.Resolve(context.Background(), Coordinate{Lat: 0.5, Lng: 0.5}, ResolveOptions{})
	if res.Display != "" {
		t.Errorf("Display = %q, want empty", res.Display)
	}
}

func TestResolve_CachesByRoundedCoordinate(t *testing.T) {
	geocoder := &fakeGeocoder{addr: &Address{City: "Louisville"}}
	r := NewResolver(nil, geocoder, &fakePOIFinder{}, nil, io.Discard)

	// Identical to 6 decimal places.
	a := Coordinate{Lat: 38.25270001, Lng: -85.75850001}
	b := Coordinate{Lat: 38.25270049, Lng: -85.75850049}
	r.Resolve(context.Background(), a, ResolveOptions{})
	r.Resolve(context.Background(), b, ResolveOptions{})

	if geocoder.calls != 1 {
		t.Errorf("geocoder calls = %d, want 1 (cached)", geocoder.calls)
	}
}

func TestResolve_CacheSeparatesInteractiveFlag(t *testing.T) {
	geocoder := &fakeGeocoder{addr: &Address{City: "Louisville"}}
	r := NewResolver(nil, geocoder, &fakePOIFinder{}, strings.NewReader("\n"), io.Discard)

	c := Coordinate{Lat: 38.2527, Lng: -85.7585}
	r.Resolve(context.Background(), c, ResolveOptions{})
	r.Resolve(context.Background(), c, ResolveOptions{Interactive: true})

	if geocoder.calls != 2 {
		t.Errorf("geocoder calls = %d, want 2 (separate cache keys)", geocoder.calls)
	}
}

func TestResolve_CacheExpires(t *testing.T) {
	geocoder := &fakeGeocoder{addr: &Address{City: "Louisville"}}
	r := NewResolver(nil, geocoder, &fakePOIFinder{}, nil, io.Discard)

	current := time.Now()
	r.now = func() time.Time { return current }

	c := Coordinate{Lat: 38.2527, Lng: -85.7585}
	r.Resolve(context.Background(), c, ResolveOptions{})
	current = current.Add(resolutionTTL + time.Minute)
	r.Resolve(context.Background(), c, ResolveOptions{})

	if geocoder.calls != 2 {
		t.Errorf("geocoder calls = %d, want 2 after TTL expiry", geocoder.calls)
	}
}

func TestAssembleDisplay_DeduplicatesTokens(t *testing.T) {
	addr := &Address{
		City:    "Luxembourg",
		State:   "Luxembourg",
		Country: "Luxembourg",
	}
	if got := assembleDisplay("", addr); got != "Luxembourg" {
		t.Errorf("assembleDisplay = %q, want single token", got)
	}
}

func TestAssembleDisplay_StripsCountySuffix(t *testing.T) {
	addr := &Address{County: "Jefferson County", State: "Kentucky"}
	if got := assembleDisplay("", addr); got != "Jefferson, Kentucky" {
		t.Errorf("assembleDisplay = %q", got)
	}
}
