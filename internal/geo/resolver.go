package geo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// defaultPOIRadius bounds the venue search around a photo's coordinates.
	defaultPOIRadius = 200.0 // meters

	// resolutionTTL keeps resolved strings for photos taken at the same
	// spot within one batch from hitting the network repeatedly.
	resolutionTTL = time.Hour

	maxVenueChoices = 10
)

// ReverseGeocoder resolves a coordinate to an administrative address.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, coord Coordinate) (*Address, error)
}

// POIFinder lists named venues near a coordinate, closest first.
type POIFinder interface {
	Nearby(ctx context.Context, coord Coordinate, radiusM float64) ([]POI, error)
}

// Resolution is the outcome of resolving a coordinate.
type Resolution struct {
	Display string   // "Venue, City, State, Country" or region name
	Aliases []string // alias tags from a matched gazetteer region
	Custom  bool     // true when a gazetteer region matched
}

// ResolveOptions control a single resolve call.
type ResolveOptions struct {
	PreferCustom bool // try the gazetteer before any network call
	Interactive  bool // prompt when multiple venues are found
}

type cacheEntry struct {
	resolution Resolution
	expires    time.Time
}

// Resolver composes the gazetteer, reverse geocoder and POI search into a
// single place-name lookup with a TTL result cache. Safe for concurrent use.
type Resolver struct {
	gazetteer *Gazetteer
	geocoder  ReverseGeocoder
	pois      POIFinder
	radius    float64 // meters, venue search bound

	// prompt I/O for interactive venue disambiguation. One buffered
	// reader for the resolver's lifetime, so a line read for one prompt
	// does not swallow input meant for the next.
	in  *bufio.Reader
	out io.Writer

	mu    sync.Mutex
	cache map[string]cacheEntry
	now   func() time.Time
}

// NewResolver wires a resolver. The geocoder and POI finder may be nil, in
// which case only the gazetteer is consulted.
func NewResolver(gazetteer *Gazetteer, geocoder ReverseGeocoder, pois POIFinder, in io.Reader, out io.Writer) *Resolver {
	r := &Resolver{
		gazetteer: gazetteer,
		geocoder:  geocoder,
		pois:      pois,
		radius:    defaultPOIRadius,
		out:       out,
		cache:     make(map[string]cacheEntry),
		now:       time.Now,
	}
	if in != nil {
		r.in = bufio.NewReader(in)
	}
	return r
}

// SetPOIRadius overrides the venue search radius. Values <= 0 keep the
// default.
func (r *Resolver) SetPOIRadius(meters float64) {
	if meters > 0 {
		r.radius = meters
	}
}

// cacheKey rounds coordinates to 6 decimal places (about 10 cm) so photos
// taken at the same spot share one entry. The interactive flag is part of
// the key: a prompted choice must not leak into automated runs.
func cacheKey(coord Coordinate, interactive bool) string {
	return fmt.Sprintf("%.6f,%.6f,%t", coord.Lat, coord.Lng, interactive)
}

// Resolve turns a coordinate into a display string plus alias tags.
// Network failures degrade to the gazetteer-only result or an empty
// resolution; they are never returned as errors.
func (r *Resolver) Resolve(ctx context.Context, coord Coordinate, opts ResolveOptions) Resolution {
	key := cacheKey(coord, opts.Interactive)

	r.mu.Lock()
	if entry, ok := r.cache[key]; ok && r.now().Before(entry.expires) {
		r.mu.Unlock()
		return entry.resolution
	}
	r.mu.Unlock()

	resolution := r.resolve(ctx, coord, opts)

	r.mu.Lock()
	r.cache[key] = cacheEntry{resolution: resolution, expires: r.now().Add(resolutionTTL)}
	r.mu.Unlock()

	return resolution
}

func (r *Resolver) resolve(ctx context.Context, coord Coordinate, opts ResolveOptions) Resolution {
	var regionMatch *RegionMatch
	if r.gazetteer != nil {
		regionMatch = r.gazetteer.Match(coord)
	}

	if opts.PreferCustom && regionMatch != nil {
		slog.Debug("resolved to gazetteer region",
			"coord", coord.String(), "region", regionMatch.Region.Name, "distance_m", regionMatch.Distance)
		return Resolution{
			Display: regionMatch.Region.Name,
			Aliases: append([]string(nil), regionMatch.Region.Aliases...),
			Custom:  true,
		}
	}

	geocoded := r.geocode(ctx, coord, opts.Interactive)
	if geocoded != "" {
		return Resolution{Display: geocoded}
	}

	// Geocoding failed or returned nothing; fall back to the gazetteer
	// match even when PreferCustom was off.
	if regionMatch != nil {
		return Resolution{
			Display: regionMatch.Region.Name,
			Aliases: append([]string(nil), regionMatch.Region.Aliases...),
			Custom:  true,
		}
	}
	return Resolution{}
}

// geocode builds the display string from reverse geocoding plus the POI
// search. Returns "" when nothing could be resolved.
func (r *Resolver) geocode(ctx context.Context, coord Coordinate, interactive bool) string {
	if r.geocoder == nil {
		return ""
	}

	addr, err := r.geocoder.Reverse(ctx, coord)
	if err != nil {
		slog.Debug("reverse geocoding failed", "coord", coord.String(), "err", err)
		return ""
	}

	venue := addr.Venue
	if venue == "" && r.pois != nil {
		venue = r.pickVenue(ctx, coord, interactive)
	}

	return assembleDisplay(venue, addr)
}

// pickVenue searches nearby POIs and selects one. Non-interactive runs take
// the closest; interactive runs present a ranked list and accept a 1-based
// choice, defaulting to the closest on empty or invalid input.
func (r *Resolver) pickVenue(ctx context.Context, coord Coordinate, interactive bool) string {
	pois, err := r.pois.Nearby(ctx, coord, r.radius)
	if err != nil {
		slog.Debug("poi search failed", "coord", coord.String(), "err", err)
		return ""
	}
	if len(pois) == 0 {
		return ""
	}
	if len(pois) == 1 || !interactive {
		return pois[0].Name
	}

	shown := pois
	if len(shown) > maxVenueChoices {
		shown = shown[:maxVenueChoices]
	}
	fmt.Fprintf(r.out, "Multiple venues found at %s:\n", coord.String())
	for i, poi := range shown {
		fmt.Fprintf(r.out, "  %d. %s (%s, %.0fm)\n", i+1, poi.Name, poi.Category, poi.Distance)
	}
	fmt.Fprintf(r.out, "Select venue (1-%d, default=1): ", len(shown))

	choice := r.readChoice()
	if choice >= 1 && choice <= len(shown) {
		return shown[choice-1].Name
	}
	return pois[0].Name
}

func (r *Resolver) readChoice() int {
	if r.in == nil {
		return 0
	}
	line, err := r.in.ReadString('\n')
	if err != nil && line == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0
	}
	return n
}

// assembleDisplay joins the components most-specific-first, suppressing
// duplicates and the redundant " County" suffix.
func assembleDisplay(venue string, addr *Address) string {
	var parts []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		for _, existing := range parts {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		parts = append(parts, s)
	}

	add(venue)
	add(addr.City)
	add(strings.TrimSuffix(addr.County, " County"))
	add(addr.State)
	add(addr.Country)

	return strings.Join(parts, ", ")
}
