package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	defaultOverpassURL     = "https://overpass-api.de/api/interpreter"
	defaultOverpassTimeout = 15 * time.Second
)

// POI is a named venue near a coordinate, produced by the Overpass search.
type POI struct {
	Name     string
	Category string // amenity/leisure/tourism/shop value, e.g. "restaurant"
	Distance float64
}

// OverpassClient searches an Overpass index for named venues near a point.
type OverpassClient struct {
	endpoint string
	client   *http.Client
}

func NewOverpassClient(endpoint string) *OverpassClient {
	if endpoint == "" {
		endpoint = defaultOverpassURL
	}
	return &OverpassClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultOverpassTimeout},
	}
}

type overpassResponse struct {
	Elements []struct {
		Lat    float64           `json:"lat"`
		Lon    float64           `json:"lon"`
		Center *struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"center"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

// poiTagKeys are the OSM keys that mark an element as a venue worth naming.
var poiTagKeys = []string{"amenity", "leisure", "tourism", "shop"}

// Nearby returns named venues within radiusM meters, closest first,
// deduplicated by name.
func (c *OverpassClient) Nearby(ctx context.Context, coord Coordinate, radiusM float64) ([]POI, error) {
	var b strings.Builder
	b.WriteString("[out:json][timeout:10];(")
	for _, key := range poiTagKeys {
		fmt.Fprintf(&b, "nwr[%q][\"name\"](around:%.0f,%f,%f);", key, radiusM, coord.Lat, coord.Lng)
	}
	b.WriteString(");out center;")

	form := url.Values{"data": {b.String()}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poi search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("poi search failed with status %d: %s", resp.StatusCode, string(body))
	}

	var raw overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("could not decode poi response: %w", err)
	}

	var pois []POI
	for _, el := range raw.Elements {
		name := strings.TrimSpace(el.Tags["name"])
		if name == "" {
			continue
		}
		lat, lng := el.Lat, el.Lon
		if el.Center != nil {
			lat, lng = el.Center.Lat, el.Center.Lon
		}
		distance := Haversine(coord, Coordinate{Lat: lat, Lng: lng})
		if distance > radiusM {
			continue
		}
		pois = append(pois, POI{
			Name:     name,
			Category: poiCategory(el.Tags),
			Distance: distance,
		})
	}

	// Sort before deduplicating so a duplicated name keeps its closest
	// occurrence, not whichever the index returned first.
	sort.Slice(pois, func(i, j int) bool { return pois[i].Distance < pois[j].Distance })
	seen := make(map[string]bool)
	deduped := pois[:0]
	for _, poi := range pois {
		if seen[poi.Name] {
			continue
		}
		seen[poi.Name] = true
		deduped = append(deduped, poi)
	}
	return deduped, nil
}

func poiCategory(tags map[string]string) string {
	for _, key := range poiTagKeys {
		if v := tags[key]; v != "" {
			return v
		}
	}
	return ""
}
