package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultNominatimURL     = "https://nominatim.openstreetmap.org"
	defaultNominatimTimeout = 10 * time.Second
	nominatimUserAgent      = "photo-tagger/1.0"
)

// Address is the administrative breakdown returned by reverse geocoding.
// Any field may be empty.
type Address struct {
	Venue   string // building, amenity or place name
	City    string // city, town, village, hamlet or municipality
	County  string
	State   string
	Country string
}

// NominatimClient reverse geocodes coordinates against a Nominatim instance.
type NominatimClient struct {
	baseURL string
	client  *http.Client
}

// NewNominatimClient creates a client. An empty baseURL targets the public
// OpenStreetMap instance.
func NewNominatimClient(baseURL string) *NominatimClient {
	if baseURL == "" {
		baseURL = defaultNominatimURL
	}
	return &NominatimClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultNominatimTimeout},
	}
}

// nominatimResponse mirrors the jsonv2 reverse response fields we consume.
type nominatimResponse struct {
	Name    string `json:"name"`
	Address struct {
		Building     string `json:"building"`
		Amenity      string `json:"amenity"`
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Hamlet       string `json:"hamlet"`
		Municipality string `json:"municipality"`
		County       string `json:"county"`
		State        string `json:"state"`
		Region       string `json:"region"`
		Country      string `json:"country"`
	} `json:"address"`
}

// Reverse resolves a coordinate to an administrative address.
func (c *NominatimClient) Reverse(ctx context.Context, coord Coordinate) (*Address, error) {
	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", fmt.Sprintf("%f", coord.Lat))
	query.Set("lon", fmt.Sprintf("%f", coord.Lng))
	query.Set("accept-language", "en")

	reqURL := c.baseURL + "/reverse?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("User-Agent", nominatimUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("reverse geocode failed with status %d: %s", resp.StatusCode, string(body))
	}

	var raw nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("could not decode reverse geocode response: %w", err)
	}

	addr := &Address{
		Venue:   firstNonEmpty(raw.Name, raw.Address.Building, raw.Address.Amenity),
		City:    firstNonEmpty(raw.Address.City, raw.Address.Town, raw.Address.Village, raw.Address.Hamlet, raw.Address.Municipality),
		County:  raw.Address.County,
		State:   firstNonEmpty(raw.Address.State, raw.Address.Region),
		Country: raw.Address.Country,
	}
	return addr, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
