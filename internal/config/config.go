// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	PhotoHost  PhotoHostConfig
	Vision     VisionConfig
	Face       FaceConfig
	Location   LocationConfig
	Processing ProcessingConfig
	Web        WebConfig
}

type PhotoHostConfig struct {
	URL   string
	Token string
}

type VisionConfig struct {
	Provider  string // "ollama", "openai" or "gemini"
	Model     string // provider-specific model override
	OllamaURL string // defaults to http://localhost:11434
	OpenAIKey string
	GeminiKey string
}

type FaceConfig struct {
	ServiceURL     string  // defaults to http://localhost:8100
	ReferenceDir   string  // one subdirectory per person
	Tolerance      float64 // defaults to 0.6
	DetectionScale float64 // defaults to 0.5
	MinConfidence  float64 // defaults to 0.25
}

type LocationConfig struct {
	GazetteerPath string
	NominatimURL  string // empty targets the public OSM instance
	OverpassURL   string
	POIRadius     float64 // meters, defaults to 200
	PreferCustom  bool    // check the gazetteer before any network call
}

type ProcessingConfig struct {
	MarkerTag        string // defaults to "ai-processed"
	PreserveExisting bool
	CacheDir         string // downloads and face encoding cache
}

type WebConfig struct {
	Addr string // defaults to :8080
}

// envFloat reads an environment variable as a positive float. Returns the
// default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean. Unset or unparsable
// values return the default.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envString returns the env var or the default when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	stateDir := filepath.Join(home, ".photo-tagger")

	return &Config{
		PhotoHost: PhotoHostConfig{
			URL:   os.Getenv("PHOTOHOST_URL"),
			Token: os.Getenv("PHOTOHOST_TOKEN"),
		},
		Vision: VisionConfig{
			Provider:  envString("VISION_PROVIDER", "ollama"),
			Model:     os.Getenv("VISION_MODEL"),
			OllamaURL: os.Getenv("OLLAMA_URL"),
			OpenAIKey: os.Getenv("OPENAI_TOKEN"),
			GeminiKey: os.Getenv("GEMINI_API_KEY"),
		},
		Face: FaceConfig{
			ServiceURL:     os.Getenv("FACE_SERVICE_URL"),
			ReferenceDir:   envString("REFERENCE_FACES_DIR", filepath.Join(stateDir, "reference_faces")),
			Tolerance:      envFloat("FACE_TOLERANCE", 0.6),
			DetectionScale: envFloat("FACE_DETECTION_SCALE", 0.5),
			MinConfidence:  envFloat("FACE_MIN_CONFIDENCE", 0.25),
		},
		Location: LocationConfig{
			GazetteerPath: envString("GAZETTEER_PATH", filepath.Join(stateDir, "locations.yaml")),
			NominatimURL:  os.Getenv("NOMINATIM_URL"),
			OverpassURL:   os.Getenv("OVERPASS_URL"),
			POIRadius:     envFloat("POI_RADIUS", 200),
			PreferCustom:  envBool("PREFER_CUSTOM_LOCATIONS", true),
		},
		Processing: ProcessingConfig{
			MarkerTag:        envString("MARKER_TAG", "ai-processed"),
			PreserveExisting: envBool("PRESERVE_EXISTING", true),
			CacheDir:         envString("CACHE_DIR", filepath.Join(stateDir, "cache")),
		},
		Web: WebConfig{
			Addr: envString("WEB_ADDR", ":8080"),
		},
	}
}
