package face

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coder/hnsw"
	"github.com/disintegration/imaging"
)

const (
	// DefaultTolerance is the maximum euclidean distance between two
	// encodings still considered the same person.
	DefaultTolerance = 0.6

	// DefaultDetectionScale shrinks images before the detection pass.
	// Encodings are always computed at full resolution.
	DefaultDetectionScale = 0.5

	// DefaultMinConfidence rejects matches that barely clear tolerance.
	DefaultMinConfidence = 0.25

	hnswMaxNeighbors = 16
)

// Unknown is the name assigned to faces that match no reference person.
const Unknown = "unknown"

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Match is one identified face in a photo.
type Match struct {
	Name       string
	Confidence float64
	Box        Box
}

// RecognizerConfig tunes matching behavior. Zero values take defaults.
type RecognizerConfig struct {
	Tolerance      float64
	DetectionScale float64
	MinConfidence  float64
}

type referenceFace struct {
	name string
	vec  []float32
}

// Recognizer identifies people by nearest-neighbor search over reference
// face encodings. Build it once with LoadReferenceFaces, then call Identify
// per photo.
type Recognizer struct {
	service Service
	cache   *EncodingCache
	config  RecognizerConfig

	graph *hnsw.Graph[int]
	refs  []referenceFace
	names []string // person names in load order
}

// NewRecognizer creates a recognizer with no reference faces loaded.
func NewRecognizer(service Service, cache *EncodingCache, config RecognizerConfig) *Recognizer {
	if config.Tolerance == 0 {
		config.Tolerance = DefaultTolerance
	}
	if config.DetectionScale == 0 {
		config.DetectionScale = DefaultDetectionScale
	}
	if config.MinConfidence == 0 {
		config.MinConfidence = DefaultMinConfidence
	}
	return &Recognizer{service: service, cache: cache, config: config}
}

// LoadReferenceFaces reads reference portraits from refDir, one subdirectory
// per person, and builds the search index. Underscores in directory names
// become spaces ("Jane_Doe" -> "Jane Doe"). Encodings come from the cache
// when fingerprints match, otherwise from the face service.
func (r *Recognizer) LoadReferenceFaces(ctx context.Context, refDir string) error {
	entries, err := os.ReadDir(refDir)
	if err != nil {
		return fmt.Errorf("failed to read reference directory: %w", err)
	}

	r.refs = nil
	r.names = nil

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := strings.ReplaceAll(entry.Name(), "_", " ")
		personDir := filepath.Join(refDir, entry.Name())

		files, err := listImageFiles(personDir)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			slog.Warn("no reference images for person", "person", name, "dir", personDir)
			continue
		}

		encodings, err := r.cache.Encodings(personDir, files, func(path string) ([][]float32, error) {
			return r.encodeReferenceImage(ctx, path)
		})
		if err != nil {
			return fmt.Errorf("failed to load reference faces for %s: %w", name, err)
		}

		count := 0
		for _, file := range files {
			for _, vec := range encodings[file] {
				r.refs = append(r.refs, referenceFace{name: name, vec: vec})
				count++
			}
		}
		if count == 0 {
			slog.Warn("no faces found in reference images", "person", name)
			continue
		}
		r.names = append(r.names, name)
		slog.Debug("loaded reference faces", "person", name, "images", len(files), "faces", count)
	}

	r.buildIndex()
	slog.Info("reference faces loaded", "people", len(r.names), "faces", len(r.refs))
	return nil
}

func (r *Recognizer) buildIndex() {
	if len(r.refs) == 0 {
		r.graph = nil
		return
	}
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	for i, ref := range r.refs {
		g.Add(hnsw.MakeNode(i, ref.vec))
	}
	r.graph = g
}

// encodeReferenceImage encodes a portrait at full resolution. The service
// runs its own detection since reference images are small and few.
func (r *Recognizer) encodeReferenceImage(ctx context.Context, path string) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return r.service.Encodings(ctx, data, nil)
}

// MinConfidence returns the configured floor for PersonNames filtering.
func (r *Recognizer) MinConfidence() float64 {
	return r.config.MinConfidence
}

// PeopleCount returns the number of people with at least one reference face.
func (r *Recognizer) PeopleCount() int {
	return len(r.names)
}

// People returns the loaded person names in load order.
func (r *Recognizer) People() []string {
	return append([]string(nil), r.names...)
}

// Identify classifies every face in the photo at path, one Match per
// detected face ordered by position (top to bottom, then left to right).
// Faces beyond tolerance come back as Unknown with confidence 0. Detection
// runs on a downscaled copy for speed; encodings are computed at full
// resolution using the scaled-back boxes. With no reference faces loaded,
// the photo is not even sent to the face service.
func (r *Recognizer) Identify(ctx context.Context, path string) ([]Match, error) {
	if r.graph == nil {
		return nil, nil
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	fullWidth := img.Bounds().Dx()
	scale := r.config.DetectionScale
	small := imaging.Resize(img, int(float64(fullWidth)*scale), 0, imaging.Lanczos)

	smallData, err := encodeJPEG(small)
	if err != nil {
		return nil, err
	}
	boxes, err := r.service.Locations(ctx, smallData)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(boxes) == 0 {
		return nil, nil
	}

	// Scale boxes back to full resolution for the encoding pass.
	fullBoxes := make([]Box, len(boxes))
	for i, b := range boxes {
		fullBoxes[i] = Box{
			Top:    int(float64(b.Top) / scale),
			Right:  int(float64(b.Right) / scale),
			Bottom: int(float64(b.Bottom) / scale),
			Left:   int(float64(b.Left) / scale),
		}
	}
	sort.SliceStable(fullBoxes, func(i, j int) bool {
		if fullBoxes[i].Top != fullBoxes[j].Top {
			return fullBoxes[i].Top < fullBoxes[j].Top
		}
		return fullBoxes[i].Left < fullBoxes[j].Left
	})

	fullData, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}
	encodings, err := r.service.Encodings(ctx, fullData, fullBoxes)
	if err != nil {
		return nil, fmt.Errorf("face encoding failed: %w", err)
	}

	matches := make([]Match, len(encodings))
	for i, vec := range encodings {
		name, confidence := r.match(vec)
		matches[i] = Match{Name: name, Confidence: confidence, Box: fullBoxes[i]}
	}
	return matches, nil
}

// match returns the closest known person within tolerance, or Unknown with
// confidence 0.
func (r *Recognizer) match(vec []float32) (string, float64) {
	neighbors := r.graph.Search(vec, 1)
	if len(neighbors) == 0 {
		return Unknown, 0
	}

	// Recompute the exact distance from the node's own vector; the graph
	// search is approximate.
	distance := euclideanDistance(vec, neighbors[0].Value)
	if distance > r.config.Tolerance {
		return Unknown, 0
	}
	return r.refs[neighbors[0].Key].name, 1 - distance/r.config.Tolerance
}

// PersonNames extracts the known person names from matches that meet the
// confidence floor, de-duplicated, in detection order.
func PersonNames(matches []Match, minConfidence float64) []string {
	seen := make(map[string]bool, len(matches))
	var names []string
	for _, m := range matches {
		if m.Name == Unknown || m.Confidence < minConfidence || seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		names = append(names, m.Name)
	}
	return names
}

func euclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.MaxFloat64
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
