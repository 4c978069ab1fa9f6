package face

import (
	"context"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// fakeService returns canned detection and encoding results and records
// whether it was called at all.
type fakeService struct {
	boxes     []Box
	encodings [][]float32
	refVector []float32 // returned for reference encoding calls (boxes == nil)
	calls     int
}

func (f *fakeService) Locations(_ context.Context, _ []byte) ([]Box, error) {
	f.calls++
	return f.boxes, nil
}

func (f *fakeService) Encodings(_ context.Context, _ []byte, boxes []Box) ([][]float32, error) {
	f.calls++
	if boxes == nil {
		return [][]float32{f.refVector}, nil
	}
	return f.encodings, nil
}

// writeTestPhoto writes a small solid-color JPEG.
func writeTestPhoto(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := range 48 {
		for x := range 64 {
			img.Set(x, y, color.RGBA{R: 120, G: 140, B: 160, A: 255})
		}
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("could not write test photo: %v", err)
	}
}

// newTestRecognizer loads a single reference person "Jane Doe" whose only
// reference encoding is refVector.
func newTestRecognizer(t *testing.T, service *fakeService, config RecognizerConfig) *Recognizer {
	t.Helper()
	refDir := t.TempDir()
	personDir := filepath.Join(refDir, "Jane_Doe")
	if err := os.MkdirAll(personDir, 0o755); err != nil {
		t.Fatalf("could not create person dir: %v", err)
	}
	writeTestPhoto(t, filepath.Join(personDir, "portrait.jpg"))

	r := NewRecognizer(service, newTestCache(t), config)
	if err := r.LoadReferenceFaces(context.Background(), refDir); err != nil {
		t.Fatalf("could not load reference faces: %v", err)
	}
	return r
}

func TestIdentify_NoReferences_SkipsService(t *testing.T) {
	service := &fakeService{}
	r := NewRecognizer(service, newTestCache(t), RecognizerConfig{})

	photo := filepath.Join(t.TempDir(), "photo.jpg")
	writeTestPhoto(t, photo)

	matches, err := r.Identify(context.Background(), photo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matches != nil {
		t.Errorf("expected nil matches, got %v", matches)
	}
	if service.calls != 0 {
		t.Errorf("service called %d times with no references loaded", service.calls)
	}
}

func TestIdentify_ConfidenceFromDistance(t *testing.T) {
	// Reference at the origin of one axis; probe at distance 0.58,
	// just inside the 0.6 tolerance.
	service := &fakeService{
		refVector: []float32{1, 0, 0},
		boxes:     []Box{{Top: 10, Right: 30, Bottom: 30, Left: 10}},
		encodings: [][]float32{{1.58, 0, 0}},
	}
	r := newTestRecognizer(t, service, RecognizerConfig{Tolerance: 0.6})

	photo := filepath.Join(t.TempDir(), "photo.jpg")
	writeTestPhoto(t, photo)

	matches, err := r.Identify(context.Background(), photo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Name != "Jane Doe" {
		t.Errorf("Name = %q, want Jane Doe", matches[0].Name)
	}
	want := 1 - 0.58/0.6
	if math.Abs(matches[0].Confidence-want) > 0.001 {
		t.Errorf("Confidence = %f, want %f", matches[0].Confidence, want)
	}
}

func TestIdentify_BeyondToleranceIsUnknown(t *testing.T) {
	service := &fakeService{
		refVector: []float32{1, 0, 0},
		boxes:     []Box{{Top: 10, Right: 30, Bottom: 30, Left: 10}},
		encodings: [][]float32{{1.61, 0, 0}},
	}
	r := newTestRecognizer(t, service, RecognizerConfig{Tolerance: 0.6})

	photo := filepath.Join(t.TempDir(), "photo.jpg")
	writeTestPhoto(t, photo)

	matches, err := r.Identify(context.Background(), photo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Name != Unknown {
		t.Errorf("Name = %q, want %q", matches[0].Name, Unknown)
	}
	if matches[0].Confidence != 0 {
		t.Errorf("Confidence = %f, want 0", matches[0].Confidence)
	}
}

func TestIdentify_OrderedByPosition(t *testing.T) {
	// Detection returns boxes out of reading order.
	service := &fakeService{
		refVector: []float32{1, 0, 0},
		boxes: []Box{
			{Top: 20, Left: 5, Right: 10, Bottom: 25},
			{Top: 5, Left: 20, Right: 25, Bottom: 10},
			{Top: 5, Left: 2, Right: 7, Bottom: 10},
		},
		encodings: [][]float32{{1, 0, 0}, {1, 0, 0}, {1, 0, 0}},
	}
	r := newTestRecognizer(t, service, RecognizerConfig{DetectionScale: 1})

	photo := filepath.Join(t.TempDir(), "photo.jpg")
	writeTestPhoto(t, photo)

	matches, err := r.Identify(context.Background(), photo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	if matches[0].Box.Top != 5 || matches[0].Box.Left != 2 {
		t.Errorf("first match box = %+v, want top-left first", matches[0].Box)
	}
	if matches[1].Box.Top != 5 || matches[1].Box.Left != 20 {
		t.Errorf("second match box = %+v", matches[1].Box)
	}
	if matches[2].Box.Top != 20 {
		t.Errorf("third match box = %+v, want bottom row last", matches[2].Box)
	}
}

func TestIdentify_ScalesBoxesToFullResolution(t *testing.T) {
	service := &fakeService{
		refVector: []float32{1, 0, 0},
		boxes:     []Box{{Top: 10, Right: 20, Bottom: 20, Left: 5}},
		encodings: [][]float32{{1, 0, 0}},
	}
	r := newTestRecognizer(t, service, RecognizerConfig{DetectionScale: 0.5})

	photo := filepath.Join(t.TempDir(), "photo.jpg")
	writeTestPhoto(t, photo)

	matches, err := r.Identify(context.Background(), photo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Box{Top: 20, Right: 40, Bottom: 40, Left: 10}
	if matches[0].Box != want {
		t.Errorf("Box = %+v, want %+v (scaled back by 1/0.5)", matches[0].Box, want)
	}
}

func TestLoadReferenceFaces_PersonNameFromDirectory(t *testing.T) {
	service := &fakeService{refVector: []float32{1, 0, 0}}
	r := newTestRecognizer(t, service, RecognizerConfig{})

	people := r.People()
	if len(people) != 1 || people[0] != "Jane Doe" {
		t.Errorf("People() = %v, want [Jane Doe]", people)
	}
}

func TestPersonNames_FiltersAndDeduplicates(t *testing.T) {
	matches := []Match{
		{Name: "Jane Doe", Confidence: 0.9},
		{Name: Unknown, Confidence: 0},
		{Name: "John Roe", Confidence: 0.1},
		{Name: "Jane Doe", Confidence: 0.8},
		{Name: "Ann Poe", Confidence: 0.5},
	}

	names := PersonNames(matches, 0.25)
	want := []string{"Jane Doe", "Ann Poe"}
	if len(names) != len(want) {
		t.Fatalf("PersonNames = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("PersonNames[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestEuclideanDistance(t *testing.T) {
	a := []float32{0, 3, 0}
	b := []float32{4, 0, 0}
	if d := euclideanDistance(a, b); math.Abs(d-5) > 1e-9 {
		t.Errorf("distance = %f, want 5", d)
	}
}
