package pipeline

import (
	"fmt"
	"os"

	"github.com/bep/imagemeta"

	"github.com/mkralik/photo-tagger/internal/geo"
)

var gpsTags = map[string]bool{
	"GPSLatitude":     true,
	"GPSLatitudeRef":  true,
	"GPSLongitude":    true,
	"GPSLongitudeRef": true,
}

// extractGPS reads GPS coordinates from the image's EXIF data. Returns
// false when the file carries no usable GPS tags. Only consulted when the
// host did not report coordinates, since hosts may strip GPS from served
// copies.
func extractGPS(path string) (geo.Coordinate, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return geo.Coordinate{}, false, fmt.Errorf("could not open image: %w", err)
	}
	defer f.Close()

	var (
		lat, lng       float64
		latRef, lngRef string
		hasLat, hasLng bool
	)

	_, err = imagemeta.Decode(imagemeta.Options{
		R:       f,
		Sources: imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return gpsTags[ti.Tag]
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			switch ti.Tag {
			case "GPSLatitude":
				if v, ok := toFloat(ti.Value); ok {
					lat, hasLat = v, true
				}
			case "GPSLongitude":
				if v, ok := toFloat(ti.Value); ok {
					lng, hasLng = v, true
				}
			case "GPSLatitudeRef":
				latRef, _ = ti.Value.(string)
			case "GPSLongitudeRef":
				lngRef, _ = ti.Value.(string)
			}
			return nil
		},
	})
	if err != nil {
		return geo.Coordinate{}, false, fmt.Errorf("could not decode EXIF: %w", err)
	}

	if !hasLat || !hasLng {
		return geo.Coordinate{}, false, nil
	}

	if latRef == "S" && lat > 0 {
		lat = -lat
	}
	if lngRef == "W" && lng > 0 {
		lng = -lng
	}

	coord, err := geo.NewCoordinate(lat, lng)
	if err != nil {
		return geo.Coordinate{}, false, nil
	}
	return coord, true, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
