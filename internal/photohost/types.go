package photohost

import "strings"

// Album is a collection of items on the photo host.
type Album struct {
	UID         string `json:"UID"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
	ItemCount   int    `json:"ItemCount"`
}

// Item is one photo or video as the host reports it. The host record stays
// authoritative; enrichment only proposes new metadata until commit.
type Item struct {
	UID      string   `json:"UID"`
	FileName string   `json:"FileName"`
	Type     string   `json:"Type"` // "image" or "video"
	Caption  string   `json:"Caption"`
	Keywords []string `json:"Keywords"`
	Lat      float64  `json:"Lat"`
	Lng      float64  `json:"Lng"`
}

// IsVideo reports whether the item is a video rather than a still image.
func (i Item) IsVideo() bool {
	return strings.EqualFold(i.Type, "video")
}

// HasLocation reports whether the host provided GPS coordinates. The host
// omits both fields (zero) when no GPS is known; the 0,0 null island case is
// accepted as absent.
func (i Item) HasLocation() bool {
	return i.Lat != 0 || i.Lng != 0
}

// HasKeyword reports whether the item's keyword set contains tag,
// case-insensitively.
func (i Item) HasKeyword(tag string) bool {
	for _, k := range i.Keywords {
		if strings.EqualFold(k, tag) {
			return true
		}
	}
	return false
}

// MetadataUpdate is the payload for a metadata PATCH.
type MetadataUpdate struct {
	Caption  string   `json:"Caption"`
	Keywords []string `json:"Keywords"`
}
