// Package metadata merges generated captions and tags with an item's
// existing metadata under a preservation policy and marks the item as
// processed.
package metadata

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMarkerTag marks an item as already processed. Its presence in the
// keyword set drives the skip decision on later runs.
const DefaultMarkerTag = "ai-processed"

// Formatter merges proposed metadata with what the photo host already has.
type Formatter struct {
	// MarkerTag is appended to every tag set exactly once.
	MarkerTag string

	// PreserveExisting keeps the host's caption and tags, appending
	// generated content instead of replacing it.
	PreserveExisting bool
}

func NewFormatter(markerTag string, preserveExisting bool) *Formatter {
	if markerTag == "" {
		markerTag = DefaultMarkerTag
	}
	return &Formatter{MarkerTag: markerTag, PreserveExisting: preserveExisting}
}

// FormatCaption produces the final caption. With PreserveExisting the host's
// caption is kept and the generated one appended; otherwise the generated
// caption wins, falling back to the existing one when generation produced
// nothing. The resolved location and identified people are appended when the
// caption does not already mention them.
func (f *Formatter) FormatCaption(generated, existing, location string, people []string) string {
	generated = strings.TrimSpace(generated)
	existing = strings.TrimSpace(existing)

	var caption string
	switch {
	case generated == "":
		caption = existing
	case !f.PreserveExisting || existing == "":
		caption = generated
	case captionContains(existing, generated):
		caption = existing
	default:
		caption = existing + "\n\n" + generated
	}

	var context []string
	if location = strings.TrimSpace(location); location != "" && !captionContains(caption, location) {
		context = append(context, "Location: "+location)
	}
	var missing []string
	for _, name := range people {
		if name = strings.TrimSpace(name); name != "" && !captionContains(caption, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		context = append(context, "People: "+strings.Join(missing, ", "))
	}

	if len(context) == 0 {
		return caption
	}
	if caption == "" {
		return strings.Join(context, "\n")
	}
	return caption + "\n\n" + strings.Join(context, "\n")
}

// FormatTags merges existing tags, generated tags, person names and
// location-derived tags into one ordered list. Duplicates differing only in
// case or diacritics are dropped, keeping the first spelling seen. The
// marker tag is always present exactly once, at the end.
func (f *Formatter) FormatTags(generated, existing, people, location []string) []string {
	seen := make(map[string]bool)
	var tags []string
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return
		}
		key := normalizeTag(tag)
		if seen[key] {
			return
		}
		seen[key] = true
		tags = append(tags, tag)
	}

	if f.PreserveExisting {
		for _, t := range existing {
			add(t)
		}
	}
	for _, t := range generated {
		add(t)
	}
	for _, t := range people {
		add(t)
	}
	for _, t := range location {
		add(t)
	}

	// Remove any earlier spelling of the marker so it lands exactly once.
	markerKey := normalizeTag(f.MarkerTag)
	filtered := tags[:0]
	for _, t := range tags {
		if normalizeTag(t) == markerKey {
			continue
		}
		filtered = append(filtered, t)
	}
	return append(filtered, f.MarkerTag)
}

// LocationTags splits a resolved display string into individual tags.
// Short fragments like "St" are dropped.
func LocationTags(display string) []string {
	var tags []string
	for _, part := range strings.Split(display, ",") {
		part = strings.TrimSpace(part)
		if len(part) > 2 {
			tags = append(tags, part)
		}
	}
	return tags
}

// HasMarker reports whether the tag set already contains the marker,
// ignoring case and diacritics.
func (f *Formatter) HasMarker(tags []string) bool {
	markerKey := normalizeTag(f.MarkerTag)
	for _, t := range tags {
		if normalizeTag(t) == markerKey {
			return true
		}
	}
	return false
}

var diacriticRemover = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeTag folds case and strips diacritics so "Café" and "cafe"
// compare equal.
func normalizeTag(tag string) string {
	stripped, _, err := transform.String(diacriticRemover, tag)
	if err != nil {
		stripped = tag
	}
	return strings.ToLower(strings.TrimSpace(stripped))
}

func captionContains(existing, generated string) bool {
	return strings.Contains(strings.ToLower(existing), strings.ToLower(generated))
}
