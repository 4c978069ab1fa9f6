package vision

import (
	"reflect"
	"testing"
)

func TestParseTags_CommaSeparated(t *testing.T) {
	result := ParseTags("restaurant, eating, family, indoor, casual, warm")

	if result.Strategy != StrategyPrimary {
		t.Errorf("Strategy = %q, want primary", result.Strategy)
	}
	want := []string{"restaurant", "eating", "family", "indoor", "casual", "warm"}
	if !reflect.DeepEqual(result.Tags, want) {
		t.Errorf("Tags = %v, want %v", result.Tags, want)
	}
}

func TestParseTags_StripsPrefix(t *testing.T) {
	result := ParseTags("Tags: beach, sunset, ocean")

	if result.Strategy != StrategyPrimary {
		t.Errorf("Strategy = %q, want primary", result.Strategy)
	}
	want := []string{"beach", "sunset", "ocean"}
	if !reflect.DeepEqual(result.Tags, want) {
		t.Errorf("Tags = %v, want %v", result.Tags, want)
	}
}

func TestParseTags_BulletList(t *testing.T) {
	result := ParseTags("- beach\n- sunset\n- ocean")

	if result.Strategy != StrategyPrimary {
		t.Errorf("Strategy = %q, want primary (newline delimited)", result.Strategy)
	}
	want := []string{"beach", "sunset", "ocean"}
	if !reflect.DeepEqual(result.Tags, want) {
		t.Errorf("Tags = %v, want %v", result.Tags, want)
	}
}

func TestParseTags_NarrativeFallback(t *testing.T) {
	result := ParseTags("The image shows a golden retriever playing near turquoise water under bright sunshine")

	if result.Strategy != StrategyFallback {
		t.Errorf("Strategy = %q, want fallback", result.Strategy)
	}
	if len(result.Tags) == 0 {
		t.Fatal("fallback extracted no tags")
	}
	for _, tag := range result.Tags {
		if tag == "the" || tag == "shows" || tag == "image" {
			t.Errorf("stop word %q leaked into tags %v", tag, result.Tags)
		}
	}
}

func TestParseTags_Deduplicates(t *testing.T) {
	result := ParseTags("Beach, beach, BEACH, sunset")

	want := []string{"beach", "sunset"}
	if !reflect.DeepEqual(result.Tags, want) {
		t.Errorf("Tags = %v, want %v", result.Tags, want)
	}
}

func TestParseTags_DropsSentenceFragments(t *testing.T) {
	result := ParseTags("beach, this image features a very long description of the scene, sunset, dog")

	for _, tag := range result.Tags {
		if len(tag) > maxTagLength {
			t.Errorf("overlong tag %q survived", tag)
		}
	}
}

func TestParseTags_LimitsCount(t *testing.T) {
	raw := "a1, b2, c3, d4, e5, f6, g7, h8, i9, j10, k11, l12, m13, n14, o15, p16, q17, r18"
	result := ParseTags(raw)
	if len(result.Tags) > maxTags {
		t.Errorf("got %d tags, want at most %d", len(result.Tags), maxTags)
	}
}

func TestStripThinking(t *testing.T) {
	in := "<think>the user wants tags</think>beach, sunset, ocean"
	if got := stripThinking(in); got != "beach, sunset, ocean" {
		t.Errorf("stripThinking = %q", got)
	}
}

func TestStripThinking_Unclosed(t *testing.T) {
	in := "beach, sunset <think>cut off mid-reason"
	if got := stripThinking(in); got != "beach, sunset" {
		t.Errorf("stripThinking = %q", got)
	}
}
