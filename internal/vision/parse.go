package vision

import (
	"regexp"
	"strings"
)

// Strategy says which parsing path produced a tag list.
type Strategy string

const (
	// StrategyPrimary: the model output was a clean delimiter-separated list.
	StrategyPrimary Strategy = "primary"
	// StrategyFallback: tags were extracted from narrative text.
	StrategyFallback Strategy = "fallback"
)

// TagResult is a parsed tag list plus the strategy that produced it.
type TagResult struct {
	Tags     []string
	Strategy Strategy
}

const (
	maxTags      = 15
	maxTagLength = 25
	maxTagWords  = 3
)

var tagListPrefixes = []string{"tags:", "keywords:", "tag list:", "tags are:", "the tags are:"}

var (
	bulletRe    = regexp.MustCompile(`^[-*•]\s*`)
	numberingRe = regexp.MustCompile(`^\d+\.\s*`)
	wordRe      = regexp.MustCompile(`\b([A-Z][a-z]+|[a-z]{4,})\b`)
)

var stopWords = map[string]bool{
	"this": true, "that": true, "the": true, "and": true, "but": true,
	"with": true, "from": true, "been": true, "being": true, "have": true,
	"does": true, "will": true, "would": true, "could": true, "should": true,
	"might": true, "image": true, "features": true, "showing": true,
	"shows": true, "visible": true, "appears": true, "characterized": true,
}

var skipPhrases = []string{
	"do not", "does not", "is not", "are not",
	"seem", "appears", "looks like",
	"this image", "the image", "in the", "on the", "at the",
	"characterized by", "features a", "showing", "shows",
	"the overall", "the background", "the foreground",
}

// ParseTags turns raw model output into a tag list. The primary strategy
// splits on list delimiters; when the output does not look like a list,
// keywords are extracted from the narrative text instead, and the result is
// tagged accordingly.
func ParseTags(raw string) TagResult {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	for _, prefix := range tagListPrefixes {
		if strings.HasPrefix(lower, prefix) {
			raw = strings.TrimSpace(raw[len(prefix):])
			break
		}
	}

	if tags := splitDelimited(raw); len(tags) >= 3 {
		return TagResult{Tags: cleanTags(tags), Strategy: StrategyPrimary}
	}
	return TagResult{Tags: cleanTags(extractKeywords(raw)), Strategy: StrategyFallback}
}

// splitDelimited tries each list delimiter in order and returns the first
// split that looks like an actual list.
func splitDelimited(raw string) []string {
	for _, delimiter := range []string{",", ";", "\n"} {
		if !strings.Contains(raw, delimiter) {
			continue
		}
		parts := strings.Split(raw, delimiter)
		if len(parts) >= 3 {
			return parts
		}
	}
	return nil
}

// extractKeywords pulls plausible tag words out of narrative text.
func extractKeywords(raw string) []string {
	words := wordRe.FindAllString(raw, -1)
	var tags []string
	for _, w := range words {
		if stopWords[strings.ToLower(w)] || len(w) <= 3 {
			continue
		}
		tags = append(tags, w)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

// cleanTags normalizes raw fragments into lowercase tags, dropping sentence
// fragments and duplicates.
func cleanTags(raw []string) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, tag := range raw {
		tag = strings.TrimSpace(tag)
		tag = bulletRe.ReplaceAllString(tag, "")
		tag = numberingRe.ReplaceAllString(tag, "")
		tag = strings.Trim(tag, ".,;:!?-()[]{}'\"")
		tag = strings.ToLower(strings.Join(strings.Fields(tag), " "))

		if len(tag) < 2 || len(tag) > maxTagLength {
			continue
		}
		if len(strings.Fields(tag)) > maxTagWords {
			continue
		}
		if containsSkipPhrase(tag) {
			continue
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

func containsSkipPhrase(tag string) bool {
	for _, phrase := range skipPhrases {
		if strings.Contains(tag, phrase) {
			return true
		}
	}
	return false
}

var thinkingRe = regexp.MustCompile(`(?is)<think>.*?(</think>|$)`)

// stripThinking removes <think> reasoning blocks some models emit before
// their actual answer.
func stripThinking(content string) string {
	return strings.TrimSpace(thinkingRe.ReplaceAllString(content, ""))
}
