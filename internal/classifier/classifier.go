// Package classifier suggests tags for a note from its text.
package classifier

import (
	"slices"
	"strings"
	"unicode"
)

type Classifier interface {
	ClassifyContent(content string) []string
}

// keywordCategories maps a category tag to words that imply it.
var keywordCategories = map[string][]string{
	"work":      {"project", "meeting", "deadline", "task", "report"},
	"personal":  {"family", "friend", "home", "birthday", "holiday"},
	"shopping":  {"buy", "purchase", "store", "shop", "price"},
	"education": {"study", "learn", "course", "book", "homework"},
	"travel":    {"trip", "flight", "hotel", "vacation", "booking"},
}

type SimpleClassifier struct {
	maxTags int
}

func NewSimpleClassifier(maxTags int) *SimpleClassifier {
	return &SimpleClassifier{maxTags: maxTags}
}

// ClassifyContent returns explicit hashtags in order of appearance, then
// keyword categories in alphabetical order, without duplicates and at most
// maxTags of them. A non-positive maxTags means no cap.
func (c *SimpleClassifier) ClassifyContent(content string) []string {
	result := Hashtags(content)
	seen := make(map[string]struct{}, len(result))
	for _, tag := range result {
		seen[tag] = struct{}{}
	}

	var categories []string
	lower := strings.ToLower(content)
	for category, keywords := range keywordCategories {
		if _, ok := seen[category]; ok {
			continue
		}
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				categories = append(categories, category)
				break
			}
		}
	}
	slices.Sort(categories)
	result = append(result, categories...)

	if c.maxTags > 0 && len(result) > c.maxTags {
		result = result[:c.maxTags]
	}
	return result
}

// Hashtags extracts lower-cased #tags from text, deduplicated, in order.
func Hashtags(text string) []string {
	tags := []string{}
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(text) {
		if !strings.HasPrefix(word, "#") {
			continue
		}
		tag := strings.ToLower(strings.TrimRightFunc(strings.TrimPrefix(word, "#"), unicode.IsPunct))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// StripHashtags removes #tags from text and collapses the remaining spaces.
func StripHashtags(text string) string {
	words := strings.Fields(text)
	kept := words[:0]
	for _, word := range words {
		if strings.HasPrefix(word, "#") && len(word) > 1 {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}
