package engine

import (
	"regexp"
	"strings"

	"github.com/scrypster/mnemo/pkg/types"
)

// Extractor turns one conversation turn into candidate memories.
// Implementations must be pure: no I/O and no side effects.
type Extractor interface {
	// Extract returns candidates found in userUtterance. assistantReply is
	// supplied for extractors that want it; the pattern rules ignore it.
	Extract(userUtterance, assistantReply string) []types.CandidateMemory
}

// Rule categories, in evaluation order.
const (
	CategoryIdentity   = "identity"
	CategoryLocation   = "location"
	CategoryOccupation = "occupation"
	CategoryFavorite   = "favorite"
	CategoryLike       = "like"
	CategoryDislike    = "dislike"
	CategoryDate       = "important_date"
)

// value matches clause text up to the next . ! ? or comma.
const value = `([^.!?,]+)`

// apostrophe accepts both straight and typographic forms.
const apostrophe = `['’]`

// iAm matches "I'm" and "I am".
const iAm = `\bI(?:` + apostrophe + `m|\s+am)\s+`

// clauseJoin finds an "and" that opens a new first-person clause, such as
// "and I live in Paris". Extract turns it into a comma so values stop there.
var clauseJoin = regexp.MustCompile(`(?i)\s+and(\s+(?:i|my|our|call\s+me)\b)`)

// notNames are words after "I'm" that belong to other rules or are not names.
var notNames = map[string]bool{
	"a": true, "an": true, "the": true, "from": true, "into": true,
	"based": true, "in": true, "at": true, "not": true, "so": true,
	"very": true, "just": true, "really": true, "also": true, "here": true,
	"going": true, "sure": true, "sorry": true, "fine": true, "good": true,
	"ok": true, "okay": true, "still": true, "looking": true, "trying": true,
	"living": true, "working": true, "tired": true, "hungry": true,
	"happy": true, "sad": true, "busy": true, "glad": true, "excited": true,
	"ready": true, "done": true, "back": true, "new": true, "well": true,
}

// nameLike reports whether the word after "I'm" can be read as a name.
// Progressive verbs ("learning", "thinking") longer than four letters are
// rejected; short names such as "Ming" still pass.
func nameLike(word string) bool {
	w := strings.ToLower(word)
	if notNames[w] {
		return false
	}
	return !(len(w) > 4 && strings.HasSuffix(w, "ing"))
}

// fanOf marks "I'm a (big) fan of X", which is a preference, not a job.
var fanOf = regexp.MustCompile(`(?i)^(?:(?:big|huge)\s+)?fan\b`)

type extractionRule struct {
	category   string
	pattern    *regexp.Regexp
	memoryType types.MemoryType
	importance float64
	render     func(groups []string) string
	accept     func(groups []string) bool
}

func rule(category, pattern string, memoryType types.MemoryType, importance float64, render func([]string) string) extractionRule {
	return extractionRule{
		category:   category,
		pattern:    regexp.MustCompile(`(?i)` + pattern),
		memoryType: memoryType,
		importance: importance,
		render:     render,
	}
}

func prefix(p string) func([]string) string {
	return func(g []string) string { return p + g[0] }
}

func (r extractionRule) withAccept(fn func([]string) bool) extractionRule {
	r.accept = fn
	return r
}

var defaultRules = []extractionRule{
	rule(CategoryIdentity, `\bmy\s+name\s+is\s+`+value, types.MemoryTypeFact, 9, prefix("User's name is ")),
	rule(CategoryIdentity, iAm+`([\p{L}][\p{L}'-]*)`, types.MemoryTypeFact, 9, prefix("User's name is ")).
		withAccept(func(g []string) bool { return nameLike(g[0]) }),
	rule(CategoryIdentity, `\bcall\s+me\s+`+value, types.MemoryTypeFact, 9, prefix("User's name is ")),

	rule(CategoryLocation, `\bI\s+live\s+in\s+`+value, types.MemoryTypeFact, 7, prefix("User lives in ")),
	rule(CategoryLocation, iAm+`from\s+`+value, types.MemoryTypeFact, 7, prefix("User is from ")),
	rule(CategoryLocation, `\bbased\s+in\s+`+value, types.MemoryTypeFact, 7, prefix("User is based in ")),

	rule(CategoryOccupation, `\bI\s+work\s+as\s+`+value, types.MemoryTypeFact, 7, prefix("User works as ")),
	rule(CategoryOccupation, `\bI\s+work\s+at\s+`+value, types.MemoryTypeFact, 7, prefix("User works at ")),
	rule(CategoryOccupation, iAm+`(a|an)\s+`+value, types.MemoryTypeFact, 7,
		func(g []string) string { return "User works as " + strings.ToLower(g[0]) + " " + g[1] }).
		withAccept(func(g []string) bool { return !fanOf.MatchString(g[1]) }),
	rule(CategoryOccupation, `\bmy\s+job\s+is\s+`+value, types.MemoryTypeFact, 7, prefix("User's job is ")),

	rule(CategoryFavorite, `\bmy\s+fav(?:ou)?rite\s+([\p{L}\s]+?)\s+(?:is|are)\s+`+value, types.MemoryTypePreference, 6,
		func(g []string) string { return "User's favorite " + g[0] + " is " + g[1] }),

	rule(CategoryLike, `\bI\s+(?:like|love|prefer)\s+`+value, types.MemoryTypePreference, 5, prefix("User likes ")),
	rule(CategoryLike, `\bI\s+enjoy\s+`+value, types.MemoryTypePreference, 5, prefix("User enjoys ")),
	rule(CategoryLike, iAm+`into\s+`+value, types.MemoryTypePreference, 5, prefix("User likes ")),
	rule(CategoryLike, iAm+`a\s+(?:big\s+|huge\s+)?fan\s+of\s+`+value, types.MemoryTypePreference, 5, prefix("User likes ")),

	rule(CategoryDislike, `\bI\s+(?:don`+apostrophe+`?t|do\s+not)\s+like\s+`+value, types.MemoryTypePreference, 5, prefix("User dislikes ")),
	rule(CategoryDislike, `\bI\s+hate\s+`+value, types.MemoryTypePreference, 5, prefix("User dislikes ")),
	rule(CategoryDislike, `\bI\s+dislike\s+`+value, types.MemoryTypePreference, 5, prefix("User dislikes ")),
	rule(CategoryDislike, `\bI\s+(?:can`+apostrophe+`?t|cannot|can\s+not)\s+stand\s+`+value, types.MemoryTypePreference, 5, prefix("User dislikes ")),

	rule(CategoryDate, `\bmy\s+birthday\s+is\s+`+value, types.MemoryTypeFact, 8, prefix("User's birthday is ")),
	rule(CategoryDate, `\bour\s+anniversary\s+is\s+`+value, types.MemoryTypeFact, 8, prefix("User's anniversary is ")),
}

// PatternExtractor recognizes self-disclosed facts and preferences with a
// fixed table of phrase rules. Every phrasing is tried and every match is
// kept, so one utterance can yield several candidates, including
// near-identical ones from synonymous phrasings.
type PatternExtractor struct {
	rules []extractionRule
}

var _ Extractor = (*PatternExtractor)(nil)

// NewPatternExtractor returns an extractor using the built-in rules.
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{rules: defaultRules}
}

// Extract implements Extractor.
func (e *PatternExtractor) Extract(userUtterance, _ string) []types.CandidateMemory {
	text := strings.TrimSpace(userUtterance)
	if text == "" {
		return nil
	}
	text = clauseJoin.ReplaceAllString(text, ",$1")

	var candidates []types.CandidateMemory
	for _, r := range e.rules {
		for _, match := range r.pattern.FindAllStringSubmatch(text, -1) {
			groups, ok := captureValues(match[1:])
			if !ok {
				continue
			}
			if r.accept != nil && !r.accept(groups) {
				continue
			}
			candidates = append(candidates, types.CandidateMemory{
				Type:       r.memoryType,
				Content:    r.render(groups),
				Importance: r.importance,
			})
		}
	}
	return candidates
}

// captureValues trims each group. It reports false if any group is empty.
func captureValues(raw []string) ([]string, bool) {
	groups := make([]string, len(raw))
	for i, g := range raw {
		g = strings.TrimSpace(g)
		if g == "" {
			return nil, false
		}
		groups[i] = g
	}
	return groups, true
}
