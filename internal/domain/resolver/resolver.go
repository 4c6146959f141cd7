// Package resolver attributes meetings to projects by scoring the meeting
// title against the candidate project list.
//
// Scoring is deterministic and free of I/O: the same title and candidates
// always produce the same ranking, factor order included.
package resolver

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/okian/meetlink/internal/domain/model"
)

// Scoring weights.
const (
	keyMatchPoints        = 50.0
	nameWordPoints        = 30.0
	genericNameWordPoints = 2.0
	multiWordBonus        = 20.0
	strongPatternPoints   = 8.0
	moderatePatternPoints = 4.0
	genericPatternPoints  = 3.0

	// minNameWordLen excludes short words ("of", "the", "api") from name matching.
	minNameWordLen = 3

	// confidenceScale maps a score onto [0,1].
	confidenceScale = 10.0

	// Threshold is the score a candidate must exceed to be persisted.
	Threshold = 5.0

	// KeywordMatchScore is assigned to a keyword-fallback match.
	KeywordMatchScore = 10.0
)

// Meeting-type vocabularies for the pattern bonus tiers.
var (
	strongWords   = []string{"standup", "sync", "planning", "retrospective", "review", "demo", "kickoff"} //nolint:gochecknoglobals // fixed vocabulary
	moderateWords = []string{"discussion", "meeting", "update"}                                          //nolint:gochecknoglobals // fixed vocabulary
	genericWords  = []string{"standup", "sync", "scrum", "planning", "review", "retrospective", "demo"}   //nolint:gochecknoglobals // fixed vocabulary

	defaultGenericNameWords = []string{"project", "team", "platform", "service", "system", "development"} //nolint:gochecknoglobals // fixed vocabulary
)

// Mode names the strategy that produced a resolution.
type Mode string

// Resolution modes.
const (
	ModeWeighted Mode = "weighted"
	ModeKeyword  Mode = "keyword"
	ModeNone     Mode = "none"
)

// Resolution is the outcome of Resolve.
type Resolution struct {
	Mode Mode
	// Ranked is the full weighted ranking, kept for observability.
	Ranked []model.ScoredCandidate
	// Eligible holds the candidates that may be persisted.
	Eligible []model.ScoredCandidate
}

// Resolver scores meeting titles against project candidates.
type Resolver struct {
	generic map[string]struct{}
}

// New creates a Resolver. The zero configuration uses the built-in generic
// word list.
func New(opts ...Option) *Resolver {
	r := &Resolver{generic: make(map[string]struct{}, len(defaultGenericNameWords)+1)}
	for _, w := range defaultGenericNameWords {
		r.generic[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Score ranks every candidate by relevance to title, highest first. Ties keep
// input order. It never fails; no candidates yields an empty slice.
func (r *Resolver) Score(title string, candidates []model.ProjectCandidate) []model.ScoredCandidate {
	t := newTitle(title)
	out := make([]model.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, r.scoreOne(t, c))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (r *Resolver) scoreOne(t title, c model.ProjectCandidate) model.ScoredCandidate {
	var (
		score        float64
		factors      = []string{}
		keyMatched   bool
		anyWord      bool
		specificHits int
	)

	key := strings.ToLower(strings.TrimSpace(c.Key))
	if key != "" && strings.Contains(t.lower, key) {
		score += keyMatchPoints
		keyMatched = true
		factors = append(factors, "project key in title")
	}

	for _, w := range nameWords(c.Name) {
		if !strings.Contains(t.lower, w) {
			continue
		}
		anyWord = true
		if _, generic := r.generic[w]; generic {
			score += genericNameWordPoints
			factors = append(factors, fmt.Sprintf("generic name word %q in title", w))
			continue
		}
		score += nameWordPoints
		specificHits++
		factors = append(factors, fmt.Sprintf("name word %q in title", w))
	}

	if specificHits > 1 {
		score += multiWordBonus
		factors = append(factors, "multiple project words in title")
	}

	identified := keyMatched || anyWord
	switch {
	case identified && t.hasAny(strongWords) != "":
		score += strongPatternPoints
		factors = append(factors, fmt.Sprintf("strong meeting pattern %q", t.hasAny(strongWords)))
	case identified && t.hasAny(moderateWords) != "":
		score += moderatePatternPoints
		factors = append(factors, fmt.Sprintf("moderate meeting pattern %q", t.hasAny(moderateWords)))
	case identified && t.hasAny(genericWords) != "":
		score += genericPatternPoints
		factors = append(factors, fmt.Sprintf("meeting keyword %q", t.hasAny(genericWords)))
	}

	return model.ScoredCandidate{
		ProjectKey:      c.Key,
		ProjectName:     c.Name,
		Score:           score,
		Confidence:      Confidence(score),
		MatchingFactors: factors,
	}
}

// MatchKeywords is the keyword fallback: the first candidate, in input
// order, with a curated keyword contained in title is the single match.
func (r *Resolver) MatchKeywords(title string, candidates []model.ProjectCandidate) (model.ScoredCandidate, bool) {
	lower := strings.ToLower(title)
	for _, c := range candidates {
		for _, kw := range c.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" || !strings.Contains(lower, kw) {
				continue
			}
			return model.ScoredCandidate{
				ProjectKey:      c.Key,
				ProjectName:     c.Name,
				Score:           KeywordMatchScore,
				Confidence:      Confidence(KeywordMatchScore),
				MatchingFactors: []string{fmt.Sprintf("keyword %q in title", kw)},
			}, true
		}
	}
	return model.ScoredCandidate{}, false
}

// Resolve runs the weighted scorer and falls back to keyword matching only
// when no candidate clears Threshold.
func (r *Resolver) Resolve(title string, candidates []model.ProjectCandidate) Resolution {
	ranked := r.Score(title, candidates)
	if eligible := AboveThreshold(ranked); len(eligible) > 0 {
		return Resolution{Mode: ModeWeighted, Ranked: ranked, Eligible: eligible}
	}
	if match, ok := r.MatchKeywords(title, candidates); ok {
		return Resolution{Mode: ModeKeyword, Ranked: ranked, Eligible: []model.ScoredCandidate{match}}
	}
	return Resolution{Mode: ModeNone, Ranked: ranked}
}

// AboveThreshold returns the candidates whose score exceeds Threshold,
// preserving order.
func AboveThreshold(scored []model.ScoredCandidate) []model.ScoredCandidate {
	out := make([]model.ScoredCandidate, 0, len(scored))
	for _, s := range scored {
		if s.Score > Threshold {
			out = append(out, s)
		}
	}
	return out
}

// Confidence projects a score onto [0,1].
func Confidence(score float64) float64 {
	if score <= 0 {
		return 0
	}
	return math.Min(score/confidenceScale, 1.0)
}

// title is a meeting title prepared for matching.
type title struct {
	lower string
	words map[string]struct{}
}

func newTitle(s string) title {
	lower := strings.ToLower(s)
	words := make(map[string]struct{})
	for _, w := range splitWords(lower) {
		words[w] = struct{}{}
	}
	return title{lower: lower, words: words}
}

// hasAny returns the first vocabulary word present as a whole word, or "".
func (t title) hasAny(vocab []string) string {
	for _, w := range vocab {
		if _, ok := t.words[w]; ok {
			return w
		}
	}
	return ""
}

// nameWords returns the distinct lower-cased words of name longer than
// minNameWordLen, in order of first appearance.
func nameWords(name string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, w := range splitWords(strings.ToLower(name)) {
		if len([]rune(w)) <= minNameWordLen {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
