package dedupe

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Tuned thresholds. Kept as named, overridable defaults on
// MatchingStrategy rather than hard-coded invariants.
const (
	DefaultSimilarityThreshold = 0.7
	DefaultPrimaryConfidence   = 0.9
	DefaultFuzzyWindow         = 1000
	maxMatches                 = 10
)

// MatchingStrategy is the per-profile duplicate detection configuration
type MatchingStrategy struct {
	Enabled             bool     `json:"enabled" bson:"enabled"`
	PrimaryFields       []string `json:"primary_fields" bson:"primary_fields"`
	SecondaryFields     []string `json:"secondary_fields" bson:"secondary_fields"`
	FuzzyMatching       bool     `json:"fuzzy_matching" bson:"fuzzy_matching"`
	SimilarityThreshold float64  `json:"similarity_threshold" bson:"similarity_threshold"`
	PrimaryConfidence   float64  `json:"primary_confidence" bson:"primary_confidence"`
	CaseSensitive       bool     `json:"case_sensitive" bson:"case_sensitive"`
	FuzzyWindow         int      `json:"fuzzy_window" bson:"fuzzy_window"`
}

func (s MatchingStrategy) similarityThreshold() float64 {
	if s.SimilarityThreshold > 0 {
		return s.SimilarityThreshold
	}
	return DefaultSimilarityThreshold
}

func (s MatchingStrategy) primaryConfidence() float64 {
	if s.PrimaryConfidence > 0 {
		return s.PrimaryConfidence
	}
	return DefaultPrimaryConfidence
}

func (s MatchingStrategy) fuzzyWindow() int {
	if s.FuzzyWindow > 0 {
		return s.FuzzyWindow
	}
	return DefaultFuzzyWindow
}

// PriorRecord is a previously imported record as remembered by the
// lineage ledger: destination id plus the source row snapshot.
type PriorRecord struct {
	DestinationID string
	Fields        map[string]interface{}
}

// PriorRecordSource yields previously imported records for a profile
// and destination table, newest first. A limit of 0 means no cap.
type PriorRecordSource interface {
	Prior(ctx context.Context, profileID, destinationTable string, limit int64) ([]PriorRecord, error)
}

// Match is one candidate duplicate, scored
type Match struct {
	DestinationID string                 `json:"destination_id"`
	Confidence    float64                `json:"confidence"`
	MatchType     string                 `json:"match_type"` // primary, secondary, fuzzy
	Fields        map[string]interface{} `json:"fields,omitempty"`
}

// Result is the outcome of duplicate detection for one candidate
type Result struct {
	IsDuplicate bool    `json:"is_duplicate"`
	Matches     []Match `json:"matches"`
	Confidence  float64 `json:"confidence"`
}

type Detector struct {
	prior PriorRecordSource
}

func NewDetector(prior PriorRecordSource) *Detector {
	return &Detector{prior: prior}
}

// Detect finds and ranks existing records that might represent the same
// entity as the candidate. Primary fields are tried first; secondary
// fields only when no primary hit is confident enough; a bounded fuzzy
// scan runs last when enabled.
func (d *Detector) Detect(ctx context.Context, candidate map[string]interface{}, profileID, destinationTable string, strategy MatchingStrategy) (*Result, error) {
	if !strategy.Enabled {
		return &Result{IsDuplicate: false, Confidence: 0}, nil
	}

	// The exact passes see every prior record; only the fuzzy scan is
	// capped to its window of most recent records.
	records, err := d.prior.Prior(ctx, profileID, destinationTable, 0)
	if err != nil {
		return nil, err
	}

	var matches []Match
	seen := make(map[string]bool)

	// Pass 1: exact match on primary fields
	for _, rec := range records {
		if fieldsEqual(candidate, rec.Fields, strategy.PrimaryFields, strategy.CaseSensitive) {
			conf := Confidence(candidate, rec.Fields, strategy.PrimaryFields, strategy.CaseSensitive)
			matches = append(matches, Match{DestinationID: rec.DestinationID, Confidence: conf, MatchType: "primary", Fields: rec.Fields})
			seen[rec.DestinationID] = true
		}
	}

	// Pass 2: secondary fields, skipping records already found
	if maxConfidence(matches) < strategy.primaryConfidence() && len(strategy.SecondaryFields) > 0 {
		for _, rec := range records {
			if seen[rec.DestinationID] {
				continue
			}
			if fieldsEqual(candidate, rec.Fields, strategy.SecondaryFields, strategy.CaseSensitive) {
				conf := Confidence(candidate, rec.Fields, strategy.SecondaryFields, strategy.CaseSensitive)
				matches = append(matches, Match{DestinationID: rec.DestinationID, Confidence: conf, MatchType: "secondary", Fields: rec.Fields})
				seen[rec.DestinationID] = true
			}
		}
	}

	// Pass 3: bounded fuzzy scan over the union of strategy fields
	if strategy.FuzzyMatching && maxConfidence(matches) < strategy.similarityThreshold() {
		union := unionFields(strategy.PrimaryFields, strategy.SecondaryFields)
		window := strategy.fuzzyWindow()
		for i, rec := range records {
			if i >= window {
				break
			}
			if seen[rec.DestinationID] {
				continue
			}
			conf := Confidence(candidate, rec.Fields, union, strategy.CaseSensitive)
			if conf >= strategy.similarityThreshold() {
				matches = append(matches, Match{DestinationID: rec.DestinationID, Confidence: conf, MatchType: "fuzzy", Fields: rec.Fields})
				seen[rec.DestinationID] = true
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}

	best := maxConfidence(matches)
	return &Result{
		IsDuplicate: best >= strategy.similarityThreshold(),
		Matches:     matches,
		Confidence:  best,
	}, nil
}

// Confidence scores two records over the given fields: 1.0 for equal
// values, normalized edit-distance similarity for unequal strings, 0
// otherwise. The mean over compared fields is returned.
func Confidence(a, b map[string]interface{}, fields []string, caseSensitive bool) float64 {
	if len(fields) == 0 {
		return 0
	}
	var total float64
	var compared int
	for _, f := range fields {
		av, aok := a[f]
		bv, bok := b[f]
		if !aok && !bok {
			continue
		}
		compared++
		as := normalize(stringify(av), caseSensitive)
		bs := normalize(stringify(bv), caseSensitive)
		switch {
		case as == bs:
			total += 1.0
		case as != "" && bs != "":
			total += similarity(as, bs)
		}
	}
	if compared == 0 {
		return 0
	}
	return total / float64(compared)
}

func fieldsEqual(a, b map[string]interface{}, fields []string, caseSensitive bool) bool {
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		as := normalize(stringify(a[f]), caseSensitive)
		bs := normalize(stringify(b[f]), caseSensitive)
		if as == "" || as != bs {
			return false
		}
	}
	return true
}

// similarity is 1 - editDistance/maxLen over normalized strings
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(editDistance(a, b))/float64(maxLen)
}

// editDistance is the classic two-row Levenshtein distance
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func normalize(s string, caseSensitive bool) string {
	s = strings.Join(strings.Fields(s), " ")
	if !caseSensitive {
		s = strings.ToLower(s)
	}
	return s
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func unionFields(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool)
	for _, f := range append(append([]string{}, a...), b...) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func maxConfidence(matches []Match) float64 {
	var max float64
	for _, m := range matches {
		if m.Confidence > max {
			max = m.Confidence
		}
	}
	return max
}
