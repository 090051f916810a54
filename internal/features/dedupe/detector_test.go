package dedupe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPrior struct {
	records []PriorRecord
}

func (s *staticPrior) Prior(ctx context.Context, profileID, destinationTable string, limit int64) ([]PriorRecord, error) {
	if limit > 0 && int64(len(s.records)) > limit {
		return s.records[:limit], nil
	}
	return s.records, nil
}

func priorOf(records ...PriorRecord) *staticPrior {
	return &staticPrior{records: records}
}

func TestDetectDisabledStrategy(t *testing.T) {
	d := NewDetector(priorOf(PriorRecord{DestinationID: "x", Fields: map[string]interface{}{"email": "a@b.com"}}))

	res, err := d.Detect(context.Background(), map[string]interface{}{"email": "a@b.com"}, "p1", "contacts", MatchingStrategy{Enabled: false})
	require.NoError(t, err)
	assert.False(t, res.IsDuplicate)
	assert.Empty(t, res.Matches)
}

func TestDetectPrimaryExactMatch(t *testing.T) {
	d := NewDetector(priorOf(
		PriorRecord{DestinationID: "dest-1", Fields: map[string]interface{}{"email": "ada@engines.io", "name": "Ada"}},
		PriorRecord{DestinationID: "dest-2", Fields: map[string]interface{}{"email": "grace@navy.mil", "name": "Grace"}},
	))

	strategy := MatchingStrategy{Enabled: true, PrimaryFields: []string{"email"}}
	res, err := d.Detect(context.Background(), map[string]interface{}{"email": "ADA@Engines.IO"}, "p1", "contacts", strategy)
	require.NoError(t, err)

	assert.True(t, res.IsDuplicate)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "dest-1", res.Matches[0].DestinationID)
	assert.Equal(t, "primary", res.Matches[0].MatchType)
	assert.Equal(t, 1.0, res.Confidence, "exact primary match scores full confidence")
}

// The fuzzy window bounds only the fuzzy scan; exact passes see every
// prior record, however old.
func TestDetectExactMatchOlderThanFuzzyWindow(t *testing.T) {
	d := NewDetector(priorOf(
		PriorRecord{DestinationID: "dest-new", Fields: map[string]interface{}{"email": "new@x.com"}},
		PriorRecord{DestinationID: "dest-old", Fields: map[string]interface{}{"email": "ada@engines.io"}},
	))

	strategy := MatchingStrategy{Enabled: true, PrimaryFields: []string{"email"}, FuzzyWindow: 1}
	res, err := d.Detect(context.Background(), map[string]interface{}{"email": "ada@engines.io"}, "p1", "contacts", strategy)
	require.NoError(t, err)

	assert.True(t, res.IsDuplicate)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "dest-old", res.Matches[0].DestinationID)
	assert.Equal(t, "primary", res.Matches[0].MatchType)
}

func TestDetectCaseSensitiveStrategy(t *testing.T) {
	d := NewDetector(priorOf(
		PriorRecord{DestinationID: "dest-1", Fields: map[string]interface{}{"email": "ada@engines.io"}},
	))

	strategy := MatchingStrategy{Enabled: true, PrimaryFields: []string{"email"}, CaseSensitive: true}
	res, err := d.Detect(context.Background(), map[string]interface{}{"email": "ADA@engines.io"}, "p1", "contacts", strategy)
	require.NoError(t, err)
	assert.False(t, res.IsDuplicate)
}

func TestDetectSecondarySkippedWhenPrimaryConfident(t *testing.T) {
	d := NewDetector(priorOf(
		PriorRecord{DestinationID: "dest-1", Fields: map[string]interface{}{"email": "ada@engines.io", "name": "Ada"}},
		PriorRecord{DestinationID: "dest-2", Fields: map[string]interface{}{"email": "other@x.com", "name": "Ada"}},
	))

	strategy := MatchingStrategy{
		Enabled:         true,
		PrimaryFields:   []string{"email"},
		SecondaryFields: []string{"name"},
	}
	res, err := d.Detect(context.Background(), map[string]interface{}{"email": "ada@engines.io", "name": "Ada"}, "p1", "contacts", strategy)
	require.NoError(t, err)

	require.Len(t, res.Matches, 1, "secondary pass must not run once a primary hit is confident")
	assert.Equal(t, "dest-1", res.Matches[0].DestinationID)
}

// A weakly similar secondary value with fuzzy matching disabled must
// yield no duplicate at all.
func TestDetectNoFalsePositiveWithoutFuzzy(t *testing.T) {
	d := NewDetector(priorOf(
		PriorRecord{DestinationID: "dest-1", Fields: map[string]interface{}{"email": "ada@engines.io", "name": "Ada Lovelace"}},
	))

	strategy := MatchingStrategy{
		Enabled:         true,
		PrimaryFields:   []string{"email"},
		SecondaryFields: []string{"name"},
		FuzzyMatching:   false,
	}
	candidate := map[string]interface{}{"email": "different@else.net", "name": "Ada Lovelace-Byron III"}
	res, err := d.Detect(context.Background(), candidate, "p1", "contacts", strategy)
	require.NoError(t, err)

	assert.False(t, res.IsDuplicate)
	assert.Empty(t, res.Matches)
}

func TestDetectFuzzyCatchesNearMatch(t *testing.T) {
	d := NewDetector(priorOf(
		PriorRecord{DestinationID: "dest-1", Fields: map[string]interface{}{"email": "ada@engines.io", "name": "Ada Lovelace"}},
	))

	strategy := MatchingStrategy{
		Enabled:         true,
		PrimaryFields:   []string{"email"},
		SecondaryFields: []string{"name"},
		FuzzyMatching:   true,
	}
	// Near misses on both fields: no exact pass hits, fuzzy does
	candidate := map[string]interface{}{"email": "ada@engines.io.", "name": "Ada Lovelac"}
	res, err := d.Detect(context.Background(), candidate, "p1", "contacts", strategy)
	require.NoError(t, err)

	assert.True(t, res.IsDuplicate)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "fuzzy", res.Matches[0].MatchType)
	assert.GreaterOrEqual(t, res.Confidence, DefaultSimilarityThreshold)
}

func TestConfidenceBounds(t *testing.T) {
	a := map[string]interface{}{"email": "a@b.com", "name": "Ada"}
	identical := Confidence(a, a, []string{"email", "name"}, false)
	assert.Equal(t, 1.0, identical)

	b := map[string]interface{}{"email": "zzzzz", "name": "qqqqq"}
	disjoint := Confidence(a, b, []string{"email", "name"}, false)
	assert.GreaterOrEqual(t, disjoint, 0.0)
	assert.Less(t, disjoint, DefaultSimilarityThreshold)

	assert.Equal(t, 0.0, Confidence(a, b, nil, false), "no fields means no evidence")
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("abc", "abc"))
	assert.InDelta(t, 0.8, similarity("kitten", "mitten"), 0.05)
	assert.Equal(t, 0.0, similarity("ab", "xy"))
}

func TestEditDistance(t *testing.T) {
	assert.Equal(t, 0, editDistance("same", "same"))
	assert.Equal(t, 3, editDistance("kitten", "sitting"))
	assert.Equal(t, 5, editDistance("", "abcde"))
}

func TestDecidePolicy(t *testing.T) {
	dup := &Result{
		IsDuplicate: true,
		Matches:     []Match{{DestinationID: "dest-1", Confidence: 0.95}},
		Confidence:  0.95,
	}
	clean := &Result{IsDuplicate: false}

	tests := []struct {
		name   string
		result *Result
		mode   ImportMode
		flags  PolicyFlags
		want   Action
	}{
		{"create mode skips flagged duplicates", dup, ModeCreate, PolicyFlags{SkipDuplicates: true}, ActionSkip},
		{"create mode without the flag still creates", dup, ModeCreate, PolicyFlags{}, ActionCreate},
		{"create mode with clean input creates", clean, ModeCreate, PolicyFlags{SkipDuplicates: true}, ActionCreate},
		{"update mode updates the best match", dup, ModeUpdate, PolicyFlags{}, ActionUpdate},
		{"update mode with nothing to update skips", clean, ModeUpdate, PolicyFlags{}, ActionSkip},
		{"upsert updates duplicates when allowed", dup, ModeUpsert, PolicyFlags{UpdateDuplicates: true}, ActionUpdate},
		{"upsert skips duplicates otherwise", dup, ModeUpsert, PolicyFlags{}, ActionSkip},
		{"upsert creates clean rows", clean, ModeUpsert, PolicyFlags{}, ActionCreate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecidePolicy(tt.result, tt.mode, tt.flags)
			assert.Equal(t, tt.want, got.Action)
			if got.Action == ActionUpdate {
				require.NotNil(t, got.Match)
				assert.Equal(t, "dest-1", got.Match.DestinationID)
			}
		})
	}
}
