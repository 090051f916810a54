package mapping

import (
	"testing"

	"go-deskmigrate/internal/features/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseMapping() *Mapping {
	return &Mapping{
		Name:             "tickets",
		BaseTable:        "tickets",
		DestinationTable: "tickets",
		FieldMappings:    map[string]string{"subject": "subject"},
	}
}

func TestBuildClauseOrder(t *testing.T) {
	m := baseMapping()
	m.SelectFields = []string{"tickets.id", "tickets.subject", "users.email"}
	m.Joins = []Join{{Table: "users", On: "tickets.requester_id = users.id", Type: "left"}}
	m.WhereConditions = "tickets.status = 2"
	m.OrderBy = "tickets.id"
	m.Limit = 500

	got := NewBuilder().Build(m)
	want := "SELECT tickets.id, tickets.subject, users.email" +
		" FROM tickets" +
		" LEFT JOIN users ON tickets.requester_id = users.id" +
		" WHERE tickets.status = 2" +
		" ORDER BY tickets.id" +
		" LIMIT 500"
	assert.Equal(t, want, got)
}

func TestBuildDefaults(t *testing.T) {
	m := baseMapping()
	m.Joins = []Join{{Table: "users", On: "tickets.requester_id = users.id"}}

	got := NewBuilder().Build(m)
	assert.Equal(t, "SELECT * FROM tickets INNER JOIN users ON tickets.requester_id = users.id", got)
}

func TestBuildCountDropsOrderAndLimit(t *testing.T) {
	m := baseMapping()
	m.WhereConditions = "status = 1"
	m.OrderBy = "id"
	m.Limit = 10

	got := NewBuilder().BuildCount(m)
	assert.Equal(t, "SELECT COUNT(*) FROM tickets WHERE status = 1", got)
}

func TestValidate(t *testing.T) {
	b := NewBuilder()

	t.Run("valid mapping passes", func(t *testing.T) {
		result := b.Validate(baseMapping())
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
	})

	t.Run("missing base table", func(t *testing.T) {
		m := baseMapping()
		m.BaseTable = ""
		result := b.Validate(m)
		assert.False(t, result.Valid)
	})

	t.Run("unsupported join type", func(t *testing.T) {
		m := baseMapping()
		m.Joins = []Join{{Table: "users", On: "a = b", Type: "CROSS"}}
		result := b.Validate(m)
		assert.False(t, result.Valid)
	})

	t.Run("unbalanced parentheses", func(t *testing.T) {
		m := baseMapping()
		m.WhereConditions = "(status = 1 AND (priority = 2)"
		result := b.Validate(m)
		assert.False(t, result.Valid)
	})

	t.Run("statement separator followed by mutation", func(t *testing.T) {
		m := baseMapping()
		m.WhereConditions = "status = 1; DROP TABLE tickets"
		result := b.Validate(m)
		assert.False(t, result.Valid)
	})

	t.Run("unknown validation rule fails at load", func(t *testing.T) {
		m := baseMapping()
		m.ValidationRules = map[string][]string{"email": {"regex"}}
		result := b.Validate(m)
		assert.False(t, result.Valid)
	})

	t.Run("empty field mappings is a warning, not an error", func(t *testing.T) {
		m := baseMapping()
		m.FieldMappings = nil
		result := b.Validate(m)
		assert.True(t, result.Valid)
		assert.NotEmpty(t, result.Warnings)
	})
}

func TestSuggestJoins(t *testing.T) {
	schema := &source.Schema{
		Tables: []source.Table{
			{
				Name: "tickets",
				ForeignKeys: []source.ForeignKey{
					{Table: "tickets", Column: "requester_id", RefTable: "users", RefColumn: "id"},
				},
			},
			{
				Name: "comments",
				ForeignKeys: []source.ForeignKey{
					{Table: "comments", Column: "ticket_id", RefTable: "tickets", RefColumn: "id"},
				},
			},
			{Name: "unrelated"},
		},
	}

	suggestions := NewBuilder().SuggestJoins(schema, "tickets")
	require.Len(t, suggestions, 2)

	// Outbound FK first (high confidence), inbound second
	assert.Equal(t, "users", suggestions[0].Table)
	assert.Equal(t, "high", suggestions[0].Confidence)
	assert.Equal(t, "INNER", suggestions[0].Type)
	assert.Equal(t, "tickets.requester_id = users.id", suggestions[0].On)

	assert.Equal(t, "comments", suggestions[1].Table)
	assert.Equal(t, "medium", suggestions[1].Confidence)
	assert.Equal(t, "LEFT", suggestions[1].Type)
}

func TestParseMappingRejectsUnknownValidationRule(t *testing.T) {
	m := baseMapping()
	m.ValidationRules = map[string][]string{"email": {"required", "made_up"}}
	assert.Error(t, ParseMapping(m))

	m.ValidationRules = map[string][]string{"email": {"required", "email", "numeric", "unique"}}
	assert.NoError(t, ParseMapping(m))
}
