package mapping

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go-deskmigrate/internal/features/source"
)

var allowedJoinTypes = map[string]bool{
	"INNER": true,
	"LEFT":  true,
	"RIGHT": true,
}

// mutating statement after a separator; best-effort safety net, not a
// substitute for parameterized execution
var mutatingAfterSeparator = regexp.MustCompile(`(?i);\s*(insert|update|delete|drop|alter|truncate|create|grant)\b`)

// ValidationResult is the outcome of a shallow mapping check
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// JoinSuggestion is one ranked join candidate derived from foreign keys
type JoinSuggestion struct {
	Table      string `json:"table"`
	On         string `json:"on"`
	Type       string `json:"type"`
	Confidence string `json:"confidence"` // high, medium
}

type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build assembles the query in fixed clause order:
// SELECT .. FROM .. JOIN .. WHERE .. ORDER BY .. LIMIT
func (b *Builder) Build(m *Mapping) string {
	var q strings.Builder

	q.WriteString("SELECT ")
	if len(m.SelectFields) > 0 {
		q.WriteString(strings.Join(m.SelectFields, ", "))
	} else {
		q.WriteString("*")
	}

	q.WriteString(" FROM ")
	q.WriteString(m.BaseTable)
	b.writeJoins(&q, m)

	if strings.TrimSpace(m.WhereConditions) != "" {
		q.WriteString(" WHERE ")
		q.WriteString(m.WhereConditions)
	}
	if strings.TrimSpace(m.OrderBy) != "" {
		q.WriteString(" ORDER BY ")
		q.WriteString(m.OrderBy)
	}
	if m.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", m.Limit))
	}

	return q.String()
}

// BuildCount shares FROM/JOIN/WHERE with Build and drops ORDER/LIMIT
func (b *Builder) BuildCount(m *Mapping) string {
	var q strings.Builder

	q.WriteString("SELECT COUNT(*) FROM ")
	q.WriteString(m.BaseTable)
	b.writeJoins(&q, m)

	if strings.TrimSpace(m.WhereConditions) != "" {
		q.WriteString(" WHERE ")
		q.WriteString(m.WhereConditions)
	}

	return q.String()
}

func (b *Builder) writeJoins(q *strings.Builder, m *Mapping) {
	for _, join := range m.Joins {
		joinType := strings.ToUpper(join.Type)
		if joinType == "" {
			joinType = "INNER"
		}
		q.WriteString(fmt.Sprintf(" %s JOIN %s ON %s", joinType, join.Table, join.On))
	}
}

// Validate performs shallow syntax and safety checks on a mapping
func (b *Builder) Validate(m *Mapping) ValidationResult {
	var result ValidationResult

	if strings.TrimSpace(m.BaseTable) == "" {
		result.Errors = append(result.Errors, "base_table is required")
	}
	if strings.TrimSpace(m.DestinationTable) == "" {
		result.Errors = append(result.Errors, "destination_table is required")
	}

	for i, join := range m.Joins {
		if strings.TrimSpace(join.Table) == "" || strings.TrimSpace(join.On) == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("join %d needs both table and on", i+1))
		}
		if join.Type != "" && !allowedJoinTypes[strings.ToUpper(join.Type)] {
			result.Errors = append(result.Errors, fmt.Sprintf("join %d has unsupported type %q", i+1, join.Type))
		}
	}

	if !balancedParens(m.WhereConditions) {
		result.Errors = append(result.Errors, "where_conditions has unbalanced parentheses")
	}
	if mutatingAfterSeparator.MatchString(m.WhereConditions) {
		result.Errors = append(result.Errors, "where_conditions contains a statement separator followed by a mutating keyword")
	}

	if len(m.FieldMappings) == 0 {
		result.Warnings = append(result.Warnings, "no field_mappings defined; rows will be copied as-is")
	}
	if err := ParseMapping(m); err != nil && len(result.Errors) == 0 {
		result.Errors = append(result.Errors, err.Error())
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// SuggestJoins ranks join candidates from schema foreign keys: keys
// from the base table score "high", keys into it score "medium".
func (b *Builder) SuggestJoins(schema *source.Schema, baseTable string) []JoinSuggestion {
	var suggestions []JoinSuggestion

	base := schema.Table(baseTable)
	if base != nil {
		for _, fk := range base.ForeignKeys {
			suggestions = append(suggestions, JoinSuggestion{
				Table:      fk.RefTable,
				On:         fmt.Sprintf("%s.%s = %s.%s", baseTable, fk.Column, fk.RefTable, fk.RefColumn),
				Type:       "INNER",
				Confidence: "high",
			})
		}
	}

	for _, t := range schema.Tables {
		if t.Name == baseTable {
			continue
		}
		for _, fk := range t.ForeignKeys {
			if fk.RefTable != baseTable {
				continue
			}
			suggestions = append(suggestions, JoinSuggestion{
				Table:      t.Name,
				On:         fmt.Sprintf("%s.%s = %s.%s", t.Name, fk.Column, baseTable, fk.RefColumn),
				Type:       "LEFT",
				Confidence: "medium",
			})
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return confidenceRank(suggestions[i].Confidence) > confidenceRank(suggestions[j].Confidence)
	})
	return suggestions
}

func confidenceRank(c string) int {
	switch c {
	case "high":
		return 2
	case "medium":
		return 1
	default:
		return 0
	}
}

func balancedParens(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
