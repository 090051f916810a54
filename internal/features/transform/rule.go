package transform

import (
	"fmt"
)

// RuleKind enumerates every supported transformation rule. The set is
// closed: Apply switches exhaustively over it and ParseRule rejects
// anything else at load time.
type RuleKind string

const (
	RuleIntegerToUUID         RuleKind = "integer_to_uuid"
	RuleCombineFields         RuleKind = "combine_fields"
	RuleConditionalName       RuleKind = "conditional_name"
	RuleConditionalField      RuleKind = "conditional_field"
	RuleRoleMapping           RuleKind = "role_mapping"
	RuleStatusMapping         RuleKind = "status_mapping"
	RuleSourceMapping         RuleKind = "source_mapping"
	RuleThreadTypeMapping     RuleKind = "thread_type_mapping"
	RuleDefaultValue          RuleKind = "default_value"
	RuleStaticValue           RuleKind = "static_value"
	RuleLookupBySourceUUID    RuleKind = "lookup_by_source_uuid"
	RuleConditionalLookupUUID RuleKind = "conditional_lookup_uuid"
	RuleScript                RuleKind = "script"
)

// Condition is one branch of a conditional rule. First branch whose
// IfField is non-empty (when IfNotEmpty) wins. A branch either names a
// field to use, combines several fields, or derives a dependency id.
type Condition struct {
	IfField    string `json:"if_field" bson:"if_field"`
	IfNotEmpty bool   `json:"if_not_empty" bson:"if_not_empty"`
	UseField   string `json:"use_field,omitempty" bson:"use_field,omitempty"`

	// Nested combine_fields branch
	CombineFields []string `json:"combine_fields,omitempty" bson:"combine_fields,omitempty"`
	Separator     string   `json:"separator,omitempty" bson:"separator,omitempty"`

	// conditional_lookup_uuid branch
	SourceField  string `json:"source_field,omitempty" bson:"source_field,omitempty"`
	SourcePrefix string `json:"source_prefix,omitempty" bson:"source_prefix,omitempty"`
}

// Rule is a single declarative transformation. Only the fields relevant
// to its Kind are set; ParseRule enforces that the required ones are.
type Rule struct {
	Kind RuleKind `json:"kind" bson:"kind"`

	// integer_to_uuid / lookup_by_source_uuid
	Prefix       string `json:"prefix,omitempty" bson:"prefix,omitempty"`
	SourceField  string `json:"source_field,omitempty" bson:"source_field,omitempty"`
	SourcePrefix string `json:"source_prefix,omitempty" bson:"source_prefix,omitempty"`

	// combine_fields
	Fields    []string `json:"fields,omitempty" bson:"fields,omitempty"`
	Separator string   `json:"separator,omitempty" bson:"separator,omitempty"`

	// conditional_name
	PrimaryField      string   `json:"primary_field,omitempty" bson:"primary_field,omitempty"`
	FallbackFields    []string `json:"fallback_fields,omitempty" bson:"fallback_fields,omitempty"`
	FallbackSeparator string   `json:"fallback_separator,omitempty" bson:"fallback_separator,omitempty"`

	// conditional_field / conditional_lookup_uuid
	Conditions []Condition `json:"conditions,omitempty" bson:"conditions,omitempty"`

	// *_mapping lookup tables
	Map map[string]string `json:"map,omitempty" bson:"map,omitempty"`

	// default for mappings and conditionals, value for constants
	Default string `json:"default,omitempty" bson:"default,omitempty"`
	Value   string `json:"value,omitempty" bson:"value,omitempty"`

	// script source for the script rule
	Script string `json:"script,omitempty" bson:"script,omitempty"`
}

// ParseRule validates a rule once at load time so misconfigurations
// surface before the first row is processed.
func ParseRule(r Rule) (Rule, error) {
	switch r.Kind {
	case RuleIntegerToUUID:
		if r.Prefix == "" {
			return r, fmt.Errorf("integer_to_uuid requires a prefix")
		}
	case RuleCombineFields:
		if len(r.Fields) == 0 {
			return r, fmt.Errorf("combine_fields requires fields")
		}
	case RuleConditionalName:
		if r.PrimaryField == "" {
			return r, fmt.Errorf("conditional_name requires a primary_field")
		}
	case RuleConditionalField, RuleConditionalLookupUUID:
		if len(r.Conditions) == 0 {
			return r, fmt.Errorf("%s requires conditions", r.Kind)
		}
	case RuleRoleMapping, RuleStatusMapping, RuleSourceMapping, RuleThreadTypeMapping:
		if len(r.Map) == 0 {
			return r, fmt.Errorf("%s requires a lookup map", r.Kind)
		}
	case RuleDefaultValue, RuleStaticValue:
		// constants may legitimately be empty strings
	case RuleLookupBySourceUUID:
		if r.SourceField == "" || r.SourcePrefix == "" {
			return r, fmt.Errorf("lookup_by_source_uuid requires source_field and source_prefix")
		}
	case RuleScript:
		if r.Script == "" {
			return r, fmt.Errorf("script rule requires script source")
		}
	default:
		return r, fmt.Errorf("unknown rule kind: %q", r.Kind)
	}
	return r, nil
}

// ParseRuleMap validates every rule in a mapping document
func ParseRuleMap(rules map[string]Rule) (map[string]Rule, error) {
	out := make(map[string]Rule, len(rules))
	for field, r := range rules {
		parsed, err := ParseRule(r)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		out[field] = parsed
	}
	return out, nil
}
