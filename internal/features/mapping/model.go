package mapping

import (
	"fmt"
	"time"

	"go-deskmigrate/internal/features/transform"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Join is one join clause of a declarative query
type Join struct {
	Table string `json:"table" bson:"table"`
	On    string `json:"on" bson:"on"`
	Type  string `json:"type" bson:"type"` // INNER, LEFT, RIGHT
}

// Mapping is the declarative query/mapping document that drives a
// generic import. import_order defines a total execution order across
// the mappings of a profile; later mappings may assume earlier ones'
// destination rows exist.
type Mapping struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ProfileID primitive.ObjectID `json:"profile_id" bson:"profile_id"`
	Name      string             `json:"name" bson:"name"`

	BaseTable       string   `json:"base_table" bson:"base_table"`
	Joins           []Join   `json:"joins,omitempty" bson:"joins,omitempty"`
	WhereConditions string   `json:"where_conditions,omitempty" bson:"where_conditions,omitempty"`
	SelectFields    []string `json:"select_fields,omitempty" bson:"select_fields,omitempty"`
	OrderBy         string   `json:"order_by,omitempty" bson:"order_by,omitempty"`
	Limit           int      `json:"limit,omitempty" bson:"limit,omitempty"`

	DestinationTable    string                    `json:"destination_table" bson:"destination_table"`
	FieldMappings       map[string]string         `json:"field_mappings" bson:"field_mappings"`
	TransformationRules map[string]transform.Rule `json:"transformation_rules,omitempty" bson:"transformation_rules,omitempty"`
	ValidationRules     map[string][]string       `json:"validation_rules,omitempty" bson:"validation_rules,omitempty"`

	ImportOrder int  `json:"import_order" bson:"import_order"`
	IsActive    bool `json:"is_active" bson:"is_active"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// knownValidationRules guards validation_rules at load time
var knownValidationRules = map[string]bool{
	"required": true,
	"email":    true,
	"numeric":  true,
	"unique":   true,
}

// ParseMapping validates a mapping document once, when it is loaded,
// so unknown rule kinds fail early rather than on the first row.
func ParseMapping(m *Mapping) error {
	if m.BaseTable == "" {
		return fmt.Errorf("base_table is required")
	}
	if m.DestinationTable == "" {
		return fmt.Errorf("destination_table is required")
	}

	rules, err := transform.ParseRuleMap(m.TransformationRules)
	if err != nil {
		return err
	}
	m.TransformationRules = rules

	for field, ruleNames := range m.ValidationRules {
		for _, name := range ruleNames {
			if !knownValidationRules[name] {
				return fmt.Errorf("field %s: unknown validation rule %q", field, name)
			}
		}
	}
	return nil
}
