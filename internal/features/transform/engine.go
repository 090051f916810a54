package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/google/uuid"
)

// Namespace for deterministic identifiers. Fixed forever: changing it
// would break the source-id -> destination-id contract across reruns.
var idNamespace = uuid.MustParse("8f3c1d9a-4b2e-4c6d-9a71-5e0f2b8c4d13")

// DeterministicUUID maps (prefix, source id) to a stable identifier via
// a name-based SHA1 hash. Pure function: the same inputs yield the same
// output in any process on any run.
func DeterministicUUID(prefix string, id interface{}) string {
	return uuid.NewSHA1(idNamespace, []byte(prefix+normalizeID(id))).String()
}

// normalizeID renders numeric ids consistently regardless of how the
// driver decoded them (int64, float64, string, ...).
func normalizeID(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(n)
	case int:
		return strconv.Itoa(n)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case float32:
		return strconv.FormatInt(int64(n), 10)
	case float64:
		return strconv.FormatInt(int64(n), 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Apply runs one rule against a field value. Rules may read the whole
// source record but never a partially built destination record.
func (e *Engine) Apply(rule Rule, value interface{}, record map[string]interface{}) (interface{}, error) {
	switch rule.Kind {
	case RuleIntegerToUUID:
		return DeterministicUUID(rule.Prefix, value), nil

	case RuleCombineFields:
		return combine(record, rule.Fields, rule.Separator), nil

	case RuleConditionalName:
		if primary := asString(record[rule.PrimaryField]); primary != "" {
			return primary, nil
		}
		return combine(record, rule.FallbackFields, rule.FallbackSeparator), nil

	case RuleConditionalField:
		for _, cond := range rule.Conditions {
			if !conditionHolds(cond, record) {
				continue
			}
			if len(cond.CombineFields) > 0 {
				return combine(record, cond.CombineFields, cond.Separator), nil
			}
			return asString(record[cond.UseField]), nil
		}
		return rule.Default, nil

	case RuleRoleMapping, RuleStatusMapping, RuleSourceMapping, RuleThreadTypeMapping:
		key := asString(value)
		if mapped, ok := rule.Map[key]; ok {
			return mapped, nil
		}
		return rule.Default, nil

	case RuleDefaultValue, RuleStaticValue:
		return rule.Value, nil

	case RuleLookupBySourceUUID:
		ref := record[rule.SourceField]
		if asString(ref) == "" {
			return "", fmt.Errorf("lookup_by_source_uuid: field %s is empty", rule.SourceField)
		}
		return DeterministicUUID(rule.SourcePrefix, ref), nil

	case RuleConditionalLookupUUID:
		for _, cond := range rule.Conditions {
			if !conditionHolds(cond, record) {
				continue
			}
			ref := record[cond.SourceField]
			if asString(ref) == "" {
				return "", fmt.Errorf("conditional_lookup_uuid: field %s is empty", cond.SourceField)
			}
			return DeterministicUUID(cond.SourcePrefix, ref), nil
		}
		return rule.Default, nil

	case RuleScript:
		return e.runScript(rule.Script, value, record)

	default:
		return nil, fmt.Errorf("unknown rule kind: %q", rule.Kind)
	}
}

// ApplyAll maps a whole source record to a destination record. Every
// rule is applied independently against the source record, so there is
// no inter-field ordering dependency.
func (e *Engine) ApplyAll(record map[string]interface{}, rules map[string]Rule) (map[string]interface{}, error) {
	dest := make(map[string]interface{}, len(rules))
	for field, rule := range rules {
		out, err := e.Apply(rule, record[field], record)
		if err != nil {
			return nil, fmt.Errorf("rule for field %s: %w", field, err)
		}
		dest[field] = out
	}
	return dest, nil
}

// runScript evaluates a tengo script with the field value and record in
// scope; the script reports its result through the "output" variable.
func (e *Engine) runScript(src string, value interface{}, record map[string]interface{}) (interface{}, error) {
	script := tengo.NewScript([]byte(src))
	script.SetImports(stdlib.GetModuleMap("text", "math", "times"))

	_ = script.Add("value", value)
	_ = script.Add("record", record)
	_ = script.Add("output", nil)

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile script: %w", err)
	}
	if err := compiled.Run(); err != nil {
		return nil, fmt.Errorf("failed to run script: %w", err)
	}

	return compiled.Get("output").Value(), nil
}

func conditionHolds(cond Condition, record map[string]interface{}) bool {
	if !cond.IfNotEmpty {
		return true
	}
	return asString(record[cond.IfField]) != ""
}

func combine(record map[string]interface{}, fields []string, sep string) string {
	if sep == "" {
		sep = " "
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if v := asString(record[f]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}
