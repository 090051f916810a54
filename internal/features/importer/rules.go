package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go-deskmigrate/internal/features/transform"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Built-in rule sets for the desk entity pipeline. Profiles can override
// individual fields through their mappings; these cover the common
// shape of helpdesk exports out of the box.

var defaultTicketRules = map[string]transform.Rule{
	"status": {
		Kind: transform.RuleStatusMapping,
		Map: map[string]string{
			"1": "open",
			"2": "open",
			"3": "pending",
			"4": "resolved",
			"5": "closed",
		},
		Default: "open",
	},
	"priority": {
		Kind: transform.RuleStatusMapping,
		Map: map[string]string{
			"1": "low",
			"2": "medium",
			"3": "high",
			"4": "urgent",
		},
		Default: "medium",
	},
	"source": {
		Kind: transform.RuleSourceMapping,
		Map: map[string]string{
			"1": "email",
			"2": "portal",
			"3": "phone",
			"7": "chat",
			"9": "feedback_widget",
		},
		Default: "email",
	},
}

var defaultCommentRules = map[string]transform.Rule{
	"type": {
		Kind: transform.RuleThreadTypeMapping,
		Map: map[string]string{
			"true":  "note",
			"false": "reply",
		},
		Default: "reply",
	},
}

var defaultAgentRules = map[string]transform.Rule{
	"role": {
		Kind: transform.RuleRoleMapping,
		Map: map[string]string{
			"1": "agent",
			"2": "supervisor",
			"3": "admin",
		},
		Default: "agent",
	},
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// validateField applies one named validation rule to a value
func validateField(field, rule string, value interface{}) error {
	s := strings.TrimSpace(fmt.Sprintf("%v", value))
	if value == nil {
		s = ""
	}

	switch rule {
	case "required":
		if s == "" {
			return &ValidationError{Field: field, Reason: "value is required"}
		}
	case "email":
		if s != "" && !emailPattern.MatchString(s) {
			return &ValidationError{Field: field, Reason: "not a valid email address"}
		}
	case "numeric":
		if s != "" {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				return &ValidationError{Field: field, Reason: "not numeric"}
			}
		}
	case "unique":
		// checked against the run's seen-set by the caller, since it
		// needs job state
	}
	return nil
}

// fieldsUnchanged reports whether the destination row already carries
// every value about to be written. Values are compared as normalized
// strings because a BSON round trip does not preserve Go types.
func fieldsUnchanged(current, fields map[string]interface{}) bool {
	for k, v := range fields {
		if normalizeValue(current[k]) != normalizeValue(v) {
			return false
		}
	}
	return true
}

func normalizeValue(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return normalizeValue(float64(n))
	case int:
		return strconv.Itoa(n)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case bool:
		return strconv.FormatBool(n)
	case time.Time:
		return n.UTC().Format(time.RFC3339)
	case primitive.DateTime:
		return n.Time().UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// emailDomain extracts the part after @, lowercased
func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
