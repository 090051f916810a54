package dedupe

// ImportMode governs how a detection result becomes an action
type ImportMode string

const (
	ModeCreate ImportMode = "create"
	ModeUpdate ImportMode = "update"
	ModeUpsert ImportMode = "upsert"
)

// Action is what the orchestrator should do with the candidate row
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// PolicyFlags are the profile toggles consulted by DecidePolicy
type PolicyFlags struct {
	SkipDuplicates   bool `json:"skip_duplicates" bson:"skip_duplicates"`
	UpdateDuplicates bool `json:"update_duplicates" bson:"update_duplicates"`
}

// Decision pairs the action with the match it applies to (if any)
type Decision struct {
	Action Action
	Match  *Match
}

// DecidePolicy turns a detection result into a create/update/skip
// decision. Duplicate hits are policy, not errors.
func DecidePolicy(result *Result, mode ImportMode, flags PolicyFlags) Decision {
	var best *Match
	if result != nil && len(result.Matches) > 0 {
		best = &result.Matches[0]
	}
	isDup := result != nil && result.IsDuplicate

	switch mode {
	case ModeCreate:
		if isDup && flags.SkipDuplicates {
			return Decision{Action: ActionSkip, Match: best}
		}
		return Decision{Action: ActionCreate}

	case ModeUpdate:
		if best != nil {
			return Decision{Action: ActionUpdate, Match: best}
		}
		return Decision{Action: ActionSkip}

	default: // upsert
		if best != nil && isDup {
			if flags.UpdateDuplicates {
				return Decision{Action: ActionUpdate, Match: best}
			}
			return Decision{Action: ActionSkip, Match: best}
		}
		return Decision{Action: ActionCreate}
	}
}
