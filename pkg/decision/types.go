package decision

// Action is the outcome of evaluating one event.
type Action string

const (
	// ActionAllow permits the event.
	ActionAllow Action = "allow"

	// ActionDeny blocks the event.
	ActionDeny Action = "deny"
)

// Decision is the result of evaluating one event against an app's
// effective policy. Rule names the decisive rule: a structured policy
// field, a rule module id, or "default".
type Decision struct {
	Action Action `json:"action"`
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// Allowed reports whether the decision permits the event.
func (d Decision) Allowed() bool {
	return d.Action == ActionAllow
}

func deny(rule, reason string) Decision {
	return Decision{Action: ActionDeny, Rule: rule, Reason: reason}
}

func allow(rule, reason string) Decision {
	return Decision{Action: ActionAllow, Rule: rule, Reason: reason}
}
