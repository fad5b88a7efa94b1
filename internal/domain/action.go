package domain

import "strings"

// Action categories emitted by the recommendation generator.
const (
	ActionScalePromotion  = "scale_promotion"
	ActionInvestigate     = "investigate_underperformance"
	ActionWatchShareShift = "watch_share_shift"
	ActionMaintain        = "maintain"
)

var actionLabels = map[string]string{
	ActionScalePromotion:  "Scale promotion",
	ActionInvestigate:     "Investigate underperformance",
	ActionWatchShareShift: "Watch share shift",
	ActionMaintain:        "Maintain",
}

// ActionLabel returns a human-readable label for an action category.
func ActionLabel(category string) string {
	if label, ok := actionLabels[category]; ok {
		return label
	}

	return "Maintain"
}

// ParseAction returns the canonical action category for a label
// (case-insensitive), and whether it is known.
func ParseAction(label string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(label))
	for category, human := range actionLabels {
		if needle == category || needle == strings.ToLower(human) {
			return category, true
		}
	}

	return "", false
}
