package domain

import "strings"

type Plan struct {
	Product string
}

func (p Plan) Active() bool {
	return strings.TrimSpace(p.Product) != ""
}

func PlanLabel(product string) string {
	normalized := strings.ToLower(strings.TrimSpace(product))
	switch {
	case normalized == "":
		return "None"
	case strings.Contains(normalized, "starter"), strings.Contains(normalized, "free"):
		return "Starter"
	case strings.Contains(normalized, "lite"):
		return "Lite"
	case strings.Contains(normalized, "business"):
		return "Business"
	default:
		return "Custom"
	}
}
