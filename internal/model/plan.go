package model

import "strings"

// Plan is a purchasable package. Prices are in naira.
type Plan struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	OriginalPrice int64  `json:"originalPrice"`
}

// Plans is the static catalog of packages on sale.
var Plans = map[string]Plan{
	"template": {
		ID:            "template",
		Name:          "Template",
		Price:         120000,
		OriginalPrice: 180000,
	},
	"template-setup": {
		ID:            "template-setup",
		Name:          "Template + Setup",
		Price:         200000,
		OriginalPrice: 350000,
	},
}

// LookupPlan returns the catalog entry for id.
func LookupPlan(id string) (Plan, bool) {
	p, ok := Plans[id]
	return p, ok
}

// IsSetupPackage reports whether the package includes onboarding work.
func IsSetupPackage(name string) bool {
	return strings.Contains(name, "Setup")
}
