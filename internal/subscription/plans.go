package subscription

// Plan names a pricing tier.
type Plan string

const (
	PlanBasic     Plan = "basic"
	PlanPremium   Plan = "premium"
	PlanUnlimited Plan = "unlimited"
)

// PlanConfig defines quota limits for a pricing tier. Tier orders the
// catalogue: Upgrade only accepts a target with a strictly higher tier.
type PlanConfig struct {
	Plan            Plan
	Tier            int
	MaxListings     int   // 0 = unlimited
	MaxAds          int   // 0 = unlimited
	PriceMinorUnits int64 // per 30-day period, in paise
}

// Plans is the hardcoded plan catalogue.
var Plans = map[Plan]PlanConfig{
	PlanBasic: {
		Plan:            PlanBasic,
		Tier:            1,
		MaxListings:     10,
		MaxAds:          5,
		PriceMinorUnits: 0,
	},
	PlanPremium: {
		Plan:            PlanPremium,
		Tier:            2,
		MaxListings:     50,
		MaxAds:          20,
		PriceMinorUnits: 49900,
	},
	PlanUnlimited: {
		Plan:            PlanUnlimited,
		Tier:            3,
		MaxListings:     0,
		MaxAds:          0,
		PriceMinorUnits: 99900,
	},
}

// ValidPlan returns true if the plan name is recognised.
func ValidPlan(p Plan) bool {
	_, ok := Plans[p]
	return ok
}
