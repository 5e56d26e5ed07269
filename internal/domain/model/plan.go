package model

import "strings"

// PlanTier names a subscription plan.
type PlanTier string

const (
	// PlanTierFree is the default tier for accounts without a subscription.
	PlanTierFree PlanTier = "free"
	// PlanTierLaunch is the entry paid tier.
	PlanTierLaunch PlanTier = "launch"
	// PlanTierStarter is the top self-serve tier.
	PlanTierStarter PlanTier = "starter"
)

// unlimitedQuotaFloor marks quotas treated as unlimited for credit math.
const unlimitedQuotaFloor = 1_000_000

// PlanEntitlement describes what a plan tier allows.
type PlanEntitlement struct {
	Tier              PlanTier
	MonthlyLeadQuota  int
	InstagramEnabled  bool
	MaxConcurrentJobs int
}

// Unlimited reports whether the plan's lead quota is effectively uncapped.
func (e PlanEntitlement) Unlimited() bool {
	return e.MonthlyLeadQuota >= unlimitedQuotaFloor
}

// defaultPlans holds the built-in entitlement table.
var defaultPlans = map[PlanTier]PlanEntitlement{
	PlanTierFree:    {Tier: PlanTierFree, MonthlyLeadQuota: 100, InstagramEnabled: false, MaxConcurrentJobs: 1},
	PlanTierLaunch:  {Tier: PlanTierLaunch, MonthlyLeadQuota: 500, InstagramEnabled: true, MaxConcurrentJobs: 2},
	PlanTierStarter: {Tier: PlanTierStarter, MonthlyLeadQuota: 2500, InstagramEnabled: true, MaxConcurrentJobs: 3},
}

// legacyPlanAliases maps retired tier names onto their current equivalents.
var legacyPlanAliases = map[string]PlanTier{
	"agency": PlanTierStarter,
	"growth": PlanTierStarter,
}

// PlanFor resolves the entitlement for a tier name, falling back to free.
func PlanFor(tier PlanTier) PlanEntitlement {
	if e, ok := defaultPlans[tier]; ok {
		return e
	}
	return defaultPlans[PlanTierFree]
}

// KnownPlanTier reports whether the name is a current or legacy tier.
func KnownPlanTier(name string) bool {
	t := PlanTier(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := defaultPlans[t]; ok {
		return true
	}
	_, ok := legacyPlanAliases[string(t)]
	return ok
}

// InferPlanTier resolves a tenant's effective tier from its stored tier name
// and subscription status. Unknown tiers fall back to launch for active
// subscriptions and free otherwise.
func InferPlanTier(storedTier string, subscriptionStatus *string) PlanTier {
	name := strings.ToLower(strings.TrimSpace(storedTier))
	if alias, ok := legacyPlanAliases[name]; ok {
		return alias
	}
	if _, ok := defaultPlans[PlanTier(name)]; ok {
		return PlanTier(name)
	}

	if subscriptionStatus != nil {
		switch strings.ToLower(strings.TrimSpace(*subscriptionStatus)) {
		case "active", "on_trial", "trialing":
			return PlanTierLaunch
		}
	}
	return PlanTierFree
}
