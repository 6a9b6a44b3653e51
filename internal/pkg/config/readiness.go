package config

// Readiness describes whether the payout provider integration can serve
// traffic.
type Readiness struct {
	Ready        bool     `json:"ready"`
	ProviderMode string   `json:"provider_mode"`
	Reasons      []string `json:"reasons,omitempty"`
}

// Readiness reports the provider mode and why the integration is not ready.
func (c Settlement) Readiness() Readiness {
	var reasons []string
	if c.ProviderAPIKey == "" {
		reasons = append(reasons, "OPENNODE_API_KEY is not configured")
	}
	if c.CallbackURL != "" {
		if problem := callbackURLProblem(c.CallbackURL); problem != "" {
			reasons = append(reasons, problem)
		}
	}
	return Readiness{
		Ready:        len(reasons) == 0,
		ProviderMode: c.ProviderMode(),
		Reasons:      reasons,
	}
}
