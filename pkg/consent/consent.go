// Package consent decides when a step must gate identity capture behind an
// explicit consent checkbox, and resolves which policy document backs it.
package consent

import (
	"strings"

	"github.com/leadrail/leadrail/pkg/models"
)

// ResolvePolicyURL resolves the consent policy document for a step, checking the
// step-level override first, then the funnel settings, then the team default.
// An empty result means no policy is configured, which is a valid state and not
// an error: capture-intent steps without a policy are blocked at submit time
// instead (see the sequencer's configuration-error path).
func ResolvePolicyURL(step *models.Step, funnel *models.Funnel, team *models.Team) string {
	if step != nil {
		if link := step.PolicyLink(); link != "" {
			return link
		}
	}

	if funnel != nil {
		if link := strings.TrimSpace(funnel.Settings.PrivacyPolicyURL); link != "" {
			return link
		}
	}

	if team != nil {
		if link := strings.TrimSpace(team.PrivacyPolicyURL); link != "" {
			return link
		}
	}

	return ""
}

// RequiresCheckbox reports whether the step must render a consent checkbox:
// only capture-intent steps with a resolved policy document show one.
func RequiresCheckbox(step *models.Step, policyURL string) bool {
	if step == nil || step.Intent() != models.IntentCapture {
		return false
	}

	return policyURL != ""
}
