package extract

import (
	"regexp"
	"strings"

	"github.com/wolfman30/realty-lead-agent/internal/leads"
)

// Existing-customer keywords are checked before new-customer keywords, so
// text containing both resolves to existing.
var (
	existingCustomerWords = []string{"existing", "already", "client"}
	newCustomerWords      = []string{"new", "guest", "first time"}
)

// CustomerType detects a customer-type selection.
func CustomerType(text string) (leads.CustomerType, bool) {
	lower := strings.ToLower(text)
	for _, w := range existingCustomerWords {
		if strings.Contains(lower, w) {
			return leads.CustomerExisting, true
		}
	}
	for _, w := range newCustomerWords {
		if strings.Contains(lower, w) {
			return leads.CustomerNew, true
		}
	}
	return leads.CustomerUnknown, false
}

// ProjectRef identifies a catalog project.
type ProjectRef struct {
	ID   string
	Name string
}

// ProjectInterest returns the first project, in catalog order, whose name is
// contained in text. Matching is case-insensitive; there is no ranking.
func ProjectInterest(text string, projects []ProjectRef) (ProjectRef, bool) {
	lower := strings.ToLower(text)
	for _, p := range projects {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" || p.ID == "" {
			continue
		}
		if strings.Contains(lower, name) {
			return p, true
		}
	}
	return ProjectRef{}, false
}

var (
	purposeRE       = regexp.MustCompile(`(?i)residential|investment|commercial`)
	budgetRE        = regexp.MustCompile(`(?i)lakh|lac\b|crore|\bcr\b|\dcr\b`)
	possessionRE    = regexp.MustCompile(`(?i)ready|year`)
	configurationRE = regexp.MustCompile(`(?i)bhk|studio`)
)

// RequirementTags fires independent keyword triggers. Each fired field holds
// the whole trimmed utterance.
func RequirementTags(text string) leads.Requirements {
	text = strings.TrimSpace(text)
	var req leads.Requirements
	if text == "" {
		return req
	}
	if purposeRE.MatchString(text) {
		req.Purpose = text
	}
	if budgetRE.MatchString(text) {
		req.Budget = text
	}
	if possessionRE.MatchString(text) {
		req.Possession = text
	}
	if configurationRE.MatchString(text) {
		req.Configuration = text
	}
	return req
}
