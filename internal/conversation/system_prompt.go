package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/realty-lead-agent/internal/catalog"
	"github.com/wolfman30/realty-lead-agent/internal/leads"
)

const (
	officeAddress = "Office no. 10, 11 & 12 Ninex City Mart, Sector 49, Gurgaon, Haryana 122001, India"
	salesEmail    = "sales@amoghbuildtech.com"
)

const systemPromptTemplate = `You are a senior real estate sales consultant at %[1]s. You speak with website visitors the way an experienced Indian property consultant would: warm, confident and brief. Never mention being an AI, a bot, a model or a prompt. Stay in character.

GOAL
Guide the visitor from requirement to shortlisted projects to a free site visit, and capture a qualified lead along the way:
1. Whether they are an existing customer or a new visitor
2. Their name (ask once, never again once known)
3. Their requirement: purpose (end-use, investment, commercial), budget, possession timeline, configuration
4. The project they are interested in
5. Their 10 digit mobile number, verified with a one-time code

FLOW RULES
- Never restart the conversation or repeat your introduction.
- Never ask a question whose answer is already in the lead status.
- Ask at most two questions per reply.
- When asking for the phone number, include a PhoneInput block.
- When a verification code has been sent, include an OTPInput block and ask the visitor to type the code.
- If the number looks short or invalid, ask politely for a complete 10 digit number.
- Site visits are free and a driver can pick the visitor up.
- Payment plan questions outside the catalog data go to a call with the sales team at %[2]s.

LEAD STATUS AT SESSION START
%[3]s

CONTACT (share only when asked)
- Office: %[4]s
- Email: %[5]s
- Phone: %[2]s

UI BLOCKS
Pick the blocks that suit the reply. Available components:
- Text {"text": string}
- Options {"options": [string]}
- PhoneInput {"placeholder": string}
- OTPInput {"length": 6}
- ProjectTable {"projects": [{"id","name","location","price_range","configurations","possession","link"}]}
- ImageGallery {"images": [string]}
- ProjectLinks {"links": [{"name","link"}]}
- Actions {"actions": [{"label","value"}]}
Only use project data listed below. Never invent prices, dates or links.

PROJECTS
%[6]s

RESPONSE FORMAT
Reply with one JSON object and nothing else:
{"blocks": [{"component": "Text", "props": {"text": "..."}}]}`

// promptProject is the slice of a catalog record the model needs.
type promptProject struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Location       string   `json:"location,omitempty"`
	PriceRange     string   `json:"price_range,omitempty"`
	Configurations []string `json:"configurations,omitempty"`
	Possession     string   `json:"possession,omitempty"`
	Link           string   `json:"link,omitempty"`
}

func buildSystemPrompt(company, contact string, lead *leads.Record, projects []catalog.Project) string {
	return fmt.Sprintf(systemPromptTemplate,
		company,
		contact,
		leadSummary(lead),
		officeAddress,
		salesEmail,
		projectListing(projects),
	)
}

func projectListing(projects []catalog.Project) string {
	if len(projects) == 0 {
		return "No project data is available right now. Offer a call with the sales team instead of quoting details."
	}
	items := make([]promptProject, 0, len(projects))
	for _, p := range projects {
		items = append(items, promptProject{
			ID:             p.ID,
			Name:           p.Name,
			Location:       p.Location,
			PriceRange:     p.PriceRange,
			Configurations: p.Configurations,
			Possession:     p.Possession,
			Link:           p.Link,
		})
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "No project data is available right now."
	}
	return string(raw)
}

func leadSummary(lead *leads.Record) string {
	if lead == nil {
		lead = leads.New()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "- Customer type: %s\n", lead.CustomerType)
	fmt.Fprintf(&b, "- Name: %s\n", orUnknown(lead.Name, "NOT CAPTURED"))
	fmt.Fprintf(&b, "- Phone: %s\n", orUnknown(lead.Phone, "NOT CAPTURED"))
	fmt.Fprintf(&b, "- Phone verified: %t\n", lead.PhoneVerified)
	fmt.Fprintf(&b, "- Interested project: %s\n", orUnknown(lead.InterestedProjectName, "NOT IDENTIFIED"))
	req := lead.Requirements
	fmt.Fprintf(&b, "- Purpose: %s\n", orUnknown(req.Purpose, "unknown"))
	fmt.Fprintf(&b, "- Budget: %s\n", orUnknown(req.Budget, "unknown"))
	fmt.Fprintf(&b, "- Possession: %s\n", orUnknown(req.Possession, "unknown"))
	fmt.Fprintf(&b, "- Configuration: %s\n", orUnknown(req.Configuration, "unknown"))
	fmt.Fprintf(&b, "- Lead submitted: %t", lead.LeadSubmitted)
	return b.String()
}

// leadStatusBlock is sent with every call and never stored in history.
func leadStatusBlock(stage leads.Stage, lead *leads.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CURRENT STAGE: %s\n", stage)
	b.WriteString("CURRENT LEAD STATUS\n")
	b.WriteString(leadSummary(lead))
	if hint := stageHint(stage); hint != "" {
		b.WriteString("\nNEXT STEP: ")
		b.WriteString(hint)
	}
	return b.String()
}

func stageHint(stage leads.Stage) string {
	switch stage {
	case leads.StageInitial:
		return "Greet the visitor and ask whether they are an existing customer or new, with Options."
	case leads.StageCustomerTypeSelected, leads.StageNameRequest:
		return "Ask for the visitor's name."
	case leads.StageNameCollected:
		return "Use the name and discover the requirement."
	case leads.StagePhoneRequest:
		return "Ask for the mobile number with a PhoneInput block."
	case leads.StagePhoneInvalid:
		return "The number was not a valid 10 digit mobile number. Ask again with a PhoneInput block."
	case leads.StagePhoneCollected:
		return "The verification code could not be sent yet. Reassure the visitor and keep discussing the requirement."
	case leads.StageOTPSent:
		return "A verification code was sent. Ask for it with an OTPInput block."
	case leads.StageOTPInvalid:
		return "The code did not match. Ask the visitor to try again with an OTPInput block, or offer to resend."
	case leads.StageVerified, leads.StageRequirementGathering:
		return "The number is verified. Shortlist matching projects and propose a site visit."
	default:
		return ""
	}
}

func orUnknown(v, unknown string) string {
	if strings.TrimSpace(v) == "" {
		return unknown
	}
	return v
}
