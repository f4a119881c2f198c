// Package chatlog keeps the append-only conversation log and derives
// visitor and lead analytics from it.
package chatlog

import (
	"time"

	"github.com/wolfman30/realty-lead-agent/internal/leads"
)

const formattedTimeLayout = "2006-01-02 15:04:05"

// Entry is one logged turn.
type Entry struct {
	ID            string       `json:"id"`
	SessionID     string       `json:"session_id"`
	Timestamp     time.Time    `json:"timestamp"`
	FormattedTime string       `json:"formatted_time"`
	UserMessage   string       `json:"user_message"`
	AIResponse    string       `json:"ai_response"`
	Stage         string       `json:"stage,omitempty"`
	LeadData      leads.Record `json:"lead_data"`
}

// SessionSummary aggregates the entries of one session.
type SessionSummary struct {
	SessionID    string       `json:"session_id"`
	FirstMessage time.Time    `json:"first_message"`
	LastMessage  time.Time    `json:"last_message"`
	MessageCount int          `json:"message_count"`
	LeadInfo     leads.Record `json:"lead_info"`
}

// ProjectCount is a project name with the number of sessions interested in it.
type ProjectCount struct {
	Project string `json:"project"`
	Count   int    `json:"count"`
}

// Analytics summarizes the whole log.
type Analytics struct {
	TotalVisitors  int            `json:"total_visitors"`
	TotalMessages  int            `json:"total_messages"`
	LeadsCaptured  int            `json:"leads_captured"`
	VerifiedLeads  int            `json:"verified_leads"`
	SubmittedLeads int            `json:"submitted_leads"`
	ConversionRate string         `json:"conversion_rate"`
	TopProjects    []ProjectCount `json:"top_projects"`
}
