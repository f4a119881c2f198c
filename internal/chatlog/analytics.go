package chatlog

import (
	"fmt"
	"sort"
)

const topProjectLimit = 5

// Summarize groups entries by session in first-seen order. The lead info of
// a session is its latest snapshot.
func Summarize(entries []Entry) []SessionSummary {
	index := make(map[string]int)
	var out []SessionSummary
	for _, e := range entries {
		i, ok := index[e.SessionID]
		if !ok {
			index[e.SessionID] = len(out)
			out = append(out, SessionSummary{
				SessionID:    e.SessionID,
				FirstMessage: e.Timestamp,
			})
			i = len(out) - 1
		}
		s := &out[i]
		s.MessageCount++
		s.LastMessage = e.Timestamp
		s.LeadInfo = e.LeadData
	}
	return out
}

// Compute derives analytics from the full log.
func Compute(entries []Entry) Analytics {
	sessions := Summarize(entries)
	a := Analytics{
		TotalVisitors: len(sessions),
		TotalMessages: len(entries),
		TopProjects:   []ProjectCount{},
	}

	interest := make(map[string]int)
	for _, s := range sessions {
		if s.LeadInfo.Phone != "" {
			a.LeadsCaptured++
		}
		if s.LeadInfo.PhoneVerified {
			a.VerifiedLeads++
		}
		if s.LeadInfo.LeadSubmitted {
			a.SubmittedLeads++
		}
		if name := s.LeadInfo.InterestedProjectName; name != "" {
			interest[name]++
		}
	}

	if a.TotalVisitors > 0 {
		a.ConversionRate = fmt.Sprintf("%.1f%%", float64(a.LeadsCaptured)/float64(a.TotalVisitors)*100)
	} else {
		a.ConversionRate = "0%"
	}

	for name, n := range interest {
		a.TopProjects = append(a.TopProjects, ProjectCount{Project: name, Count: n})
	}
	sort.Slice(a.TopProjects, func(i, j int) bool {
		if a.TopProjects[i].Count != a.TopProjects[j].Count {
			return a.TopProjects[i].Count > a.TopProjects[j].Count
		}
		return a.TopProjects[i].Project < a.TopProjects[j].Project
	})
	if len(a.TopProjects) > topProjectLimit {
		a.TopProjects = a.TopProjects[:topProjectLimit]
	}
	return a
}

// Newest returns up to n entries, newest first.
func Newest(entries []Entry, n int) []Entry {
	if n <= 0 || n > len(entries) {
		n = len(entries)
	}
	out := make([]Entry, 0, n)
	for i := len(entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, entries[i])
	}
	return out
}
