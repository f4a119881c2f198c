package chatlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

const csvResponseLimit = 200

var csvHeader = []string{"session_id", "timestamp", "user_message", "ai_response", "name", "phone", "project_interest"}

// WriteCSV exports entries with the AI response truncated.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("chatlog: write csv header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.SessionID,
			e.FormattedTime,
			e.UserMessage,
			truncateRunes(e.AIResponse, csvResponseLimit),
			e.LeadData.Name,
			e.LeadData.Phone,
			e.LeadData.InterestedProjectName,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("chatlog: write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("chatlog: flush csv: %w", err)
	}
	return nil
}

// ExportName is the file name used for a CSV export taken at t.
func ExportName(t time.Time) string {
	return fmt.Sprintf("conversation_export_%s.csv", t.Format("20060102_150405"))
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
