package crm

import (
	"context"
	"sync"

	"github.com/wolfman30/realty-lead-agent/internal/leads"
	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

// Poster sends a lead to the CRM.
type Poster interface {
	Submit(ctx context.Context, lead Lead, idempotencyKey string) Result
}

// Submitter makes lead submission idempotent per (session, lead snapshot).
type Submitter struct {
	poster Poster
	ledger Ledger
	logger *logging.Logger

	// serializes check-then-post for the same key within this process
	mu       sync.Mutex
	inflight map[string]*sync.Mutex
}

// NewSubmitter wires a CRM poster with an idempotency ledger.
func NewSubmitter(poster Poster, ledger Ledger, logger *logging.Logger) *Submitter {
	if poster == nil {
		panic("crm: poster cannot be nil")
	}
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Submitter{poster: poster, ledger: ledger, logger: logger, inflight: make(map[string]*sync.Mutex)}
}

// IdempotencyKey derives the submission key for a session's lead.
func IdempotencyKey(sessionID string, rec *leads.Record) string {
	return sessionID + ":" + rec.SnapshotHash()
}

// SubmitLead posts rec unless the same snapshot was already accepted for
// this session. A ledger hit is reported as a deduplicated success.
func (s *Submitter) SubmitLead(ctx context.Context, sessionID string, rec *leads.Record) Result {
	if rec == nil {
		return failure("incomplete lead", 0, ErrIncompleteLead)
	}
	key := IdempotencyKey(sessionID, rec)

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	seen, err := s.ledger.AlreadySubmitted(ctx, key)
	if err != nil {
		s.logger.Warn("crm: ledger lookup failed", "session_id", sessionID, "error", err)
	} else if seen {
		s.logger.Info("crm: submission deduplicated", "session_id", sessionID)
		return Result{Status: StatusSuccess, Deduplicated: true}
	}

	res := s.poster.Submit(ctx, Lead{
		Name:      rec.Name,
		Phone:     rec.Phone,
		ProjectID: rec.InterestedProjectID,
		Remarks:   append(append([]string(nil), rec.Remarks...), requirementRemarks(rec.Requirements)...),
	}, key)
	if !res.OK() {
		return res
	}
	if _, err := s.ledger.MarkSubmitted(ctx, key, sessionID); err != nil {
		s.logger.Error("crm: failed to record submission", "session_id", sessionID, "error", err)
	}
	return res
}

func (s *Submitter) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.inflight[key]
	if !ok {
		l = &sync.Mutex{}
		s.inflight[key] = l
	}
	return l
}

func requirementRemarks(req leads.Requirements) []string {
	var out []string
	add := func(label, v string) {
		if v != "" {
			out = append(out, label+": "+v)
		}
	}
	add("Purpose", req.Purpose)
	add("Budget", req.Budget)
	add("Possession", req.Possession)
	add("Configuration", req.Configuration)
	return out
}
