package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/realty-lead-agent/internal/blocks"
	"github.com/wolfman30/realty-lead-agent/internal/catalog"
	"github.com/wolfman30/realty-lead-agent/internal/chatlog"
	"github.com/wolfman30/realty-lead-agent/internal/crm"
	"github.com/wolfman30/realty-lead-agent/internal/extract"
	"github.com/wolfman30/realty-lead-agent/internal/leads"
	"github.com/wolfman30/realty-lead-agent/internal/observability/metrics"
	"github.com/wolfman30/realty-lead-agent/internal/otp"
	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

var tracer = otel.Tracer("realty.internal.conversation")

const (
	defaultLLMTimeout  = 30 * time.Second
	defaultTemperature = 0.3
	defaultMaxTokens   = 1024
	defaultCompany     = "Amogh Buildtech"
)

// OTPService issues and checks phone verification codes.
type OTPService interface {
	Send(ctx context.Context, phone string) (otp.DeliveryResult, error)
	Verify(ctx context.Context, phone, code string) (otp.VerifyResult, error)
}

// LeadSubmitter pushes a qualified lead to the CRM.
type LeadSubmitter interface {
	SubmitLead(ctx context.Context, sessionID string, rec *leads.Record) crm.Result
}

// TurnLogger records each completed turn.
type TurnLogger interface {
	Append(ctx context.Context, e chatlog.Entry) error
}

// TurnResult is the reply to one visitor message.
type TurnResult struct {
	SessionID string         `json:"session_id"`
	Payload   blocks.Payload `json:"payload"`
	Stage     leads.Stage    `json:"stage"`
	Lead      leads.Record   `json:"lead"`
	// Degraded is set when the reply is the fallback payload.
	Degraded          bool   `json:"degraded"`
	OTPEchoedForDebug string `json:"otp_echoed_for_debug,omitempty"`
}

// StatusSnapshot describes a session without advancing it.
type StatusSnapshot struct {
	SessionID    string       `json:"session_id"`
	Stage        leads.Stage  `json:"stage"`
	Lead         leads.Record `json:"lead"`
	MessageCount int          `json:"message_count"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type orchestratorConfig struct {
	company     string
	contact     string
	model       string
	temperature float32
	maxTokens   int32
	llmTimeout  time.Duration
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSessionStore overrides the in-memory session store.
func WithSessionStore(store SessionStore) OrchestratorOption {
	return func(o *Orchestrator) {
		if store != nil {
			o.sessions = store
		}
	}
}

// WithCatalog sets the project source used for prompts and interest detection.
func WithCatalog(f catalog.Fetcher) OrchestratorOption {
	return func(o *Orchestrator) { o.catalog = f }
}

// WithTurnLogger sets the conversation log sink.
func WithTurnLogger(l TurnLogger) OrchestratorOption {
	return func(o *Orchestrator) { o.turnLog = l }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.LeadMetrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithBranding sets the company name and the human sales contact.
func WithBranding(company, contact string) OrchestratorOption {
	return func(o *Orchestrator) {
		if strings.TrimSpace(company) != "" {
			o.cfg.company = company
		}
		o.cfg.contact = contact
	}
}

// WithModel overrides model id, sampling temperature and call timeout.
func WithModel(model string, temperature float32, timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.cfg.model = model
		o.cfg.temperature = temperature
		if timeout > 0 {
			o.cfg.llmTimeout = timeout
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator runs the lead qualification state machine for each turn.
type Orchestrator struct {
	llm      LLMClient
	otp      OTPService
	crm      LeadSubmitter
	sessions SessionStore
	catalog  catalog.Fetcher
	turnLog  TurnLogger
	metrics  *metrics.LeadMetrics
	logger   *logging.Logger

	cfg   orchestratorConfig
	locks *sessionLocks
	now   func() time.Time
}

// NewOrchestrator wires the state machine around its collaborators.
func NewOrchestrator(llm LLMClient, otpSvc OTPService, submitter LeadSubmitter, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if otpSvc == nil {
		panic("conversation: otp service cannot be nil")
	}
	if submitter == nil {
		panic("conversation: lead submitter cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	o := &Orchestrator{
		llm:      llm,
		otp:      otpSvc,
		crm:      submitter,
		sessions: NewMemorySessionStore(defaultSessionTTL),
		logger:   logger,
		cfg: orchestratorConfig{
			company:     defaultCompany,
			temperature: defaultTemperature,
			maxTokens:   defaultMaxTokens,
			llmTimeout:  defaultLLMTimeout,
		},
		locks: newSessionLocks(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// turn carries the mutable state of one HandleTurn call.
type turn struct {
	session   *Session
	message   string
	start     leads.Stage
	debugCode string
}

// HandleTurn processes one visitor message. Turns for the same session run
// one at a time; an empty sessionID starts a new session.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if strings.TrimSpace(sessionID) == "" {
		sessionID = uuid.NewString()
	}

	ctx, span := tracer.Start(ctx, "conversation.turn")
	defer span.End()
	span.SetAttributes(attribute.String("realty.session_id", sessionID))

	unlock := o.locks.Lock(sessionID)
	defer unlock()

	session, err := o.loadOrCreate(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		o.metrics.ObserveTurn("store_error")
		return nil, err
	}

	t := &turn{session: session, message: message, start: session.Stage}
	o.routeStage(t)
	o.applyExtractors(ctx, t)

	projects := o.fetchProjects(ctx)
	o.detectProject(session.Lead, message, projects)
	session.Lead.ApplyRequirements(extract.RequirementTags(message))

	history := session.History
	if len(history) == 0 {
		history = []ChatMessage{{
			Role:    ChatRoleSystem,
			Content: buildSystemPrompt(o.cfg.company, o.cfg.contact, session.Lead, projects),
		}}
	}
	userMsg := ChatMessage{
		Role:    ChatRoleUser,
		Content: fmt.Sprintf("[stage: %s] %s", session.Stage, message),
	}
	req := LLMRequest{
		Model:       o.cfg.model,
		System:      []string{leadStatusBlock(session.Stage, session.Lead)},
		Messages:    append(append([]ChatMessage(nil), history...), userMsg),
		MaxTokens:   o.cfg.maxTokens,
		Temperature: o.cfg.temperature,
		JSONOutput:  true,
	}

	llmCtx, cancel := context.WithTimeout(ctx, o.cfg.llmTimeout)
	resp, err := o.llm.Complete(llmCtx, req)
	cancel()
	if err != nil {
		span.RecordError(err)
		o.logger.Error("conversation: llm call failed", "session_id", sessionID, "stage", session.Stage, "error", err)
		payload := blocks.Fallback(o.cfg.contact)
		if saveErr := o.save(ctx, t); saveErr != nil {
			return nil, saveErr
		}
		o.logTurn(ctx, t, payload)
		o.metrics.ObserveTurn("llm_error")
		return o.result(t, payload, true), nil
	}

	payload := blocks.Normalize(resp.Text, o.cfg.contact)
	o.detectProject(session.Lead, payload.Text(), projects)
	o.advanceAfterReply(t, payload)
	payload = ensureInputBlock(session.Stage, payload)

	o.submitIfReady(ctx, t)

	session.History = append(history, userMsg, ChatMessage{Role: ChatRoleAssistant, Content: payload.JSON()})
	if err := o.save(ctx, t); err != nil {
		span.RecordError(err)
		return nil, err
	}
	o.logTurn(ctx, t, payload)
	o.metrics.ObserveTurn("ok")
	span.SetAttributes(attribute.String("realty.stage", string(session.Stage)))
	return o.result(t, payload, false), nil
}

// Status returns the current lead snapshot of a session.
func (o *Orchestrator) Status(ctx context.Context, sessionID string) (*StatusSnapshot, error) {
	session, err := o.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &StatusSnapshot{
		SessionID:    session.ID,
		Stage:        session.Stage,
		Lead:         *session.Lead.Clone(),
		MessageCount: countMessages(session.History),
		UpdatedAt:    session.UpdatedAt,
	}, nil
}

// Reset discards a session so the next turn starts a fresh lead record.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) error {
	unlock := o.locks.Lock(sessionID)
	defer unlock()
	if err := o.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	o.logger.Info("conversation: session reset", "session_id", sessionID)
	return nil
}

func (o *Orchestrator) loadOrCreate(ctx context.Context, sessionID string) (*Session, error) {
	session, err := o.sessions.Load(ctx, sessionID)
	if err == nil {
		return session, nil
	}
	if errors.Is(err, ErrSessionNotFound) {
		return NewSession(sessionID, o.now()), nil
	}
	return nil, err
}

// routeStage moves error substates back to their collection stage and
// settles a verified session into requirement gathering.
func (o *Orchestrator) routeStage(t *turn) {
	s := t.session
	s.Stage = s.Stage.CollectionStage()
	if !s.Stage.Valid() {
		s.Stage = leads.StageInitial
	}
	if s.Stage == leads.StageVerified {
		s.Stage = leads.StageRequirementGathering
	}
	t.start = s.Stage
}

// applyExtractors runs the stage-driven extraction steps. Each step checks
// the stage the turn started in, so one message advances one step.
func (o *Orchestrator) applyExtractors(ctx context.Context, t *turn) {
	s := t.session
	lead := s.Lead

	if t.start == leads.StageInitial {
		if ct, ok := extract.CustomerType(t.message); ok {
			lead.CustomerType = ct
			lead.AddRemark("Customer type: " + string(ct))
			s.Stage = leads.StageCustomerTypeSelected
		}
	}

	if t.start.CollectsName() && lead.Name == "" {
		if name, ok := extract.Name(t.message); ok {
			lead.Name = name
			lead.AddRemark("Name: " + name)
			s.Stage = leads.StageNameCollected
		}
	}

	switch t.start {
	case leads.StageNameCollected, leads.StagePhoneRequest:
		if lead.Phone != "" {
			break
		}
		phone, outcome := extract.PhoneAttempt(t.message)
		switch {
		case outcome == extract.PhoneFound:
			o.capturePhone(ctx, t, phone)
		case outcome == extract.PhoneInvalid && t.start == leads.StagePhoneRequest:
			s.Stage = leads.StagePhoneInvalid
		}
	case leads.StagePhoneCollected:
		if phone, ok := extract.Phone(t.message); ok && phone != lead.Phone {
			o.capturePhone(ctx, t, phone)
		} else if lead.Phone != "" && !lead.OTPSent {
			o.sendCode(ctx, t)
		}
	case leads.StageOTPSent:
		o.handleVerification(ctx, t)
	}
}

func (o *Orchestrator) capturePhone(ctx context.Context, t *turn, phone string) {
	lead := t.session.Lead
	lead.SetPhone(phone)
	lead.AddRemark("Phone: " + phone)
	t.session.Stage = leads.StagePhoneCollected
	o.sendCode(ctx, t)
}

// sendCode issues a code for the current phone. A failed send leaves the
// session in PHONE_COLLECTED so the next turn retries.
func (o *Orchestrator) sendCode(ctx context.Context, t *turn) {
	s := t.session
	res, err := o.otp.Send(ctx, s.Lead.Phone)
	if err != nil || res.Status != otp.DeliverySent {
		o.metrics.ObserveOTP("send_failed")
		o.logger.Warn("conversation: otp send failed",
			"session_id", s.ID,
			"phone", logging.MaskPhone(s.Lead.Phone),
			"error", err,
		)
		s.Lead.OTPSent = false
		s.Stage = leads.StagePhoneCollected
		return
	}
	s.Lead.MarkOTPSent()
	s.Stage = leads.StageOTPSent
	t.debugCode = res.OTPEchoedForDebug
	o.metrics.ObserveOTP("sent")
}

func (o *Orchestrator) handleVerification(ctx context.Context, t *turn) {
	s := t.session
	lead := s.Lead

	if phone, ok := extract.Phone(t.message); ok && phone != lead.Phone {
		o.logger.Info("conversation: phone replaced during verification", "session_id", s.ID)
		o.capturePhone(ctx, t, phone)
		return
	}

	code, ok := extract.OTPToken(t.message)
	if !ok {
		if extract.WantsResend(t.message) {
			o.metrics.ObserveOTP("resent")
			o.sendCode(ctx, t)
		}
		return
	}

	result, err := o.otp.Verify(ctx, lead.Phone, code)
	if err != nil {
		o.logger.Error("conversation: otp verify failed", "session_id", s.ID, "error", err)
		return
	}
	switch result {
	case otp.VerifySuccess:
		o.metrics.ObserveOTP("verified")
		if err := lead.MarkVerified(lead.Phone); err != nil {
			o.logger.Error("conversation: cannot mark phone verified", "session_id", s.ID, "error", err)
			return
		}
		lead.AddRemark("Phone verified")
		s.Stage = leads.StageVerified
	case otp.VerifyMismatch, otp.VerifyAttemptsExceeded:
		o.metrics.ObserveOTP(string(result))
		s.Stage = leads.StageOTPInvalid
	case otp.VerifyNoCodePending:
		o.metrics.ObserveOTP(string(result))
		o.sendCode(ctx, t)
	}
}

func (o *Orchestrator) fetchProjects(ctx context.Context) []catalog.Project {
	if o.catalog == nil {
		return nil
	}
	projects, err := o.catalog.Fetch(ctx, catalog.DefaultQuery())
	if err != nil {
		o.logger.Warn("conversation: catalog fetch failed, continuing without projects", "error", err)
		return nil
	}
	return projects
}

func (o *Orchestrator) detectProject(lead *leads.Record, text string, projects []catalog.Project) {
	if lead.HasProject() || len(projects) == 0 {
		return
	}
	refs := make([]extract.ProjectRef, 0, len(projects))
	for _, p := range projects {
		refs = append(refs, extract.ProjectRef{ID: p.ID, Name: p.Name})
	}
	if p, ok := extract.ProjectInterest(text, refs); ok {
		lead.SetProject(p.ID, p.Name)
		lead.AddRemark("Interested in: " + p.Name)
	}
}

func (o *Orchestrator) advanceAfterReply(t *turn, payload blocks.Payload) {
	s := t.session
	switch s.Stage {
	case leads.StageCustomerTypeSelected:
		s.Stage = leads.StageNameRequest
	case leads.StageNameCollected:
		if payload.Has(blocks.PhoneInput) || s.Lead.HasProject() || !s.Lead.Requirements.Empty() {
			s.Stage = leads.StagePhoneRequest
		}
	}
}

// ensureInputBlock appends the input widget a collection stage needs when
// the reply left it out.
func ensureInputBlock(stage leads.Stage, payload blocks.Payload) blocks.Payload {
	switch stage {
	case leads.StagePhoneRequest, leads.StagePhoneInvalid:
		if !payload.Has(blocks.PhoneInput) {
			payload.Append(blocks.Block{
				Component: blocks.PhoneInput,
				Props:     map[string]any{"placeholder": "Enter your 10 digit mobile number"},
			})
		}
	case leads.StageOTPSent, leads.StageOTPInvalid:
		if !payload.Has(blocks.OTPInput) {
			payload.Append(blocks.Block{
				Component: blocks.OTPInput,
				Props:     map[string]any{"length": 6},
			})
		}
	}
	return payload
}

func (o *Orchestrator) submitIfReady(ctx context.Context, t *turn) {
	s := t.session
	if !s.Lead.ReadyForCRM() {
		return
	}
	res := o.crm.SubmitLead(ctx, s.ID, s.Lead)
	if res.Deduplicated {
		o.metrics.ObserveCRM("deduplicated")
	} else {
		o.metrics.ObserveCRM(string(res.Status))
	}
	if !res.OK() {
		o.logger.Warn("conversation: crm submission failed, will retry next turn",
			"session_id", s.ID,
			"status_code", res.StatusCode,
			"reason", res.Reason,
		)
		return
	}
	if err := s.Lead.MarkSubmitted(); err != nil {
		o.logger.Warn("conversation: lead already submitted", "session_id", s.ID)
		return
	}
	o.logger.Info("conversation: lead submitted", "session_id", s.ID, "project_id", s.Lead.InterestedProjectID)
}

func (o *Orchestrator) save(ctx context.Context, t *turn) error {
	s := t.session
	s.UpdatedAt = o.now()
	if err := o.sessions.Save(ctx, s); err != nil {
		o.metrics.ObserveTurn("store_error")
		o.logger.Error("conversation: failed to save session", "session_id", s.ID, "error", err)
		return err
	}
	o.metrics.ObserveStageTransition(string(t.start), string(s.Stage))
	return nil
}

func (o *Orchestrator) logTurn(ctx context.Context, t *turn, payload blocks.Payload) {
	if o.turnLog == nil {
		return
	}
	reply := payload.Text()
	if reply == "" {
		reply = payload.JSON()
	}
	entry := chatlog.Entry{
		SessionID:   t.session.ID,
		Timestamp:   o.now(),
		UserMessage: t.message,
		AIResponse:  reply,
		Stage:       string(t.session.Stage),
		LeadData:    *t.session.Lead.Clone(),
	}
	if err := o.turnLog.Append(ctx, entry); err != nil {
		o.logger.Warn("conversation: failed to log turn", "session_id", t.session.ID, "error", err)
	}
}

func (o *Orchestrator) result(t *turn, payload blocks.Payload, degraded bool) *TurnResult {
	return &TurnResult{
		SessionID:         t.session.ID,
		Payload:           payload,
		Stage:             t.session.Stage,
		Lead:              *t.session.Lead.Clone(),
		Degraded:          degraded,
		OTPEchoedForDebug: t.debugCode,
	}
}

func countMessages(history []ChatMessage) int {
	n := 0
	for _, m := range history {
		if m.Role != ChatRoleSystem {
			n++
		}
	}
	return n
}
