package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/realty-lead-agent/internal/blocks"
	"github.com/wolfman30/realty-lead-agent/internal/catalog"
	"github.com/wolfman30/realty-lead-agent/internal/crm"
	"github.com/wolfman30/realty-lead-agent/internal/leads"
	"github.com/wolfman30/realty-lead-agent/internal/otp"
)

const textReply = `{"blocks":[{"component":"Text","props":{"text":"Sure, happy to help."}}]}`

type stubLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []LLMRequest
	delay    time.Duration

	inflight    int
	maxInflight int
}

func (s *stubLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.inflight++
	if s.inflight > s.maxInflight {
		s.maxInflight = s.inflight
	}
	n := len(s.requests)
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	if len(s.replies) == 0 {
		return LLMResponse{Text: textReply}, nil
	}
	idx := n - 1
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	return LLMResponse{Text: s.replies[idx]}, nil
}

type recordingSender struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (r *recordingSender) Send(_ context.Context, _ string, code string) (otp.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
	return otp.Receipt{Channel: "test"}, r.err
}

type countingPoster struct {
	mu     sync.Mutex
	calls  int
	result crm.Result
}

func (p *countingPoster) Submit(_ context.Context, _ crm.Lead, _ string) crm.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.result
}

func (p *countingPoster) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type staticCatalog struct {
	projects []catalog.Project
	err      error
}

func (c staticCatalog) Fetch(context.Context, catalog.Query) ([]catalog.Project, error) {
	return c.projects, c.err
}

type harness struct {
	orch   *Orchestrator
	llm    *stubLLM
	store  *MemorySessionStore
	otp    *otp.Service
	sender *recordingSender
	poster *countingPoster
}

func newHarness(t *testing.T, llm *stubLLM, opts ...OrchestratorOption) *harness {
	t.Helper()
	if llm == nil {
		llm = &stubLLM{}
	}
	sender := &recordingSender{}
	otpSvc := otp.NewService(otp.NewMemoryStore(), sender, otp.Config{
		DebugEcho: true,
		Generate:  func() (string, error) { return "482193", nil },
	}, nil)
	poster := &countingPoster{result: crm.Result{Status: crm.StatusSuccess, StatusCode: 201}}
	store := NewMemorySessionStore(time.Hour)

	opts = append([]OrchestratorOption{
		WithSessionStore(store),
		WithBranding("Amogh Buildtech", "+91 92500-94500"),
		WithCatalog(staticCatalog{projects: []catalog.Project{
			{ID: "p1", Name: "Amogh Heights", Location: "Sector 49, Gurugram"},
			{ID: "p2", Name: "Ninex Residency"},
		}}),
	}, opts...)
	orch := NewOrchestrator(llm, otpSvc, crm.NewSubmitter(poster, crm.NewMemoryLedger(), nil), nil, opts...)
	return &harness{orch: orch, llm: llm, store: store, otp: otpSvc, sender: sender, poster: poster}
}

func (h *harness) seed(t *testing.T, id string, stage leads.Stage, mutate func(*leads.Record)) {
	t.Helper()
	s := NewSession(id, time.Now())
	s.Stage = stage
	if mutate != nil {
		mutate(s.Lead)
	}
	require.NoError(t, h.store.Save(context.Background(), s))
}

func (h *harness) load(t *testing.T, id string) *Session {
	t.Helper()
	s, err := h.store.Load(context.Background(), id)
	require.NoError(t, err)
	return s
}

func TestHandleTurnCollectsName(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "s1", leads.StageNameRequest, nil)

	res, err := h.orch.HandleTurn(context.Background(), "s1", "Hi, I am Rohan Sharma")
	require.NoError(t, err)

	assert.Equal(t, "Rohan Sharma", res.Lead.Name)
	assert.Equal(t, leads.StageNameCollected, res.Stage)
	assert.Contains(t, res.Lead.Remarks, "Name: Rohan Sharma")
	assert.Equal(t, leads.StageNameCollected, h.load(t, "s1").Stage)
}

func TestHandleTurnCapturesPhoneAndSendsOTP(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "s1", leads.StagePhoneRequest, func(r *leads.Record) { r.Name = "Rohan Sharma" })

	res, err := h.orch.HandleTurn(context.Background(), "s1", "my number is 9876543210")
	require.NoError(t, err)

	assert.Equal(t, "9876543210", res.Lead.Phone)
	assert.True(t, res.Lead.OTPSent)
	assert.False(t, res.Lead.PhoneVerified)
	assert.Equal(t, leads.StageOTPSent, res.Stage)
	assert.Equal(t, []string{"482193"}, h.sender.codes)
	assert.Equal(t, "482193", res.OTPEchoedForDebug)
	assert.True(t, res.Payload.Has(blocks.OTPInput))
}

func TestHandleTurnVerifiesOTP(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "s1", leads.StageOTPSent, func(r *leads.Record) {
		r.Name = "Rohan Sharma"
		r.SetPhone("9876543210")
		r.MarkOTPSent()
	})
	_, err := h.otp.Send(context.Background(), "9876543210")
	require.NoError(t, err)

	res, err := h.orch.HandleTurn(context.Background(), "s1", "482193")
	require.NoError(t, err)

	assert.True(t, res.Lead.PhoneVerified)
	assert.Equal(t, leads.StageVerified, res.Stage)
}

func TestHandleTurnSubmitsLeadOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "s1", leads.StageRequirementGathering, func(r *leads.Record) {
		r.Name = "Rohan Sharma"
		r.SetPhone("9876543210")
		r.MarkOTPSent()
		require.NoError(t, r.MarkVerified("9876543210"))
		r.SetProject("p1", "Amogh Heights")
	})

	res, err := h.orch.HandleTurn(context.Background(), "s1", "what are the payment plans?")
	require.NoError(t, err)
	assert.True(t, res.Lead.LeadSubmitted)
	assert.Equal(t, 1, h.poster.count())

	res, err = h.orch.HandleTurn(context.Background(), "s1", "what are the payment plans?")
	require.NoError(t, err)
	assert.True(t, res.Lead.LeadSubmitted)
	assert.Equal(t, 1, h.poster.count())
}

func TestHandleTurnRetriesFailedSubmission(t *testing.T) {
	h := newHarness(t, nil)
	h.poster.result = crm.Result{Status: crm.StatusFailure, StatusCode: 500, Reason: "http 500"}
	h.seed(t, "s1", leads.StageRequirementGathering, func(r *leads.Record) {
		r.Name = "Rohan Sharma"
		r.SetPhone("9876543210")
		r.MarkOTPSent()
		require.NoError(t, r.MarkVerified("9876543210"))
		r.SetProject("p1", "Amogh Heights")
	})

	res, err := h.orch.HandleTurn(context.Background(), "s1", "ok")
	require.NoError(t, err)
	assert.False(t, res.Lead.LeadSubmitted)

	h.poster.mu.Lock()
	h.poster.result = crm.Result{Status: crm.StatusSuccess, StatusCode: 201}
	h.poster.mu.Unlock()

	res, err = h.orch.HandleTurn(context.Background(), "s1", "ok")
	require.NoError(t, err)
	assert.True(t, res.Lead.LeadSubmitted)
	assert.Equal(t, 2, h.poster.count())
}

func TestHandleTurnLLMFailureReturnsFallback(t *testing.T) {
	h := newHarness(t, &stubLLM{err: errors.New("quota exceeded")})
	h.seed(t, "s1", leads.StageNameRequest, nil)

	res, err := h.orch.HandleTurn(context.Background(), "s1", "Rohan")
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	require.Len(t, res.Payload.Blocks, 1)
	assert.Contains(t, res.Payload.Text(), "+91 92500-94500")
	assert.NotContains(t, res.Payload.Text(), "quota")

	s := h.load(t, "s1")
	assert.Empty(t, s.History)
	assert.Equal(t, "Rohan", s.Lead.Name)
}

func TestHandleTurnLLMFailureSkipsCRM(t *testing.T) {
	h := newHarness(t, &stubLLM{err: context.DeadlineExceeded})
	h.seed(t, "s1", leads.StageRequirementGathering, func(r *leads.Record) {
		r.Name = "Rohan Sharma"
		r.SetPhone("9876543210")
		r.MarkOTPSent()
		require.NoError(t, r.MarkVerified("9876543210"))
		r.SetProject("p1", "Amogh Heights")
	})

	res, err := h.orch.HandleTurn(context.Background(), "s1", "hello")
	require.NoError(t, err)
	assert.False(t, res.Lead.LeadSubmitted)
	assert.Zero(t, h.poster.count())
}

func TestHandleTurnWrapsMalformedReply(t *testing.T) {
	h := newHarness(t, &stubLLM{replies: []string{"Welcome! Are you an existing customer?"}})

	res, err := h.orch.HandleTurn(context.Background(), "s1", "hello")
	require.NoError(t, err)

	require.Len(t, res.Payload.Blocks, 1)
	assert.Equal(t, blocks.Text, res.Payload.Blocks[0].Component)
	assert.Equal(t, "Welcome! Are you an existing customer?", res.Payload.Text())
}

func TestHandleTurnSystemPromptOnce(t *testing.T) {
	llm := &stubLLM{}
	h := newHarness(t, llm)

	_, err := h.orch.HandleTurn(context.Background(), "s1", "hello")
	require.NoError(t, err)
	_, err = h.orch.HandleTurn(context.Background(), "s1", "I am new here")
	require.NoError(t, err)

	require.Len(t, llm.requests, 2)
	second := llm.requests[1]
	systems := 0
	for _, m := range second.Messages {
		if m.Role == ChatRoleSystem {
			systems++
		}
	}
	assert.Equal(t, 1, systems)
	assert.Equal(t, ChatRoleSystem, second.Messages[0].Role)
	assert.Contains(t, second.Messages[0].Content, "Amogh Heights")
	assert.Equal(t, "[stage: CUSTOMER_TYPE_SELECTED] I am new here", second.Messages[len(second.Messages)-1].Content)
	require.Len(t, second.System, 1)
	assert.Contains(t, second.System[0], "CURRENT STAGE: CUSTOMER_TYPE_SELECTED")

	s := h.load(t, "s1")
	assert.Len(t, s.History, 5)
	assert.Equal(t, leads.CustomerNew, s.Lead.CustomerType)
	assert.Equal(t, leads.StageNameRequest, s.Stage)
}

func TestHandleTurnPhoneInvalidLoopsBack(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "s1", leads.StagePhoneRequest, func(r *leads.Record) { r.Name = "Rohan" })

	res, err := h.orch.HandleTurn(context.Background(), "s1", "98765")
	require.NoError(t, err)
	assert.Equal(t, leads.StagePhoneInvalid, res.Stage)
	assert.Empty(t, res.Lead.Phone)
	assert.True(t, res.Payload.Has(blocks.PhoneInput))

	res, err = h.orch.HandleTurn(context.Background(), "s1", "98765 43210")
	require.NoError(t, err)
	assert.Equal(t, leads.StageOTPSent, res.Stage)
	assert.Equal(t, "9876543210", res.Lead.Phone)
}

func TestHandleTurnOTPMismatchThenSuccess(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "s1", leads.StagePhoneRequest, func(r *leads.Record) { r.Name = "Rohan" })

	_, err := h.orch.HandleTurn(context.Background(), "s1", "9876543210")
	require.NoError(t, err)

	res, err := h.orch.HandleTurn(context.Background(), "s1", "111111")
	require.NoError(t, err)
	assert.Equal(t, leads.StageOTPInvalid, res.Stage)
	assert.False(t, res.Lead.PhoneVerified)

	res, err = h.orch.HandleTurn(context.Background(), "s1", "the code is 482193")
	require.NoError(t, err)
	assert.Equal(t, leads.StageVerified, res.Stage)
	assert.True(t, res.Lead.PhoneVerified)
}

func TestHandleTurnReplacesPhoneDuringVerification(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "s1", leads.StagePhoneRequest, func(r *leads.Record) { r.Name = "Rohan" })

	_, err := h.orch.HandleTurn(context.Background(), "s1", "9876543210")
	require.NoError(t, err)

	res, err := h.orch.HandleTurn(context.Background(), "s1", "sorry, use 9123456789 instead")
	require.NoError(t, err)
	assert.Equal(t, "9123456789", res.Lead.Phone)
	assert.True(t, res.Lead.OTPSent)
	assert.False(t, res.Lead.PhoneVerified)
	assert.Equal(t, leads.StageOTPSent, res.Stage)
	assert.Len(t, h.sender.codes, 2)
}

func TestHandleTurnNoPendingCodeResends(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "s1", leads.StageOTPSent, func(r *leads.Record) {
		r.SetPhone("9876543210")
		r.MarkOTPSent()
	})

	res, err := h.orch.HandleTurn(context.Background(), "s1", "482193")
	require.NoError(t, err)
	assert.Equal(t, leads.StageOTPSent, res.Stage)
	assert.False(t, res.Lead.PhoneVerified)
	assert.Len(t, h.sender.codes, 1)
}

func TestHandleTurnSendFailureRetriesNextTurn(t *testing.T) {
	h := newHarness(t, nil)
	h.sender.err = errors.New("provider down")
	h.seed(t, "s1", leads.StagePhoneRequest, func(r *leads.Record) { r.Name = "Rohan" })

	res, err := h.orch.HandleTurn(context.Background(), "s1", "9876543210")
	require.NoError(t, err)
	assert.Equal(t, leads.StagePhoneCollected, res.Stage)
	assert.False(t, res.Lead.OTPSent)

	h.sender.mu.Lock()
	h.sender.err = nil
	h.sender.mu.Unlock()

	res, err = h.orch.HandleTurn(context.Background(), "s1", "did you send it?")
	require.NoError(t, err)
	assert.Equal(t, leads.StageOTPSent, res.Stage)
	assert.True(t, res.Lead.OTPSent)
}

func TestHandleTurnDetectsProjectInUtteranceAndReply(t *testing.T) {
	h := newHarness(t, &stubLLM{replies: []string{
		textReply,
		`{"blocks":[{"component":"Text","props":{"text":"Ninex Residency has ready 3 BHK units."}}]}`,
	}})

	res, err := h.orch.HandleTurn(context.Background(), "a", "tell me about amogh heights")
	require.NoError(t, err)
	assert.Equal(t, "p1", res.Lead.InterestedProjectID)
	assert.Contains(t, res.Lead.Remarks, "Interested in: Amogh Heights")

	res, err = h.orch.HandleTurn(context.Background(), "b", "what do you have?")
	require.NoError(t, err)
	assert.Equal(t, "p2", res.Lead.InterestedProjectID)
}

func TestHandleTurnCatalogFailureContinues(t *testing.T) {
	h := newHarness(t, nil, WithCatalog(staticCatalog{err: errors.New("upstream down")}))

	res, err := h.orch.HandleTurn(context.Background(), "s1", "tell me about amogh heights")
	require.NoError(t, err)
	assert.Empty(t, res.Lead.InterestedProjectID)
	assert.False(t, res.Degraded)
}

func TestHandleTurnCapturesRequirements(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t, "s1", leads.StageNameCollected, func(r *leads.Record) { r.Name = "Rohan" })

	res, err := h.orch.HandleTurn(context.Background(), "s1", "3 BHK for investment under 2 cr")
	require.NoError(t, err)
	assert.Equal(t, "3 BHK for investment under 2 cr", res.Lead.Requirements.Configuration)
	assert.Equal(t, "3 BHK for investment under 2 cr", res.Lead.Requirements.Budget)
	assert.Equal(t, "3 BHK for investment under 2 cr", res.Lead.Requirements.Purpose)
	assert.Equal(t, leads.StagePhoneRequest, res.Stage)
	assert.True(t, res.Payload.Has(blocks.PhoneInput))
}

func TestHandleTurnRejectsEmptyMessage(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.orch.HandleTurn(context.Background(), "s1", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestHandleTurnAssignsSessionID(t *testing.T) {
	h := newHarness(t, nil)
	res, err := h.orch.HandleTurn(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
}

func TestHandleTurnSerializesSameSession(t *testing.T) {
	llm := &stubLLM{delay: 5 * time.Millisecond}
	h := newHarness(t, llm)

	const turns = 8
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.HandleTurn(context.Background(), "shared", "hello there")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, llm.maxInflight)
	s := h.load(t, "shared")
	assert.Len(t, s.History, 1+2*turns)
	assert.Zero(t, h.orch.locks.size())
}

func TestHandleTurnParallelAcrossSessions(t *testing.T) {
	llm := &stubLLM{delay: 20 * time.Millisecond}
	h := newHarness(t, llm)

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.orch.HandleTurn(context.Background(), id, "hello")
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()
	assert.Greater(t, llm.maxInflight, 1)
}

func TestStatusAndReset(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.orch.HandleTurn(context.Background(), "s1", "I am an existing client")
	require.NoError(t, err)

	snap, err := h.orch.Status(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, leads.CustomerExisting, snap.Lead.CustomerType)
	assert.Equal(t, 2, snap.MessageCount)

	require.NoError(t, h.orch.Reset(context.Background(), "s1"))
	_, err = h.orch.Status(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLeadStatusBlockMentionsStageHint(t *testing.T) {
	rec := leads.New()
	rec.Name = "Rohan"
	block := leadStatusBlock(leads.StageOTPSent, rec)
	assert.True(t, strings.HasPrefix(block, "CURRENT STAGE: OTP_SENT"))
	assert.Contains(t, block, "- Name: Rohan")
	assert.Contains(t, block, "OTPInput")
}
