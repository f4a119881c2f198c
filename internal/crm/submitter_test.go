package crm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/realty-lead-agent/internal/leads"
)

type fakePoster struct {
	mu     sync.Mutex
	calls  int
	keys   []string
	last   Lead
	result Result
}

func (f *fakePoster) Submit(_ context.Context, lead Lead, key string) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = lead
	f.keys = append(f.keys, key)
	return f.result
}

func readyRecord() *leads.Record {
	r := leads.New()
	r.Name = "Rohan Sharma"
	r.SetPhone("9876543210")
	r.MarkOTPSent()
	_ = r.MarkVerified("9876543210")
	r.SetProject("p1", "Amogh Heights")
	return r
}

func TestSubmitterDeduplicatesSuccessfulSnapshot(t *testing.T) {
	poster := &fakePoster{result: Result{Status: StatusSuccess, StatusCode: 201}}
	s := NewSubmitter(poster, nil, nil)
	rec := readyRecord()

	res := s.SubmitLead(context.Background(), "s-1", rec)
	require.True(t, res.OK())
	assert.False(t, res.Deduplicated)

	res = s.SubmitLead(context.Background(), "s-1", rec)
	require.True(t, res.OK())
	assert.True(t, res.Deduplicated)
	assert.Equal(t, 1, poster.calls)
	assert.Equal(t, "s-1:"+rec.SnapshotHash(), poster.keys[0])
}

func TestSubmitterRetriesAfterFailure(t *testing.T) {
	poster := &fakePoster{result: Result{Status: StatusFailure, StatusCode: 500}}
	s := NewSubmitter(poster, NewMemoryLedger(), nil)
	rec := readyRecord()

	assert.False(t, s.SubmitLead(context.Background(), "s-1", rec).OK())
	poster.result = Result{Status: StatusSuccess, StatusCode: 201}
	assert.True(t, s.SubmitLead(context.Background(), "s-1", rec).OK())
	assert.Equal(t, 2, poster.calls)
}

func TestSubmitterConcurrentCallsPostOnce(t *testing.T) {
	poster := &fakePoster{result: Result{Status: StatusSuccess, StatusCode: 201}}
	s := NewSubmitter(poster, NewMemoryLedger(), nil)
	rec := readyRecord()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.SubmitLead(context.Background(), "s-1", rec.Clone())
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, poster.calls)
}

func TestSubmitterDistinctSessionsPostSeparately(t *testing.T) {
	poster := &fakePoster{result: Result{Status: StatusSuccess, StatusCode: 201}}
	s := NewSubmitter(poster, nil, nil)
	rec := readyRecord()

	s.SubmitLead(context.Background(), "s-1", rec)
	s.SubmitLead(context.Background(), "s-2", rec)
	assert.Equal(t, 2, poster.calls)
}

func TestSubmitterAppendsRequirementRemarks(t *testing.T) {
	poster := &fakePoster{result: Result{Status: StatusSuccess, StatusCode: 201}}
	s := NewSubmitter(poster, nil, nil)
	rec := readyRecord()
	rec.AddRemark("Name: Rohan Sharma")
	rec.ApplyRequirements(leads.Requirements{Budget: "around 1.5 cr", Configuration: "3 bhk"})

	require.True(t, s.SubmitLead(context.Background(), "s-1", rec).OK())
	assert.Equal(t, []string{"Name: Rohan Sharma", "Budget: around 1.5 cr", "Configuration: 3 bhk"}, poster.last.Remarks)
	assert.Equal(t, []string{"Name: Rohan Sharma"}, rec.Remarks)
}
