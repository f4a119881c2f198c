package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) Config {
	return Config{
		URL:            url,
		Timeout:        time.Second,
		CreatedBy:      "creator",
		UserID:         "user",
		GeneratedBy:    "generator",
		SourceID:       "source",
		Through:        "Website",
		CountryCode:    "+91",
		WhatsAppNotify: true,
	}
}

func TestSubmitSendsPayload(t *testing.T) {
	var got map[string]any
	var gotKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	c := NewClient(testConfig(ts.URL), nil)
	res := c.Submit(context.Background(), Lead{
		Name:      "Rohan Sharma",
		Phone:     "9876543210",
		ProjectID: "p1",
		Remarks:   []string{"Name: Rohan Sharma", "Phone: 9876543210"},
	}, "s-1:abc")
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "s-1:abc", gotKey)

	assert.Equal(t, "Rohan Sharma", got["name"])
	assert.Equal(t, map[string]any{"countryCode": "+91", "number": "9876543210"}, got["mobile"])
	assert.Equal(t, "creator", got["createdBy"])
	assert.Equal(t, "user", got["userId"])
	assert.Equal(t, true, got["sendwhatsappNotification"])
	source := got["leadSource"].(map[string]any)
	assert.Equal(t, "p1", source["projectId"])
	assert.Equal(t, "Name: Rohan Sharma | Phone: 9876543210", source["remarks"])
	assert.Equal(t, "generator", source["generatedBy"])
	assert.Equal(t, "source", source["source"])
	assert.Equal(t, "Website", source["through"])
}

func TestSubmitNon201IsFailure(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusInternalServerError} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		c := NewClient(testConfig(ts.URL), nil)
		res := c.Submit(context.Background(), Lead{Name: "A", Phone: "9876543210", ProjectID: "p1"}, "")
		ts.Close()

		assert.False(t, res.OK())
		assert.Equal(t, status, res.StatusCode)
		assert.Contains(t, res.Reason, "status")
	}
}

func TestSubmitTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c := NewClient(testConfig(url), nil)
	res := c.Submit(context.Background(), Lead{Name: "A", Phone: "9876543210", ProjectID: "p1"}, "")
	assert.False(t, res.OK())
	assert.Error(t, res.Err)
}

func TestSubmitIncompleteLead(t *testing.T) {
	c := NewClient(testConfig("http://127.0.0.1:1"), nil)
	res := c.Submit(context.Background(), Lead{Name: "A", Phone: "9876543210"}, "")
	assert.False(t, res.OK())
	assert.True(t, errors.Is(res.Err, ErrIncompleteLead))
}

func TestJoinRemarks(t *testing.T) {
	assert.Equal(t, defaultRemark, JoinRemarks(nil))
	assert.Equal(t, defaultRemark, JoinRemarks([]string{" ", ""}))
	assert.Equal(t, "a | b", JoinRemarks([]string{"a", " b "}))
}
