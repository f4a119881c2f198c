package otp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwilioSenderPostsSMS(t *testing.T) {
	var gotTo, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = r.ParseForm()
		gotTo = r.PostForm.Get("To")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer ts.Close()

	s := NewTwilioSender("AC123", "secret", "+15550001111", "IN", nil)
	s.baseURL = ts.URL

	receipt, err := s.Send(context.Background(), "9876543210", "482193")
	require.NoError(t, err)
	assert.Equal(t, "SM1", receipt.ProviderID)
	assert.Equal(t, "sms", receipt.Channel)
	assert.Equal(t, "+919876543210", gotTo)
	assert.Contains(t, gotBody, "482193")
}

func TestTwilioSenderDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"invalid To"}`))
	}))
	defer ts.Close()

	s := NewTwilioSender("AC123", "secret", "+15550001111", "IN", nil)
	s.baseURL = ts.URL

	_, err := s.Send(context.Background(), "9876543210", "482193")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 21211")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestTwilioSenderRetriesServerErrors(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM2"}`))
	}))
	defer ts.Close()

	s := NewTwilioSender("AC123", "secret", "+15550001111", "IN", nil)
	s.baseURL = ts.URL

	receipt, err := s.Send(context.Background(), "9876543210", "482193")
	require.NoError(t, err)
	assert.Equal(t, "SM2", receipt.ProviderID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestTwilioSenderRequiresCredentials(t *testing.T) {
	s := NewTwilioSender("", "", "", "IN", nil)
	_, err := s.Send(context.Background(), "9876543210", "482193")
	require.Error(t, err)
}
