// Package main runs end-to-end checks of the lead qualification flow against
// a running API server.
//
// Scenarios cover:
//   - Happy path: customer type, name, phone, OTP verification
//   - Invalid phone numbers keep the phone input on screen
//   - Wrong OTP codes are rejected without verifying the lead
//   - Session reset discards state
//   - Empty messages are refused
//
// The server must run with OTP_DEBUG_ECHO=true so the code comes back in the
// chat response.
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 go run scripts/e2e/run_e2e.go              # runs all
//	API_BASE_URL=http://localhost:8080 go run scripts/e2e/run_e2e.go happy-path   # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

const testPhone = "9876543210"

var (
	apiBase    string
	httpClient = &http.Client{Timeout: 60 * time.Second}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...interface{}) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

type block struct {
	Component string                 `json:"component"`
	Props     map[string]interface{} `json:"props"`
}

type chatResponse struct {
	SessionID         string  `json:"session_id"`
	Blocks            []block `json:"blocks"`
	Stage             string  `json:"stage"`
	OTPEchoedForDebug string  `json:"otp_echoed_for_debug"`
}

type leadStatus struct {
	Stage string `json:"stage"`
	Lead  struct {
		CustomerType  string `json:"customer_type"`
		Name          string `json:"name"`
		Phone         string `json:"phone"`
		PhoneVerified bool   `json:"phone_verified"`
		OTPSent       bool   `json:"otp_sent"`
	} `json:"lead"`
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func send(sessionID, message string) (*chatResponse, int, error) {
	body, _ := json.Marshal(map[string]string{"session_id": sessionID, "message": message})
	resp, err := httpClient.Post(apiBase+"/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resp.StatusCode, err
	}
	fmt.Printf("    > %q -> stage=%s blocks=%d\n", message, out.Stage, len(out.Blocks))
	return &out, resp.StatusCode, nil
}

func status(sessionID string) (*leadStatus, int, error) {
	resp, err := httpClient.Get(apiBase + "/chat/status?session_id=" + url.QueryEscape(sessionID))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}
	var out leadStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resp.StatusCode, err
	}
	return &out, resp.StatusCode, nil
}

func reset(sessionID string) (int, error) {
	body, _ := json.Marshal(map[string]string{"session_id": sessionID})
	resp, err := httpClient.Post(apiBase+"/chat/reset", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func hasComponent(res *chatResponse, component string) bool {
	for _, b := range res.Blocks {
		if b.Component == component {
			return true
		}
	}
	return false
}

func newSessionID(name string) string {
	return fmt.Sprintf("e2e-%s-%d", name, time.Now().UnixNano())
}

// qualify walks a session up to the OTP step and returns the echoed code.
func qualify(t *T, sessionID string) string {
	steps := []string{"I am a new customer", "My name is Rahul Sharma", testPhone}
	var last *chatResponse
	for _, msg := range steps {
		res, code, err := send(sessionID, msg)
		if err != nil || code != http.StatusOK {
			t.fatalf("send %q: status=%d err=%v", msg, code, err)
			return ""
		}
		last = res
	}
	t.check("otp echoed after phone", last.OTPEchoedForDebug != "")
	t.check("otp input rendered", hasComponent(last, "OTPInput"))
	return last.OTPEchoedForDebug
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func scenarioHappyPath(t *T) {
	sid := newSessionID(t.name)
	code := qualify(t, sid)
	if code == "" {
		t.fatalf("no otp code; is OTP_DEBUG_ECHO enabled?")
		return
	}
	if _, httpStatus, err := send(sid, code); err != nil || httpStatus != http.StatusOK {
		t.fatalf("verify: status=%d err=%v", httpStatus, err)
		return
	}

	st, code2, err := status(sid)
	if err != nil || st == nil {
		t.fatalf("status: code=%d err=%v", code2, err)
		return
	}
	t.check("customer type is new", st.Lead.CustomerType == "new")
	t.check("name captured", st.Lead.Name == "Rahul Sharma")
	t.check("phone captured", st.Lead.Phone == testPhone)
	t.check("phone verified", st.Lead.PhoneVerified)
	t.check("moved to requirement gathering", st.Stage == "REQUIREMENT_GATHERING")
}

func scenarioInvalidPhone(t *T) {
	sid := newSessionID(t.name)
	for _, msg := range []string{"I am a new customer", "My name is Priya Nair"} {
		if _, code, err := send(sid, msg); err != nil || code != http.StatusOK {
			t.fatalf("send %q: status=%d err=%v", msg, code, err)
			return
		}
	}
	res, _, err := send(sid, "my number is 98765 4321")
	if err != nil {
		t.fatalf("send invalid phone: %v", err)
		return
	}
	t.check("phone input kept", hasComponent(res, "PhoneInput"))
	st, _, _ := status(sid)
	t.check("phone not stored", st != nil && st.Lead.Phone == "")
}

func scenarioWrongOTP(t *T) {
	sid := newSessionID(t.name)
	code := qualify(t, sid)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	res, _, err := send(sid, wrong)
	if err != nil {
		t.fatalf("send wrong code: %v", err)
		return
	}
	t.check("otp input kept", hasComponent(res, "OTPInput"))
	st, _, _ := status(sid)
	t.check("lead not verified", st != nil && !st.Lead.PhoneVerified)
}

func scenarioReset(t *T) {
	sid := newSessionID(t.name)
	if _, code, err := send(sid, "I am an existing customer"); err != nil || code != http.StatusOK {
		t.fatalf("send: status=%d err=%v", code, err)
		return
	}
	code, err := reset(sid)
	t.check("reset returns 204", err == nil && code == http.StatusNoContent)
	_, code, _ = status(sid)
	t.check("status is 404 after reset", code == http.StatusNotFound)
}

func scenarioEmptyMessage(t *T) {
	_, code, _ := send(newSessionID(t.name), "   ")
	t.check("empty message rejected with 400", code == http.StatusBadRequest)
}

func main() {
	apiBase = os.Getenv("API_BASE_URL")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}

	scenarios := []scenario{
		{"happy-path", scenarioHappyPath},
		{"invalid-phone", scenarioInvalidPhone},
		{"wrong-otp", scenarioWrongOTP},
		{"reset", scenarioReset},
		{"empty-message", scenarioEmptyMessage},
	}

	// Filter by name if argument provided
	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	scenarioResults := make([]string, 0)

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "✅"
		if t.failed > 0 {
			status = "❌"
		}
		scenarioResults = append(scenarioResults, fmt.Sprintf("  %s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Println("SUMMARY")
	fmt.Printf("========================================\n")
	for _, r := range scenarioResults {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)

	if totalFailed > 0 {
		fmt.Println("\n❌ SOME TESTS FAILED")
		os.Exit(1)
	}
	fmt.Println("\n✅ ALL TESTS PASSED")
}
