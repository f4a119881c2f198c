package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

var twilioSendTracer = otel.Tracer("realty.internal.otp.twilio_send")

const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioSender delivers codes as SMS using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	region     string
	baseURL    string
	template   string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewTwilioSender builds a sender for numbers in the given region (e.g. "IN").
func NewTwilioSender(accountSID, authToken, from, region string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	if region == "" {
		region = "IN"
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		region:     region,
		baseURL:    defaultTwilioBaseURL,
		template:   "Your verification code is %s. It expires in a few minutes.",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Send posts the code as an SMS, retrying transient failures.
func (s *TwilioSender) Send(ctx context.Context, phone, code string) (Receipt, error) {
	receipt := Receipt{Channel: "sms"}
	if s.accountSID == "" || s.authToken == "" {
		return receipt, errors.New("otp: twilio credentials missing")
	}
	if s.from == "" {
		return receipt, errors.New("otp: twilio from number required")
	}
	to, err := toE164(phone, s.region)
	if err != nil {
		return receipt, err
	}

	ctx, span := twilioSendTracer.Start(ctx, "otp.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("realty.to", logging.MaskPhone(to)))

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", s.from)
	payload.Set("Body", fmt.Sprintf(s.template, code))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				var parsed struct {
					SID string `json:"sid"`
				}
				if err := json.Unmarshal(body, &parsed); err == nil {
					receipt.ProviderID = parsed.SID
				}
				s.logger.Info("twilio otp sms sent", "to", logging.MaskPhone(to), "sid", receipt.ProviderID)
				return receipt, nil
			}
			lastErr = fmt.Errorf("otp: twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
			// Don't retry non-rate-limit 4xx errors.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				break
			}
		}

		if attempt < 3 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = 3
			case <-time.After(time.Duration(200+rand.Intn(300)) * time.Millisecond):
			}
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
	}
	return receipt, lastErr
}

func toE164(phone, region string) (string, error) {
	num, err := phonenumbers.Parse(phone, region)
	if err != nil {
		return "", fmt.Errorf("otp: parse phone: %w", err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("otp: invalid phone for region %s", region)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
