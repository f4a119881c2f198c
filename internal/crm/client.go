// Package crm pushes qualified leads into the sales CRM.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRemark  = "Customer showed interest via AI chatbot"
	remarkSep      = " | "
)

// ErrIncompleteLead is reported when name, phone or project id is missing.
var ErrIncompleteLead = errors.New("crm: name, phone and project id are required")

var crmTracer = otel.Tracer("realty.internal.crm")

// Status is the outcome of a submission.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result reports a submission outcome. Reason is empty on success.
type Result struct {
	Status     Status
	StatusCode int
	Reason     string
	Err        error
	// Deduplicated is set when the ledger already held the submission.
	Deduplicated bool
}

// OK reports whether the CRM accepted the lead.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

func failure(reason string, code int, err error) Result {
	return Result{Status: StatusFailure, StatusCode: code, Reason: reason, Err: err}
}

// Lead is the subset of a lead record sent to the CRM.
type Lead struct {
	Name      string
	Phone     string
	ProjectID string
	Remarks   []string
}

// Config carries the fixed organization and source identifiers.
type Config struct {
	URL            string
	Timeout        time.Duration
	CreatedBy      string
	UserID         string
	GeneratedBy    string
	SourceID       string
	Through        string
	CountryCode    string
	Region         string
	WhatsAppNotify bool
}

type mobile struct {
	CountryCode string `json:"countryCode"`
	Number      string `json:"number"`
}

type leadSource struct {
	GeneratedBy string `json:"generatedBy"`
	ProjectID   string `json:"projectId"`
	Remarks     string `json:"remarks"`
	Source      string `json:"source"`
	Through     string `json:"through"`
}

type customerPayload struct {
	Name                     string     `json:"name"`
	Mobile                   mobile     `json:"mobile"`
	CreatedBy                string     `json:"createdBy"`
	UserID                   string     `json:"userId"`
	LeadSource               leadSource `json:"leadSource"`
	SendWhatsappNotification bool       `json:"sendwhatsappNotification"`
}

// Client posts customers to the CRM ingestion endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a CRM client.
func NewClient(cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = "+91"
	}
	if cfg.Region == "" {
		cfg.Region = "IN"
	}
	if cfg.Through == "" {
		cfg.Through = "Website"
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Submit sends one customer record. Only HTTP 201 counts as success; there
// is no retry.
func (c *Client) Submit(ctx context.Context, lead Lead, idempotencyKey string) Result {
	if strings.TrimSpace(lead.Name) == "" || strings.TrimSpace(lead.Phone) == "" || strings.TrimSpace(lead.ProjectID) == "" {
		return failure("incomplete lead", 0, ErrIncompleteLead)
	}

	ctx, span := crmTracer.Start(ctx, "crm.submit")
	defer span.End()
	span.SetAttributes(attribute.String("realty.project_id", lead.ProjectID))

	payload := c.buildPayload(lead)
	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return failure("encode payload", 0, fmt.Errorf("crm: marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return failure("build request", 0, fmt.Errorf("crm: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("crm: request failed", "project_id", lead.ProjectID, "error", err)
		return failure("transport error", 0, fmt.Errorf("crm: request failed: %w", err))
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusCreated {
		snippet := strings.TrimSpace(string(respBody))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		c.logger.Warn("crm: lead rejected", "status", resp.StatusCode, "project_id", lead.ProjectID, "response", snippet)
		return failure(fmt.Sprintf("failed with status %d", resp.StatusCode), resp.StatusCode,
			fmt.Errorf("crm: unexpected status %d", resp.StatusCode))
	}

	c.logger.Info("crm: lead created", "project_id", lead.ProjectID, "phone", logging.MaskPhone(lead.Phone))
	return Result{Status: StatusSuccess, StatusCode: resp.StatusCode}
}

func (c *Client) buildPayload(lead Lead) customerPayload {
	return customerPayload{
		Name:      strings.TrimSpace(lead.Name),
		Mobile:    c.mobile(lead.Phone),
		CreatedBy: c.cfg.CreatedBy,
		UserID:    c.cfg.UserID,
		LeadSource: leadSource{
			GeneratedBy: c.cfg.GeneratedBy,
			ProjectID:   lead.ProjectID,
			Remarks:     JoinRemarks(lead.Remarks),
			Source:      c.cfg.SourceID,
			Through:     c.cfg.Through,
		},
		SendWhatsappNotification: c.cfg.WhatsAppNotify,
	}
}

// mobile splits phone into country code and national number, falling back
// to the configured country code and the raw digits.
func (c *Client) mobile(phone string) mobile {
	if num, err := phonenumbers.Parse(phone, c.cfg.Region); err == nil && phonenumbers.IsValidNumber(num) {
		return mobile{
			CountryCode: fmt.Sprintf("+%d", num.GetCountryCode()),
			Number:      phonenumbers.GetNationalSignificantNumber(num),
		}
	}
	return mobile{CountryCode: c.cfg.CountryCode, Number: phone}
}

// JoinRemarks renders remarks in the CRM's single-field format.
func JoinRemarks(remarks []string) string {
	parts := make([]string, 0, len(remarks))
	for _, r := range remarks {
		if r = strings.TrimSpace(r); r != "" {
			parts = append(parts, r)
		}
	}
	if len(parts) == 0 {
		return defaultRemark
	}
	return strings.Join(parts, remarkSep)
}
