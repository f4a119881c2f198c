// Package otp issues and verifies one-time phone verification codes.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

const (
	codeLength         = 6
	defaultTTL         = 5 * time.Minute
	defaultMaxAttempts = 5
)

// ErrInvalidPhone is returned when Send or Verify is called without a phone.
var ErrInvalidPhone = errors.New("otp: phone required")

var otpTracer = otel.Tracer("realty.internal.otp")

// DeliveryStatus reports whether a code reached the delivery channel.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// DeliveryResult describes a Send outcome. OTPEchoedForDebug is populated
// only when debug echo is enabled.
type DeliveryResult struct {
	Status            DeliveryStatus `json:"status"`
	Channel           string         `json:"channel"`
	OTPEchoedForDebug string         `json:"otp_echoed_for_debug,omitempty"`
}

// VerifyResult is the outcome of a verification attempt.
type VerifyResult string

const (
	VerifySuccess          VerifyResult = "success"
	VerifyNoCodePending    VerifyResult = "no_code_pending"
	VerifyMismatch         VerifyResult = "mismatch"
	VerifyAttemptsExceeded VerifyResult = "attempts_exceeded"
)

// Config tunes the service.
type Config struct {
	TTL         time.Duration
	MaxAttempts int
	DebugEcho   bool
	// Generate overrides code generation, mainly for tests.
	Generate func() (string, error)
}

// Service generates, stores and verifies codes keyed by phone.
type Service struct {
	store  Store
	sender Sender
	cfg    Config
	logger *logging.Logger

	// verify is a read-modify-write on the store
	mu sync.Mutex
}

// NewService wires a code store with a delivery channel.
func NewService(store Store, sender Sender, cfg Config, logger *logging.Logger) *Service {
	if store == nil {
		panic("otp: store cannot be nil")
	}
	if sender == nil {
		panic("otp: sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Generate == nil {
		cfg.Generate = generateCode
	}
	return &Service{store: store, sender: sender, cfg: cfg, logger: logger}
}

// Send issues a fresh code for phone, replacing any pending one.
func (s *Service) Send(ctx context.Context, phone string) (DeliveryResult, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return DeliveryResult{Status: DeliveryFailed}, ErrInvalidPhone
	}

	ctx, span := otpTracer.Start(ctx, "otp.send")
	defer span.End()

	code, err := s.cfg.Generate()
	if err != nil {
		span.RecordError(err)
		return DeliveryResult{Status: DeliveryFailed}, fmt.Errorf("otp: generate code: %w", err)
	}
	if err := s.store.Put(ctx, phone, code, s.cfg.TTL); err != nil {
		span.RecordError(err)
		return DeliveryResult{Status: DeliveryFailed}, fmt.Errorf("otp: store code: %w", err)
	}

	receipt, err := s.sender.Send(ctx, phone, code)
	if err != nil {
		span.RecordError(err)
		_ = s.store.Delete(ctx, phone)
		s.logger.Warn("otp: delivery failed", "phone", logging.MaskPhone(phone), "channel", receipt.Channel, "error", err)
		return DeliveryResult{Status: DeliveryFailed, Channel: receipt.Channel}, fmt.Errorf("otp: deliver code: %w", err)
	}
	span.SetAttributes(attribute.String("otp.channel", receipt.Channel))

	result := DeliveryResult{Status: DeliverySent, Channel: receipt.Channel}
	if s.cfg.DebugEcho {
		result.OTPEchoedForDebug = code
	}
	s.logger.Info("otp: code sent", "phone", logging.MaskPhone(phone), "channel", receipt.Channel)
	return result, nil
}

// Verify checks code against the pending code for phone. A mismatch keeps
// the code pending until the attempt limit is reached.
func (s *Service) Verify(ctx context.Context, phone, code string) (VerifyResult, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return VerifyNoCodePending, ErrInvalidPhone
	}

	ctx, span := otpTracer.Start(ctx, "otp.verify")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok, err := s.store.Get(ctx, phone)
	if err != nil {
		span.RecordError(err)
		return VerifyNoCodePending, fmt.Errorf("otp: load code: %w", err)
	}
	if !ok {
		return VerifyNoCodePending, nil
	}

	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(strings.TrimSpace(code))) == 1 {
		if err := s.store.Delete(ctx, phone); err != nil {
			span.RecordError(err)
			return VerifyNoCodePending, fmt.Errorf("otp: consume code: %w", err)
		}
		s.logger.Info("otp: verified", "phone", logging.MaskPhone(phone))
		return VerifySuccess, nil
	}

	attempts, err := s.store.IncrementAttempts(ctx, phone)
	if err != nil {
		span.RecordError(err)
		return VerifyMismatch, fmt.Errorf("otp: record attempt: %w", err)
	}
	if attempts < 0 {
		// expired between Get and IncrementAttempts
		return VerifyNoCodePending, nil
	}
	if attempts >= s.cfg.MaxAttempts {
		if err := s.store.Delete(ctx, phone); err != nil {
			span.RecordError(err)
		}
		s.logger.Warn("otp: attempts exceeded", "phone", logging.MaskPhone(phone), "attempts", attempts)
		return VerifyAttemptsExceeded, nil
	}
	span.SetAttributes(attribute.Int("otp.attempts", attempts))
	return VerifyMismatch, nil
}

func generateCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeLength, n.Int64()), nil
}
