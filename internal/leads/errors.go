package leads

import "errors"

var (
	// ErrOTPNotSent is returned when verification is recorded before any code was sent
	ErrOTPNotSent = errors.New("leads: otp not sent")

	// ErrPhoneMismatch is returned when the verified phone differs from the stored phone
	ErrPhoneMismatch = errors.New("leads: verified phone does not match current phone")

	// ErrAlreadySubmitted is returned when a lead is marked submitted twice
	ErrAlreadySubmitted = errors.New("leads: lead already submitted")
)
