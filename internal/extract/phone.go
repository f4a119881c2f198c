package extract

import "strings"

// minPhoneAttemptDigits is the digit count below which an utterance is not
// treated as an attempt to type a phone number.
const minPhoneAttemptDigits = 5

// PhoneOutcome classifies an utterance received while a phone is requested.
type PhoneOutcome int

const (
	PhoneMissing PhoneOutcome = iota
	PhoneFound
	PhoneInvalid
)

func (o PhoneOutcome) String() string {
	switch o {
	case PhoneFound:
		return "found"
	case PhoneInvalid:
		return "invalid"
	default:
		return "missing"
	}
}

// Phone normalizes text to a bare 10-digit Indian mobile number. One leading
// "91" or "0" is stripped from longer inputs; anything other than exactly ten
// remaining digits is a miss.
func Phone(text string) (string, bool) {
	digits := onlyDigits(text)
	if len(digits) > 10 {
		switch {
		case strings.HasPrefix(digits, "91"):
			digits = digits[2:]
		case strings.HasPrefix(digits, "0"):
			digits = digits[1:]
		}
	}
	if len(digits) != 10 {
		return "", false
	}
	return digits, true
}

// DigitCount returns the number of ASCII digits in text.
func DigitCount(text string) int {
	return len(onlyDigits(text))
}

// PhoneAttempt extracts a phone and classifies the miss.
func PhoneAttempt(text string) (string, PhoneOutcome) {
	if phone, ok := Phone(text); ok {
		return phone, PhoneFound
	}
	if DigitCount(text) < minPhoneAttemptDigits {
		return "", PhoneMissing
	}
	return "", PhoneInvalid
}

func onlyDigits(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
