package extract

import (
	"regexp"
	"strings"
)

var otpTokenRE = regexp.MustCompile(`(?:^|[^0-9])([0-9]{4,6})(?:[^0-9]|$)`)

// OTPToken returns the first standalone run of 4 to 6 digits.
func OTPToken(text string) (string, bool) {
	m := otpTokenRE.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

var resendPhrases = []string{"resend", "send again", "new otp", "new code", "didn't get", "didnt get", "not received", "dobara"}

// WantsResend reports whether the visitor asks for a fresh code.
func WantsResend(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range resendPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
