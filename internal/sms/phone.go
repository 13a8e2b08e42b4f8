package sms

import (
	"fmt"
	"regexp"
	"strings"
)

// Nigerian mobile numbers: 0 + 10 digits locally, 234 + 10 digits internationally
var phoneRegex = regexp.MustCompile(`^([789][01])(\d{8})$`)

// NormalizePhone validates a Nigerian mobile number and returns it in
// 234XXXXXXXXXX format.
func NormalizePhone(phone string) (string, error) {
	clean := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, strings.TrimSpace(phone))

	var localPart string
	switch {
	case strings.HasPrefix(clean, "234"):
		localPart = clean[3:]
	case strings.HasPrefix(clean, "0"):
		localPart = clean[1:]
	default:
		localPart = clean
	}

	if !phoneRegex.MatchString(localPart) {
		return "", fmt.Errorf("invalid phone number format: %s", phone)
	}
	return "234" + localPart, nil
}
