package logger

import (
	"regexp"
	"strings"
)

// Field keys whose whole value is an address and should be masked outright.
var emailFieldKeys = map[string]bool{
	"email":         true,
	"contact_email": true,
	"recipient":     true,
	"to":            true,
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	if emailFieldKeys[strings.ToLower(key)] {
		return RedactEmail(val)
	}
	// Free-text fields (reply excerpts, error strings) can carry addresses.
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}

// RedactEmail masks the local part of an address, keeping at most the first
// two characters: "john.doe@example.com" becomes "jo***@example.com".
// Anything that does not split on a single "@" is masked entirely.
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}
