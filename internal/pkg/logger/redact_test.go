package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"john.doe@example.com", "jo***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
		{"", "***@***"},
	}
	for _, tt := range tests {
		if got := RedactEmail(tt.in); got != tt.want {
			t.Errorf("RedactEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactPIIValue(t *testing.T) {
	if got := redactPIIValue("contact_email", "ada@example.com"); got != "ad***@example.com" {
		t.Errorf("contact_email not redacted: %q", got)
	}
	// Emails embedded in generic fields are masked too.
	if got := redactPIIValue("message", "reply from ada@example.com received"); got != "reply from ad***@example.com received" {
		t.Errorf("embedded email not redacted: %q", got)
	}
	if got := redactPIIValue("count", "42"); got != "42" {
		t.Errorf("non-PII value changed: %q", got)
	}
}
