package client

import "strings"

const maskedValue = "***MASKED***"

// MaskPhone keeps the first and last few digits of a phone number.
func MaskPhone(phone string) string {
	if len(phone) < 4 {
		return phone
	}
	if len(phone) <= 6 {
		return phone[:2] + "***" + phone[len(phone)-2:]
	}
	return phone[:3] + "***" + phone[len(phone)-3:]
}

// IsSensitiveParam reports whether a provider field name looks like it
// carries a credential.
func IsSensitiveParam(name string) bool {
	n := strings.ToLower(name)
	for _, s := range []string{"password", "pass", "key", "secret", "token"} {
		if strings.Contains(n, s) {
			return true
		}
	}
	return false
}

// MaskParams returns a copy of the outgoing field values that is safe to log.
// mapping is the configured field-name to role mapping used to build values.
func MaskParams(values, mapping map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		switch r := roleOf(mapping[k]); {
		case r == rolePassword || IsSensitiveParam(k):
			out[k] = maskedValue
		case r == rolePhone || strings.Contains(strings.ToLower(k), "phone"):
			out[k] = MaskPhone(v)
		default:
			out[k] = v
		}
	}
	return out
}
