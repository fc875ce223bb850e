package client

import "testing"

func TestMaskPhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"123", "123"},
		{"12345", "12***45"},
		{"0521234567", "052***567"},
		{"+972521234567", "+97***567"},
	}

	for _, tt := range tests {
		if got := MaskPhone(tt.in); got != tt.want {
			t.Fatalf("MaskPhone(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestIsSensitiveParam(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"Password", "pass", "apiKey", "client_secret", "TOKEN"} {
		if !IsSensitiveParam(name) {
			t.Fatalf("expected %q to be sensitive", name)
		}
	}
	for _, name := range []string{"message", "to", "sender"} {
		if IsSensitiveParam(name) {
			t.Fatalf("expected %q not to be sensitive", name)
		}
	}
}

func TestMaskParams(t *testing.T) {
	t.Parallel()

	mapping := map[string]string{"to": "phone", "pw": "password", "apikey": "abc", "msg": "message", "phone2": "literal"}
	values := map[string]string{"to": "0521234567", "pw": "hunter2", "apikey": "abc", "msg": "hello", "phone2": "0539876543"}

	got := MaskParams(values, mapping)

	want := map[string]string{
		"to":     "052***567",
		"pw":     maskedValue,
		"apikey": maskedValue,
		"msg":    "hello",
		"phone2": "053***543",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s: expected %q, got %q", k, v, got[k])
		}
	}
	if values["pw"] != "hunter2" {
		t.Fatalf("MaskParams must not modify its input")
	}
}
