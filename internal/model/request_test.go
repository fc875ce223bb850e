package model

import (
	"errors"
	"strings"
	"testing"
)

func TestParsePriority(t *testing.T) {
	cases := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"", PriorityNormal, false},
		{"normal", PriorityNormal, false},
		{" URGENT ", PriorityUrgent, false},
		{"Critical", PriorityCritical, false},
		{"test", PriorityTest, false},
		{"low", "", true},
	}

	for _, tc := range cases {
		got, err := ParsePriority(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParsePriority(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParsePriority(%q): unexpected error %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParsePriority(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEnqueueRequest_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p, err := EnqueueRequest{Message: "Pump 3 failure", GroupID: 1, Priority: "urgent"}.Validate()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p != PriorityUrgent {
			t.Fatalf("expected urgent, got %q", p)
		}
	})

	t.Run("length limit counts characters", func(t *testing.T) {
		msg := strings.Repeat("א", MaxMessageLength)
		if _, err := (EnqueueRequest{Message: msg, GroupID: 1}).Validate(); err != nil {
			t.Fatalf("expected %d characters accepted, got %v", MaxMessageLength, err)
		}
		if _, err := (EnqueueRequest{Message: msg + "x", GroupID: 1}).Validate(); err == nil {
			t.Fatalf("expected error over the limit")
		}
	})

	t.Run("collects every problem", func(t *testing.T) {
		_, err := EnqueueRequest{Message: "  ", GroupID: -1, Priority: "low"}.Validate()
		if err == nil {
			t.Fatalf("expected error")
		}
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("expected errors.Is(err, ErrInvalidRequest)")
		}

		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected *ValidationError, got %T", err)
		}
		if len(verr.Problems) != 3 {
			t.Fatalf("expected 3 problems, got %v", verr.Problems)
		}
		if !strings.Contains(err.Error(), "group_id") {
			t.Fatalf("expected message to mention group_id, got %q", err.Error())
		}
	})
}

func TestEnqueueRequest_ValidateReportsOneProblemPerField(t *testing.T) {
	cases := []struct {
		name string
		req  EnqueueRequest
		want string
	}{
		{"empty message", EnqueueRequest{GroupID: 1}, "message is required"},
		{"blank message", EnqueueRequest{Message: "\t \n", GroupID: 1}, "message is required"},
		{"long message", EnqueueRequest{Message: strings.Repeat("x", MaxMessageLength+1), GroupID: 1}, "message must be at most 1000 characters"},
		{"zero group", EnqueueRequest{Message: "ok"}, "group_id must be a positive integer"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.req.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if len(verr.Problems) != 1 || verr.Problems[0] != tc.want {
				t.Fatalf("problems = %v, want [%s]", verr.Problems, tc.want)
			}
		})
	}
}
