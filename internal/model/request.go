package model

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

const MaxMessageLength = 1000

var ErrInvalidRequest = errors.New("invalid request")

// ValidationError lists every problem found in a producer payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// EnqueueRequest is the producer payload shared by the HTTP API and the
// alarm event consumer.
type EnqueueRequest struct {
	Message  string `json:"message" validate:"required,notblank,max=1000"`
	GroupID  int64  `json:"group_id" validate:"gt=0"`
	AlarmID  string `json:"alarm_id,omitempty"`
	Priority string `json:"priority,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Validate checks the payload and returns the parsed priority.
func (r EnqueueRequest) Validate() (Priority, error) {
	var problems []string

	if err := validate.Struct(r); err != nil {
		var fields validator.ValidationErrors
		if !errors.As(err, &fields) {
			return "", err
		}
		for _, fe := range fields {
			problems = append(problems, problemFor(fe))
		}
	}

	p, err := ParsePriority(r.Priority)
	if err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return "", &ValidationError{Problems: problems}
	}
	return p, nil
}

func problemFor(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Message":
		if fe.Tag() == "max" {
			return "message must be at most 1000 characters"
		}
		return "message is required"
	case "GroupID":
		return "group_id must be a positive integer"
	}
	return strings.ToLower(fe.Field()) + " is invalid"
}
