package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/model"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/service"
)

func TestSubmit_GeneratesAlarmID(t *testing.T) {
	t.Parallel()

	e := service.NewEngine(baseConfig(), &fakeResolver{}, &fakeGateway{}, &fakeAuditor{}, nil)

	id, err := e.Submit(model.EnqueueRequest{Message: "Pump failure", GroupID: 3}, "api")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected generated uuid alarm id, got %q", id)
	}

	id, err = e.Submit(model.EnqueueRequest{Message: "Pump failure", GroupID: 3, AlarmID: " A-100 "}, "api")
	if err != nil || id != "A-100" {
		t.Fatalf("expected caller alarm id kept, got %q (err=%v)", id, err)
	}
	if e.Status().QueueDepth != 2 {
		t.Fatalf("expected 2 queued messages")
	}
}

func TestSubmit_RejectsInvalidRequest(t *testing.T) {
	t.Parallel()

	e := service.NewEngine(baseConfig(), &fakeResolver{}, &fakeGateway{}, &fakeAuditor{}, nil)

	_, err := e.Submit(model.EnqueueRequest{Message: "", GroupID: 0, Priority: "loud"}, "api")
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	var ve *model.ValidationError
	if !errors.As(err, &ve) || len(ve.Problems) != 3 {
		t.Fatalf("expected three problems, got %v", err)
	}
	if e.Status().QueueDepth != 0 {
		t.Fatalf("invalid request must not be queued")
	}
}

func TestSubmit_AfterStop(t *testing.T) {
	t.Parallel()

	e := service.NewEngine(baseConfig(), &fakeResolver{}, &fakeGateway{}, &fakeAuditor{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if _, err := e.Submit(model.EnqueueRequest{Message: "late", GroupID: 1}, "api"); !errors.Is(err, service.ErrNotAccepting) {
		t.Fatalf("expected ErrNotAccepting, got %v", err)
	}
}

func TestSubmitTest_PrefixesAfterValidation(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	res := &fakeResolver{groups: map[int64][]model.Recipient{3: recipients(3, "0501")}}
	clock := &testClock{now: time.Date(2025, 3, 8, 8, 5, 30, 0, time.UTC)}
	e := service.NewEngine(baseConfig(), res, gw, &fakeAuditor{}, nil).WithClock(clock.Now)

	msg := strings.Repeat("א", model.MaxMessageLength)
	id, err := e.SubmitTest(model.EnqueueRequest{Message: msg, GroupID: 3, AlarmID: "A-1", Priority: "critical"}, "api")
	if err != nil {
		t.Fatalf("SubmitTest() error: %v", err)
	}
	if id != "TEST-20250308100530" {
		t.Fatalf("unexpected test alarm id %q", id)
	}
	drain(t, e)

	calls := gw.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 gateway call, got %d", len(calls))
	}
	if want := "[08/03 10:05] " + service.TestPrefix + msg; calls[0].Message != want {
		t.Fatalf("expected stamped test message, got %q", calls[0].Message)
	}

	if _, err := e.SubmitTest(model.EnqueueRequest{Message: msg + "x", GroupID: 3}, "api"); !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("expected over-long test message rejected, got %v", err)
	}
}
