package service

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/metrics"
	"github.com/LeventeLantos/alarm-sms-dispatch/internal/model"
)

var ErrNotAccepting = errors.New("dispatch engine is not accepting messages")

// Submit validates a producer request and enqueues it. A missing alarm id is
// generated. source labels the producer path in metrics.
func (e *Engine) Submit(req model.EnqueueRequest, source string) (string, error) {
	priority, err := req.Validate()
	if err != nil {
		return "", err
	}

	alarmID := strings.TrimSpace(req.AlarmID)
	if alarmID == "" {
		alarmID = uuid.NewString()
	}

	if !e.Enqueue(req.Message, req.GroupID, alarmID, priority) {
		return "", ErrNotAccepting
	}
	metrics.MessagesEnqueued.WithLabelValues(source).Inc()
	return alarmID, nil
}

const TestPrefix = "[TEST] "

// SubmitTest queues an operator test message for a group. The request is
// validated before TestPrefix is added, so the length limit applies to the
// caller's text. Caller alarm id and priority are replaced.
func (e *Engine) SubmitTest(req model.EnqueueRequest, source string) (string, error) {
	req.Priority = string(model.PriorityTest)
	if _, err := req.Validate(); err != nil {
		return "", err
	}

	alarmID := "TEST-" + e.now().In(e.cfg.Location).Format("20060102150405")
	if !e.Enqueue(TestPrefix+req.Message, req.GroupID, alarmID, model.PriorityTest) {
		return "", ErrNotAccepting
	}
	metrics.MessagesEnqueued.WithLabelValues(source).Inc()
	return alarmID, nil
}
