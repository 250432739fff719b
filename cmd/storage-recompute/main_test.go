package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

type mockRecomputer struct {
	recomputeFunc func(ctx context.Context, accountID, aliasID string) (int64, error)
	calls         []string
}

func (m *mockRecomputer) RecomputeSize(ctx context.Context, accountID, aliasID string) (int64, error) {
	m.calls = append(m.calls, accountID+"/"+aliasID)
	if m.recomputeFunc != nil {
		return m.recomputeFunc(ctx, accountID, aliasID)
	}
	return 0, errors.New("not implemented")
}

func sqsRecord(messageID, body string) events.SQSMessage {
	return events.SQSMessage{
		MessageId: messageID,
		Body:      body,
	}
}

func TestHandle_ProcessesBatch(t *testing.T) {
	recomputer := &mockRecomputer{
		recomputeFunc: func(ctx context.Context, accountID, aliasID string) (int64, error) {
			return 4096, nil
		},
	}
	h := newHandler(recomputer)

	resp, err := h.handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{
			sqsRecord("msg-1", `{"accountId":"acct-1","aliasId":"alias-1","action":"size"}`),
			sqsRecord("msg-2", `{"accountId":"acct-2","aliasId":"alias-2","action":"size"}`),
		},
	})
	if err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Errorf("unexpected failures: %+v", resp.BatchItemFailures)
	}
	if len(recomputer.calls) != 2 {
		t.Errorf("expected 2 recomputes, got %v", recomputer.calls)
	}
}

func TestHandle_ReportsOnlyFailedRecords(t *testing.T) {
	recomputer := &mockRecomputer{
		recomputeFunc: func(ctx context.Context, accountID, aliasID string) (int64, error) {
			if accountID == "acct-2" {
				return 0, errors.New("throttled")
			}
			return 1024, nil
		},
	}
	h := newHandler(recomputer)

	resp, err := h.handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{
			sqsRecord("msg-1", `{"accountId":"acct-1","aliasId":"alias-1","action":"size"}`),
			sqsRecord("msg-2", `{"accountId":"acct-2","aliasId":"alias-2","action":"size"}`),
			sqsRecord("msg-3", `{"accountId":"acct-3","aliasId":"alias-3","action":"size"}`),
		},
	})
	if err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
	if len(resp.BatchItemFailures) != 1 {
		t.Fatalf("expected 1 failure, got %+v", resp.BatchItemFailures)
	}
	if resp.BatchItemFailures[0].ItemIdentifier != "msg-2" {
		t.Errorf("failed item = %q, want msg-2", resp.BatchItemFailures[0].ItemIdentifier)
	}
}

func TestHandle_MalformedBodyFailsRecord(t *testing.T) {
	recomputer := &mockRecomputer{}
	h := newHandler(recomputer)

	resp, err := h.handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{
			sqsRecord("msg-1", `{not json`),
		},
	})
	if err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "msg-1" {
		t.Errorf("expected msg-1 reported, got %+v", resp.BatchItemFailures)
	}
	if len(recomputer.calls) != 0 {
		t.Errorf("recompute must not run for malformed message, got %v", recomputer.calls)
	}
}

func TestHandle_UnknownActionIsDroppedNotRetried(t *testing.T) {
	recomputer := &mockRecomputer{}
	h := newHandler(recomputer)

	resp, err := h.handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{
			sqsRecord("msg-1", `{"accountId":"acct-1","aliasId":"alias-1","action":"defrag"}`),
		},
	})
	if err != nil {
		t.Fatalf("handle returned error: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Errorf("unknown action should not requeue, got %+v", resp.BatchItemFailures)
	}
	if len(recomputer.calls) != 0 {
		t.Errorf("recompute must not run for unknown action, got %v", recomputer.calls)
	}
}
