package sqs

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

func TestHeadersFromAttributes_StringValuesOnly(t *testing.T) {
	got := headersFromAttributes(map[string]types.MessageAttributeValue{
		"trace-id": {StringValue: strPtr("abc-123")},
		"binary":   {}, // no StringValue set, should be skipped
	})
	if got["trace-id"] != "abc-123" {
		t.Fatalf("expected trace-id to survive, got %q", got["trace-id"])
	}
	if _, ok := got["binary"]; ok {
		t.Fatal("expected attribute without a StringValue to be omitted")
	}
}

func TestHeadersFromAttributes_Empty(t *testing.T) {
	got := headersFromAttributes(map[string]types.MessageAttributeValue{})
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestDefaults(t *testing.T) {
	o := defaults()
	if o.maxMessages != 10 {
		t.Fatalf("expected default max messages 10, got %d", o.maxMessages)
	}
	if o.waitTimeSeconds != 10 {
		t.Fatalf("expected default long-poll wait of 10s, got %d", o.waitTimeSeconds)
	}
}

func TestWithMaxMessages(t *testing.T) {
	o := defaults()
	WithMaxMessages(1)(&o)
	if o.maxMessages != 1 {
		t.Fatalf("expected max messages 1, got %d", o.maxMessages)
	}
}

func strPtr(s string) *string { return &s }
