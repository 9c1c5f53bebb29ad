package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestParseStreamMessage(t *testing.T) {
	original := testMessage("job-42")
	original.Attempt = 1
	request, err := json.Marshal(original.Request)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	item := redis.XMessage{
		ID: "1-0",
		Values: map[string]any{
			"job_id":       original.JobID,
			"request":      string(request),
			"user_email":   original.UserEmail,
			"session_id":   original.SessionID,
			"attempt":      "1",
			"requested_at": original.RequestedAt.Format(time.RFC3339Nano),
		},
	}

	parsed, err := parseStreamMessage(item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.JobID != "job-42" || parsed.Attempt != 1 {
		t.Fatalf("unexpected message: %+v", parsed)
	}
	if parsed.UserEmail != original.UserEmail || parsed.SessionID != original.SessionID {
		t.Fatalf("identity did not round-trip: %+v", parsed)
	}
	if parsed.Request.ModelKey != original.Request.ModelKey {
		t.Fatalf("request did not round-trip: %+v", parsed.Request)
	}
	if !parsed.RequestedAt.Equal(original.RequestedAt) {
		t.Fatalf("requested_at did not round-trip: %v vs %v", parsed.RequestedAt, original.RequestedAt)
	}
}

func TestParseStreamMessageRejectsMalformedFields(t *testing.T) {
	base := func() map[string]any {
		return map[string]any{
			"job_id":       "job-1",
			"request":      `{"model_key":"veo-2"}`,
			"user_email":   "user@example.com",
			"session_id":   "sess-1",
			"attempt":      "0",
			"requested_at": time.Now().UTC().Format(time.RFC3339Nano),
		}
	}

	cases := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing request", func(v map[string]any) { delete(v, "request") }},
		{"invalid request json", func(v map[string]any) { v["request"] = "{" }},
		{"missing attempt", func(v map[string]any) { delete(v, "attempt") }},
		{"invalid attempt", func(v map[string]any) { v["attempt"] = "soon" }},
		{"invalid requested_at", func(v map[string]any) { v["requested_at"] = "yesterday" }},
		{"missing job_id", func(v map[string]any) { delete(v, "job_id") }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values := base()
			tc.mutate(values)
			if _, err := parseStreamMessage(redis.XMessage{ID: "1-0", Values: values}); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestNewStreamsQueueRequiresAddr(t *testing.T) {
	if _, err := NewStreamsQueue(context.Background(), StreamsConfig{}); err == nil {
		t.Fatal("expected error for missing address")
	}
}
