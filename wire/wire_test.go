package wire

import (
	"testing"
	"time"

	"github.com/zoobzio/streamtrace"
)

func roundTrip(t *testing.T, ev streamtrace.StreamEvent) streamtrace.StreamEvent {
	data, err := Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return got
}

func TestRoundTripOnset(t *testing.T) {
	ts := time.UnixMilli(1700000000123).UTC()
	ev := streamtrace.StreamEvent{
		TraceID:   "trace-1",
		Span:      streamtrace.SpanDescriptor{ID: 0, Parent: 0},
		Timestamp: ts,
		Sequence:  0,
		Payload: streamtrace.Onset{
			ScriptName:     "worker",
			ScriptTags:     []string{"a", "b"},
			ExecutionModel: streamtrace.ExecutionModelDurableObject,
			Info: &streamtrace.EventInfo{
				Fetch: &streamtrace.FetchEventInfo{
					Method:  "GET",
					URL:     "https://example.com/",
					Headers: []streamtrace.FetchHeader{{Name: "accept", Value: "*/*"}},
				},
			},
		},
	}

	got := roundTrip(t, ev)
	if got.TraceID != ev.TraceID || got.Span != ev.Span || got.Sequence != ev.Sequence {
		t.Errorf("envelope fields did not round-trip: got %+v", got)
	}
	if !got.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("timestamp did not round-trip: got %v want %v", got.Timestamp, ev.Timestamp)
	}
	onset, ok := got.Payload.(streamtrace.Onset)
	if !ok {
		t.Fatalf("expected Onset payload, got %T", got.Payload)
	}
	if onset.ScriptName != "worker" || onset.ExecutionModel != streamtrace.ExecutionModelDurableObject {
		t.Errorf("onset fields did not round-trip: %+v", onset)
	}
	if onset.Info == nil || onset.Info.Fetch == nil || onset.Info.Fetch.Method != "GET" {
		t.Errorf("onset.Info did not round-trip: %+v", onset.Info)
	}
}

func TestRoundTripSpanClose(t *testing.T) {
	ev := streamtrace.StreamEvent{
		TraceID: "trace-1",
		Span:    streamtrace.SpanDescriptor{ID: 3, Parent: 1},
		Payload: streamtrace.SpanClose{
			Outcome:       streamtrace.SpanOutcomeException,
			Tags:          streamtrace.Tags{{Key: "k", Value: "v"}},
			Transactional: true,
		},
	}
	got := roundTrip(t, ev)
	sc, ok := got.Payload.(streamtrace.SpanClose)
	if !ok {
		t.Fatalf("expected SpanClose payload, got %T", got.Payload)
	}
	if sc.Outcome != streamtrace.SpanOutcomeException || !sc.Transactional {
		t.Errorf("span close fields did not round-trip: %+v", sc)
	}
	if !got.Span.Transactional {
		t.Error("expected span.transactional to be restored from the span_close payload")
	}
	if len(sc.Tags) != 1 || sc.Tags[0].Key != "k" {
		t.Errorf("tags did not round-trip: %+v", sc.Tags)
	}
}

func TestRoundTripMetricsBatch(t *testing.T) {
	ev := streamtrace.StreamEvent{
		TraceID: "trace-1",
		Payload: streamtrace.MetricsBatch{
			{Name: "latency_ms", Type: streamtrace.MetricHistogram, Value: 12.5},
			{Name: "count", Type: streamtrace.MetricCounter, Value: 1},
		},
	}
	got := roundTrip(t, ev)
	batch, ok := got.Payload.(streamtrace.MetricsBatch)
	if !ok || len(batch) != 2 {
		t.Fatalf("expected 2-element MetricsBatch, got %T %+v", got.Payload, got.Payload)
	}
	if batch[0].Type != streamtrace.MetricHistogram || batch[0].Value != 12.5 {
		t.Errorf("metric did not round-trip: %+v", batch[0])
	}
}

func TestRoundTripStageEventInfo(t *testing.T) {
	ev := streamtrace.StreamEvent{
		TraceID: "trace-1",
		Span:    streamtrace.SpanDescriptor{ID: 1, Parent: 0},
		Payload: streamtrace.EventInfo{Scheduled: &streamtrace.ScheduledEventInfo{Cron: "* * * * *"}},
	}
	got := roundTrip(t, ev)
	info, ok := got.Payload.(streamtrace.EventInfo)
	if !ok || info.Scheduled == nil || info.Scheduled.Cron != "* * * * *" {
		t.Fatalf("stage event info did not round-trip: %T %+v", got.Payload, got.Payload)
	}
}

func TestRoundTripEmptyMetricsBatch(t *testing.T) {
	ev := streamtrace.StreamEvent{
		TraceID: "trace-1",
		Span:    streamtrace.SpanDescriptor{ID: 1, Parent: 0},
		Payload: streamtrace.MetricsBatch{},
	}
	got := roundTrip(t, ev)
	batch, ok := got.Payload.(streamtrace.MetricsBatch)
	if !ok {
		t.Fatalf("expected MetricsBatch payload, got %T", got.Payload)
	}
	if len(batch) != 0 {
		t.Errorf("expected empty batch, got %+v", batch)
	}
}

func TestRoundTripEmptyCustomTags(t *testing.T) {
	ev := streamtrace.StreamEvent{
		TraceID: "trace-1",
		Span:    streamtrace.SpanDescriptor{ID: 1, Parent: 0},
		Payload: streamtrace.Tags{},
	}
	got := roundTrip(t, ev)
	tags, ok := got.Payload.(streamtrace.Tags)
	if !ok {
		t.Fatalf("expected Tags payload, got %T", got.Payload)
	}
	if len(tags) != 0 {
		t.Errorf("expected empty tag set, got %+v", tags)
	}
}

func TestUnmarshalRejectsEmptyEventUnion(t *testing.T) {
	_, err := Unmarshal([]byte(`{"id":"t","span":{"id":0,"parent":0},"timestamp_ms_since_epoch":0,"sequence":0,"event":{}}`))
	if err == nil {
		t.Error("expected an error decoding an envelope with no recognized event variant")
	}
}
