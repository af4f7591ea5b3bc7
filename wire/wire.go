// Package wire is a reference JSON transport adapter for streamtrace. The
// core engine is deliberately codec-agnostic; this package is one
// concrete, optional way to get a StreamEvent on and off the wire, built
// entirely on top of the package's exported surface.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zoobzio/streamtrace"
)

// Marshal encodes ev into the external wire shape: an envelope carrying
// the trace id, span descriptor, millisecond timestamp, sequence number,
// and a one-of event object keyed by payload kind.
func Marshal(ev streamtrace.StreamEvent) ([]byte, error) {
	env, err := toEnvelope(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Unmarshal decodes data produced by Marshal back into a StreamEvent.
func Unmarshal(data []byte) (streamtrace.StreamEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return streamtrace.StreamEvent{}, err
	}
	return fromEnvelope(env)
}

type envelope struct {
	ID        string     `json:"id"`
	Span      wireSpan   `json:"span"`
	Timestamp int64      `json:"timestamp_ms_since_epoch"`
	Sequence  uint32     `json:"sequence"`
	Event     wireEvent  `json:"event"`
}

type wireSpan struct {
	ID     uint32 `json:"id"`
	Parent uint32 `json:"parent"`
}

// wireEvent is the one-of described in spec section 6. Exactly one field
// is populated on encode; decode rejects an envelope with none populated,
// and when more than one is populated it uses the first in field order.
type wireEvent struct {
	Onset             *wireOnset      `json:"onset,omitempty"`
	Outcome           *wireOutcome    `json:"outcome,omitempty"`
	Dropped           *wireDropped    `json:"dropped,omitempty"`
	SpanClose         *wireSpanClose  `json:"span_close,omitempty"`
	EventInfo         *wireEventInfo  `json:"event_info,omitempty"`
	Log               *wireLog        `json:"log,omitempty"`
	Exception         *wireException  `json:"exception,omitempty"`
	DiagnosticChannel *wireDiagChan   `json:"diagnostic_channel,omitempty"`
	Mark              *wireMark         `json:"mark,omitempty"`
	Metrics           *wireMetricsBatch `json:"metrics,omitempty"`
	Subrequest        *wireSubrequest   `json:"subrequest,omitempty"`
	SubrequestOutcome *wireSubOutcome   `json:"subrequest_outcome,omitempty"`
	Custom            *wireCustomTags   `json:"custom,omitempty"`
}

// wireMetricsBatch and wireCustomTags wrap their slices in a struct so a
// legitimately-emitted, zero-length MetricsBatch or Tags payload still
// marshals to a non-empty JSON object - a bare `[]T` field drops under
// omitempty at length zero indistinguishably from "not this variant",
// which would make an empty batch fail the one-of selection on decode.
type wireMetricsBatch struct {
	Items []wireMetric `json:"items"`
}

type wireCustomTags struct {
	Items []wireTag `json:"items"`
}

type wireTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func toWireTags(t streamtrace.Tags) []wireTag {
	if t == nil {
		return nil
	}
	out := make([]wireTag, len(t))
	for i, tag := range t {
		out[i] = wireTag{Key: tag.Key, Value: tag.Value}
	}
	return out
}

func fromWireTags(t []wireTag) streamtrace.Tags {
	if t == nil {
		return nil
	}
	out := make(streamtrace.Tags, len(t))
	for i, tag := range t {
		out[i] = streamtrace.Tag{Key: tag.Key, Value: tag.Value}
	}
	return out
}

type wireFetchHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type wireEventInfo struct {
	Fetch *struct {
		Method  string            `json:"method"`
		URL     string            `json:"url"`
		CfJSON  string            `json:"cf_json,omitempty"`
		Headers []wireFetchHeader `json:"headers,omitempty"`
	} `json:"fetch,omitempty"`
	JsRPC *struct {
		MethodName string `json:"method_name"`
	} `json:"js_rpc,omitempty"`
	Scheduled *struct {
		ScheduledTime float64 `json:"scheduled_time"`
		Cron          string  `json:"cron,omitempty"`
	} `json:"scheduled,omitempty"`
	Alarm *struct {
		ScheduledTime int64 `json:"scheduled_time_ms"`
	} `json:"alarm,omitempty"`
	Queue *struct {
		QueueName string `json:"queue_name"`
		BatchSize int    `json:"batch_size"`
	} `json:"queue,omitempty"`
	Email *struct {
		MailFrom string `json:"mail_from"`
		RcptTo   string `json:"rcpt_to"`
		RawSize  int    `json:"raw_size"`
	} `json:"email,omitempty"`
	HibernatableWebSocket *struct {
		EventKind    int    `json:"event_kind"`
		CloseCode    int    `json:"close_code,omitempty"`
		CloseReason  string `json:"close_reason,omitempty"`
		WasClean     bool   `json:"was_clean,omitempty"`
		ErrorMessage string `json:"error_message,omitempty"`
	} `json:"hibernatable_web_socket,omitempty"`
	Trace *struct {
		Items []struct {
			ScriptName string `json:"script_name"`
		} `json:"items"`
	} `json:"trace,omitempty"`
	Custom *struct {
		Data map[string]string `json:"data,omitempty"`
	} `json:"custom,omitempty"`
}

func toWireEventInfo(info *streamtrace.EventInfo) *wireEventInfo {
	if info == nil {
		return nil
	}
	w := &wireEventInfo{}
	switch {
	case info.Fetch != nil:
		w.Fetch = &struct {
			Method  string            `json:"method"`
			URL     string            `json:"url"`
			CfJSON  string            `json:"cf_json,omitempty"`
			Headers []wireFetchHeader `json:"headers,omitempty"`
		}{Method: info.Fetch.Method, URL: info.Fetch.URL, CfJSON: info.Fetch.CfJSON}
		for _, h := range info.Fetch.Headers {
			w.Fetch.Headers = append(w.Fetch.Headers, wireFetchHeader{Name: h.Name, Value: h.Value})
		}
	case info.JsRPC != nil:
		w.JsRPC = &struct {
			MethodName string `json:"method_name"`
		}{MethodName: info.JsRPC.MethodName}
	case info.Scheduled != nil:
		w.Scheduled = &struct {
			ScheduledTime float64 `json:"scheduled_time"`
			Cron          string  `json:"cron,omitempty"`
		}{ScheduledTime: info.Scheduled.ScheduledTime, Cron: info.Scheduled.Cron}
	case info.Alarm != nil:
		w.Alarm = &struct {
			ScheduledTime int64 `json:"scheduled_time_ms"`
		}{ScheduledTime: info.Alarm.ScheduledTime.UnixMilli()}
	case info.Queue != nil:
		w.Queue = &struct {
			QueueName string `json:"queue_name"`
			BatchSize int    `json:"batch_size"`
		}{QueueName: info.Queue.QueueName, BatchSize: info.Queue.BatchSize}
	case info.Email != nil:
		w.Email = &struct {
			MailFrom string `json:"mail_from"`
			RcptTo   string `json:"rcpt_to"`
			RawSize  int    `json:"raw_size"`
		}{MailFrom: info.Email.MailFrom, RcptTo: info.Email.RcptTo, RawSize: info.Email.RawSize}
	case info.HibernatableWebSocket != nil:
		h := info.HibernatableWebSocket
		w.HibernatableWebSocket = &struct {
			EventKind    int    `json:"event_kind"`
			CloseCode    int    `json:"close_code,omitempty"`
			CloseReason  string `json:"close_reason,omitempty"`
			WasClean     bool   `json:"was_clean,omitempty"`
			ErrorMessage string `json:"error_message,omitempty"`
		}{EventKind: int(h.EventKind), CloseCode: h.CloseCode, CloseReason: h.CloseReason, WasClean: h.WasClean, ErrorMessage: h.ErrorMessage}
	case info.Trace != nil:
		w.Trace = &struct {
			Items []struct {
				ScriptName string `json:"script_name"`
			} `json:"items"`
		}{}
		for _, item := range info.Trace.Items {
			w.Trace.Items = append(w.Trace.Items, struct {
				ScriptName string `json:"script_name"`
			}{ScriptName: item.ScriptName})
		}
	case info.Custom != nil:
		w.Custom = &struct {
			Data map[string]string `json:"data,omitempty"`
		}{Data: info.Custom.Data}
	}
	return w
}

func fromWireEventInfo(w *wireEventInfo) *streamtrace.EventInfo {
	if w == nil {
		return nil
	}
	info := &streamtrace.EventInfo{}
	switch {
	case w.Fetch != nil:
		fi := &streamtrace.FetchEventInfo{Method: w.Fetch.Method, URL: w.Fetch.URL, CfJSON: w.Fetch.CfJSON}
		for _, h := range w.Fetch.Headers {
			fi.Headers = append(fi.Headers, streamtrace.FetchHeader{Name: h.Name, Value: h.Value})
		}
		info.Fetch = fi
	case w.JsRPC != nil:
		info.JsRPC = &streamtrace.JsRPCEventInfo{MethodName: w.JsRPC.MethodName}
	case w.Scheduled != nil:
		info.Scheduled = &streamtrace.ScheduledEventInfo{ScheduledTime: w.Scheduled.ScheduledTime, Cron: w.Scheduled.Cron}
	case w.Alarm != nil:
		info.Alarm = &streamtrace.AlarmEventInfo{ScheduledTime: time.UnixMilli(w.Alarm.ScheduledTime).UTC()}
	case w.Queue != nil:
		info.Queue = &streamtrace.QueueEventInfo{QueueName: w.Queue.QueueName, BatchSize: w.Queue.BatchSize}
	case w.Email != nil:
		info.Email = &streamtrace.EmailEventInfo{MailFrom: w.Email.MailFrom, RcptTo: w.Email.RcptTo, RawSize: w.Email.RawSize}
	case w.HibernatableWebSocket != nil:
		h := w.HibernatableWebSocket
		info.HibernatableWebSocket = &streamtrace.HibernatableWebSocketEventInfo{
			EventKind:    streamtrace.HibernatableWebSocketEventKind(h.EventKind),
			CloseCode:    h.CloseCode,
			CloseReason:  h.CloseReason,
			WasClean:     h.WasClean,
			ErrorMessage: h.ErrorMessage,
		}
	case w.Trace != nil:
		ti := &streamtrace.TraceEventInfo{}
		for _, item := range w.Trace.Items {
			ti.Items = append(ti.Items, streamtrace.TraceItem{ScriptName: item.ScriptName})
		}
		info.Trace = ti
	case w.Custom != nil:
		info.Custom = &streamtrace.CustomEventInfo{Data: w.Custom.Data}
	}
	return info
}

type wireOnset struct {
	OwnerID           string         `json:"owner_id,omitempty"`
	StableID          string         `json:"stable_id,omitempty"`
	ScriptName        string         `json:"script_name,omitempty"`
	ScriptVersion     string         `json:"script_version,omitempty"`
	DispatchNamespace string         `json:"dispatch_namespace,omitempty"`
	ScriptID          string         `json:"script_id,omitempty"`
	ScriptTags        []string       `json:"script_tags,omitempty"`
	Entrypoint        string         `json:"entrypoint,omitempty"`
	ExecutionModel    string         `json:"execution_model"`
	Info              *wireEventInfo `json:"info,omitempty"`
}

type wireOutcome struct {
	Value string `json:"value"`
}

type wireDropped struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

type wireSpanClose struct {
	Outcome       string         `json:"outcome"`
	Info          *wireEventInfo `json:"info,omitempty"`
	Tags          []wireTag      `json:"tags,omitempty"`
	Transactional bool           `json:"transactional"`
}

type wireLog struct {
	TimestampMs int64  `json:"timestamp_ms"`
	Level       string `json:"level"`
	Message     string `json:"message"`
}

type wireException struct {
	TimestampMs int64  `json:"timestamp_ms"`
	Name        string `json:"name"`
	Message     string `json:"message"`
	Stack       string `json:"stack,omitempty"`
}

type wireDiagChan struct {
	TimestampMs int64  `json:"timestamp_ms"`
	Channel     string `json:"channel"`
	Message     string `json:"message"`
}

type wireMark struct {
	Name string `json:"name"`
}

type wireMetric struct {
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

type wireSubrequest struct {
	ID   uint32         `json:"id"`
	Info *wireEventInfo `json:"info,omitempty"`
}

type wireSubOutcome struct {
	ID      uint32 `json:"id"`
	Outcome string `json:"outcome"`
}

func traceOutcomeString(o streamtrace.TraceOutcome) string { return o.String() }

func traceOutcomeFromString(s string) streamtrace.TraceOutcome {
	for o := streamtrace.TraceOutcomeUnknown; o <= streamtrace.TraceOutcomeException; o++ {
		if o.String() == s {
			return o
		}
	}
	return streamtrace.TraceOutcomeUnknown
}

func spanOutcomeString(o streamtrace.SpanOutcome) string { return o.String() }

func spanOutcomeFromString(s string) streamtrace.SpanOutcome {
	for o := streamtrace.SpanOutcomeUnknown; o <= streamtrace.SpanOutcomeException; o++ {
		if o.String() == s {
			return o
		}
	}
	return streamtrace.SpanOutcomeUnknown
}

func executionModelString(m streamtrace.ExecutionModel) string { return m.String() }

func executionModelFromString(s string) streamtrace.ExecutionModel {
	if s == "durable_object" {
		return streamtrace.ExecutionModelDurableObject
	}
	return streamtrace.ExecutionModelStateless
}

func logLevelString(l streamtrace.LogLevel) string {
	switch l {
	case streamtrace.LogLevelInfo:
		return "info"
	case streamtrace.LogLevelWarn:
		return "warn"
	case streamtrace.LogLevelError:
		return "error"
	default:
		return "debug"
	}
}

func logLevelFromString(s string) streamtrace.LogLevel {
	switch s {
	case "info":
		return streamtrace.LogLevelInfo
	case "warn":
		return streamtrace.LogLevelWarn
	case "error":
		return streamtrace.LogLevelError
	default:
		return streamtrace.LogLevelDebug
	}
}

func metricTypeString(t streamtrace.MetricType) string {
	switch t {
	case streamtrace.MetricGauge:
		return "gauge"
	case streamtrace.MetricHistogram:
		return "histogram"
	default:
		return "counter"
	}
}

func metricTypeFromString(s string) streamtrace.MetricType {
	switch s {
	case "gauge":
		return streamtrace.MetricGauge
	case "histogram":
		return streamtrace.MetricHistogram
	default:
		return streamtrace.MetricCounter
	}
}

func toEnvelope(ev streamtrace.StreamEvent) (envelope, error) {
	env := envelope{
		ID:        ev.TraceID,
		Span:      wireSpan{ID: ev.Span.ID, Parent: ev.Span.Parent},
		Timestamp: ev.Timestamp.UnixMilli(),
		Sequence:  ev.Sequence,
	}
	switch p := ev.Payload.(type) {
	case streamtrace.Onset:
		env.Event.Onset = &wireOnset{
			OwnerID:           p.OwnerID,
			StableID:          p.StableID,
			ScriptName:        p.ScriptName,
			ScriptVersion:     p.ScriptVersion,
			DispatchNamespace: p.DispatchNamespace,
			ScriptID:          p.ScriptID,
			ScriptTags:        append([]string(nil), p.ScriptTags...),
			Entrypoint:        p.Entrypoint,
			ExecutionModel:    executionModelString(p.ExecutionModel),
			Info:              toWireEventInfo(p.Info),
		}
	case streamtrace.Outcome:
		env.Event.Outcome = &wireOutcome{Value: traceOutcomeString(p.Value)}
	case streamtrace.Dropped:
		env.Event.Dropped = &wireDropped{Start: p.Start, End: p.End}
	case streamtrace.SpanClose:
		env.Event.SpanClose = &wireSpanClose{
			Outcome:       spanOutcomeString(p.Outcome),
			Info:          toWireEventInfo(p.Info),
			Tags:          toWireTags(p.Tags),
			Transactional: p.Transactional,
		}
	case streamtrace.EventInfo:
		env.Event.EventInfo = toWireEventInfo(&p)
	case streamtrace.LogV2:
		env.Event.Log = &wireLog{TimestampMs: p.Timestamp.UnixMilli(), Level: logLevelString(p.Level), Message: p.Message}
	case streamtrace.Exception:
		env.Event.Exception = &wireException{TimestampMs: p.Timestamp.UnixMilli(), Name: p.Name, Message: p.Message, Stack: p.Stack}
	case streamtrace.DiagnosticChannelEvent:
		env.Event.DiagnosticChannel = &wireDiagChan{TimestampMs: p.Timestamp.UnixMilli(), Channel: p.Channel, Message: p.Message}
	case streamtrace.Mark:
		env.Event.Mark = &wireMark{Name: p.Name}
	case streamtrace.MetricsBatch:
		items := make([]wireMetric, len(p))
		for i, m := range p {
			items[i] = wireMetric{Name: m.Name, Type: metricTypeString(m.Type), Value: m.Value}
		}
		env.Event.Metrics = &wireMetricsBatch{Items: items}
	case streamtrace.Subrequest:
		env.Event.Subrequest = &wireSubrequest{ID: p.ID, Info: toWireEventInfo(p.Info)}
	case streamtrace.SubrequestOutcome:
		env.Event.SubrequestOutcome = &wireSubOutcome{ID: p.ID, Outcome: spanOutcomeString(p.Outcome)}
	case streamtrace.Tags:
		env.Event.Custom = &wireCustomTags{Items: toWireTags(p)}
	default:
		return envelope{}, fmt.Errorf("wire: unsupported payload kind %T", p)
	}
	return env, nil
}

func fromEnvelope(env envelope) (streamtrace.StreamEvent, error) {
	ev := streamtrace.StreamEvent{
		TraceID:   env.ID,
		Span:      streamtrace.SpanDescriptor{ID: env.Span.ID, Parent: env.Span.Parent},
		Timestamp: time.UnixMilli(env.Timestamp).UTC(),
		Sequence:  env.Sequence,
	}
	e := env.Event
	switch {
	case e.Onset != nil:
		o := streamtrace.Onset{
			OwnerID:           e.Onset.OwnerID,
			StableID:          e.Onset.StableID,
			ScriptName:        e.Onset.ScriptName,
			ScriptVersion:     e.Onset.ScriptVersion,
			DispatchNamespace: e.Onset.DispatchNamespace,
			ScriptID:          e.Onset.ScriptID,
			ScriptTags:        append([]string(nil), e.Onset.ScriptTags...),
			Entrypoint:        e.Onset.Entrypoint,
			ExecutionModel:    executionModelFromString(e.Onset.ExecutionModel),
			Info:              fromWireEventInfo(e.Onset.Info),
		}
		ev.Span.Transactional = false
		ev.Payload = o
	case e.Outcome != nil:
		ev.Payload = streamtrace.Outcome{Value: traceOutcomeFromString(e.Outcome.Value)}
	case e.Dropped != nil:
		ev.Payload = streamtrace.Dropped{Start: e.Dropped.Start, End: e.Dropped.End}
	case e.SpanClose != nil:
		ev.Span.Transactional = e.SpanClose.Transactional
		ev.Payload = streamtrace.SpanClose{
			Outcome:       spanOutcomeFromString(e.SpanClose.Outcome),
			Info:          fromWireEventInfo(e.SpanClose.Info),
			Tags:          fromWireTags(e.SpanClose.Tags),
			Transactional: e.SpanClose.Transactional,
		}
	case e.EventInfo != nil:
		info := fromWireEventInfo(e.EventInfo)
		ev.Payload = *info
	case e.Log != nil:
		ev.Payload = streamtrace.LogV2{Timestamp: time.UnixMilli(e.Log.TimestampMs).UTC(), Level: logLevelFromString(e.Log.Level), Message: e.Log.Message}
	case e.Exception != nil:
		ev.Payload = streamtrace.Exception{Timestamp: time.UnixMilli(e.Exception.TimestampMs).UTC(), Name: e.Exception.Name, Message: e.Exception.Message, Stack: e.Exception.Stack}
	case e.DiagnosticChannel != nil:
		ev.Payload = streamtrace.DiagnosticChannelEvent{Timestamp: time.UnixMilli(e.DiagnosticChannel.TimestampMs).UTC(), Channel: e.DiagnosticChannel.Channel, Message: e.DiagnosticChannel.Message}
	case e.Mark != nil:
		ev.Payload = streamtrace.Mark{Name: e.Mark.Name}
	case e.Metrics != nil:
		batch := make(streamtrace.MetricsBatch, len(e.Metrics.Items))
		for i, m := range e.Metrics.Items {
			batch[i] = streamtrace.Metric{Name: m.Name, Type: metricTypeFromString(m.Type), Value: m.Value}
		}
		ev.Payload = batch
	case e.Subrequest != nil:
		ev.Payload = streamtrace.Subrequest{ID: e.Subrequest.ID, Info: fromWireEventInfo(e.Subrequest.Info)}
	case e.SubrequestOutcome != nil:
		ev.Payload = streamtrace.SubrequestOutcome{ID: e.SubrequestOutcome.ID, Outcome: spanOutcomeFromString(e.SubrequestOutcome.Outcome)}
	case e.Custom != nil:
		ev.Payload = fromWireTags(e.Custom.Items)
	default:
		return streamtrace.StreamEvent{}, fmt.Errorf("wire: envelope carries no recognized event variant")
	}
	return ev, nil
}
