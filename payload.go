package streamtrace

import "time"

// PayloadKind discriminates the closed payload variant a StreamEvent
// carries. New kinds are added by extending this enum and the Payload
// interface's implementers, never by reopening an existing kind.
type PayloadKind int

const (
	PayloadOnset PayloadKind = iota
	PayloadOutcome
	PayloadDropped
	PayloadSpanClose
	PayloadEventInfo
	PayloadLog
	PayloadException
	PayloadDiagnosticChannel
	PayloadMark
	PayloadMetrics
	PayloadSubrequest
	PayloadSubrequestOutcome
	PayloadCustom
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadOnset:
		return "onset"
	case PayloadOutcome:
		return "outcome"
	case PayloadDropped:
		return "dropped"
	case PayloadSpanClose:
		return "span_close"
	case PayloadEventInfo:
		return "event_info"
	case PayloadLog:
		return "log"
	case PayloadException:
		return "exception"
	case PayloadDiagnosticChannel:
		return "diagnostic_channel"
	case PayloadMark:
		return "mark"
	case PayloadMetrics:
		return "metrics"
	case PayloadSubrequest:
		return "subrequest"
	case PayloadSubrequestOutcome:
		return "subrequest_outcome"
	case PayloadCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Payload is the closed sum of record types a StreamEvent can carry.
// Every concrete type below implements it; a type switch over Payload is
// exhaustive over this list and should stay that way.
type Payload interface {
	Kind() PayloadKind
	clonePayload() Payload
}

// Tag is a single key/value metadata pair.
type Tag struct {
	Key   string
	Value string
}

// Tags is an ordered list of Tag. Order is preserved through Clone and the
// wire codec.
type Tags []Tag

func (t Tags) Kind() PayloadKind { return PayloadCustom }

func (t Tags) clonePayload() Payload { return t.Clone() }

// Clone returns an independent copy of t.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	out := make(Tags, len(t))
	copy(out, t)
	return out
}

// ExecutionModel describes how the traced worker was invoked.
type ExecutionModel int

const (
	ExecutionModelStateless ExecutionModel = iota
	ExecutionModelDurableObject
)

func (m ExecutionModel) String() string {
	if m == ExecutionModelDurableObject {
		return "durable_object"
	}
	return "stateless"
}

// ======================================================================
// EventInfo: the closed variant describing what triggered a trace or a
// stage span. Exactly one field is non-nil.

type EventInfo struct {
	Fetch                 *FetchEventInfo
	JsRPC                 *JsRPCEventInfo
	Scheduled             *ScheduledEventInfo
	Alarm                 *AlarmEventInfo
	Queue                 *QueueEventInfo
	Email                 *EmailEventInfo
	HibernatableWebSocket *HibernatableWebSocketEventInfo
	Trace                 *TraceEventInfo
	Custom                *CustomEventInfo
}

func (e EventInfo) Kind() PayloadKind { return PayloadEventInfo }

func (e EventInfo) clonePayload() Payload { return e.clone() }

func (e EventInfo) clone() EventInfo {
	out := e
	if e.Fetch != nil {
		f := e.Fetch.clone()
		out.Fetch = &f
	}
	if e.JsRPC != nil {
		v := *e.JsRPC
		out.JsRPC = &v
	}
	if e.Scheduled != nil {
		v := *e.Scheduled
		out.Scheduled = &v
	}
	if e.Alarm != nil {
		v := *e.Alarm
		out.Alarm = &v
	}
	if e.Queue != nil {
		v := *e.Queue
		out.Queue = &v
	}
	if e.Email != nil {
		v := *e.Email
		out.Email = &v
	}
	if e.HibernatableWebSocket != nil {
		v := *e.HibernatableWebSocket
		out.HibernatableWebSocket = &v
	}
	if e.Trace != nil {
		v := e.Trace.clone()
		out.Trace = &v
	}
	if e.Custom != nil {
		v := e.Custom.clone()
		out.Custom = &v
	}
	return out
}

// FetchEventInfo describes an HTTP fetch trigger.
type FetchEventInfo struct {
	Method  string
	URL     string
	CfJSON  string
	Headers []FetchHeader
}

// FetchHeader is a single request header captured at trigger time.
type FetchHeader struct {
	Name  string
	Value string
}

func (f FetchEventInfo) clone() FetchEventInfo {
	out := f
	out.Headers = append([]FetchHeader(nil), f.Headers...)
	return out
}

// JsRPCEventInfo describes a JS RPC method invocation trigger.
type JsRPCEventInfo struct {
	MethodName string
}

// ScheduledEventInfo describes a cron-scheduled trigger.
type ScheduledEventInfo struct {
	ScheduledTime float64 // seconds since Unix epoch
	Cron          string
}

// AlarmEventInfo describes a durable object alarm trigger.
type AlarmEventInfo struct {
	ScheduledTime time.Time
}

// QueueEventInfo describes a queue consumer trigger.
type QueueEventInfo struct {
	QueueName string
	BatchSize int
}

// EmailEventInfo describes an inbound email trigger.
type EmailEventInfo struct {
	MailFrom string
	RcptTo   string
	RawSize  int
}

// HibernatableWebSocketEventKind discriminates the sub-kind of a
// HibernatableWebSocketEventInfo.
type HibernatableWebSocketEventKind int

const (
	HibernatableWebSocketMessage HibernatableWebSocketEventKind = iota
	HibernatableWebSocketClose
	HibernatableWebSocketError
)

// HibernatableWebSocketEventInfo describes a hibernatable WebSocket
// trigger: an inbound message, a close, or an error.
type HibernatableWebSocketEventInfo struct {
	EventKind    HibernatableWebSocketEventKind
	CloseCode    int
	CloseReason  string
	WasClean     bool
	ErrorMessage string
}

// TraceEventInfo describes a tail-of-tail trigger: this trace itself is
// reporting on a batch of upstream traces.
type TraceEventInfo struct {
	Items []TraceItem
}

// TraceItem names a single upstream trace folded into a TraceEventInfo.
type TraceItem struct {
	ScriptName string
}

func (t TraceEventInfo) clone() TraceEventInfo {
	return TraceEventInfo{Items: append([]TraceItem(nil), t.Items...)}
}

// CustomEventInfo is an opaque trigger for hosts with their own trigger
// catalog; Data is forwarded verbatim.
type CustomEventInfo struct {
	Data map[string]string
}

func (c CustomEventInfo) clone() CustomEventInfo {
	if c.Data == nil {
		return CustomEventInfo{}
	}
	data := make(map[string]string, len(c.Data))
	for k, v := range c.Data {
		data[k] = v
	}
	return CustomEventInfo{Data: data}
}

// ======================================================================
// Onset, Outcome, Dropped, SpanClose: the root-span and span-lifecycle
// payloads.

// Onset is the first event of a trace, carrying trace-level metadata. Info
// starts nil and is attached exactly once by (*Trace).SetEventInfo.
type Onset struct {
	OwnerID           string
	StableID          string
	ScriptName        string
	ScriptVersion     string
	DispatchNamespace string
	ScriptID          string
	ScriptTags        []string
	Entrypoint        string
	ExecutionModel    ExecutionModel
	Info              *EventInfo
}

func (o Onset) Kind() PayloadKind { return PayloadOnset }

func (o Onset) clonePayload() Payload { return o.clone() }

func (o Onset) clone() Onset {
	out := o
	out.ScriptTags = append([]string(nil), o.ScriptTags...)
	if o.Info != nil {
		info := o.Info.clone()
		out.Info = &info
	}
	return out
}

// TraceOutcome is the broad, trace-level disposition enumerated in spec
// section 3. It is projected onto the narrower SpanOutcome by
// projectOutcome.
type TraceOutcome int

const (
	TraceOutcomeUnknown TraceOutcome = iota
	TraceOutcomeOK
	TraceOutcomeCanceled
	TraceOutcomeResponseStreamDisconnected
	TraceOutcomeLoadShed
	TraceOutcomeExceededCPU
	TraceOutcomeKillSwitch
	TraceOutcomeDaemonDown
	TraceOutcomeScriptNotFound
	TraceOutcomeExceededMemory
	TraceOutcomeException
)

func (o TraceOutcome) String() string {
	switch o {
	case TraceOutcomeOK:
		return "ok"
	case TraceOutcomeCanceled:
		return "canceled"
	case TraceOutcomeResponseStreamDisconnected:
		return "response_stream_disconnected"
	case TraceOutcomeLoadShed:
		return "load_shed"
	case TraceOutcomeExceededCPU:
		return "exceeded_cpu"
	case TraceOutcomeKillSwitch:
		return "kill_switch"
	case TraceOutcomeDaemonDown:
		return "daemon_down"
	case TraceOutcomeScriptNotFound:
		return "script_not_found"
	case TraceOutcomeExceededMemory:
		return "exceeded_memory"
	case TraceOutcomeException:
		return "exception"
	default:
		return "unknown"
	}
}

// SpanOutcome is the narrow disposition recorded on an individual span, as
// projected from a TraceOutcome via projectOutcome.
type SpanOutcome int

const (
	SpanOutcomeUnknown SpanOutcome = iota
	SpanOutcomeOK
	SpanOutcomeCanceled
	SpanOutcomeException
)

func (o SpanOutcome) String() string {
	switch o {
	case SpanOutcomeOK:
		return "ok"
	case SpanOutcomeCanceled:
		return "canceled"
	case SpanOutcomeException:
		return "exception"
	default:
		return "unknown"
	}
}

// projectOutcome maps a trace-level TraceOutcome onto the narrower
// SpanOutcome per spec section 3's mapping table.
func projectOutcome(o TraceOutcome) SpanOutcome {
	switch o {
	case TraceOutcomeOK:
		return SpanOutcomeOK
	case TraceOutcomeCanceled, TraceOutcomeResponseStreamDisconnected:
		return SpanOutcomeCanceled
	case TraceOutcomeLoadShed, TraceOutcomeExceededCPU, TraceOutcomeKillSwitch,
		TraceOutcomeDaemonDown, TraceOutcomeScriptNotFound, TraceOutcomeExceededMemory,
		TraceOutcomeException:
		return SpanOutcomeException
	default:
		return SpanOutcomeUnknown
	}
}

// Outcome is the terminal event of a trace, emitted on span 0.
type Outcome struct {
	Value TraceOutcome
}

func (o Outcome) Kind() PayloadKind { return PayloadOutcome }

func (o Outcome) clonePayload() Payload { return o }

// Dropped signals that the events with sequence numbers in [Start, End]
// were intentionally not delivered.
type Dropped struct {
	Start uint32
	End   uint32
}

func (d Dropped) Kind() PayloadKind { return PayloadDropped }

func (d Dropped) clonePayload() Payload { return d }

// SpanClose is the terminal event of a span, emitted at most once per
// span. Info and Tags are only ever populated on an explicit close; a
// force-close cascading from an ancestor's outcome carries neither (see
// DESIGN.md's open-question ledger).
type SpanClose struct {
	Outcome       SpanOutcome
	Info          *EventInfo
	Tags          Tags
	Transactional bool
}

func (s SpanClose) Kind() PayloadKind { return PayloadSpanClose }

func (s SpanClose) clonePayload() Payload { return s.clone() }

func (s SpanClose) clone() SpanClose {
	out := s
	out.Tags = s.Tags.Clone()
	if s.Info != nil {
		info := s.Info.clone()
		out.Info = &info
	}
	return out
}

// ======================================================================
// Detail payloads: free-form events emitted within a span's lifetime.

// LogLevel mirrors the level of a LogV2 detail event.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// LogV2 is a structured log line attached to a span.
type LogV2 struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
}

func (l LogV2) Kind() PayloadKind { return PayloadLog }

func (l LogV2) clonePayload() Payload { return l }

// Exception describes an uncaught error surfaced within a span.
type Exception struct {
	Timestamp time.Time
	Name      string
	Message   string
	Stack     string
}

func (e Exception) Kind() PayloadKind { return PayloadException }

func (e Exception) clonePayload() Payload { return e }

// DiagnosticChannelEvent forwards a message published to a named
// diagnostics channel.
type DiagnosticChannelEvent struct {
	Timestamp time.Time
	Channel   string
	Message   string
}

func (d DiagnosticChannelEvent) Kind() PayloadKind { return PayloadDiagnosticChannel }

func (d DiagnosticChannelEvent) clonePayload() Payload { return d }

// Mark is a lightweight named checkpoint within a span.
type Mark struct {
	Name string
}

func (m Mark) Kind() PayloadKind { return PayloadMark }

func (m Mark) clonePayload() Payload { return m }

// MetricType discriminates the shape of a Metric's Value.
type MetricType int

const (
	MetricCounter MetricType = iota
	MetricGauge
	MetricHistogram
)

// Metric is a single named measurement.
type Metric struct {
	Name  string
	Type  MetricType
	Value float64
}

// MetricsBatch is a batch of measurements emitted together.
type MetricsBatch []Metric

func (m MetricsBatch) Kind() PayloadKind { return PayloadMetrics }

func (m MetricsBatch) clonePayload() Payload { return m.Clone() }

// Clone returns an independent copy of the batch.
func (m MetricsBatch) Clone() MetricsBatch {
	if m == nil {
		return nil
	}
	out := make(MetricsBatch, len(m))
	copy(out, m)
	return out
}

// Subrequest describes an outgoing call made from within a span, prior to
// its outcome being known.
type Subrequest struct {
	ID   uint32
	Info *EventInfo
}

func (s Subrequest) Kind() PayloadKind { return PayloadSubrequest }

func (s Subrequest) clonePayload() Payload { return s.clone() }

func (s Subrequest) clone() Subrequest {
	out := s
	if s.Info != nil {
		info := s.Info.clone()
		out.Info = &info
	}
	return out
}

// SubrequestOutcome reports the disposition of a previously announced
// Subrequest.
type SubrequestOutcome struct {
	ID      uint32
	Outcome SpanOutcome
}

func (s SubrequestOutcome) Kind() PayloadKind { return PayloadSubrequestOutcome }

func (s SubrequestOutcome) clonePayload() Payload { return s }
