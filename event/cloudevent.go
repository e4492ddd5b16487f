package event

import (
	"time"

	"github.com/google/uuid"
)

// SpecVersion is the CloudEvents specification version stamped into every
// envelope.
const SpecVersion = "1.0"

// dataContentType marks the payload encoding of generated envelopes.
const dataContentType = "application/json"

// timeLayout renders ISO-8601 with microsecond precision and the local
// UTC offset.
const timeLayout = "2006-01-02T15:04:05.999999-07:00"

// Envelope is the standardized event wrapper carrying identity, timing, and
// payload metadata independent of transport. Field names follow the bridge's
// established wire shape.
type Envelope struct {
	SpecVersion     string `json:"specversion"`
	EventID         string `json:"event_id"`
	Source          string `json:"source"`
	EventType       string `json:"event_type"`
	Time            string `json:"time"`
	Subject         string `json:"subject"`
	DataContentType string `json:"datacontenttype"`
	Data            any    `json:"data"`
}

// EnvelopeData is the payload carried by sensor reading envelopes: the
// declaring configuration plus the observed value.
type EnvelopeData struct {
	SensorConfig any `json:"sensor_config"`
	Value        any `json:"value"`
}

// Generator produces CloudEvent envelopes with fixed source and type
// attributes. It is stateless apart from those two constants and safe for
// use from the single control goroutine without synchronization.
type Generator struct {
	source    string
	eventType string
}

// NewGenerator creates a Generator with the process-wide source and event
// type attributes.
func NewGenerator(source, eventType string) *Generator {
	return &Generator{source: source, eventType: eventType}
}

// GenerateOption customizes one generated envelope.
type GenerateOption func(*generateParams)

type generateParams struct {
	eventID   string
	timestamp time.Time
	subject   string
	data      any
}

// WithEventID sets an explicit event identifier instead of a generated UUID.
func WithEventID(id string) GenerateOption {
	return func(p *generateParams) { p.eventID = id }
}

// WithTimestamp sets an explicit event time instead of the current wall
// clock. The timestamp is rendered exactly as given, offset included.
func WithTimestamp(t time.Time) GenerateOption {
	return func(p *generateParams) { p.timestamp = t }
}

// WithSubject sets the envelope subject.
func WithSubject(subject string) GenerateOption {
	return func(p *generateParams) { p.subject = subject }
}

// WithData sets the envelope payload.
func WithData(data any) GenerateOption {
	return func(p *generateParams) { p.data = data }
}

// Generate produces one envelope. When no explicit id or timestamp is
// supplied, each call produces a fresh UUID and the current local time;
// envelopes are never reused or cached. Generate always succeeds.
func (g *Generator) Generate(opts ...GenerateOption) Envelope {
	var p generateParams
	for _, opt := range opts {
		opt(&p)
	}

	if p.eventID == "" {
		p.eventID = uuid.NewString()
	}
	if p.timestamp.IsZero() {
		p.timestamp = time.Now()
	}

	return Envelope{
		SpecVersion:     SpecVersion,
		EventID:         p.eventID,
		Source:          g.source,
		EventType:       g.eventType,
		Time:            p.timestamp.Format(timeLayout),
		Subject:         p.subject,
		DataContentType: dataContentType,
		Data:            p.data,
	}
}
