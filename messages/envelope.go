package messages

import (
	"fmt"
	"time"

	"github.com/casualjim/waggle/pkg/uuidx"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Envelope is the unit of exchange between agents. Treat it as
// immutable once it has been handed to the broker: the only mutation
// that ever happens after construction is the broker stamping
// CorrelationID at send time for request/response exchanges.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	Sender        string          `json:"sender"`
	Recipient     string          `json:"recipient,omitempty"`
	Kind          Kind            `json:"kind"`
	Payload       *Payload        `json:"payload"`
	CreatedAt     strfmt.DateTime `json:"created_at"`
	Priority      Priority        `json:"priority"`
	NeedsResponse bool            `json:"needs_response,omitempty"`
	CorrelationID uuid.UUID       `json:"correlation_id,omitempty"`
}

var (
	// To addresses the envelope to a single identity. Without it the
	// envelope is a broadcast.
	To = opts.ForName[Envelope, string]("Recipient")

	// WithPriority overrides the default low priority.
	WithPriority = opts.ForName[Envelope, Priority]("Priority")
)

// AwaitingResponse marks the envelope as the opening half of a
// request/response exchange. The broker stamps the correlation id.
func AwaitingResponse() opts.Option[Envelope] {
	return opts.Type[Envelope](func(e *Envelope) error {
		e.NeedsResponse = true
		return nil
	})
}

// New builds an envelope from sender, kind and payload. A nil payload
// is replaced with an empty one so handlers never see nil.
func New(sender string, kind Kind, payload *Payload, options ...opts.Option[Envelope]) *Envelope {
	e := &Envelope{
		ID:        uuidx.New(),
		Sender:    sender,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: strfmt.DateTime(time.Now()),
		Priority:  PriorityLow,
	}
	if err := opts.Apply(e, options); err != nil {
		panic(err)
	}
	if e.Payload == nil {
		e.Payload = NewPayload()
	}
	return e
}

// IsBroadcast reports whether the envelope has no named recipient.
func (e *Envelope) IsBroadcast() bool {
	return e.Recipient == ""
}

// HasCorrelation reports whether a correlation id has been stamped.
func (e *Envelope) HasCorrelation() bool {
	return e.CorrelationID != uuid.Nil
}

// MarshalJSON implements custom JSON marshaling for Envelope
func (e Envelope) MarshalJSON() ([]byte, error) {
	result := []byte(`{}`)

	var err error
	result, err = sjson.SetBytes(result, "id", e.ID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "sender", e.Sender)
	if err != nil {
		return nil, err
	}

	if e.Recipient != "" {
		result, err = sjson.SetBytes(result, "recipient", e.Recipient)
		if err != nil {
			return nil, err
		}
	}

	result, err = sjson.SetBytes(result, "kind", string(e.Kind))
	if err != nil {
		return nil, err
	}

	payloadBytes, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	result, err = sjson.SetRawBytes(result, "payload", payloadBytes)
	if err != nil {
		return nil, err
	}

	if !e.CreatedAt.IsZero() {
		result, err = sjson.SetBytes(result, "created_at", e.CreatedAt.String())
		if err != nil {
			return nil, err
		}
	}

	result, err = sjson.SetBytes(result, "priority", int(e.Priority))
	if err != nil {
		return nil, err
	}

	if e.NeedsResponse {
		result, err = sjson.SetBytes(result, "needs_response", true)
		if err != nil {
			return nil, err
		}
	}

	if e.CorrelationID != uuid.Nil {
		result, err = sjson.SetBytes(result, "correlation_id", e.CorrelationID.String())
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for Envelope
func (e *Envelope) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	id := gjson.GetBytes(data, "id")
	if !id.Exists() {
		return fmt.Errorf("missing required field 'id'")
	}
	if err := e.ID.UnmarshalText([]byte(id.String())); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}

	sender := gjson.GetBytes(data, "sender")
	if !sender.Exists() {
		return fmt.Errorf("missing required field 'sender'")
	}
	e.Sender = sender.String()

	if recipient := gjson.GetBytes(data, "recipient"); recipient.Exists() {
		e.Recipient = recipient.String()
	}

	kind := gjson.GetBytes(data, "kind")
	if !kind.Exists() {
		return fmt.Errorf("missing required field 'kind'")
	}
	e.Kind = Kind(kind.String())

	e.Payload = NewPayload()
	if payload := gjson.GetBytes(data, "payload"); payload.Exists() {
		if err := json.Unmarshal([]byte(payload.Raw), e.Payload); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}

	if createdAt := gjson.GetBytes(data, "created_at"); createdAt.Exists() {
		if err := e.CreatedAt.UnmarshalText([]byte(createdAt.String())); err != nil {
			return fmt.Errorf("invalid created_at: %w", err)
		}
	}

	e.Priority = PriorityLow
	if priority := gjson.GetBytes(data, "priority"); priority.Exists() {
		e.Priority = Priority(priority.Int())
	}

	if needsResponse := gjson.GetBytes(data, "needs_response"); needsResponse.Exists() {
		e.NeedsResponse = needsResponse.Bool()
	}

	if correlationID := gjson.GetBytes(data, "correlation_id"); correlationID.Exists() {
		if err := e.CorrelationID.UnmarshalText([]byte(correlationID.String())); err != nil {
			return fmt.Errorf("invalid correlation_id: %w", err)
		}
		if !e.NeedsResponse {
			return fmt.Errorf("correlation_id present without needs_response")
		}
	}

	return nil
}
