package messages

import (
	"fmt"

	"github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Payload is the opaque body of an envelope: string keys mapped to
// arbitrary values, iterated in insertion order. The broker never
// inspects it; only the producing and consuming agents agree on its
// shape.
//
// Values written by an agent keep their Go types until the payload
// crosses a JSON boundary (the dashboard, a persisted fixture), after
// which numbers come back as float64. The typed accessors below absorb
// that difference so handler code does not care which side of the
// boundary it runs on.
type Payload struct {
	om *orderedmap.OrderedMap[string, any]
}

// NewPayload returns an empty payload.
func NewPayload() *Payload {
	return &Payload{om: orderedmap.New[string, any]()}
}

// ErrorPayload wraps a handler failure as payload data, the only form
// in which handler errors travel back to a requester.
func ErrorPayload(err error) *Payload {
	return NewPayload().Set("error", err.Error())
}

// Set stores a value under key, appending the key to the iteration
// order when it is new. It returns the payload for chaining:
//
//	messages.NewPayload().Set("sku_id", sku).Set("quantity", 40)
func (p *Payload) Set(key string, value any) *Payload {
	if p.om == nil {
		p.om = orderedmap.New[string, any]()
	}
	p.om.Set(key, value)
	return p
}

// Get returns the raw value stored under key.
func (p *Payload) Get(key string) (any, bool) {
	if p == nil || p.om == nil {
		return nil, false
	}
	return p.om.Get(key)
}

// Len returns the number of keys.
func (p *Payload) Len() int {
	if p == nil || p.om == nil {
		return 0
	}
	return p.om.Len()
}

// Keys returns the keys in insertion order.
func (p *Payload) Keys() []string {
	if p == nil || p.om == nil {
		return nil
	}
	keys := make([]string, 0, p.om.Len())
	for pair := p.om.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Range visits entries in insertion order until fn returns false.
func (p *Payload) Range(fn func(key string, value any) bool) {
	if p == nil || p.om == nil {
		return
	}
	for pair := p.om.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// String returns the value under key as a string, or "" when the key is
// absent or not string-shaped.
func (p *Payload) String(key string) string {
	v, ok := p.Get(key)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return ""
	}
}

// Float returns the value under key as a float64, coercing the numeric
// types a payload can hold on either side of a JSON round trip.
func (p *Payload) Float(key string) float64 {
	v, ok := p.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Int returns the value under key as an int, truncating floats that
// came back from JSON.
func (p *Payload) Int(key string) int {
	v, ok := p.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint:
		return int(n)
	case uint32:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return int(i)
	default:
		return 0
	}
}

// Bool returns the value under key as a bool, defaulting to false.
func (p *Payload) Bool(key string) bool {
	v, ok := p.Get(key)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// MarshalJSON renders the payload as a JSON object whose member order
// matches insertion order.
func (p *Payload) MarshalJSON() ([]byte, error) {
	if p == nil || p.om == nil {
		return []byte("{}"), nil
	}
	return p.om.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, preserving member order.
func (p *Payload) UnmarshalJSON(data []byte) error {
	if p.om == nil {
		p.om = orderedmap.New[string, any]()
	}
	return p.om.UnmarshalJSON(data)
}
