package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var ErrUnknownEvent = errors.New("event: unknown event name")

// Registry maps event names to payload types so stored records can be decoded
// back into typed payloads.
type Registry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]reflect.Type)}
}

// Register records the concrete type of prototype, which must be a struct
// value (not a pointer).
func (r *Registry) Register(prototypes ...Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, prototype := range prototypes {
		t := reflect.TypeOf(prototype)
		if t.Kind() != reflect.Struct {
			panic(fmt.Sprintf("event: payload %s must be a struct", t))
		}
		r.types[prototype.EventName()] = t
	}
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	return names
}

// Decode returns the typed payload of record as a struct value.
func (r *Registry) Decode(record Record) (Payload, error) {
	r.mu.RLock()
	t, ok := r.types[record.Topic.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, record.Topic.Name)
	}

	value := reflect.New(t)
	if err := json.Unmarshal(record.Payload, value.Interface()); err != nil {
		return nil, fmt.Errorf("event: decode %s #%d: %w", record.Topic, record.ID, err)
	}
	return value.Elem().Interface().(Payload), nil
}
