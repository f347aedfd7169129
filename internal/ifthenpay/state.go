package ifthenpay

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MethodState is the admin selection for one payment method.
type MethodState struct {
	Enabled bool   `json:"enabled"`
	Account string `json:"account"`
}

// MethodStates keeps method selections in the order they were configured.
// The order is significant: it is the order of the accounts sent to the provider.
type MethodStates struct {
	keys  []string
	items map[string]MethodState
}

func (m *MethodStates) Set(key string, state MethodState) {
	if m.items == nil {
		m.items = make(map[string]MethodState)
	}
	if _, ok := m.items[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.items[key] = state
}

func (m MethodStates) Get(key string) (MethodState, bool) {
	s, ok := m.items[key]
	return s, ok
}

func (m MethodStates) Keys() []string {
	return append([]string(nil), m.keys...)
}

func (m MethodStates) Len() int {
	return len(m.keys)
}

// AnyEnabled reports whether at least one method is switched on.
func (m MethodStates) AnyEnabled() bool {
	for _, k := range m.keys {
		if m.items[k].Enabled {
			return true
		}
	}
	return false
}

func (m MethodStates) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.items[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *MethodStates) UnmarshalJSON(data []byte) error {
	*m = MethodStates{}
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("methods: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("methods: expected key, got %v", tok)
		}
		var s MethodState
		if err := dec.Decode(&s); err != nil {
			return fmt.Errorf("methods[%s]: %w", key, err)
		}
		m.Set(key, s)
	}
	_, err = dec.Token()
	return err
}

// GatewayState is the configuration saved per payment account by the admin form.
type GatewayState struct {
	GatewayKey    string       `json:"gatewaykey"`
	DefaultMethod string       `json:"defaultmethod"`
	Description   string       `json:"description"`
	Methods       MethodStates `json:"methods"`
}

// DecodeState parses a saved state blob. Empty input or a missing gateway key is invalid.
func DecodeState(raw []byte) (GatewayState, error) {
	var st GatewayState
	if len(bytes.TrimSpace(raw)) == 0 {
		return st, ErrInvalidState
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return GatewayState{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if st.GatewayKey == "" {
		return GatewayState{}, fmt.Errorf("%w: missing gateway key", ErrInvalidState)
	}
	return st, nil
}
