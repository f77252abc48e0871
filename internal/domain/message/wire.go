package message

import "encoding/json"

// wireMessage is the JSON projection of Message. Payload crosses the wire
// as raw JSON keyed by Kind; DeliveryState never leaves the process.
type wireMessage struct {
	alias
	Payload json.RawMessage `json:"payload,omitempty"`
}

type alias Message

func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{alias: alias(m)}
	if m.Payload != nil {
		raw, err := EncodePayload(m.Payload)
		if err != nil {
			return nil, err
		}
		w.Payload = raw
	}
	return json.Marshal(w)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Message(w.alias)
	m.State = StateConfirmed
	if len(w.Payload) > 0 {
		p, err := DecodePayload(m.Kind, w.Payload)
		if err != nil {
			return err
		}
		m.Payload = p
	}
	return nil
}
