package message

import (
	"encoding/json"
	"fmt"
)

// Payload is the tagged union of per-kind message metadata. The concrete
// type is determined by the message Kind; text messages carry no payload.
type Payload interface {
	PayloadKind() Kind
}

// ImageRef is one stored image with optional intrinsic dimensions.
type ImageRef struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ImagePayload is the attachment list of an image message.
type ImagePayload struct {
	Images []ImageRef `json:"images"`
}

func (ImagePayload) PayloadKind() Kind { return KindImage }

// MaxGridTiles bounds how many image tiles render in a message bubble.
const MaxGridTiles = 4

// Grid returns the visible tiles and the count hidden behind the last
// tile's "+n" overlay.
func (p ImagePayload) Grid() (visible []ImageRef, overflow int) {
	if len(p.Images) <= MaxGridTiles {
		return p.Images, 0
	}
	return p.Images[:MaxGridTiles], len(p.Images) - MaxGridTiles
}

// VoicePayload is the single audio attachment of a voice message.
type VoicePayload struct {
	URL      string    `json:"url"`
	Duration float64   `json:"duration"`
	MimeType string    `json:"mime_type"`
	Size     int64     `json:"size,omitempty"`
	Waveform []float64 `json:"waveform,omitempty"`
}

func (VoicePayload) PayloadKind() Kind { return KindVoice }

// EncodePayload serializes a payload for storage or transport. Nil payloads
// encode to nil.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// DecodePayload reconstructs the typed payload from its kind discriminator
// and raw metadata.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch kind {
	case KindText:
		return nil, nil
	case KindImage:
		var p ImagePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindVoice:
		var p VoicePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown message kind %q", kind)
	}
}
