package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// EncodeCommand renders c as a single JSON text frame.
func EncodeCommand(c Command) ([]byte, error) {
	if c == nil {
		return nil, errors.New("wire: encode: nil command")
	}

	if ce, ok := c.(CreateEntity); ok && ce.Components == nil {
		ce.Components = []string{}
		c = ce
	}

	return encode(string(c.CommandType()), c)
}

// EncodeEvent renders e as a single JSON text frame.
func EncodeEvent(e Event) ([]byte, error) {
	if e == nil {
		return nil, errors.New("wire: encode: nil event")
	}

	return encode(string(e.EventType()), e)
}

// DecodeCommand parses a frame produced by an editor. Failures wrap ErrDecode.
func DecodeCommand(data []byte) (Command, error) {
	fields, kind, err := split(data)
	if err != nil {
		return nil, err
	}

	switch CommandType(kind) {
	case CommandLoadScene:
		return asCommand(decodeInto[LoadScene](data, fields, "scene_json"))
	case CommandUpdateTransform:
		return asCommand(decodeInto[UpdateTransform](data, fields, "entity_id", "position", "rotation", "scale"))
	case CommandCreateEntity:
		return asCommand(decodeInto[CreateEntity](data, fields, "name", "components"))
	case CommandDeleteEntity:
		return asCommand(decodeInto[DeleteEntity](data, fields, "entity_id"))
	case CommandSelectEntity:
		return asCommand(decodeInto[SelectEntity](data, fields, "entity_id"))
	case CommandSetPlayMode:
		return asCommand(decodeInto[SetPlayMode](data, fields, "playing"))
	case CommandGetSceneState:
		return GetSceneState{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown command type %q", ErrDecode, kind)
	}
}

// DecodeEvent parses a frame produced by the engine. Locally synthesized
// variants such as Disconnected are rejected. Failures wrap ErrDecode.
func DecodeEvent(data []byte) (Event, error) {
	fields, kind, err := split(data)
	if err != nil {
		return nil, err
	}

	switch EventType(kind) {
	case EventSceneState:
		return asEvent(decodeInto[SceneState](data, fields, "scene_json"))
	case EventEntityCreated:
		return asEvent(decodeInto[EntityCreated](data, fields, "entity_id", "name"))
	case EventEntityDeleted:
		return asEvent(decodeInto[EntityDeleted](data, fields, "entity_id"))
	case EventFrameStats:
		return asEvent(decodeInto[FrameStats](data, fields, "fps", "entity_count"))
	case EventConnected:
		return Connected{}, nil
	case EventError:
		return asEvent(decodeInto[Error](data, fields, "message"))
	case EventTransformUpdated:
		return asEvent(decodeInto[TransformUpdated](data, fields, "entity_id", "position", "rotation", "scale"))
	case EventEntitySelected:
		return asEvent(decodeInto[EntitySelected](data, fields))
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrDecode, kind)
	}
}

func encode(kind string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", kind, err)
	}

	tag, err := json.Marshal(kind)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", kind, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(tag)

	// body is a JSON object; splice its members in after the tag.
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}

	return buf.Bytes(), nil
}

// split parses data as a JSON object and extracts its "type" discriminator.
func split(data []byte) (map[string]json.RawMessage, string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if fields == nil {
		return nil, "", fmt.Errorf("%w: frame is not an object", ErrDecode)
	}

	raw, ok := fields["type"]
	if !ok {
		return nil, "", fmt.Errorf("%w: missing \"type\" field", ErrDecode)
	}

	var kind string
	if err := json.Unmarshal(raw, &kind); err != nil {
		return nil, "", fmt.Errorf("%w: \"type\" must be a string", ErrDecode)
	}

	return fields, kind, nil
}

func decodeInto[T any](data []byte, fields map[string]json.RawMessage, required ...string) (T, error) {
	var v T

	for _, name := range required {
		raw, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return v, fmt.Errorf("%w: missing field %q", ErrDecode, name)
		}
	}

	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return v, nil
}

func asCommand[T Command](v T, err error) (Command, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

func asEvent[T Event](v T, err error) (Event, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

// UnmarshalJSON requires exactly three components.
func (v *Vec3) UnmarshalJSON(data []byte) error {
	var xs []float32
	if err := json.Unmarshal(data, &xs); err != nil {
		return err
	}

	if len(xs) != 3 {
		return fmt.Errorf("vec3: expected 3 components, got %d", len(xs))
	}

	copy(v[:], xs)

	return nil
}
