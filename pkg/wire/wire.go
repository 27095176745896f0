// Package wire defines the messages exchanged between the editor and the
// rendering engine over the relay. Every frame is a single JSON object whose
// "type" field names the variant; the remaining fields are variant specific
// and snake_case.
package wire

import "errors"

// ErrDecode is returned for frames that are not valid JSON, carry an unknown
// variant, or are missing a required field.
var ErrDecode = errors.New("wire: decode failure")

// Vec3 is an x/y/z triple.
type Vec3 [3]float32

// EntityID identifies an entity inside the engine's scene.
type EntityID uint32

// CommandType discriminates EditorCommand variants.
type CommandType string

const (
	CommandLoadScene       CommandType = "LoadScene"
	CommandUpdateTransform CommandType = "UpdateTransform"
	CommandCreateEntity    CommandType = "CreateEntity"
	CommandDeleteEntity    CommandType = "DeleteEntity"
	CommandSelectEntity    CommandType = "SelectEntity"
	CommandSetPlayMode     CommandType = "SetPlayMode"
	CommandGetSceneState   CommandType = "GetSceneState"
)

// Command is a message sent from the editor to the engine.
type Command interface {
	CommandType() CommandType
}

// LoadScene asks the engine to replace its scene with the given document.
type LoadScene struct {
	SceneJSON string `json:"scene_json"`
}

// UpdateTransform moves, rotates, or scales an entity.
type UpdateTransform struct {
	EntityID EntityID `json:"entity_id"`
	Position Vec3     `json:"position"`
	Rotation Vec3     `json:"rotation"`
	Scale    Vec3     `json:"scale"`
}

// CreateEntity adds a new entity, optionally parented.
type CreateEntity struct {
	Name       string    `json:"name"`
	Components []string  `json:"components"`
	ParentID   *EntityID `json:"parent_id"`
}

// DeleteEntity removes an entity.
type DeleteEntity struct {
	EntityID EntityID `json:"entity_id"`
}

// SelectEntity highlights an entity in the engine viewport.
type SelectEntity struct {
	EntityID EntityID `json:"entity_id"`
}

// SetPlayMode starts or pauses simulation.
type SetPlayMode struct {
	Playing bool `json:"playing"`
}

// GetSceneState asks the engine to reply with a SceneState event.
type GetSceneState struct{}

func (LoadScene) CommandType() CommandType       { return CommandLoadScene }
func (UpdateTransform) CommandType() CommandType { return CommandUpdateTransform }
func (CreateEntity) CommandType() CommandType    { return CommandCreateEntity }
func (DeleteEntity) CommandType() CommandType    { return CommandDeleteEntity }
func (SelectEntity) CommandType() CommandType    { return CommandSelectEntity }
func (SetPlayMode) CommandType() CommandType     { return CommandSetPlayMode }
func (GetSceneState) CommandType() CommandType   { return CommandGetSceneState }

// EventType discriminates EngineEvent variants.
type EventType string

const (
	EventSceneState       EventType = "SceneState"
	EventEntityCreated    EventType = "EntityCreated"
	EventEntityDeleted    EventType = "EntityDeleted"
	EventFrameStats       EventType = "FrameStats"
	EventConnected        EventType = "Connected"
	EventError            EventType = "Error"
	EventTransformUpdated EventType = "TransformUpdated"
	EventEntitySelected   EventType = "EntitySelected"

	// EventDisconnected is synthesized by the relay when its last engine
	// connection goes away. It is never accepted from the wire.
	EventDisconnected EventType = "Disconnected"
)

// Event is a message emitted by the engine (or synthesized locally by the
// relay) and consumed by the editor.
type Event interface {
	EventType() EventType
}

// SceneState carries the engine's full scene document.
type SceneState struct {
	SceneJSON string `json:"scene_json"`
}

// EntityCreated reports a new entity.
type EntityCreated struct {
	EntityID EntityID `json:"entity_id"`
	Name     string   `json:"name"`
}

// EntityDeleted reports a removed entity.
type EntityDeleted struct {
	EntityID EntityID `json:"entity_id"`
}

// FrameStats reports render performance.
type FrameStats struct {
	FPS         uint32 `json:"fps"`
	EntityCount uint32 `json:"entity_count"`
}

// Connected signals that an engine connection completed its handshake.
type Connected struct{}

// Error reports an engine-side failure.
type Error struct {
	Message string `json:"message"`
}

// TransformUpdated reports a transform changed inside the engine, typically
// by gizmo manipulation.
type TransformUpdated struct {
	EntityID EntityID `json:"entity_id"`
	Position Vec3     `json:"position"`
	Rotation Vec3     `json:"rotation"`
	Scale    Vec3     `json:"scale"`
}

// EntitySelected reports a selection change; a nil EntityID clears the
// selection.
type EntitySelected struct {
	EntityID *EntityID `json:"entity_id"`
}

// Disconnected signals that no engine connection remains.
type Disconnected struct{}

func (SceneState) EventType() EventType       { return EventSceneState }
func (EntityCreated) EventType() EventType    { return EventEntityCreated }
func (EntityDeleted) EventType() EventType    { return EventEntityDeleted }
func (FrameStats) EventType() EventType       { return EventFrameStats }
func (Connected) EventType() EventType        { return EventConnected }
func (Error) EventType() EventType            { return EventError }
func (TransformUpdated) EventType() EventType { return EventTransformUpdated }
func (EntitySelected) EventType() EventType   { return EventEntitySelected }
func (Disconnected) EventType() EventType     { return EventDisconnected }

// ID returns a pointer to id, for the optional entity fields.
func ID(id EntityID) *EntityID { return &id }
