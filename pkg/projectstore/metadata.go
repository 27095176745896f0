package projectstore

import (
	"embed"
	"encoding/json"
	"os"
	"time"
)

// Version is written into every new project's metadata.
const Version = "1.0.0"

//go:embed skeleton/scene.json skeleton/tsconfig.json
var skeletonFS embed.FS

// Metadata is the content of project.json. Timestamps are Unix seconds.
type Metadata struct {
	Name     string   `json:"name"`
	Created  int64    `json:"created"`
	Modified int64    `json:"modified"`
	Version  string   `json:"version"`
	Settings Settings `json:"settings"`
}

// Settings holds the editor settings stored with a project.
type Settings struct {
	Title    string           `json:"title"`
	Editable bool             `json:"editable"`
	VR       bool             `json:"vr"`
	Renderer RendererSettings `json:"renderer"`
	Defaults ObjectDefaults   `json:"defaults"`
}

// RendererSettings configures the engine renderer.
type RendererSettings struct {
	Antialias           bool    `json:"antialias"`
	Shadows             bool    `json:"shadows"`
	ShadowType          int     `json:"shadowType"`
	ToneMapping         int     `json:"toneMapping"`
	ToneMappingExposure float64 `json:"toneMappingExposure"`
}

// ObjectDefaults applies to newly added scene objects.
type ObjectDefaults struct {
	CastShadows    bool            `json:"castShadows"`
	ReceiveShadows bool            `json:"receiveShadows"`
	Material       json.RawMessage `json:"material"`
}

// DefaultSettings returns the settings block of a freshly created project.
func DefaultSettings() Settings {
	return Settings{
		Renderer: RendererSettings{
			Antialias:           true,
			Shadows:             true,
			ShadowType:          1,
			ToneMappingExposure: 1,
		},
		Defaults: ObjectDefaults{Material: json.RawMessage("null")},
	}
}

// NewMetadata builds the metadata written by Create.
func NewMetadata(name string, now time.Time) Metadata {
	ts := now.Unix()

	return Metadata{
		Name:     name,
		Created:  ts,
		Modified: ts,
		Version:  Version,
		Settings: DefaultSettings(),
	}
}

// DefaultScene returns the scene document of a freshly created project: a
// camera and an empty scene graph.
func DefaultScene() []byte {
	data, err := skeletonFS.ReadFile("skeleton/scene.json")
	if err != nil {
		panic("projectstore: embedded scene missing: " + err.Error())
	}
	return data
}

func defaultTSConfig() []byte {
	data, err := skeletonFS.ReadFile("skeleton/tsconfig.json")
	if err != nil {
		panic("projectstore: embedded tsconfig missing: " + err.Error())
	}
	return data
}

// listing is the subset of project.json that List reads. Fields are decoded
// leniently so a hand-edited file still yields an entry.
type listing struct {
	name     string
	modified time.Time
}

func readListing(path string, dirName string, dirModTime time.Time) listing {
	out := listing{name: dirName, modified: dirModTime}

	data, err := os.ReadFile(path) //nolint:gosec // path is inside the projects root
	if err != nil {
		return out
	}

	var doc map[string]json.RawMessage
	if json.Unmarshal(data, &doc) != nil {
		return out
	}

	var name string
	if json.Unmarshal(doc["name"], &name) == nil && name != "" {
		out.name = name
	}

	for _, key := range []string{"modified", "created"} {
		var ts uint64
		if raw, ok := doc[key]; ok && string(raw) != "null" && json.Unmarshal(raw, &ts) == nil {
			out.modified = time.Unix(int64(ts), 0) //nolint:gosec // timestamps fit in int64
			break
		}
	}

	return out
}
