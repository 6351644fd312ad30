package scene

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownScene is returned when a scene id is not registered
var ErrUnknownScene = errors.New("unknown scene")

// SceneInfo represents a built-in scene with its metadata
type SceneInfo struct {
	ID          string `json:"id"`          // Unique identifier
	DisplayName string `json:"displayName"` // UI display name
	Description string `json:"description"` // Optional description
	Seeded      bool   `json:"seeded"`      // Whether the seed changes the scene
}

// ScenesResponse represents the complete response for /api/scenes
type ScenesResponse struct {
	Scenes []SceneInfo `json:"scenes"`
}

type sceneEntry struct {
	info  SceneInfo
	build func(seed int64) *Scene
}

var builtinScenes = map[string]sceneEntry{
	"default": {
		info:  SceneInfo{Description: "Diffuse, glass and gold spheres on a yellow ground"},
		build: func(int64) *Scene { return NewDefaultScene() },
	},
	"random": {
		info:  SceneInfo{Description: "Field of random small spheres around three large ones", Seeded: true},
		build: func(seed int64) *Scene { return NewRandomScene(seed) },
	},
	"motion": {
		info:  SceneInfo{Description: "Random spheres with bouncing diffuse spheres and motion blur", Seeded: true},
		build: func(seed int64) *Scene { return NewMotionBlurScene(seed) },
	},
}

// Names returns the ids of all built-in scenes in sorted order
func Names() []string {
	names := make([]string, 0, len(builtinScenes))
	for id := range builtinScenes {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// ListScenes returns metadata for all built-in scenes, sorted by id
func ListScenes() []SceneInfo {
	var scenes []SceneInfo
	for _, id := range Names() {
		info := builtinScenes[id].info
		info.ID = id
		info.DisplayName = titleCase(id)
		scenes = append(scenes, info)
	}
	return scenes
}

// New builds the built-in scene with the given id. Seeded scenes are
// reproducible: the same id and seed always give the same world.
func New(id string, seed int64) (*Scene, error) {
	entry, ok := builtinScenes[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownScene, id, strings.Join(Names(), ", "))
	}
	return entry.build(seed), nil
}

// titleCase converts a scene id like "motion-blur" into "Motion Blur"
func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
		}
	}
	return strings.Join(words, " ")
}
