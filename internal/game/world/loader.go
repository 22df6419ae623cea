package world

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlMapFile is the top-level YAML structure for map files.
type yamlMapFile struct {
	Map yamlMap `yaml:"map"`
}

// yamlMap is the YAML representation of a map.
type yamlMap struct {
	ID      string      `yaml:"id"`
	Name    string      `yaml:"name"`
	Grid    Tile        `yaml:"grid"`
	Blocked []Tile      `yaml:"blocked"`
	Slide   []Tile      `yaml:"slide"`
	Spawns  []yamlSpawn `yaml:"spawns"`
}

// yamlSpawn is the YAML representation of a spawn point.
type yamlSpawn struct {
	Template     string `yaml:"template"`
	Tile         Tile   `yaml:"tile"`
	Count        int    `yaml:"count"`
	RespawnAfter string `yaml:"respawn_after"`
}

// LoadMapFromFile reads and validates a single map YAML file.
//
// Precondition: path must point to a valid YAML map file.
// Postcondition: Returns a validated Map or a non-nil error.
func LoadMapFromFile(path string, width, height int) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map file %s: %w", path, err)
	}
	return LoadMapFromBytes(data, width, height)
}

// LoadMapFromBytes parses and validates a map from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the map schema.
// Postcondition: Returns a validated Map or a non-nil error.
func LoadMapFromBytes(data []byte, width, height int) (*Map, error) {
	var file yamlMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing map YAML: %w", err)
	}

	m := convertYAMLMap(file.Map)
	if err := m.Validate(width, height); err != nil {
		return nil, fmt.Errorf("validating map: %w", err)
	}
	return m, nil
}

// LoadMapsFromDir loads all YAML files in a directory as maps.
//
// Precondition: dir must be a valid directory path.
// Postcondition: Returns all validated maps or the first error encountered.
func LoadMapsFromDir(dir string, width, height int) ([]*Map, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading map directory %s: %w", dir, err)
	}

	var maps []*Map
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		m, err := LoadMapFromFile(filepath.Join(dir, name), width, height)
		if err != nil {
			return nil, fmt.Errorf("loading map from %s: %w", name, err)
		}
		maps = append(maps, m)
	}

	if len(maps) == 0 {
		return nil, fmt.Errorf("no map files found in %s", dir)
	}
	return maps, nil
}

// convertYAMLMap converts the parsed YAML structures into domain types.
func convertYAMLMap(ym yamlMap) *Map {
	m := &Map{
		ID:      ym.ID,
		Name:    ym.Name,
		GridX:   ym.Grid.X,
		GridY:   ym.Grid.Y,
		Blocked: make(map[Tile]bool, len(ym.Blocked)),
		Slide:   make(map[Tile]bool, len(ym.Slide)),
	}
	for _, t := range ym.Blocked {
		m.Blocked[t] = true
	}
	for _, t := range ym.Slide {
		m.Slide[t] = true
	}
	for _, ys := range ym.Spawns {
		m.Spawns = append(m.Spawns, SpawnConfig{
			Template:     ys.Template,
			Tile:         ys.Tile,
			Count:        ys.Count,
			RespawnAfter: ys.RespawnAfter,
		})
	}
	return m
}
