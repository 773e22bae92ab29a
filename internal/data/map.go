// Package data loads the static world content: the tile map with its
// doors, and the starting tile for fresh characters.
package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/realmgo/internal/model"
)

// TileMap is the immutable world geometry. It satisfies the map interface
// the world consults; the tileset itself (graphics, collision meshes) is
// client data and never reaches the server.
type TileMap struct {
	width  int
	height int
	doors  map[model.Position]model.Position
	start  model.Position
}

type mapFile struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Start  struct {
		X int `yaml:"x"`
		Y int `yaml:"y"`
	} `yaml:"start"`
	Doors []struct {
		X   int `yaml:"x"`
		Y   int `yaml:"y"`
		ToX int `yaml:"to_x"`
		ToY int `yaml:"to_y"`
	} `yaml:"doors"`
}

// LoadMap reads the map description from a YAML file.
func LoadMap(path string) (*TileMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map %s: %w", path, err)
	}
	return ParseMap(raw)
}

// ParseMap builds a TileMap from raw YAML.
func ParseMap(raw []byte) (*TileMap, error) {
	var mf mapFile
	if err := yaml.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("parsing map: %w", err)
	}
	if mf.Width <= 0 || mf.Height <= 0 {
		return nil, fmt.Errorf("map extent %dx%d is not positive", mf.Width, mf.Height)
	}

	m := &TileMap{
		width:  mf.Width,
		height: mf.Height,
		doors:  make(map[model.Position]model.Position, len(mf.Doors)),
		start:  model.Position{X: mf.Start.X, Y: mf.Start.Y},
	}
	for _, d := range mf.Doors {
		from := model.Position{X: d.X, Y: d.Y}
		to := model.Position{X: d.ToX, Y: d.ToY}
		if !m.contains(from) || !m.contains(to) {
			return nil, fmt.Errorf("door %v -> %v leaves the map extent", from, to)
		}
		m.doors[from] = to
	}
	return m, nil
}

func (m *TileMap) contains(pos model.Position) bool {
	return pos.X >= 0 && pos.X < m.width && pos.Y >= 0 && pos.Y < m.height
}

// Width returns the map extent in tiles.
func (m *TileMap) Width() int { return m.width }

// Height returns the map extent in tiles.
func (m *TileMap) Height() int { return m.height }

// Start returns the spawn tile for fresh characters.
func (m *TileMap) Start() model.Position { return m.start }

// IsDoor reports whether the tile is a door.
func (m *TileMap) IsDoor(pos model.Position) bool {
	_, ok := m.doors[pos]
	return ok
}

// DoorDestination returns where the door leads.
func (m *TileMap) DoorDestination(pos model.Position) (model.Position, bool) {
	to, ok := m.doors[pos]
	return to, ok
}
