package world

import "github.com/udisondev/realmgo/internal/model"

// Group grid constants. Groups are square tile buckets; shifting by
// GroupShift maps a tile coordinate to its group index.
const (
	// GroupShift - shift by N bits for 2^N tiles per group (2^4 = 16)
	GroupShift = 4

	// GroupSize is the group edge length in tiles.
	GroupSize = 1 << GroupShift
)

// PositionToGroup converts a tile position to its group id.
func PositionToGroup(pos model.Position) model.GroupID {
	return model.GroupID{
		X: pos.X >> GroupShift,
		Y: pos.Y >> GroupShift,
	}
}

// GroupOrigin returns the north-west tile of a group.
func GroupOrigin(g model.GroupID) model.Position {
	return model.Position{
		X: g.X << GroupShift,
		Y: g.Y << GroupShift,
	}
}
