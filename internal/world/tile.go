package world

import (
	"errors"

	"github.com/annel0/voxelgen/internal/vec"
)

var (
	// ErrDoubleRelease возвращается при повторном освобождении тайла без промежуточного Acquire
	ErrDoubleRelease = errors.New("tile already released")
	// ErrUnknownTile возвращается для идентификатора, который пул никогда не выдавал
	ErrUnknownTile = errors.New("unknown tile")
)

// TileID — индекс тайла в арене пула
type TileID int32

// Tile описывает состояние одного тайла
type Tile struct {
	ID       TileID
	Unit     UnitHandle
	Position vec.Vec3Float
	Active   bool
	HasProbe bool
}

// PoolStats содержит счётчики пула
type PoolStats struct {
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
	Total    int `json:"total"`
}
