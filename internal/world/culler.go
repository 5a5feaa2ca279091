package world

import (
	"github.com/annel0/voxelgen/internal/vec"
)

// OccludedHitThreshold — тайл удаляется, если число попаданий зондов больше порога,
// то есть закрыты все шесть направлений.
const OccludedHitThreshold = 5

// probeDirections — порядок опроса: +Y, -Y, +X, -X, +Z, -Z
var probeDirections = [6]vec.Vec3Float{vec.Up, vec.Down, vec.Right, vec.Left, vec.Forward, vec.Back}

// CullResult — итог отсечения
type CullResult struct {
	Survivors []TileID
	Removed   []TileID
}

// OcclusionCuller удаляет внутренние тайлы, не имеющие ни одной открытой грани
type OcclusionCuller struct {
	sub        Substrate
	pool       *TilePool
	probeRange float64
}

// ProbeRange вычисляет дальность зонда: factor × длина диагонали масштаба тайла
func ProbeRange(tileScale vec.Vec3Float, factor float64) float64 {
	return tileScale.Length() * factor
}

// NewOcclusionCuller создаёт отсекатель
func NewOcclusionCuller(sub Substrate, pool *TilePool, probeRange float64) *OcclusionCuller {
	return &OcclusionCuller{sub: sub, pool: pool, probeRange: probeRange}
}

// Hits возвращает число направлений, в которых зонд тайла упирается в соседа
func (c *OcclusionCuller) Hits(id TileID) int {
	t, ok := c.pool.Tile(id)
	if !ok {
		return 0
	}
	hits := 0
	for _, dir := range probeDirections {
		if c.sub.Raycast(t.Position, dir, c.probeRange) {
			hits++
		}
	}
	return hits
}

// Cull классифицирует все тайлы сетки, затем снимает зонды со всей сетки
// и возвращает удалённые тайлы в пул. Классификация завершается до первого
// освобождения, поэтому удаление не влияет на соседей в том же проходе.
func (c *OcclusionCuller) Cull(grid []TileID) (CullResult, error) {
	result := CullResult{
		Survivors: make([]TileID, 0, len(grid)),
	}

	for _, id := range grid {
		if c.Hits(id) > OccludedHitThreshold {
			result.Removed = append(result.Removed, id)
		} else {
			result.Survivors = append(result.Survivors, id)
		}
	}

	for _, id := range grid {
		c.pool.DetachProbe(id)
	}

	return result, c.pool.ReleaseAll(result.Removed)
}
