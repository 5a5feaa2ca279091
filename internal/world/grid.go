package world

import (
	"github.com/annel0/voxelgen/internal/config"
	"github.com/annel0/voxelgen/internal/vec"
)

// Layout задаёт отображение ячеек решётки в мировые координаты
type Layout struct {
	Origin    vec.Vec3Float
	TileScale vec.Vec3Float
}

// DefaultLayout — единичные тайлы с началом в нуле
func DefaultLayout() Layout {
	return Layout{TileScale: vec.One}
}

// WorldPosition возвращает мировую позицию центра ячейки
func (l Layout) WorldPosition(c vec.Vec3) vec.Vec3Float {
	return l.Origin.Add(c.ToFloat().Mul(l.TileScale))
}

// BuildGrid обходит решётку (y → z → x), запрашивает тайл из пула для каждой
// заполненной ячейки и возвращает активную сетку прохода.
// Каждая ячейка посещается ровно один раз, поэтому дубликатов позиций нет.
func BuildGrid(cfg config.GenerationConfig, field *DensityField, pool *TilePool, layout Layout) []TileID {
	columns := field.Columns(cfg.Width, cfg.Depth)
	grid := make([]TileID, 0, len(columns))

	for y := 0; y < cfg.Height; y++ {
		for z := 0; z < cfg.Depth; z++ {
			for x := 0; x < cfg.Width; x++ {
				if !(float64(y) < columns[z*cfg.Width+x]) {
					continue
				}
				pos := layout.WorldPosition(vec.Vec3{X: x, Y: y, Z: z})
				grid = append(grid, pool.Acquire(pos))
			}
		}
	}

	return grid
}
