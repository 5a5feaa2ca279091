package world

import (
	"math/rand"

	"github.com/annel0/voxelgen/internal/config"
)

// NoiseSource — источник когерентного 2D шума со значениями в [0,1]
type NoiseSource interface {
	Noise2D(x, y float64) float64
}

// FieldParams — случайные параметры прохода: масштаб и смещения шума.
// Выбираются один раз на проход и общие для всех колонок.
type FieldParams struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offset_x"`
	OffsetZ float64 `json:"offset_z"`
}

// DrawFieldParams выбирает масштаб из [MinScale, MaxScale] и смещения из [-offsetRange, offsetRange]
func DrawFieldParams(rng *rand.Rand, cfg config.GenerationConfig, offsetRange float64) FieldParams {
	return FieldParams{
		Scale:   cfg.MinScale + rng.Float64()*(cfg.MaxScale-cfg.MinScale),
		OffsetX: -offsetRange + rng.Float64()*2*offsetRange,
		OffsetZ: -offsetRange + rng.Float64()*2*offsetRange,
	}
}

// DensityField — поле высот: колонка (x,z) заполнена до высоты Density(x,z)
type DensityField struct {
	noise  NoiseSource
	params FieldParams
	depth  int
}

// NewDensityField создаёт поле плотности для одного прохода
func NewDensityField(noise NoiseSource, params FieldParams, depth int) *DensityField {
	return &DensityField{noise: noise, params: params, depth: depth}
}

// Params возвращает параметры поля
func (f *DensityField) Params() FieldParams {
	return f.params
}

// Density возвращает псевдовысоту колонки (x,z)
func (f *DensityField) Density(x, z int) float64 {
	nx := (float64(x) + f.params.OffsetX) / f.params.Scale
	nz := (float64(z) + f.params.OffsetZ) / f.params.Scale
	return f.noise.Noise2D(nx, nz) * float64(f.depth) * 0.5
}

// IsSolid сообщает, заполнена ли ячейка решётки
func (f *DensityField) IsSolid(x, y, z int) bool {
	return float64(y) < f.Density(x, z)
}

// Columns возвращает плотности всех колонок в порядке z*width+x
func (f *DensityField) Columns(width, depth int) []float64 {
	columns := make([]float64, width*depth)
	for z := 0; z < depth; z++ {
		for x := 0; x < width; x++ {
			columns[z*width+x] = f.Density(x, z)
		}
	}
	return columns
}

// SolidCount считает заполненные ячейки решётки для указанной конфигурации
func (f *DensityField) SolidCount(cfg config.GenerationConfig) int {
	count := 0
	for y := 0; y < cfg.Height; y++ {
		for z := 0; z < cfg.Depth; z++ {
			for x := 0; x < cfg.Width; x++ {
				if f.IsSolid(x, y, z) {
					count++
				}
			}
		}
	}
	return count
}
