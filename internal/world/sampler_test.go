package world

import (
	"math/rand"
	"testing"

	"github.com/annel0/voxelgen/internal/config"
	"github.com/annel0/voxelgen/internal/util"
	"github.com/stretchr/testify/assert"
)

func TestDensityFormula(t *testing.T) {
	field := NewDensityField(constNoise(0.5), FieldParams{Scale: 16}, 8)

	// 0.5 * 8 * 0.5 = 2
	assert.Equal(t, 2.0, field.Density(3, 4))
	assert.True(t, field.IsSolid(3, 1, 4))
	assert.False(t, field.IsSolid(3, 2, 4), "Ячейка на уровне плотности не заполнена")
}

func TestDensityDeterministic(t *testing.T) {
	params := FieldParams{Scale: 19.5, OffsetX: -311.25, OffsetZ: 780.5}
	a := NewDensityField(util.NewPerlinSource(11), params, 32)
	b := NewDensityField(util.NewPerlinSource(11), params, 32)

	for x := 0; x < 32; x++ {
		for z := 0; z < 32; z++ {
			assert.Equal(t, a.Density(x, z), b.Density(x, z))
			assert.Equal(t, a.Density(x, z), a.Density(x, z), "Повторный запрос даёт то же значение")
		}
	}
}

func TestDrawFieldParamsRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	cfg := config.GenerationConfig{Height: 8, Width: 8, Depth: 8, MinScale: 16, MaxScale: 24}

	for i := 0; i < 500; i++ {
		p := DrawFieldParams(rng, cfg, 1024)
		assert.GreaterOrEqual(t, p.Scale, 16.0)
		assert.LessOrEqual(t, p.Scale, 24.0)
		assert.GreaterOrEqual(t, p.OffsetX, -1024.0)
		assert.LessOrEqual(t, p.OffsetX, 1024.0)
		assert.GreaterOrEqual(t, p.OffsetZ, -1024.0)
		assert.LessOrEqual(t, p.OffsetZ, 1024.0)
	}
}

func TestColumnsMatchDensity(t *testing.T) {
	field := NewDensityField(util.NewPerlinSource(2), FieldParams{Scale: 20, OffsetX: 10, OffsetZ: -10}, 16)
	columns := field.Columns(12, 9)

	assert.Len(t, columns, 12*9)
	for z := 0; z < 9; z++ {
		for x := 0; x < 12; x++ {
			assert.Equal(t, field.Density(x, z), columns[z*12+x])
		}
	}
}

func TestSolidCountFlatField(t *testing.T) {
	field := NewDensityField(constNoise(1), FieldParams{Scale: 16}, 8)
	// Плотность 4 → слои 0..3 во всех 64 колонках
	assert.Equal(t, 256, field.SolidCount(flatConfig()))
}
