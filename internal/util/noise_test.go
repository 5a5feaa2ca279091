package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPerlinSourceRange(t *testing.T) {
	src := NewPerlinSource(42)

	for x := -50; x < 50; x++ {
		for y := -50; y < 50; y++ {
			v := src.Noise2D(float64(x)*0.37, float64(y)*0.53)
			assert.GreaterOrEqual(t, v, 0.0, "Шум не должен быть меньше 0")
			assert.LessOrEqual(t, v, 1.0, "Шум не должен быть больше 1")
		}
	}
}

func TestPerlinSourceDeterministic(t *testing.T) {
	a := NewPerlinSource(7)
	b := NewPerlinSource(7)

	for i := 0; i < 100; i++ {
		x := float64(i) * 0.173
		y := float64(i) * 0.311
		assert.Equal(t, a.Noise2D(x, y), b.Noise2D(x, y), "Одинаковый сид должен давать одинаковый шум")
	}
	assert.Equal(t, int64(7), a.Seed())
}
