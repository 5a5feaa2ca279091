package util

import (
	"github.com/aquilax/go-perlin"
)

// Параметры генератора шума Перлина
const (
	perlinAlpha   = 2.0 // Сглаживание шума
	perlinBeta    = 2.0 // Частота шума
	perlinOctaves = 3   // Количество октав
)

// PerlinSource — детерминированный источник когерентного 2D шума.
// Каждый генератор владеет своим экземпляром, глобального состояния нет.
type PerlinSource struct {
	seed  int64
	noise *perlin.Perlin
}

// NewPerlinSource создаёт источник шума Перлина с указанным сидом
func NewPerlinSource(seed int64) *PerlinSource {
	return &PerlinSource{
		seed:  seed,
		noise: perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed),
	}
}

// Seed возвращает сид источника
func (s *PerlinSource) Seed() int64 {
	return s.seed
}

// Noise2D возвращает значение шума Перлина для указанных координат (от 0 до 1)
func (s *PerlinSource) Noise2D(x, y float64) float64 {
	// Получаем значение шума (примерно от -1 до 1)
	n := s.noise.Noise2D(x, y)

	// Преобразуем в диапазон от 0 до 1
	v := (n + 1.0) / 2.0
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
