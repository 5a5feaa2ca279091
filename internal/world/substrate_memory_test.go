package world

import (
	"testing"

	"github.com/annel0/voxelgen/internal/vec"
	"github.com/stretchr/testify/assert"
)

func activeProbed(s *MemorySubstrate, pos vec.Vec3Float) UnitHandle {
	h := s.CreateUnit()
	s.SetPosition(h, pos)
	s.SetActive(h, true)
	s.AttachProbe(h)
	return h
}

func TestMemorySubstrateRaycastNeighbor(t *testing.T) {
	s := NewMemorySubstrate(vec.One)
	activeProbed(s, vec.Vec3Float{})
	activeProbed(s, vec.Vec3Float{X: 1})

	r := ProbeRange(vec.One, 0.3)
	assert.True(t, s.Raycast(vec.Vec3Float{}, vec.Right, r), "Сосед справа должен быть найден")
	assert.False(t, s.Raycast(vec.Vec3Float{}, vec.Left, r), "Собственный коллайдер не считается")
	assert.False(t, s.Raycast(vec.Vec3Float{}, vec.Up, r))
	assert.True(t, s.Raycast(vec.Vec3Float{X: 1}, vec.Left, r))
}

func TestMemorySubstrateRaycastRange(t *testing.T) {
	s := NewMemorySubstrate(vec.One)
	activeProbed(s, vec.Vec3Float{X: 2})

	assert.False(t, s.Raycast(vec.Vec3Float{}, vec.Right, 0.52), "Дальний юнит вне дальности зонда")
	assert.True(t, s.Raycast(vec.Vec3Float{}, vec.Right, 1.6))
	assert.False(t, s.Raycast(vec.Vec3Float{}, vec.Right, 0), "Нулевая дальность")
	assert.False(t, s.Raycast(vec.Vec3Float{}, vec.Vec3Float{}, 5), "Нулевое направление")
}

func TestMemorySubstrateIgnoresInactiveAndProbeless(t *testing.T) {
	s := NewMemorySubstrate(vec.One)
	h := activeProbed(s, vec.Vec3Float{X: 1})
	r := ProbeRange(vec.One, 0.3)

	s.DetachProbe(h)
	assert.False(t, s.Raycast(vec.Vec3Float{}, vec.Right, r), "Юнит без зонда невидим для луча")
	assert.Equal(t, 0, s.ProbedUnits())

	s.AttachProbe(h)
	s.SetActive(h, false)
	assert.False(t, s.Raycast(vec.Vec3Float{}, vec.Right, r), "Неактивный юнит невидим для луча")

	s.SetActive(h, true)
	s.SetPosition(h, vec.Vec3Float{Z: -1})
	assert.False(t, s.Raycast(vec.Vec3Float{}, vec.Right, r), "Индекс должен обновляться при перемещении")
	assert.True(t, s.Raycast(vec.Vec3Float{}, vec.Back, r))
	assert.Equal(t, 1, s.ProbedUnits())
}

func TestMemorySubstrateNegativeCoordinates(t *testing.T) {
	s := NewMemorySubstrate(vec.One)
	activeProbed(s, vec.Vec3Float{X: -3, Y: -3, Z: -3})
	assert.True(t, s.Raycast(vec.Vec3Float{X: -3, Y: -2, Z: -3}, vec.Down, 0.52))
}

func TestMemorySubstratePresent(t *testing.T) {
	s := NewMemorySubstrate(vec.One)
	assert.Nil(t, s.Surface())

	surface := &CombinedSurface{Tiles: 3}
	s.Present(surface)
	assert.Same(t, surface, s.Surface())
	assert.Equal(t, 1, s.Presented())
}

func TestSpatialIndex(t *testing.T) {
	si := NewSpatialIndex(1)
	si.Insert(1, vec.Vec3{X: 0})
	si.Insert(1, vec.Vec3{X: 0})
	si.Insert(2, vec.Vec3{X: 5})
	assert.Equal(t, 2, si.Len(), "Повторная вставка не дублирует юнит")

	var found []UnitHandle
	si.QueryBox(vec.Vec3Float{X: -1}, vec.Vec3Float{X: 1}, func(h UnitHandle) bool {
		found = append(found, h)
		return true
	})
	assert.Equal(t, []UnitHandle{1}, found)

	si.Remove(1, vec.Vec3{X: 0})
	si.Remove(1, vec.Vec3{X: 0})
	assert.Equal(t, 1, si.Len())
}
