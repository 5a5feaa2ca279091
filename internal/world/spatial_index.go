package world

import (
	"github.com/annel0/voxelgen/internal/vec"
)

// SpatialIndex — равномерная 3D сетка ячеек для быстрого поиска юнитов рядом с лучом.
// Синхронизацию обеспечивает владелец индекса.
type SpatialIndex struct {
	cellSize float64
	cells    map[vec.Vec3]map[UnitHandle]struct{}
	size     int
}

// NewSpatialIndex создаёт новый пространственный индекс
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = 1.0
	}
	return &SpatialIndex{
		cellSize: cellSize,
		cells:    make(map[vec.Vec3]map[UnitHandle]struct{}),
	}
}

// CellSize возвращает размер ячейки
func (si *SpatialIndex) CellSize() float64 {
	return si.cellSize
}

// CellOf возвращает ячейку, содержащую точку
func (si *SpatialIndex) CellOf(p vec.Vec3Float) vec.Vec3 {
	return p.Floor(si.cellSize)
}

// Insert добавляет юнит в ячейку
func (si *SpatialIndex) Insert(h UnitHandle, cell vec.Vec3) {
	units, ok := si.cells[cell]
	if !ok {
		units = make(map[UnitHandle]struct{})
		si.cells[cell] = units
	}
	if _, exists := units[h]; !exists {
		units[h] = struct{}{}
		si.size++
	}
}

// Remove удаляет юнит из ячейки
func (si *SpatialIndex) Remove(h UnitHandle, cell vec.Vec3) {
	units, ok := si.cells[cell]
	if !ok {
		return
	}
	if _, exists := units[h]; !exists {
		return
	}
	delete(units, h)
	si.size--
	if len(units) == 0 {
		delete(si.cells, cell)
	}
}

// QueryBox вызывает fn для каждого юнита в ячейках, покрывающих [min, max].
// Обход прекращается, если fn вернёт false.
func (si *SpatialIndex) QueryBox(min, max vec.Vec3Float, fn func(UnitHandle) bool) {
	lo := si.CellOf(min)
	hi := si.CellOf(max)
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				for h := range si.cells[vec.Vec3{X: x, Y: y, Z: z}] {
					if !fn(h) {
						return
					}
				}
			}
		}
	}
}

// Len возвращает число проиндексированных юнитов
func (si *SpatialIndex) Len() int {
	return si.size
}
