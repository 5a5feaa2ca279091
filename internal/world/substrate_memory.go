package world

import (
	"math"
	"sync"

	"github.com/annel0/voxelgen/internal/physics"
	"github.com/annel0/voxelgen/internal/vec"
)

type memoryUnit struct {
	position vec.Vec3Float
	active   bool
	probe    *physics.BoxCollider
	cell     vec.Vec3
	indexed  bool
}

// MemorySubstrate — подложка в памяти процесса: юниты-кубы с коллайдерами-зондами,
// индексированными в равномерной сетке. Используется сервисом и тестами вместо движка.
type MemorySubstrate struct {
	mu        sync.RWMutex
	unitSize  vec.Vec3Float
	mesh      LocalMesh
	units     []memoryUnit
	index     *SpatialIndex
	surface   *CombinedSurface
	presented int
}

// NewMemorySubstrate создаёт подложку для юнитов заданного размера
func NewMemorySubstrate(unitSize vec.Vec3Float) *MemorySubstrate {
	cell := math.Max(unitSize.X, math.Max(unitSize.Y, unitSize.Z))
	return &MemorySubstrate{
		unitSize: unitSize,
		mesh:     UnitCube(),
		index:    NewSpatialIndex(cell),
	}
}

func (s *MemorySubstrate) CreateUnit() UnitHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units = append(s.units, memoryUnit{})
	return UnitHandle(len(s.units) - 1)
}

func (s *MemorySubstrate) SetActive(h UnitHandle, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.unit(h); u != nil {
		u.active = active
		s.reindex(h, u)
	}
}

func (s *MemorySubstrate) SetPosition(h UnitHandle, pos vec.Vec3Float) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.unit(h); u != nil {
		u.position = pos
		s.reindex(h, u)
	}
}

func (s *MemorySubstrate) AttachProbe(h UnitHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.unit(h); u != nil {
		u.probe = physics.NewBoxCollider(s.unitSize)
		s.reindex(h, u)
	}
}

func (s *MemorySubstrate) DetachProbe(h UnitHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.unit(h); u != nil {
		u.probe = nil
		s.reindex(h, u)
	}
}

// Raycast ищет активные юниты с зондом, в которые луч входит на отрезке (0, maxDist].
// Зонд, внутри которого начинается луч, игнорируется.
func (s *MemorySubstrate) Raycast(origin, dir vec.Vec3Float, maxDist float64) bool {
	length := dir.Length()
	if length == 0 || maxDist <= 0 {
		return false
	}
	dir = dir.Scale(1 / length)

	s.mu.RLock()
	defer s.mu.RUnlock()

	end := origin.Add(dir.Scale(maxDist))
	pad := vec.One.Scale(s.index.CellSize())
	lo := vec.Vec3Float{X: math.Min(origin.X, end.X), Y: math.Min(origin.Y, end.Y), Z: math.Min(origin.Z, end.Z)}.Sub(pad)
	hi := vec.Vec3Float{X: math.Max(origin.X, end.X), Y: math.Max(origin.Y, end.Y), Z: math.Max(origin.Z, end.Z)}.Add(pad)

	hit := false
	s.index.QueryBox(lo, hi, func(h UnitHandle) bool {
		u := &s.units[h]
		if _, ok := u.probe.Bounds(u.position).RayIntersect(origin, dir, maxDist); ok {
			hit = true
			return false
		}
		return true
	})
	return hit
}

func (s *MemorySubstrate) UnitMesh(UnitHandle) LocalMesh {
	return s.mesh
}

func (s *MemorySubstrate) Present(surface *CombinedSurface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface = surface
	s.presented++
}

// Surface возвращает последнюю показанную поверхность
func (s *MemorySubstrate) Surface() *CombinedSurface {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.surface
}

// Presented возвращает число вызовов Present
func (s *MemorySubstrate) Presented() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presented
}

// Units возвращает общее число созданных юнитов
func (s *MemorySubstrate) Units() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.units)
}

// ActiveUnits возвращает число активных юнитов
func (s *MemorySubstrate) ActiveUnits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := range s.units {
		if s.units[i].active {
			n++
		}
	}
	return n
}

// ProbedUnits возвращает число юнитов, видимых для Raycast
func (s *MemorySubstrate) ProbedUnits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

func (s *MemorySubstrate) unit(h UnitHandle) *memoryUnit {
	if int(h) >= len(s.units) {
		return nil
	}
	return &s.units[h]
}

// reindex держит в индексе ровно активные юниты с зондом
func (s *MemorySubstrate) reindex(h UnitHandle, u *memoryUnit) {
	if u.indexed {
		s.index.Remove(h, u.cell)
		u.indexed = false
	}
	if u.active && u.probe != nil {
		u.cell = s.index.CellOf(u.position)
		s.index.Insert(h, u.cell)
		u.indexed = true
	}
}
