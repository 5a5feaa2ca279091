package physics

import (
	"math"

	"github.com/annel0/voxelgen/internal/vec"
)

// BoxCollider представляет простой коллайдер-параллелепипед с центром в позиции юнита
type BoxCollider struct {
	Size vec.Vec3Float // Размеры по осям
}

// NewBoxCollider создаёт новый коллайдер с указанными размерами
func NewBoxCollider(size vec.Vec3Float) *BoxCollider {
	return &BoxCollider{Size: size}
}

// Bounds возвращает AABB коллайдера, размещённого в указанной позиции
func (bc *BoxCollider) Bounds(center vec.Vec3Float) AABB {
	half := bc.Size.Scale(0.5)
	return AABB{Min: center.Sub(half), Max: center.Add(half)}
}

// AABB — выровненный по осям ограничивающий параллелепипед
type AABB struct {
	Min vec.Vec3Float
	Max vec.Vec3Float
}

// Contains проверяет, находится ли точка внутри параллелепипеда (границы включительно)
func (b AABB) Contains(p vec.Vec3Float) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// RayIntersect выполняет slab-тест луча против AABB.
// Возвращает расстояние до точки входа и признак попадания.
// Луч, начинающийся внутри параллелепипеда, попаданием не считается —
// так же ведут себя движковые raycast'ы.
func (b AABB) RayIntersect(origin, dir vec.Vec3Float, maxDist float64) (float64, bool) {
	if b.Contains(origin) {
		return 0, false
	}

	tMin := 0.0
	tMax := maxDist

	o := [3]float64{origin.X, origin.Y, origin.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}
	lo := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}

	for axis := 0; axis < 3; axis++ {
		if math.Abs(d[axis]) < 1e-12 {
			// Луч параллелен плитам: попадание возможно только если начало между ними
			if o[axis] < lo[axis] || o[axis] > hi[axis] {
				return 0, false
			}
			continue
		}

		inv := 1.0 / d[axis]
		t1 := (lo[axis] - o[axis]) * inv
		t2 := (hi[axis] - o[axis]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}

		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}

	return tMin, true
}

// Overlaps проверяет пересечение двух AABB
func (b AABB) Overlaps(other AABB) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}
