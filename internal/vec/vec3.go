package vec

import "math"

// Vec3 представляет трехмерный вектор с целочисленными координатами (ячейка решётки)
type Vec3 struct {
	X int
	Y int
	Z int
}

// Vec3Float представляет трехмерный вектор с плавающими координатами
type Vec3Float struct {
	X float64
	Y float64
	Z float64
}

// Направления осей, в порядке опроса при отсечении внутренних тайлов
var (
	Up      = Vec3Float{X: 0, Y: 1, Z: 0}
	Down    = Vec3Float{X: 0, Y: -1, Z: 0}
	Right   = Vec3Float{X: 1, Y: 0, Z: 0}
	Left    = Vec3Float{X: -1, Y: 0, Z: 0}
	Forward = Vec3Float{X: 0, Y: 0, Z: 1}
	Back    = Vec3Float{X: 0, Y: 0, Z: -1}
	One     = Vec3Float{X: 1, Y: 1, Z: 1}
)

// ToFloat преобразует целочисленный вектор в вектор с плавающей точкой
func (v Vec3) ToFloat() Vec3Float {
	return Vec3Float{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Add складывает два вектора
func (v Vec3Float) Add(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec3Float) Sub(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale умножает вектор на скаляр
func (v Vec3Float) Scale(s float64) Vec3Float {
	return Vec3Float{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Mul покомпонентно умножает векторы
func (v Vec3Float) Mul(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X * other.X, Y: v.Y * other.Y, Z: v.Z * other.Z}
}

// Length возвращает длину вектора
func (v Vec3Float) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Floor возвращает ячейку, в которую попадает точка при заданном размере ячейки
func (v Vec3Float) Floor(cellSize float64) Vec3 {
	return Vec3{
		X: int(math.Floor(v.X / cellSize)),
		Y: int(math.Floor(v.Y / cellSize)),
		Z: int(math.Floor(v.Z / cellSize)),
	}
}

// Array32 возвращает координаты в формате float32, удобном для вершинных буферов
func (v Vec3Float) Array32() [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}
