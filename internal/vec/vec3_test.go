package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3Arithmetic(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	assert.True(t, a.Add(Vec3{X: 1, Y: -2, Z: 0}).Equals(Vec3{X: 2, Y: 0, Z: 3}))
	assert.Equal(t, Vec3Float{X: 1, Y: 2, Z: 3}, a.ToFloat())

	f := Vec3Float{X: 2, Y: 4, Z: 6}
	assert.Equal(t, Vec3Float{X: 1, Y: 3, Z: 5}, f.Sub(One))
	assert.Equal(t, Vec3Float{X: 1, Y: 2, Z: 3}, f.Scale(0.5))
	assert.Equal(t, Vec3Float{X: 4, Y: 4, Z: 0}, f.Mul(Vec3Float{X: 2, Y: 1, Z: 0}))
	assert.InDelta(t, 1.7320508, One.Length(), 1e-6)
}

func TestVec3FloatFloor(t *testing.T) {
	assert.Equal(t, Vec3{X: 0, Y: 1, Z: -1}, Vec3Float{X: 0.9, Y: 1.0, Z: -0.1}.Floor(1))
	assert.Equal(t, Vec3{X: 2, Y: -1, Z: 0}, Vec3Float{X: 4.5, Y: -0.5, Z: 1.9}.Floor(2))
}

func TestDirectionsAreUnit(t *testing.T) {
	for _, d := range []Vec3Float{Up, Down, Right, Left, Forward, Back} {
		assert.Equal(t, 1.0, d.Length())
	}
	assert.Equal(t, [3]float32{0, -1, 0}, Down.Array32())
}
