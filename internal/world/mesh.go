package world

import (
	"encoding/binary"
	"math"

	"github.com/annel0/voxelgen/internal/vec"
	"github.com/cespare/xxhash/v2"
)

// LocalMesh — геометрия юнита в его локальных координатах
type LocalMesh struct {
	Vertices [][3]float32
	Normals  [][3]float32
	Indices  []uint32
}

type cubeFace struct {
	normal, u, v vec.Vec3Float
}

// Грани куба; u × v = normal, поэтому обход вершин идёт против часовой стрелки снаружи
var cubeFaces = [6]cubeFace{
	{normal: vec.Right, u: vec.Up, v: vec.Forward},
	{normal: vec.Left, u: vec.Forward, v: vec.Up},
	{normal: vec.Up, u: vec.Forward, v: vec.Right},
	{normal: vec.Down, u: vec.Right, v: vec.Forward},
	{normal: vec.Forward, u: vec.Right, v: vec.Up},
	{normal: vec.Back, u: vec.Up, v: vec.Right},
}

// UnitCube возвращает куб с ребром 1 и центром в нуле: 24 вершины, 36 индексов
func UnitCube() LocalMesh {
	mesh := LocalMesh{
		Vertices: make([][3]float32, 0, 24),
		Normals:  make([][3]float32, 0, 24),
		Indices:  make([]uint32, 0, 36),
	}

	corners := [4][2]float64{{-0.5, -0.5}, {0.5, -0.5}, {0.5, 0.5}, {-0.5, 0.5}}
	for _, f := range cubeFaces {
		base := uint32(len(mesh.Vertices))
		center := f.normal.Scale(0.5)
		for _, c := range corners {
			p := center.Add(f.u.Scale(c[0])).Add(f.v.Scale(c[1]))
			mesh.Vertices = append(mesh.Vertices, p.Array32())
			mesh.Normals = append(mesh.Normals, f.normal.Array32())
		}
		mesh.Indices = append(mesh.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return mesh
}

// CombinedSurface — единая поверхность рендера и коллизий сгенерированного участка.
// Индексы всегда 32-битные: число вершин легко превышает 65535.
// Поверхность, собранная Consolidate, неизменяема: её отпечаток вычисляется один раз.
type CombinedSurface struct {
	Vertices [][3]float32
	Normals  [][3]float32
	Indices  []uint32
	Tiles    int

	fingerprint uint64
	sealed      bool
}

// VertexCount возвращает число вершин
func (s *CombinedSurface) VertexCount() int {
	return len(s.Vertices)
}

// IndexCount возвращает число индексов
func (s *CombinedSurface) IndexCount() int {
	return len(s.Indices)
}

// Fingerprint возвращает xxhash вершин и индексов поверхности.
// Для поверхности из Consolidate возвращается сохранённое значение.
func (s *CombinedSurface) Fingerprint() uint64 {
	if s.sealed {
		return s.fingerprint
	}
	return s.hash()
}

func (s *CombinedSurface) seal() {
	s.fingerprint = s.hash()
	s.sealed = true
}

func (s *CombinedSurface) hash() uint64 {
	d := xxhash.New()
	buf := make([]byte, 0, 12)
	for _, v := range s.Vertices {
		buf = buf[:0]
		for _, c := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(c))
		}
		_, _ = d.Write(buf)
	}
	for _, idx := range s.Indices {
		buf = binary.LittleEndian.AppendUint32(buf[:0], idx)
		_, _ = d.Write(buf)
	}
	return d.Sum64()
}

// MeshConsolidator объединяет поверхности выживших тайлов в одну
type MeshConsolidator struct {
	sub   Substrate
	pool  *TilePool
	scale vec.Vec3Float
}

// NewMeshConsolidator создаёт объединитель для тайлов заданного масштаба
func NewMeshConsolidator(sub Substrate, pool *TilePool, tileScale vec.Vec3Float) *MeshConsolidator {
	return &MeshConsolidator{sub: sub, pool: pool, scale: tileScale}
}

// Consolidate переносит локальную геометрию каждого тайла в общую систему координат
// (масштаб, затем сдвиг в позицию тайла) и склеивает всё в одну поверхность.
func (m *MeshConsolidator) Consolidate(survivors []TileID) *CombinedSurface {
	surface := &CombinedSurface{}

	for _, id := range survivors {
		t, ok := m.pool.Tile(id)
		if !ok {
			continue
		}
		local := m.sub.UnitMesh(t.Unit)
		if surface.Vertices == nil {
			surface.Vertices = make([][3]float32, 0, len(survivors)*len(local.Vertices))
			surface.Normals = make([][3]float32, 0, len(survivors)*len(local.Normals))
			surface.Indices = make([]uint32, 0, len(survivors)*len(local.Indices))
		}

		base := uint32(len(surface.Vertices))
		for i, v := range local.Vertices {
			p := vec.Vec3Float{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
			surface.Vertices = append(surface.Vertices, p.Mul(m.scale).Add(t.Position).Array32())
			if i < len(local.Normals) {
				surface.Normals = append(surface.Normals, local.Normals[i])
			}
		}
		for _, idx := range local.Indices {
			surface.Indices = append(surface.Indices, base+idx)
		}
		surface.Tiles++
	}

	surface.seal()
	return surface
}
