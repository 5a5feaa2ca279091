package export

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/annel0/voxelgen/internal/world"
	"github.com/klauspost/compress/zstd"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// ErrEmptySurface возвращается для поверхности без вершин: glTF не допускает пустых аксессоров
var ErrEmptySurface = errors.New("surface has no geometry")

// Document строит glTF документ из объединённой поверхности:
// один меш, один примитив, непрозрачный материал.
func Document(surface *world.CombinedSurface) (*gltf.Document, error) {
	if surface == nil || surface.VertexCount() == 0 || surface.IndexCount() == 0 {
		return nil, ErrEmptySurface
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "voxelgen"

	posAccessor := modeler.WritePosition(doc, surface.Vertices)
	normalAccessor := modeler.WriteNormal(doc, surface.Normals)
	// uint32: число вершин больших ландшафтов превышает 65535
	indicesAccessor := modeler.WriteIndices(doc, surface.Indices)

	prim := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION: uint32(posAccessor),
			gltf.NORMAL:   uint32(normalAccessor),
		},
		Indices:  gltf.Index(uint32(indicesAccessor)),
		Material: gltf.Index(0),
	}

	doc.Materials = []*gltf.Material{{
		Name:      "Terrain",
		AlphaMode: gltf.AlphaOpaque,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{0.45, 0.62, 0.33, 1},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(1),
		},
	}}
	doc.Meshes = []*gltf.Mesh{{Name: "TerrainSurface", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Name: "Terrain", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(0))

	return doc, nil
}

// WriteGLB пишет поверхность в w как бинарный glTF (GLB)
func WriteGLB(w io.Writer, surface *world.CombinedSurface) error {
	doc, err := Document(surface)
	if err != nil {
		return err
	}

	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode glb: %w", err)
	}
	return nil
}

// WriteGLBZstd пишет GLB, сжатый zstd
func WriteGLBZstd(w io.Writer, surface *world.CombinedSurface) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}

	if err := WriteGLB(zw, surface); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// SaveGLB сохраняет поверхность в файл. При compress=true файл сжимается zstd.
func SaveGLB(path string, surface *world.CombinedSurface, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	write := WriteGLB
	if compress {
		write = WriteGLBZstd
	}
	if err := write(f, surface); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
