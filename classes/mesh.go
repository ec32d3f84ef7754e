package classes

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/unitytools/unityasset"
	"github.com/unitytools/unityasset/bitpack"
	"github.com/unitytools/unityasset/serialized"
)

// PackedBitVector is a sequence of integers, or of floats quantized to
// integers, packed with a fixed number of bits each.
type PackedBitVector struct {
	NumItems uint32
	Range    float32
	Start    float32
	Data     []byte
	BitSize  uint8
}

// PackedBitVectorFrom reads a PackedBitVector from a decoded value. Vectors
// of integers have no range or start.
func PackedBitVectorFrom(v unityasset.Value) (PackedBitVector, error) {
	f := newFields("PackedBitVector", v)
	p := PackedBitVector{
		NumItems: uint32(f.uint("m_NumItems")),
		Data:     f.bytes("m_Data"),
		BitSize:  uint8(f.uint("m_BitSize")),
	}
	if f.has("m_Range") {
		p.Range = float32(f.float("m_Range"))
		p.Start = float32(f.float("m_Start"))
	}
	return p, f.err
}

// Ints unpacks the vector as integers.
func (p PackedBitVector) Ints() ([]uint32, error) {
	return bitpack.UnpackInts(p.Data, int(p.BitSize), 0, int(p.NumItems))
}

// Floats unpacks the vector as quantized floats.
func (p PackedBitVector) Floats() ([]float32, error) {
	return bitpack.UnpackFloats(p.Data, int(p.BitSize), 0, int(p.NumItems), p.Range, p.Start)
}

func (f *fields) packed(name string) PackedBitVector {
	v := f.value(name)
	if v == nil {
		return PackedBitVector{}
	}
	p, err := PackedBitVectorFrom(v)
	if err != nil {
		f.fail(name, err)
	}
	return p
}

// SubMesh is a range of the index buffer drawn with one material.
type SubMesh struct {
	FirstByte   uint32
	IndexCount  uint32
	Topology    int32
	FirstVertex uint32
	VertexCount uint32
}

// ChannelInfo describes one vertex attribute within the vertex data.
type ChannelInfo struct {
	Stream    uint8
	Offset    uint8
	Format    uint8
	Dimension uint8
}

// VertexData holds vertex attributes laid out in one or more streams.
type VertexData struct {
	VertexCount uint32
	Channels    []ChannelInfo
	Data        []byte
}

// CompressedMesh holds mesh data quantized into packed bit vectors.
type CompressedMesh struct {
	Vertices  PackedBitVector
	UV        PackedBitVector
	Normals   PackedBitVector
	Triangles PackedBitVector
}

// Mesh is a triangle mesh.
type Mesh struct {
	Name        string
	SubMeshes   []SubMesh
	IndexFormat int32
	IndexBuffer []byte
	VertexData  VertexData
	Compressed  CompressedMesh
	StreamData  StreamingInfo

	version unityasset.Version
	order   binary.ByteOrder
}

// Index formats.
const (
	IndexFormatUInt16 = 0
	IndexFormatUInt32 = 1
)

// MeshFrom reads a Mesh from a decoded value. The engine version and byte
// order are those of the file the value was decoded from; they determine the
// layout of the index and vertex buffers.
func MeshFrom(v unityasset.Value, version string, order binary.ByteOrder) (*Mesh, error) {
	f := newFields("Mesh", v)
	m := &Mesh{Name: f.str("m_Name"), order: order}
	if m.order == nil {
		m.order = binary.LittleEndian
	}
	if ver, err := unityasset.ParseVersion(version); err == nil {
		m.version = ver
	}
	for _, sv := range f.array("m_SubMeshes") {
		sf := newFields("Mesh.m_SubMeshes", sv)
		s := SubMesh{
			FirstByte:   uint32(sf.uint("firstByte")),
			IndexCount:  uint32(sf.uint("indexCount")),
			Topology:    int32(sf.int("topology")),
			FirstVertex: uint32(sf.uint("firstVertex")),
			VertexCount: uint32(sf.uint("vertexCount")),
		}
		if sf.err != nil {
			f.fail("m_SubMeshes", sf.err)
			break
		}
		m.SubMeshes = append(m.SubMeshes, s)
	}
	if f.has("m_IndexFormat") {
		m.IndexFormat = int32(f.int("m_IndexFormat"))
	}
	m.IndexBuffer = f.bytes("m_IndexBuffer")

	if f.has("m_VertexData") {
		vd := f.sub("m_VertexData")
		m.VertexData.VertexCount = uint32(vd.uint("m_VertexCount"))
		if vd.has("m_Channels") {
			for _, cv := range vd.array("m_Channels") {
				cf := newFields("Mesh.m_VertexData.m_Channels", cv)
				c := ChannelInfo{
					Stream:    uint8(cf.uint("stream")),
					Offset:    uint8(cf.uint("offset")),
					Format:    uint8(cf.uint("format")),
					Dimension: uint8(cf.uint("dimension")),
				}
				if cf.err != nil {
					vd.fail("m_Channels", cf.err)
					break
				}
				m.VertexData.Channels = append(m.VertexData.Channels, c)
			}
		}
		m.VertexData.Data = vd.bytes("m_DataSize")
		f.join(vd)
	}

	if f.has("m_CompressedMesh") {
		cm := f.sub("m_CompressedMesh")
		m.Compressed.Vertices = cm.packed("m_Vertices")
		m.Compressed.UV = cm.packed("m_UV")
		m.Compressed.Normals = cm.packed("m_Normals")
		m.Compressed.Triangles = cm.packed("m_Triangles")
		f.join(cm)
	}
	if f.has("m_StreamData") {
		s := f.sub("m_StreamData")
		m.StreamData = streamingInfoFrom(s)
		f.join(s)
	}
	if f.err != nil {
		return nil, f.err
	}
	return m, nil
}

// ReadMesh decodes the Mesh object at pathID.
func ReadMesh(file *serialized.File, pathID int64) (*Mesh, error) {
	v, err := decode(file, pathID, unityasset.ClassMesh)
	if err != nil {
		return nil, err
	}
	return MeshFrom(v, file.Version, file.ByteOrder())
}

// Indices returns the vertex indices of the mesh, from the index buffer or
// from the compressed triangles.
func (m *Mesh) Indices() ([]uint32, error) {
	if len(m.IndexBuffer) == 0 && m.Compressed.Triangles.NumItems > 0 {
		return m.Compressed.Triangles.Ints()
	}
	switch m.IndexFormat {
	case IndexFormatUInt16:
		out := make([]uint32, len(m.IndexBuffer)/2)
		for i := range out {
			out[i] = uint32(m.order.Uint16(m.IndexBuffer[i*2:]))
		}
		return out, nil
	case IndexFormatUInt32:
		out := make([]uint32, len(m.IndexBuffer)/4)
		for i := range out {
			out[i] = m.order.Uint32(m.IndexBuffer[i*4:])
		}
		return out, nil
	}
	return nil, &FieldError{Class: "Mesh", Field: "m_IndexFormat", Cause: fmt.Errorf("%w: format %d", ErrUnsupported, m.IndexFormat)}
}

// Triangles returns the indices grouped in threes.
func (m *Mesh) Triangles() (bitpack.Shaped[uint32], error) {
	idx, err := m.Indices()
	if err != nil {
		return bitpack.Shaped[uint32]{}, err
	}
	if len(idx)%3 != 0 {
		return bitpack.Shaped[uint32]{}, fmt.Errorf("mesh %q: %d indices do not form triangles", m.Name, len(idx))
	}
	return bitpack.Reshape(idx, 3), nil
}

// vertexFormatSizes gives the byte size of each vertex format of engine
// versions 2019 and later.
var vertexFormatSizes = [...]int{4, 2, 1, 1, 2, 2, 1, 1, 2, 2, 4, 4}

const vertexFormatFloat = 0

// Positions returns the vertex positions of the mesh, grouped in threes.
// Compressed positions are always supported. Uncompressed vertex data is
// supported for engine versions 2019 and later with float positions; vertex
// data stored in a resource stream is read through from.
func (m *Mesh) Positions(from *serialized.File) (bitpack.Shaped[float32], error) {
	if m.Compressed.Vertices.NumItems > 0 {
		v, err := m.Compressed.Vertices.Floats()
		if err != nil {
			return bitpack.Shaped[float32]{}, err
		}
		return bitpack.Reshape(v, 3), nil
	}
	unsupported := func(why string) error {
		return &FieldError{Class: "Mesh", Field: "m_VertexData", Cause: fmt.Errorf("%w: %s", ErrUnsupported, why)}
	}
	vd := m.VertexData
	if vd.VertexCount == 0 {
		return bitpack.Reshape([]float32{}, 3), nil
	}
	if m.version.Major < 2019 {
		return bitpack.Shaped[float32]{}, unsupported("vertex layout of engine " + m.version.String())
	}
	if len(vd.Channels) == 0 {
		return bitpack.Shaped[float32]{}, unsupported("no channels")
	}
	pos := vd.Channels[0]
	if pos.Format != vertexFormatFloat || pos.Dimension < 3 {
		return bitpack.Shaped[float32]{}, unsupported(fmt.Sprintf("position format %d dimension %d", pos.Format, pos.Dimension))
	}

	data := vd.Data
	if len(data) == 0 && !m.StreamData.Empty() {
		if from == nil {
			return bitpack.Shaped[float32]{}, fmt.Errorf("mesh %q: vertex data is in a resource stream", m.Name)
		}
		var err error
		if data, err = m.StreamData.Read(from); err != nil {
			return bitpack.Shaped[float32]{}, err
		}
	}

	var strides [256]int
	for _, c := range vd.Channels {
		if c.Dimension == 0 {
			continue
		}
		if int(c.Format) >= len(vertexFormatSizes) {
			return bitpack.Shaped[float32]{}, unsupported(fmt.Sprintf("vertex format %d", c.Format))
		}
		if end := int(c.Offset) + int(c.Dimension&0x0F)*vertexFormatSizes[c.Format]; end > strides[c.Stream] {
			strides[c.Stream] = end
		}
	}
	start := 0
	for s := 0; s < int(pos.Stream); s++ {
		start += strides[s] * int(vd.VertexCount)
		start = (start + 15) &^ 15
	}
	stride := strides[pos.Stream]
	n := int(vd.VertexCount)
	if need := start + (n-1)*stride + int(pos.Offset) + 12; need > len(data) {
		return bitpack.Shaped[float32]{}, fmt.Errorf("mesh %q: vertex data has %d bytes, need %d", m.Name, len(data), need)
	}
	out := make([]float32, 0, n*3)
	for i := 0; i < n; i++ {
		at := start + i*stride + int(pos.Offset)
		for j := 0; j < 3; j++ {
			out = append(out, math.Float32frombits(m.order.Uint32(data[at+j*4:])))
		}
	}
	return bitpack.Reshape(out, 3), nil
}
