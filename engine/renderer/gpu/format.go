package gpu

// Format is a texel format.
type Format int

const (
	FormatUnknown Format = iota
	FormatRGBA8Unorm
	FormatBGRA8Unorm
	FormatRGBA16Float
	FormatRGBA32Float
	FormatR32Uint
	FormatDepth32Float
	FormatDepth24Plus
)

// BytesPerTexel returns the storage size of one texel.
func (f Format) BytesPerTexel() int {
	switch f {
	case FormatRGBA8Unorm, FormatBGRA8Unorm, FormatR32Uint, FormatDepth32Float, FormatDepth24Plus:
		return 4
	case FormatRGBA16Float:
		return 8
	case FormatRGBA32Float:
		return 16
	}
	return 0
}

// IsDepth reports whether f is a depth format.
func (f Format) IsDepth() bool {
	return f == FormatDepth32Float || f == FormatDepth24Plus
}

// IsUnorm reports whether f stores normalized 8-bit channels.
func (f Format) IsUnorm() bool {
	return f == FormatRGBA8Unorm || f == FormatBGRA8Unorm
}

// VertexFormat is the format of one vertex attribute.
type VertexFormat int

const (
	VertexFormatFloat32 VertexFormat = iota
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatUint32x4
)

// Size returns the attribute size in bytes.
func (f VertexFormat) Size() uint64 {
	switch f {
	case VertexFormatFloat32:
		return 4
	case VertexFormatFloat32x2:
		return 8
	case VertexFormatFloat32x3:
		return 12
	case VertexFormatFloat32x4, VertexFormatUint32x4:
		return 16
	}
	return 0
}

// Components returns the number of scalar components.
func (f VertexFormat) Components() int {
	switch f {
	case VertexFormatFloat32:
		return 1
	case VertexFormatFloat32x2:
		return 2
	case VertexFormatFloat32x3:
		return 3
	}
	return 4
}

// IndexFormat is the element type of an index buffer.
type IndexFormat int

const (
	IndexFormatUint32 IndexFormat = iota
	IndexFormatUint16
)

// Size returns the index size in bytes.
func (f IndexFormat) Size() uint64 {
	if f == IndexFormatUint16 {
		return 2
	}
	return 4
}
