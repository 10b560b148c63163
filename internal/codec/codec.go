// Package codec converts per-frame tracking results into the fixed wire
// layout consumed downstream. The mesh layout (vertex order, Y unflipped,
// Z negated) is a wire contract shared with every consumer; changing it
// corrupts them silently.
package codec

import (
	"encoding/binary"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"facebridge-go/internal/types"
)

// VertexSize is the encoded size of one mesh vertex in bytes.
const VertexSize = 6

// EncodeMesh packs a mesh into little-endian int16 millimeters: per vertex
// X*1000, Y*1000, -Z*1000, truncated toward zero. Scaling happens in single
// precision, matching the sensor's native float32 vertex type. Values beyond
// +-32.767 units wrap silently; that fixed-point range is a documented
// limitation. An empty mesh yields a zero-length blob. Vertex count is
// trusted.
func EncodeMesh(mesh []r3.Vec) []byte {
	blob := make([]byte, len(mesh)*VertexSize)
	for i, v := range mesh {
		off := i * VertexSize
		binary.LittleEndian.PutUint16(blob[off:], fixedMM(v.X))
		binary.LittleEndian.PutUint16(blob[off+2:], fixedMM(v.Y))
		binary.LittleEndian.PutUint16(blob[off+4:], fixedMM(-v.Z))
	}
	return blob
}

func fixedMM(v float64) uint16 {
	return uint16(int16(int32(float32(v) * 1000)))
}

// DecodeMesh is the inverse of EncodeMesh, up to fixed-point truncation.
// It only fails when the blob length is not a whole number of vertices.
func DecodeMesh(blob []byte) ([]r3.Vec, error) {
	if len(blob)%VertexSize != 0 {
		return nil, fmt.Errorf("mesh blob length %d is not a multiple of %d", len(blob), VertexSize)
	}
	mesh := make([]r3.Vec, len(blob)/VertexSize)
	for i := range mesh {
		off := i * VertexSize
		x := int16(binary.LittleEndian.Uint16(blob[off:]))
		y := int16(binary.LittleEndian.Uint16(blob[off+2:]))
		z := int16(binary.LittleEndian.Uint16(blob[off+4:]))
		mesh[i] = r3.Vec{
			X: float64(x) / 1000,
			Y: float64(y) / 1000,
			Z: -float64(z) / 1000,
		}
	}
	return mesh, nil
}

// TriState maps a detection result to its wire value:
// Yes=2, Maybe=1, No=0, anything else -1.
func TriState(d types.DetectionResult) int32 {
	switch d {
	case types.DetectionYes:
		return 2
	case types.DetectionMaybe:
		return 1
	case types.DetectionNo:
		return 0
	default:
		return -1
	}
}
