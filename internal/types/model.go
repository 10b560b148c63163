package types

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// FaceModel is a per-person base face shape. Vertices are in model space
// around the head pivot; vertex count and topology are fixed for the life
// of the model, only the per-frame deformation varies.
type FaceModel struct {
	SessionID string
	Vertices  []r3.Vec
}

// Deform produces the per-frame mesh for an alignment: each base vertex is
// rotated by the alignment orientation and translated to the head pivot.
// Output is in sensor camera space, same order as the base vertices.
func (m *FaceModel) Deform(a FaceAlignment) []r3.Vec {
	if m == nil || len(m.Vertices) == 0 {
		return nil
	}
	rot := r3.Rotation(a.Orientation)
	out := make([]r3.Vec, len(m.Vertices))
	for i, v := range m.Vertices {
		out[i] = r3.Add(rot.Rotate(v), a.Pivot)
	}
	return out
}

const (
	defaultRings    = 9
	defaultSegments = 16
)

// DefaultFaceModel builds the neutral head-sized ellipsoid used until a
// captured model replaces it. Radii are in meters.
func DefaultFaceModel() *FaceModel {
	const (
		rx = 0.08
		ry = 0.11
		rz = 0.09
	)
	vertices := make([]r3.Vec, 0, defaultRings*defaultSegments+2)
	vertices = append(vertices, r3.Vec{Y: ry})
	for ring := 1; ring <= defaultRings; ring++ {
		phi := math.Pi * float64(ring) / float64(defaultRings+1)
		for seg := 0; seg < defaultSegments; seg++ {
			theta := 2 * math.Pi * float64(seg) / float64(defaultSegments)
			vertices = append(vertices, r3.Vec{
				X: rx * math.Sin(phi) * math.Cos(theta),
				Y: ry * math.Cos(phi),
				Z: rz * math.Sin(phi) * math.Sin(theta),
			})
		}
	}
	vertices = append(vertices, r3.Vec{Y: -ry})
	return &FaceModel{SessionID: "default", Vertices: vertices}
}
