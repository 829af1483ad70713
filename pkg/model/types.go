package model

// Point is a coordinate in the complex plane
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Range is the rectangle of the complex plane mapped onto a fragment's pixel grid
type Range struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// NewRange builds a range from its corner coordinates
func NewRange(minX, minY, maxX, maxY float64) Range {
	return Range{
		Min: Point{X: minX, Y: minY},
		Max: Point{X: maxX, Y: maxY},
	}
}

// Resolution is the pixel grid of a fragment (width x height)
type Resolution struct {
	Nx uint16 `json:"nx"`
	Ny uint16 `json:"ny"`
}

// PixelCount returns nx*ny
func (r Resolution) PixelCount() uint32 {
	return uint32(r.Nx) * uint32(r.Ny)
}

// U8Data references a byte span inside the distributor's shared buffer.
// The worker never owns that buffer; it only echoes or derives offsets.
type U8Data struct {
	Offset uint32 `json:"offset"`
	Count  uint32 `json:"count"`
}

// End returns the offset right after the span
func (d U8Data) End() uint32 {
	return d.Offset + d.Count
}

// PixelData references the pixel span of a result inside the shared buffer
type PixelData struct {
	Offset uint32 `json:"offset"`
	Count  uint32 `json:"count"`
}

// PixelIntensity is the two-float value sent for every pixel.
//
// The meaning of the fields depends on the algorithm that produced it:
//   - escape-time fractals (Mandelbrot, Julia, IteratedSinZ): Zn is |z|²/4 at the
//     last iteration, Count is iterations/max_iteration
//   - Newton-Raphson: Zn is the index of the root the point converged to, Count is
//     iterations/max_iteration
type PixelIntensity struct {
	Zn    float32 `json:"zn"`
	Count float32 `json:"count"`
}
