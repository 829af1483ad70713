package fractal

import (
	"math"

	"github.com/heitortanoue/fractalworker/pkg/model"
)

// sweep visits the sample points of area in row-major order.
//
// Coordinates advance by accumulating |max-min|/n on each axis and stop once they
// reach max. Because of floating point accumulation the number of samples per
// axis can be n-1 or n+1 for some ranges; the distributor expects exactly this
// behaviour, so it is not clamped to nx*ny. An axis whose step cannot move the
// coordinate any further yields a single sample.
func sweep(resolution model.Resolution, area model.Range, visit func(x, y float64)) {
	xStep := math.Abs((area.Min.X - area.Max.X) / float64(resolution.Nx))
	yStep := math.Abs((area.Min.Y - area.Max.Y) / float64(resolution.Ny))

	for y := area.Min.Y; y < area.Max.Y; {
		for x := area.Min.X; x < area.Max.X; {
			visit(x, y)

			next := x + xStep
			if next == x {
				break
			}
			x = next
		}

		next := y + yStep
		if next == y {
			break
		}
		y = next
	}
}

const maxPrealloc = 1 << 20

// samples returns the capacity to preallocate for a fragment's pixels
func samples(resolution model.Resolution) int {
	n := int(resolution.PixelCount()) + int(resolution.Nx) + int(resolution.Ny) + 1
	if n > maxPrealloc {
		return maxPrealloc
	}
	return n
}
