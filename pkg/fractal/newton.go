package fractal

import (
	"math"

	"github.com/heitortanoue/fractalworker/pkg/complexnum"
	"github.com/heitortanoue/fractalworker/pkg/model"
)

// NewtonTolerance is the |Δz|² under which Newton's method is considered converged
const NewtonTolerance = 1e-6

// z3Roots are the cube roots of unity, in index order
var z3Roots = [3]complexnum.Complex{
	complexnum.New(1.0, 0.0),
	complexnum.New(-0.5, math.Sqrt(3.0)/2.0),
	complexnum.New(-0.5, -math.Sqrt(3.0)/2.0),
}

var (
	one   = complexnum.New(1.0, 0.0)
	three = complexnum.New(3.0, 0.0)
)

// NewtonRaphsonZ3 applies z ← z - (z³-1)/(3z²) from the pixel coordinate
type NewtonRaphsonZ3 struct{}

// NewNewtonRaphsonZ3 creates a Newton-Raphson generator for z³ - 1
func NewNewtonRaphsonZ3() *NewtonRaphsonZ3 {
	return &NewtonRaphsonZ3{}
}

// Generate implements Generator. Zn holds the index of the closest root.
func (n *NewtonRaphsonZ3) Generate(maxIteration uint32, resolution model.Resolution, area model.Range) []model.PixelIntensity {
	pixels := make([]model.PixelIntensity, 0, samples(resolution))

	sweep(resolution, area, func(x, y float64) {
		z := complexnum.New(x, y)
		var count uint32

		for count < maxIteration {
			fz := z.Multiply(z).Multiply(z).Subtract(one)
			dfz := z.Multiply(z).Multiply(three)
			dz := fz.Divide(dfz)

			z = z.Subtract(dz)

			if dz.SquareNorm() < NewtonTolerance {
				break
			}
			count++
		}

		pixels = append(pixels, model.PixelIntensity{
			Zn:    float32(closestRootIndex(z)),
			Count: normalized(count, maxIteration),
		})
	})

	return pixels
}

// closestRootIndex returns the index of the root nearest to z. Ties go to the
// lowest index; a NaN z maps to 0.
func closestRootIndex(z complexnum.Complex) int {
	minIndex := 0
	minDist := z.Subtract(z3Roots[0]).SquareNorm()

	for i := 1; i < len(z3Roots); i++ {
		dist := z.Subtract(z3Roots[i]).SquareNorm()
		if dist < minDist {
			minIndex = i
			minDist = dist
		}
	}

	return minIndex
}
