package fractal

import (
	"github.com/heitortanoue/fractalworker/pkg/complexnum"
	"github.com/heitortanoue/fractalworker/pkg/model"
)

// MandelbrotThresholdSquare is the escape radius² of the Mandelbrot set
const MandelbrotThresholdSquare = 4.0

// IteratedSinZThresholdSquare bounds |z|² for the iterated sine
const IteratedSinZThresholdSquare = 50.0

// Mandelbrot seeds z at 0 and iterates z = z² + pixel
type Mandelbrot struct{}

// NewMandelbrot creates a Mandelbrot generator
func NewMandelbrot() *Mandelbrot {
	return &Mandelbrot{}
}

// Generate implements Generator
func (m *Mandelbrot) Generate(maxIteration uint32, resolution model.Resolution, area model.Range) []model.PixelIntensity {
	pixels := make([]model.PixelIntensity, 0, samples(resolution))

	sweep(resolution, area, func(x, y float64) {
		c := complexnum.New(x, y)
		pixels = append(pixels, escape(complexnum.Complex{}, c, MandelbrotThresholdSquare, maxIteration))
	})

	return pixels
}

// Julia seeds z at the pixel and iterates z = z² + c for a fixed c
type Julia struct {
	c                         complexnum.Complex
	divergenceThresholdSquare float64
}

// NewJulia creates a Julia generator for constant c
func NewJulia(c complexnum.Complex, divergenceThresholdSquare float64) *Julia {
	return &Julia{c: c, divergenceThresholdSquare: divergenceThresholdSquare}
}

// Generate implements Generator
func (j *Julia) Generate(maxIteration uint32, resolution model.Resolution, area model.Range) []model.PixelIntensity {
	pixels := make([]model.PixelIntensity, 0, samples(resolution))

	sweep(resolution, area, func(x, y float64) {
		z := complexnum.New(x, y)
		pixels = append(pixels, escape(z, j.c, j.divergenceThresholdSquare, maxIteration))
	})

	return pixels
}

// escape runs z = z² + c until |z|² exceeds thresholdSquare or maxIteration is reached
func escape(z, c complexnum.Complex, thresholdSquare float64, maxIteration uint32) model.PixelIntensity {
	var count uint32
	for z.SquareNorm() <= thresholdSquare && count < maxIteration {
		z = z.Square().Add(c)
		count++
	}

	return model.PixelIntensity{
		Zn:    float32(z.SquareNorm() / 4.0),
		Count: normalized(count, maxIteration),
	}
}

// IteratedSinZ seeds z at the pixel and iterates z = sin(z)·c
type IteratedSinZ struct {
	c complexnum.Complex
}

// NewIteratedSinZ creates an iterated sine generator for constant c
func NewIteratedSinZ(c complexnum.Complex) *IteratedSinZ {
	return &IteratedSinZ{c: c}
}

// Generate implements Generator
func (s *IteratedSinZ) Generate(maxIteration uint32, resolution model.Resolution, area model.Range) []model.PixelIntensity {
	pixels := make([]model.PixelIntensity, 0, samples(resolution))

	sweep(resolution, area, func(x, y float64) {
		z := complexnum.New(x, y)
		var count uint32

		for z.SquareNorm() < IteratedSinZThresholdSquare && count < maxIteration {
			z = z.Sine().Multiply(s.c)
			count++
		}

		pixels = append(pixels, model.PixelIntensity{
			Zn:    float32(z.SquareNorm()) / 4.0,
			Count: normalized(count, maxIteration),
		})
	})

	return pixels
}
