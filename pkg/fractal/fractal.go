// Package fractal computes pixel intensities for a fragment of the complex plane.
//
// Each supported descriptor has a Generator. Dispatch picks the generator for a
// descriptor and fails with UnsupportedDescriptorError for variants that are
// recognised on the wire but have no implementation.
package fractal

import (
	"fmt"

	"github.com/heitortanoue/fractalworker/pkg/model"
)

// Generator produces one PixelIntensity per sampled point of a fragment, in
// row-major order (y outer, x inner).
type Generator interface {
	Generate(maxIteration uint32, resolution model.Resolution, area model.Range) []model.PixelIntensity
}

// UnsupportedDescriptorError is returned by Dispatch for variants without a generator
type UnsupportedDescriptorError struct {
	Kind model.DescriptorKind
}

func (e *UnsupportedDescriptorError) Error() string {
	return fmt.Sprintf("unsupported fractal descriptor: %s", e.Kind)
}

// Dispatch returns the generator for d
func Dispatch(d model.Descriptor) (Generator, error) {
	switch desc := d.(type) {
	case model.Julia:
		return NewJulia(desc.C, desc.DivergenceThresholdSquare), nil
	case model.Mandelbrot:
		return NewMandelbrot(), nil
	case model.IteratedSinZ:
		return NewIteratedSinZ(desc.C), nil
	case model.NewtonRaphsonZ3:
		return NewNewtonRaphsonZ3(), nil
	case model.NewtonRaphsonZ4, model.NovaNewtonZ3, model.NovaNewtonZ4:
		return nil, &UnsupportedDescriptorError{Kind: desc.Kind()}
	case nil:
		return nil, &UnsupportedDescriptorError{Kind: "<none>"}
	default:
		return nil, &UnsupportedDescriptorError{Kind: d.Kind()}
	}
}

// normalized returns count/maxIteration, or 0 when maxIteration is 0
func normalized(count, maxIteration uint32) float32 {
	if maxIteration == 0 {
		return 0
	}
	return float32(count) / float32(maxIteration)
}
