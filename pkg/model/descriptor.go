package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/heitortanoue/fractalworker/pkg/complexnum"
)

// DescriptorKind names a fractal variant. The value is also the JSON tag.
type DescriptorKind string

const (
	JuliaKind           DescriptorKind = "Julia"
	IteratedSinZKind    DescriptorKind = "IteratedSinZ"
	MandelbrotKind      DescriptorKind = "Mandelbrot"
	NewtonRaphsonZ3Kind DescriptorKind = "NewtonRaphsonZ3"
	NewtonRaphsonZ4Kind DescriptorKind = "NewtonRaphsonZ4"
	NovaNewtonZ3Kind    DescriptorKind = "NovaNewtonZ3"
	NovaNewtonZ4Kind    DescriptorKind = "NovaNewtonZ4"
)

// Descriptor is the closed set of fractal parameter sets. Only the types in this
// package implement it.
type Descriptor interface {
	Kind() DescriptorKind
	isDescriptor()
}

// Julia iterates z = z² + c from the pixel coordinate
type Julia struct {
	C                         complexnum.Complex `json:"c"`
	DivergenceThresholdSquare float64            `json:"divergence_threshold_square"`
}

// IteratedSinZ iterates z = sin(z)·c from the pixel coordinate
type IteratedSinZ struct {
	C complexnum.Complex `json:"c"`
}

// Mandelbrot iterates z = z² + pixel from zero
type Mandelbrot struct{}

// NewtonRaphsonZ3 applies Newton's method to z³ - 1
type NewtonRaphsonZ3 struct{}

// NewtonRaphsonZ4 applies Newton's method to z⁴ - 1
type NewtonRaphsonZ4 struct{}

// NovaNewtonZ3 is the Nova variant of Newton's method on z³ - 1
type NovaNewtonZ3 struct{}

// NovaNewtonZ4 is the Nova variant of Newton's method on z⁴ - 1
type NovaNewtonZ4 struct{}

func (Julia) Kind() DescriptorKind           { return JuliaKind }
func (IteratedSinZ) Kind() DescriptorKind    { return IteratedSinZKind }
func (Mandelbrot) Kind() DescriptorKind      { return MandelbrotKind }
func (NewtonRaphsonZ3) Kind() DescriptorKind { return NewtonRaphsonZ3Kind }
func (NewtonRaphsonZ4) Kind() DescriptorKind { return NewtonRaphsonZ4Kind }
func (NovaNewtonZ3) Kind() DescriptorKind    { return NovaNewtonZ3Kind }
func (NovaNewtonZ4) Kind() DescriptorKind    { return NovaNewtonZ4Kind }

func (Julia) isDescriptor()           {}
func (IteratedSinZ) isDescriptor()    {}
func (Mandelbrot) isDescriptor()      {}
func (NewtonRaphsonZ3) isDescriptor() {}
func (NewtonRaphsonZ4) isDescriptor() {}
func (NovaNewtonZ3) isDescriptor()    {}
func (NovaNewtonZ4) isDescriptor()    {}

// FractalDescriptor carries one Descriptor and encodes it as a one-key JSON
// object: {"Julia": {...}}, {"Mandelbrot": {}}.
type FractalDescriptor struct {
	Descriptor
}

// NewFractalDescriptor wraps d
func NewFractalDescriptor(d Descriptor) FractalDescriptor {
	return FractalDescriptor{Descriptor: d}
}

// MarshalJSON implements json.Marshaler
func (f FractalDescriptor) MarshalJSON() ([]byte, error) {
	if f.Descriptor == nil {
		return nil, fmt.Errorf("fractal descriptor is empty")
	}

	body, err := json.Marshal(f.Descriptor)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]json.RawMessage{
		string(f.Descriptor.Kind()): body,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FractalDescriptor) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("fractal descriptor must be an object: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("fractal descriptor must have exactly one variant, got %d", len(tagged))
	}

	for tag, body := range tagged {
		d, err := decodeVariant(DescriptorKind(tag), body)
		if err != nil {
			return err
		}
		f.Descriptor = d
	}
	return nil
}

func decodeVariant(kind DescriptorKind, body json.RawMessage) (Descriptor, error) {
	switch kind {
	case JuliaKind:
		var d Julia
		if err := unmarshalBody(kind, body, &d); err != nil {
			return nil, err
		}
		return d, nil
	case IteratedSinZKind:
		var d IteratedSinZ
		if err := unmarshalBody(kind, body, &d); err != nil {
			return nil, err
		}
		return d, nil
	case MandelbrotKind:
		return Mandelbrot{}, unmarshalBody(kind, body, &Mandelbrot{})
	case NewtonRaphsonZ3Kind:
		return NewtonRaphsonZ3{}, unmarshalBody(kind, body, &NewtonRaphsonZ3{})
	case NewtonRaphsonZ4Kind:
		return NewtonRaphsonZ4{}, unmarshalBody(kind, body, &NewtonRaphsonZ4{})
	case NovaNewtonZ3Kind:
		return NovaNewtonZ3{}, unmarshalBody(kind, body, &NovaNewtonZ3{})
	case NovaNewtonZ4Kind:
		return NovaNewtonZ4{}, unmarshalBody(kind, body, &NovaNewtonZ4{})
	default:
		return nil, fmt.Errorf("unknown fractal variant %q", kind)
	}
}

func unmarshalBody(kind DescriptorKind, body json.RawMessage, v interface{}) error {
	// parameterless variants accept {} as well as null
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid %s parameters: %w", kind, err)
	}
	return nil
}
