package complexnum

import "math"

// Complex is an immutable complex number. Every operation returns a new value.
type Complex struct {
	Re float64 `json:"re"`
	Im float64 `json:"im"`
}

// New creates a complex number from its real and imaginary parts
func New(re, im float64) Complex {
	return Complex{Re: re, Im: im}
}

// Add returns c + o
func (c Complex) Add(o Complex) Complex {
	return Complex{Re: c.Re + o.Re, Im: c.Im + o.Im}
}

// Subtract returns c - o
func (c Complex) Subtract(o Complex) Complex {
	return Complex{Re: c.Re - o.Re, Im: c.Im - o.Im}
}

// Multiply returns the complex product c * o
func (c Complex) Multiply(o Complex) Complex {
	return Complex{
		Re: c.Re*o.Re - c.Im*o.Im,
		Im: c.Re*o.Im + c.Im*o.Re,
	}
}

// Divide returns c / o computed as (c * conj(o)) / |o|².
// A zero divisor is not guarded: the result is NaN or ±Inf.
func (c Complex) Divide(o Complex) Complex {
	divisor := o.Re*o.Re + o.Im*o.Im
	return Complex{
		Re: (c.Re*o.Re + c.Im*o.Im) / divisor,
		Im: (c.Im*o.Re - c.Re*o.Im) / divisor,
	}
}

// Square returns c * c using the direct formula
func (c Complex) Square() Complex {
	return Complex{
		Re: c.Re*c.Re - c.Im*c.Im,
		Im: 2.0 * c.Re * c.Im,
	}
}

// SquareNorm returns re² + im²
func (c Complex) SquareNorm() float64 {
	return c.Re*c.Re + c.Im*c.Im
}

// Argument returns the angle of c in radians, in (-π, π]
func (c Complex) Argument() float64 {
	return math.Atan2(c.Im, c.Re)
}

// Sine returns sin(c) = sin(re)·cosh(im) + i·cos(re)·sinh(im)
func (c Complex) Sine() Complex {
	return Complex{
		Re: math.Sin(c.Re) * math.Cosh(c.Im),
		Im: math.Cos(c.Re) * math.Sinh(c.Im),
	}
}
