package complexnum

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(1.0, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= epsilon*scale
}

func almostEqualComplex(a, b Complex) bool {
	return almostEqual(a.Re, b.Re) && almostEqual(a.Im, b.Im)
}

var samples = []Complex{
	New(0, 0),
	New(1, 0),
	New(0, 1),
	New(-1.5, 2.25),
	New(3.75, -0.125),
	New(-0.5, math.Sqrt(3)/2),
	New(1e3, -1e-3),
}

func TestComplex_AddSubtractInverse(t *testing.T) {
	for _, a := range samples {
		for _, b := range samples {
			got := a.Add(b).Subtract(b)
			if !almostEqualComplex(got, a) {
				t.Errorf("(%v + %v) - %v: expected %v, got %v", a, b, b, a, got)
			}
		}
	}
}

func TestComplex_MultiplyNormIsMultiplicative(t *testing.T) {
	for _, a := range samples {
		for _, b := range samples {
			got := a.Multiply(b).SquareNorm()
			want := a.SquareNorm() * b.SquareNorm()
			if !almostEqual(got, want) {
				t.Errorf("|%v * %v|²: expected %v, got %v", a, b, want, got)
			}
		}
	}
}

func TestComplex_SquareMatchesMultiply(t *testing.T) {
	for _, a := range samples {
		if got, want := a.Square(), a.Multiply(a); !almostEqualComplex(got, want) {
			t.Errorf("%v²: expected %v, got %v", a, want, got)
		}
	}
}

func TestComplex_Multiply(t *testing.T) {
	got := New(1, 2).Multiply(New(3, 4))
	want := New(-5, 10)
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestComplex_Divide(t *testing.T) {
	a := New(-5, 10)
	b := New(3, 4)
	got := a.Divide(b)
	if !almostEqualComplex(got, New(1, 2)) {
		t.Errorf("expected (1,2), got %v", got)
	}

	for _, x := range samples {
		for _, y := range samples {
			if y.SquareNorm() == 0 {
				continue
			}
			if got := x.Multiply(y).Divide(y); !almostEqualComplex(got, x) {
				t.Errorf("(%v * %v) / %v: expected %v, got %v", x, y, y, x, got)
			}
		}
	}
}

func TestComplex_DivideByZeroIsNotFinite(t *testing.T) {
	got := New(1, 1).Divide(New(0, 0))
	if !math.IsInf(got.Re, 0) && !math.IsNaN(got.Re) {
		t.Errorf("expected non-finite real part, got %v", got.Re)
	}

	got = New(0, 0).Divide(New(0, 0))
	if !math.IsNaN(got.Re) || !math.IsNaN(got.Im) {
		t.Errorf("0/0 should be NaN, got %v", got)
	}
}

func TestComplex_NaNPropagates(t *testing.T) {
	n := New(math.NaN(), 0)
	if !math.IsNaN(n.Add(New(1, 1)).Re) {
		t.Error("NaN should propagate through Add")
	}
	if !math.IsNaN(n.Square().Re) {
		t.Error("NaN should propagate through Square")
	}
	if !math.IsNaN(n.SquareNorm()) {
		t.Error("NaN should propagate through SquareNorm")
	}
}

func TestComplex_Argument(t *testing.T) {
	cases := []struct {
		in   Complex
		want float64
	}{
		{New(1, 0), 0},
		{New(0, 1), math.Pi / 2},
		{New(-1, 0), math.Pi},
		{New(0, -1), -math.Pi / 2},
		{New(1, 1), math.Pi / 4},
	}

	for _, tc := range cases {
		if got := tc.in.Argument(); !almostEqual(got, tc.want) {
			t.Errorf("arg(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestComplex_Sine(t *testing.T) {
	// real axis reduces to math.Sin
	for _, x := range []float64{0, 0.5, -1.25, math.Pi / 2} {
		got := New(x, 0).Sine()
		if !almostEqual(got.Re, math.Sin(x)) || got.Im != 0 {
			t.Errorf("sin(%v): expected (%v,0), got %v", x, math.Sin(x), got)
		}
	}

	// sin(iy) = i·sinh(y)
	got := New(0, 1).Sine()
	if !almostEqual(got.Re, 0) || !almostEqual(got.Im, math.Sinh(1)) {
		t.Errorf("sin(i): expected (0,%v), got %v", math.Sinh(1), got)
	}

	z := New(0.7, -0.3)
	want := New(math.Sin(0.7)*math.Cosh(-0.3), math.Cos(0.7)*math.Sinh(-0.3))
	if got := z.Sine(); got != want {
		t.Errorf("sin(%v): expected %v, got %v", z, want, got)
	}
}

func TestComplex_ValueSemantics(t *testing.T) {
	a := New(2, 3)
	_ = a.Add(New(1, 1))
	_ = a.Square()
	if a != New(2, 3) {
		t.Errorf("operations must not mutate the receiver, got %v", a)
	}
}
