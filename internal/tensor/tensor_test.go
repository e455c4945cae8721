package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestMatMul(t *testing.T) {
	a := New(2, 3)
	copy(a.Data, []float64{1, 2, 3, 4, 5, 6})
	b := New(3, 2)
	copy(b.Data, []float64{7, 8, 9, 10, 11, 12})

	c := MatMul(a, b)

	want := []float64{58, 64, 139, 154}
	for i, w := range want {
		if !almostEqual(c.Data[i], w, 1e-12) {
			t.Errorf("c[%d] = %v, want %v", i, c.Data[i], w)
		}
	}
}

func TestMatMulShapeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on shape mismatch")
		}
	}()
	MatMul(New(2, 3), New(2, 3))
}

func TestTranspose(t *testing.T) {
	m := New(2, 3)
	copy(m.Data, []float64{1, 2, 3, 4, 5, 6})

	mt := Transpose(m)
	if mt.Rows != 3 || mt.Cols != 2 {
		t.Fatalf("expected 3x2, got %dx%d", mt.Rows, mt.Cols)
	}
	if mt.At(2, 1) != 6 || mt.At(0, 1) != 4 {
		t.Errorf("transpose values wrong: %v", mt.Data)
	}
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	m := New(3, 5)
	rng := rand.New(rand.NewSource(1))
	for i := range m.Data {
		m.Data[i] = rng.NormFloat64() * 10
	}

	s := Softmax(m)
	for i := 0; i < s.Rows; i++ {
		sum := 0.0
		for j := 0; j < s.Cols; j++ {
			v := s.At(i, j)
			if v < 0 || v > 1 {
				t.Errorf("softmax value out of range: %v", v)
			}
			sum += v
		}
		if !almostEqual(sum, 1.0, 1e-9) {
			t.Errorf("row %d sums to %v, want 1", i, sum)
		}
	}
}

func TestLayerNormStatistics(t *testing.T) {
	x := New(2, 8)
	rng := rand.New(rand.NewSource(2))
	for i := range x.Data {
		x.Data[i] = rng.NormFloat64()*3 + 5
	}
	gamma := New(1, 8)
	beta := New(1, 8)
	for i := range gamma.Data {
		gamma.Data[i] = 1
	}

	y := LayerNorm(x, gamma, beta, 1e-5)
	for i := 0; i < y.Rows; i++ {
		mean := 0.0
		for j := 0; j < y.Cols; j++ {
			mean += y.At(i, j)
		}
		mean /= float64(y.Cols)
		if !almostEqual(mean, 0, 1e-9) {
			t.Errorf("row %d mean = %v, want ~0", i, mean)
		}
	}
}

func TestCrossEntropyLoss(t *testing.T) {
	// Uniform logits: loss should be log(vocab)
	logits := New(2, 4)
	targets := []int{1, 3}

	loss, err := CrossEntropyLoss(logits, targets)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(loss, math.Log(4), 1e-9) {
		t.Errorf("loss = %v, want %v", loss, math.Log(4))
	}
}

func TestCrossEntropyLossOutOfRange(t *testing.T) {
	logits := New(1, 4)
	if _, err := CrossEntropyLoss(logits, []int{7}); err == nil {
		t.Error("expected error for out-of-range target")
	}
	if _, err := CrossEntropyLoss(logits, []int{0, 1}); err == nil {
		t.Error("expected error for mismatched target length")
	}
}

func TestCrossEntropyBackwardSumsToZero(t *testing.T) {
	// Gradient rows sum to zero: softmax sums to 1 and the one-hot
	// subtracts exactly 1.
	logits := New(2, 5)
	rng := rand.New(rand.NewSource(3))
	for i := range logits.Data {
		logits.Data[i] = rng.NormFloat64()
	}

	grad := CrossEntropyBackward(logits, []int{0, 4})
	for i := 0; i < grad.Rows; i++ {
		sum := 0.0
		for j := 0; j < grad.Cols; j++ {
			sum += grad.At(i, j)
		}
		if !almostEqual(sum, 0, 1e-9) {
			t.Errorf("grad row %d sums to %v, want 0", i, sum)
		}
	}
}

// numericalGrad approximates d loss / d x[idx] by central difference.
func numericalGrad(x *Tensor, targets []int, idx int) float64 {
	const h = 1e-6
	orig := x.Data[idx]

	x.Data[idx] = orig + h
	lossPlus, _ := CrossEntropyLoss(x, targets)
	x.Data[idx] = orig - h
	lossMinus, _ := CrossEntropyLoss(x, targets)
	x.Data[idx] = orig

	return (lossPlus - lossMinus) / (2 * h)
}

func TestCrossEntropyBackwardMatchesNumerical(t *testing.T) {
	logits := New(2, 4)
	rng := rand.New(rand.NewSource(4))
	for i := range logits.Data {
		logits.Data[i] = rng.NormFloat64()
	}
	targets := []int{2, 0}

	grad := CrossEntropyBackward(logits, targets)
	for idx := 0; idx < logits.Size(); idx++ {
		num := numericalGrad(logits, targets, idx)
		if !almostEqual(grad.Data[idx], num, 1e-5) {
			t.Errorf("grad[%d] = %v, numerical %v", idx, grad.Data[idx], num)
		}
	}
}

func TestGELUBackwardMatchesNumerical(t *testing.T) {
	x := New(1, 6)
	copy(x.Data, []float64{-2, -0.5, 0, 0.5, 1, 2})
	gradY := New(1, 6)
	for i := range gradY.Data {
		gradY.Data[i] = 1
	}

	grad := GELUBackward(x, gradY)

	const h = 1e-6
	for i := range x.Data {
		orig := x.Data[i]
		x.Data[i] = orig + h
		plus := GELU(x).Data[i]
		x.Data[i] = orig - h
		minus := GELU(x).Data[i]
		x.Data[i] = orig

		num := (plus - minus) / (2 * h)
		if !almostEqual(grad.Data[i], num, 1e-5) {
			t.Errorf("gelu grad[%d] = %v, numerical %v", i, grad.Data[i], num)
		}
	}
}

func TestMatMulBackwardShapes(t *testing.T) {
	a := NewRand(rand.New(rand.NewSource(5)), 3, 4, 0.5)
	b := NewRand(rand.New(rand.NewSource(6)), 4, 2, 0.5)
	gradC := New(3, 2)
	for i := range gradC.Data {
		gradC.Data[i] = 1
	}

	gradA, gradB := MatMulBackward(a, b, gradC)
	if gradA.Rows != 3 || gradA.Cols != 4 {
		t.Errorf("gradA shape %dx%d, want 3x4", gradA.Rows, gradA.Cols)
	}
	if gradB.Rows != 4 || gradB.Cols != 2 {
		t.Errorf("gradB shape %dx%d, want 4x2", gradB.Rows, gradB.Cols)
	}
}

func TestAccumulateGrad(t *testing.T) {
	a := New(2, 2)
	g := New(2, 2)
	copy(g.Data, []float64{1, 2, 3, 4})

	a.AccumulateGrad(g)
	a.AccumulateGrad(g)

	for i, v := range a.Grad {
		if v != g.Data[i]*2 {
			t.Errorf("grad[%d] = %v, want %v", i, v, g.Data[i]*2)
		}
	}
}

func TestNewRandDeterministic(t *testing.T) {
	a := NewRand(rand.New(rand.NewSource(42)), 4, 4, 0.1)
	b := NewRand(rand.New(rand.NewSource(42)), 4, 4, 0.1)
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatal("same seed should produce identical tensors")
		}
	}
}
