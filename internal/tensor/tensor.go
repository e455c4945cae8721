package tensor

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
)

// Tensor is a dense row-major 2-D matrix with an optional gradient
// buffer of the same shape. Grad is allocated lazily by ZeroGrad or
// AccumulateGrad so inference-only tensors stay lean.
type Tensor struct {
	Rows int
	Cols int
	Data []float64
	Grad []float64
}

func New(rows, cols int) *Tensor {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("tensor: invalid shape %dx%d", rows, cols))
	}
	return &Tensor{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}
}

// NewRand fills a tensor with uniform values in [-scale, scale) drawn
// from rng. All weight init flows through a single seeded source so runs
// are reproducible.
func NewRand(rng *rand.Rand, rows, cols int, scale float64) *Tensor {
	t := New(rows, cols)
	for i := range t.Data {
		t.Data[i] = (rng.Float64()*2 - 1) * scale
	}
	return t
}

func (t *Tensor) At(i, j int) float64 {
	return t.Data[i*t.Cols+j]
}

func (t *Tensor) Set(i, j int, v float64) {
	t.Data[i*t.Cols+j] = v
}

func (t *Tensor) Size() int {
	return t.Rows * t.Cols
}

func (t *Tensor) Clone() *Tensor {
	out := New(t.Rows, t.Cols)
	copy(out.Data, t.Data)
	return out
}

// ZeroGrad clears the gradient buffer, allocating it on first use.
func (t *Tensor) ZeroGrad() {
	if t.Grad == nil {
		t.Grad = make([]float64, len(t.Data))
		return
	}
	for i := range t.Grad {
		t.Grad[i] = 0
	}
}

// AccumulateGrad adds grad's data into t's gradient buffer.
func (t *Tensor) AccumulateGrad(grad *Tensor) {
	if t.Rows != grad.Rows || t.Cols != grad.Cols {
		panic(fmt.Sprintf("tensor: grad shape %dx%d does not match %dx%d",
			grad.Rows, grad.Cols, t.Rows, t.Cols))
	}
	if t.Grad == nil {
		t.Grad = make([]float64, len(t.Data))
	}
	for i := range t.Grad {
		t.Grad[i] += grad.Data[i]
	}
}

// MatMul computes a @ b, chunking output rows across goroutines.
func MatMul(a, b *Tensor) *Tensor {
	if a.Cols != b.Rows {
		panic(fmt.Sprintf("tensor: matmul shape mismatch %dx%d @ %dx%d",
			a.Rows, a.Cols, b.Rows, b.Cols))
	}
	out := New(a.Rows, b.Cols)

	parallelism := runtime.NumCPU()
	chunkSize := (a.Rows + parallelism - 1) / parallelism
	var wg sync.WaitGroup
	for i := 0; i < a.Rows; i += chunkSize {
		end := i + chunkSize
		if end > a.Rows {
			end = a.Rows
		}
		wg.Add(1)
		go func(rowStart, rowEnd int) {
			defer wg.Done()
			for row := rowStart; row < rowEnd; row++ {
				aRow := a.Data[row*a.Cols : (row+1)*a.Cols]
				outRow := out.Data[row*out.Cols : (row+1)*out.Cols]
				for k, av := range aRow {
					if av == 0 {
						continue
					}
					bRow := b.Data[k*b.Cols : (k+1)*b.Cols]
					for j, bv := range bRow {
						outRow[j] += av * bv
					}
				}
			}
		}(i, end)
	}
	wg.Wait()
	return out
}

func Transpose(m *Tensor) *Tensor {
	out := New(m.Cols, m.Rows)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			out.Set(j, i, m.At(i, j))
		}
	}
	return out
}

func Add(a, b *Tensor) *Tensor {
	if a.Rows != b.Rows || a.Cols != b.Cols {
		panic(fmt.Sprintf("tensor: add shape mismatch %dx%d + %dx%d",
			a.Rows, a.Cols, b.Rows, b.Cols))
	}
	out := New(a.Rows, a.Cols)
	for i := range a.Data {
		out.Data[i] = a.Data[i] + b.Data[i]
	}
	return out
}

func Scale(m *Tensor, s float64) *Tensor {
	out := New(m.Rows, m.Cols)
	for i := range m.Data {
		out.Data[i] = m.Data[i] * s
	}
	return out
}

// Softmax applies a numerically stable softmax along each row.
func Softmax(m *Tensor) *Tensor {
	out := New(m.Rows, m.Cols)
	for i := 0; i < m.Rows; i++ {
		row := m.Data[i*m.Cols : (i+1)*m.Cols]
		outRow := out.Data[i*m.Cols : (i+1)*m.Cols]

		max := row[0]
		for _, v := range row {
			if v > max {
				max = v
			}
		}
		sum := 0.0
		for j, v := range row {
			outRow[j] = math.Exp(v - max)
			sum += outRow[j]
		}
		if sum > 0 {
			inv := 1.0 / sum
			for j := range outRow {
				outRow[j] *= inv
			}
		}
	}
	return out
}

const (
	geluSqrt2OverPi = 0.7978845608028654
	geluCoeff       = 0.044715
)

// GELU applies the tanh-approximated GELU activation element-wise.
func GELU(m *Tensor) *Tensor {
	out := New(m.Rows, m.Cols)
	for i, v := range m.Data {
		out.Data[i] = 0.5 * v * (1 + math.Tanh(geluSqrt2OverPi*(v+geluCoeff*v*v*v)))
	}
	return out
}

// LayerNorm normalizes each row to zero mean and unit variance, then
// applies the learned gamma scale and beta shift.
func LayerNorm(x, gamma, beta *Tensor, eps float64) *Tensor {
	out := New(x.Rows, x.Cols)
	n := float64(x.Cols)
	for i := 0; i < x.Rows; i++ {
		row := x.Data[i*x.Cols : (i+1)*x.Cols]
		outRow := out.Data[i*x.Cols : (i+1)*x.Cols]

		mean := 0.0
		for _, v := range row {
			mean += v
		}
		mean /= n

		variance := 0.0
		for _, v := range row {
			d := v - mean
			variance += d * d
		}
		variance /= n

		std := math.Sqrt(variance + eps)
		for j, v := range row {
			outRow[j] = gamma.Data[j]*(v-mean)/std + beta.Data[j]
		}
	}
	return out
}
