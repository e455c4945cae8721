package tensor

import (
	"math"
)

// Backward counterparts of the forward ops. Each takes the upstream
// gradient and returns gradients for the op's inputs.

// MatMulBackward: for C = A @ B,
// gradA = gradC @ B^T and gradB = A^T @ gradC.
func MatMulBackward(a, b, gradC *Tensor) (gradA, gradB *Tensor) {
	gradA = MatMul(gradC, Transpose(b))
	gradB = MatMul(Transpose(a), gradC)
	return gradA, gradB
}

// GELUBackward: gradX = gradY * GELU'(x), using the derivative of the
// tanh approximation.
func GELUBackward(x, gradY *Tensor) *Tensor {
	gradX := New(x.Rows, x.Cols)
	for i, v := range x.Data {
		inner := geluSqrt2OverPi * (v + geluCoeff*v*v*v)
		tanhInner := math.Tanh(inner)
		tanhDeriv := 1.0 - tanhInner*tanhInner
		innerDeriv := geluSqrt2OverPi * (1.0 + 3.0*geluCoeff*v*v)
		deriv := 0.5*(1.0+tanhInner) + 0.5*v*tanhDeriv*innerDeriv
		gradX.Data[i] = gradY.Data[i] * deriv
	}
	return gradX
}

// SoftmaxBackward: per row,
// gradX[i] = Y[i] * (gradY[i] - sum_j gradY[j]*Y[j]).
func SoftmaxBackward(y, gradY *Tensor) *Tensor {
	gradX := New(y.Rows, y.Cols)
	for i := 0; i < y.Rows; i++ {
		yRow := y.Data[i*y.Cols : (i+1)*y.Cols]
		gRow := gradY.Data[i*y.Cols : (i+1)*y.Cols]
		outRow := gradX.Data[i*y.Cols : (i+1)*y.Cols]

		dot := 0.0
		for j := range yRow {
			dot += gRow[j] * yRow[j]
		}
		for j := range yRow {
			outRow[j] = yRow[j] * (gRow[j] - dot)
		}
	}
	return gradX
}

// LayerNormBackward computes gradients for y = gamma*(x-mean)/std + beta.
// Statistics are recomputed from x; gradGamma and gradBeta are summed
// over rows.
func LayerNormBackward(x, gamma, gradY *Tensor, eps float64) (gradX, gradGamma, gradBeta *Tensor) {
	gradX = New(x.Rows, x.Cols)
	gradGamma = New(gamma.Rows, gamma.Cols)
	gradBeta = New(gamma.Rows, gamma.Cols)

	n := float64(x.Cols)

	for i := 0; i < x.Rows; i++ {
		row := x.Data[i*x.Cols : (i+1)*x.Cols]
		gRow := gradY.Data[i*x.Cols : (i+1)*x.Cols]
		outRow := gradX.Data[i*x.Cols : (i+1)*x.Cols]

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

		sumGrad := 0.0
		sumGradXNorm := 0.0
		for j, v := range row {
			xNorm := (v - mean) / std
			gradGamma.Data[j] += gRow[j] * xNorm
			gradBeta.Data[j] += gRow[j]

			g := gRow[j] * gamma.Data[j]
			sumGrad += g
			sumGradXNorm += g * xNorm
		}

		for j, v := range row {
			xNorm := (v - mean) / std
			g := gRow[j] * gamma.Data[j]
			outRow[j] = (n*g - sumGrad - xNorm*sumGradXNorm) / (n * std)
		}
	}

	return gradX, gradGamma, gradBeta
}
