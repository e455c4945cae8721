package tensor

import (
	"fmt"
	"math"
)

// CrossEntropyLoss computes the mean next-token cross-entropy between
// per-position logits (positions x vocab) and target token ids, using
// the log-sum-exp trick for stability.
func CrossEntropyLoss(logits *Tensor, targets []int) (float64, error) {
	if len(targets) != logits.Rows {
		return 0, fmt.Errorf("target length %d != logit rows %d", len(targets), logits.Rows)
	}

	total := 0.0
	for i, target := range targets {
		if target < 0 || target >= logits.Cols {
			return 0, fmt.Errorf("target %d at position %d is out of vocab range [0, %d)",
				target, i, logits.Cols)
		}
		row := logits.Data[i*logits.Cols : (i+1)*logits.Cols]

		max := row[0]
		for _, v := range row {
			if v > max {
				max = v
			}
		}
		sumExp := 0.0
		for _, v := range row {
			sumExp += math.Exp(v - max)
		}
		logSumExp := max + math.Log(sumExp)

		total += logSumExp - row[target]
	}

	return total / float64(logits.Rows), nil
}

// CrossEntropyBackward returns the gradient of the mean cross-entropy
// with respect to the logits: softmax(logits) - one_hot(targets),
// divided by the number of positions.
func CrossEntropyBackward(logits *Tensor, targets []int) *Tensor {
	probs := Softmax(logits)
	grad := New(logits.Rows, logits.Cols)
	inv := 1.0 / float64(logits.Rows)

	for i, target := range targets {
		pRow := probs.Data[i*logits.Cols : (i+1)*logits.Cols]
		gRow := grad.Data[i*logits.Cols : (i+1)*logits.Cols]
		for j, p := range pRow {
			if j == target {
				gRow[j] = (p - 1.0) * inv
			} else {
				gRow[j] = p * inv
			}
		}
	}
	return grad
}
