package model

import (
	"math"

	"github.com/TesterSim2/Gazelle/internal/tensor"
)

// Backward propagates gradLogits through the whole model, accumulating
// parameter gradients. Callers zero gradients before the forward pass;
// residual connections add their branches' gradients together.
func (m *Model) Backward(gradLogits *tensor.Tensor, cache *Cache) {
	cfg := m.Config

	// logits = lnFinalOut @ head
	gradOut, gradHead := tensor.MatMulBackward(cache.lnFinalOut, m.head, gradLogits)
	m.head.AccumulateGrad(gradHead)

	gradX, gradGamma, gradBeta := tensor.LayerNormBackward(
		cache.lnFinalInput, m.lnFinal.gamma, gradOut, cfg.Eps)
	m.lnFinal.gamma.AccumulateGrad(gradGamma)
	m.lnFinal.beta.AccumulateGrad(gradBeta)

	for layer := cfg.Layers - 1; layer >= 0; layer-- {
		b := m.blocks[layer]
		bc := cache.blockCaches[layer]

		// x2 = x1 + FF(LN2(x1)): residual passes gradX through and
		// the branch adds its own contribution.
		gradFFOut := gradX
		gradN2 := b.ff.backward(gradFFOut, bc.ffCache)

		gradResid, gradGamma2, gradBeta2 := tensor.LayerNormBackward(
			bc.resid1, b.ln2.gamma, gradN2, cfg.Eps)
		b.ln2.gamma.AccumulateGrad(gradGamma2)
		b.ln2.beta.AccumulateGrad(gradBeta2)

		gradX = tensor.Add(gradX, gradResid)

		// x1 = x0 + Attn(LN1(x0))
		gradAttnOut := gradX
		gradN1 := b.attn.backward(gradAttnOut, bc.attnCache)

		gradInput, gradGamma1, gradBeta1 := tensor.LayerNormBackward(
			bc.input, b.ln1.gamma, gradN1, cfg.Eps)
		b.ln1.gamma.AccumulateGrad(gradGamma1)
		b.ln1.beta.AccumulateGrad(gradBeta1)

		gradX = tensor.Add(gradX, gradInput)
	}

	// Embedding rows: scatter-add by token id and position.
	ensureGrad(m.tokEmb)
	ensureGrad(m.posEmb)
	for i, id := range cache.ids {
		gRow := gradX.Data[i*cfg.Dim : (i+1)*cfg.Dim]
		tok := m.tokEmb.Grad[id*cfg.Dim : (id+1)*cfg.Dim]
		pos := m.posEmb.Grad[i*cfg.Dim : (i+1)*cfg.Dim]
		for d, g := range gRow {
			tok[d] += g
			pos[d] += g
		}
	}
}

func (a *attention) backward(gradOut *tensor.Tensor, ac *attnCache) *tensor.Tensor {
	seqLen := ac.input.Rows
	dim := ac.input.Cols

	// out = context @ wo
	gradContext, gradWo := tensor.MatMulBackward(ac.context, a.wo, gradOut)
	a.wo.AccumulateGrad(gradWo)

	gradQ := tensor.New(seqLen, dim)
	gradK := tensor.New(seqLen, dim)
	gradV := tensor.New(seqLen, dim)

	scale := 1.0 / math.Sqrt(float64(a.headDim))

	for h := 0; h < a.heads; h++ {
		gradCtxHead := extractHead(gradContext, h, a.headDim)

		// ctx = weights @ vHead
		gradWeights, gradVHead := tensor.MatMulBackward(ac.weights[h], ac.vHeads[h], gradCtxHead)

		// Masked positions carry (effectively) zero weight, so the
		// softmax gradient already vanishes there.
		gradScores := tensor.Scale(tensor.SoftmaxBackward(ac.weights[h], gradWeights), scale)

		// scores = qHead @ kHead^T
		kT := tensor.Transpose(ac.kHeads[h])
		gradQHead, gradKT := tensor.MatMulBackward(ac.qHeads[h], kT, gradScores)
		gradKHead := tensor.Transpose(gradKT)

		writeHead(gradQ, gradQHead, h, a.headDim)
		writeHead(gradK, gradKHead, h, a.headDim)
		writeHead(gradV, gradVHead, h, a.headDim)
	}

	// Q, K, V share the same input, so input gradients sum.
	gradInput, gradWq := tensor.MatMulBackward(ac.input, a.wq, gradQ)
	a.wq.AccumulateGrad(gradWq)

	gradInputK, gradWk := tensor.MatMulBackward(ac.input, a.wk, gradK)
	a.wk.AccumulateGrad(gradWk)
	gradInput = tensor.Add(gradInput, gradInputK)

	gradInputV, gradWv := tensor.MatMulBackward(ac.input, a.wv, gradV)
	a.wv.AccumulateGrad(gradWv)
	gradInput = tensor.Add(gradInput, gradInputV)

	return gradInput
}

func (f *feedForward) backward(gradOut *tensor.Tensor, fc *ffCache) *tensor.Tensor {
	// out = hidden @ w2 + b2
	gradHidden, gradW2 := tensor.MatMulBackward(fc.hidden, f.w2, gradOut)
	f.w2.AccumulateGrad(gradW2)
	accumulateBiasGrad(f.b2, gradOut)

	gradPre := tensor.GELUBackward(fc.pre, gradHidden)

	// pre = input @ w1 + b1
	gradInput, gradW1 := tensor.MatMulBackward(fc.input, f.w1, gradPre)
	f.w1.AccumulateGrad(gradW1)
	accumulateBiasGrad(f.b1, gradPre)

	return gradInput
}

// accumulateBiasGrad sums grad over rows into the bias gradient.
func accumulateBiasGrad(bias, grad *tensor.Tensor) {
	ensureGrad(bias)
	for i := 0; i < grad.Rows; i++ {
		row := grad.Data[i*grad.Cols : (i+1)*grad.Cols]
		for j, g := range row {
			bias.Grad[j] += g
		}
	}
}

func ensureGrad(t *tensor.Tensor) {
	if t.Grad == nil {
		t.Grad = make([]float64, len(t.Data))
	}
}
