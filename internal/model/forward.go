package model

import (
	"math"

	"github.com/TesterSim2/Gazelle/internal/tensor"
)

// Cache stores the activations the backward pass needs. One Cache per
// forward call; it is never shared across steps.
type Cache struct {
	ids []int

	blockCaches []*blockCache

	lnFinalInput *tensor.Tensor // input to the final LayerNorm
	lnFinalOut   *tensor.Tensor // input to the vocab projection
}

type blockCache struct {
	input     *tensor.Tensor // block input x0
	attnCache *attnCache
	resid1    *tensor.Tensor // x0 + attention output
	ffCache   *ffCache
}

type attnCache struct {
	input   *tensor.Tensor   // normalized block input fed to Q/K/V
	qHeads  []*tensor.Tensor // per-head (seq, headDim)
	kHeads  []*tensor.Tensor
	vHeads  []*tensor.Tensor
	weights []*tensor.Tensor // per-head softmax(scores)
	context *tensor.Tensor   // concatenated heads, pre-WO
}

type ffCache struct {
	input  *tensor.Tensor // normalized residual fed to W1
	pre    *tensor.Tensor // before GELU
	hidden *tensor.Tensor // after GELU
}

// ForwardWithCache runs the forward pass and keeps every activation the
// backward pass needs.
func (m *Model) ForwardWithCache(ids []int) (*tensor.Tensor, *Cache, error) {
	if err := m.checkInput(ids); err != nil {
		return nil, nil, err
	}

	cfg := m.Config
	seqLen := len(ids)

	cache := &Cache{
		ids:         ids,
		blockCaches: make([]*blockCache, cfg.Layers),
	}

	// Token + positional embeddings
	x := tensor.New(seqLen, cfg.Dim)
	for i, id := range ids {
		row := x.Data[i*cfg.Dim : (i+1)*cfg.Dim]
		tok := m.tokEmb.Data[id*cfg.Dim : (id+1)*cfg.Dim]
		pos := m.posEmb.Data[i*cfg.Dim : (i+1)*cfg.Dim]
		for d := range row {
			row[d] = tok[d] + pos[d]
		}
	}

	for layer, b := range m.blocks {
		bc := &blockCache{input: x}
		cache.blockCaches[layer] = bc

		// x = x + Attn(LN1(x))
		n1 := tensor.LayerNorm(x, b.ln1.gamma, b.ln1.beta, cfg.Eps)
		attnOut, ac := b.attn.forward(n1)
		bc.attnCache = ac
		x = tensor.Add(x, attnOut)
		bc.resid1 = x

		// x = x + FF(LN2(x))
		n2 := tensor.LayerNorm(x, b.ln2.gamma, b.ln2.beta, cfg.Eps)
		ffOut, fc := b.ff.forward(n2)
		bc.ffCache = fc
		x = tensor.Add(x, ffOut)
	}

	cache.lnFinalInput = x
	out := tensor.LayerNorm(x, m.lnFinal.gamma, m.lnFinal.beta, cfg.Eps)
	cache.lnFinalOut = out

	logits := tensor.MatMul(out, m.head)
	return logits, cache, nil
}

func (a *attention) forward(x *tensor.Tensor) (*tensor.Tensor, *attnCache) {
	seqLen := x.Rows
	dim := x.Cols

	q := tensor.MatMul(x, a.wq)
	k := tensor.MatMul(x, a.wk)
	v := tensor.MatMul(x, a.wv)

	ac := &attnCache{
		input:   x,
		qHeads:  make([]*tensor.Tensor, a.heads),
		kHeads:  make([]*tensor.Tensor, a.heads),
		vHeads:  make([]*tensor.Tensor, a.heads),
		weights: make([]*tensor.Tensor, a.heads),
	}

	context := tensor.New(seqLen, dim)
	scale := 1.0 / math.Sqrt(float64(a.headDim))

	for h := 0; h < a.heads; h++ {
		qh := extractHead(q, h, a.headDim)
		kh := extractHead(k, h, a.headDim)
		vh := extractHead(v, h, a.headDim)
		ac.qHeads[h] = qh
		ac.kHeads[h] = kh
		ac.vHeads[h] = vh

		scores := tensor.Scale(tensor.MatMul(qh, tensor.Transpose(kh)), scale)
		if a.causal {
			maskFuture(scores)
		}

		weights := tensor.Softmax(scores)
		ac.weights[h] = weights

		ctx := tensor.MatMul(weights, vh)
		writeHead(context, ctx, h, a.headDim)
	}

	ac.context = context
	return tensor.MatMul(context, a.wo), ac
}

func (f *feedForward) forward(x *tensor.Tensor) (*tensor.Tensor, *ffCache) {
	pre := tensor.MatMul(x, f.w1)
	addRowBias(pre, f.b1)

	hidden := tensor.GELU(pre)

	out := tensor.MatMul(hidden, f.w2)
	addRowBias(out, f.b2)

	return out, &ffCache{input: x, pre: pre, hidden: hidden}
}

// maskFuture sets scores above the diagonal to a large negative value so
// softmax assigns them (effectively) zero weight.
func maskFuture(scores *tensor.Tensor) {
	for i := 0; i < scores.Rows; i++ {
		for j := i + 1; j < scores.Cols; j++ {
			scores.Set(i, j, -1e9)
		}
	}
}

// extractHead copies column block h of a (seq, dim) tensor into a
// (seq, headDim) tensor.
func extractHead(m *tensor.Tensor, h, headDim int) *tensor.Tensor {
	out := tensor.New(m.Rows, headDim)
	for i := 0; i < m.Rows; i++ {
		src := m.Data[i*m.Cols+h*headDim : i*m.Cols+(h+1)*headDim]
		copy(out.Data[i*headDim:(i+1)*headDim], src)
	}
	return out
}

// writeHead copies a (seq, headDim) tensor into column block h of dst.
func writeHead(dst, src *tensor.Tensor, h, headDim int) {
	for i := 0; i < src.Rows; i++ {
		row := src.Data[i*headDim : (i+1)*headDim]
		copy(dst.Data[i*dst.Cols+h*headDim:i*dst.Cols+(h+1)*headDim], row)
	}
}

func addRowBias(m, bias *tensor.Tensor) {
	for i := 0; i < m.Rows; i++ {
		row := m.Data[i*m.Cols : (i+1)*m.Cols]
		for j := range row {
			row[j] += bias.Data[j]
		}
	}
}
