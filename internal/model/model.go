package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/TesterSim2/Gazelle/internal/config"
	"github.com/TesterSim2/Gazelle/internal/tensor"
)

// Model is a small decoder-only transformer: token plus positional
// embeddings, a stack of identical pre-norm blocks, a final LayerNorm,
// and a linear projection to vocabulary logits. All state lives on the
// struct; nothing is global.
type Model struct {
	Config config.Config

	tokEmb *tensor.Tensor // VocabSize x Dim
	posEmb *tensor.Tensor // SeqLen x Dim

	blocks []*block

	lnFinal *layerNorm
	head    *tensor.Tensor // Dim x VocabSize
}

type block struct {
	ln1  *layerNorm
	attn *attention
	ln2  *layerNorm
	ff   *feedForward
}

type layerNorm struct {
	gamma *tensor.Tensor // 1 x Dim
	beta  *tensor.Tensor // 1 x Dim
}

type attention struct {
	heads   int
	headDim int
	causal  bool

	wq *tensor.Tensor // Dim x Dim
	wk *tensor.Tensor
	wv *tensor.Tensor
	wo *tensor.Tensor
}

type feedForward struct {
	w1 *tensor.Tensor // Dim x HiddenDim
	b1 *tensor.Tensor // 1 x HiddenDim
	w2 *tensor.Tensor // HiddenDim x Dim
	b2 *tensor.Tensor // 1 x Dim
}

// New constructs a model with weights drawn from rng. The config is
// validated first; a head count that does not divide the embedding
// width is a construction error, never a silent proceed.
func New(cfg config.Config, rng *rand.Rand) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("model config: %w", err)
	}

	scale := 1.0 / math.Sqrt(float64(cfg.Dim))

	m := &Model{
		Config:  cfg,
		tokEmb:  tensor.NewRand(rng, cfg.VocabSize, cfg.Dim, scale),
		posEmb:  tensor.NewRand(rng, cfg.SeqLen, cfg.Dim, scale),
		blocks:  make([]*block, cfg.Layers),
		lnFinal: newLayerNorm(cfg.Dim),
		head:    tensor.NewRand(rng, cfg.Dim, cfg.VocabSize, scale),
	}

	for i := range m.blocks {
		m.blocks[i] = &block{
			ln1: newLayerNorm(cfg.Dim),
			attn: &attention{
				heads:   cfg.Heads,
				headDim: cfg.HeadDim(),
				causal:  cfg.CausalMask,
				wq:      tensor.NewRand(rng, cfg.Dim, cfg.Dim, scale),
				wk:      tensor.NewRand(rng, cfg.Dim, cfg.Dim, scale),
				wv:      tensor.NewRand(rng, cfg.Dim, cfg.Dim, scale),
				wo:      tensor.NewRand(rng, cfg.Dim, cfg.Dim, scale),
			},
			ln2: newLayerNorm(cfg.Dim),
			ff: &feedForward{
				w1: tensor.NewRand(rng, cfg.Dim, cfg.HiddenDim, scale),
				b1: tensor.New(1, cfg.HiddenDim),
				w2: tensor.NewRand(rng, cfg.HiddenDim, cfg.Dim, 1.0/math.Sqrt(float64(cfg.HiddenDim))),
				b2: tensor.New(1, cfg.Dim),
			},
		}
	}

	return m, nil
}

func newLayerNorm(dim int) *layerNorm {
	ln := &layerNorm{
		gamma: tensor.New(1, dim),
		beta:  tensor.New(1, dim),
	}
	for i := range ln.gamma.Data {
		ln.gamma.Data[i] = 1
	}
	return ln
}

// Parameters returns every trainable tensor, in a stable order, for the
// optimizer.
func (m *Model) Parameters() []*tensor.Tensor {
	params := []*tensor.Tensor{m.tokEmb, m.posEmb}
	for _, b := range m.blocks {
		params = append(params,
			b.ln1.gamma, b.ln1.beta,
			b.attn.wq, b.attn.wk, b.attn.wv, b.attn.wo,
			b.ln2.gamma, b.ln2.beta,
			b.ff.w1, b.ff.b1, b.ff.w2, b.ff.b2,
		)
	}
	params = append(params, m.lnFinal.gamma, m.lnFinal.beta, m.head)
	return params
}

// Forward runs the model over ids and returns per-position logits of
// shape (len(ids), VocabSize).
func (m *Model) Forward(ids []int) (*tensor.Tensor, error) {
	logits, _, err := m.ForwardWithCache(ids)
	return logits, err
}

// Score returns the logits at the last position, the input to greedy
// next-token selection.
func (m *Model) Score(ids []int) ([]float64, error) {
	logits, err := m.Forward(ids)
	if err != nil {
		return nil, err
	}
	last := logits.Rows - 1
	out := make([]float64, logits.Cols)
	copy(out, logits.Data[last*logits.Cols:(last+1)*logits.Cols])
	return out, nil
}

func (m *Model) checkInput(ids []int) error {
	if len(ids) == 0 {
		return fmt.Errorf("empty input ids")
	}
	if len(ids) > m.Config.SeqLen {
		return fmt.Errorf("input length %d exceeds context length %d", len(ids), m.Config.SeqLen)
	}
	for i, id := range ids {
		if id < 0 || id >= m.Config.VocabSize {
			return fmt.Errorf("token %d at position %d is out of vocab range [0, %d)",
				id, i, m.Config.VocabSize)
		}
	}
	return nil
}
