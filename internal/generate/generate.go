package generate

import (
	"context"
	"errors"
	"time"

	"github.com/TesterSim2/Gazelle/internal/logger"
	"github.com/TesterSim2/Gazelle/internal/metrics"
)

// ErrEmptyPrompt is returned when generation is started with no tokens.
var ErrEmptyPrompt = errors.New("empty prompt")

// Scorer produces next-token logits for a token sequence. The model
// satisfies this; tests substitute fixed scorers.
type Scorer interface {
	Score(ids []int) ([]float64, error)
}

// Config controls one generation run.
type Config struct {
	MaxNewTokens int
	ContextLen   int // longest sequence fed to the scorer
	EOSToken     int // stop token; negative disables the check
}

// Generator decodes greedily: at each step the highest-scoring token is
// appended, ties resolved toward the lowest id.
type Generator struct {
	scorer Scorer
	cfg    Config
}

func New(scorer Scorer, cfg Config) *Generator {
	return &Generator{scorer: scorer, cfg: cfg}
}

// Run extends prompt by up to MaxNewTokens tokens and returns the full
// sequence, prompt included. Decoding stops early on the EOS token or
// when ctx is cancelled.
func (g *Generator) Run(ctx context.Context, prompt []int) ([]int, error) {
	if len(prompt) == 0 {
		return nil, ErrEmptyPrompt
	}

	start := time.Now()
	ids := make([]int, len(prompt))
	copy(ids, prompt)

	generated := 0
	for generated < g.cfg.MaxNewTokens {
		if err := ctx.Err(); err != nil {
			return ids, err
		}

		window := ids
		if g.cfg.ContextLen > 0 && len(window) > g.cfg.ContextLen {
			window = window[len(window)-g.cfg.ContextLen:]
		}
		metrics.RecordContextLength(len(window))

		stepStart := time.Now()
		scores, err := g.scorer.Score(window)
		if err != nil {
			return ids, err
		}
		metrics.RecordGenerateStep(time.Since(stepStart))

		next := argMax(scores)
		ids = append(ids, next)
		generated++

		if g.cfg.EOSToken >= 0 && next == g.cfg.EOSToken {
			logger.Log.Debug("generation hit stop token", "step", generated)
			break
		}
	}

	metrics.RecordGeneration(generated, time.Since(start))
	logger.Log.Info("generation complete",
		"prompt_tokens", len(prompt),
		"new_tokens", generated,
		"duration", time.Since(start).String())

	return ids, nil
}

// argMax returns the index of the largest score. On an exact tie the
// lowest index wins, which keeps decoding deterministic.
func argMax(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}
