package train

import (
	"context"
	"fmt"
	"time"

	"github.com/TesterSim2/Gazelle/internal/logger"
	"github.com/TesterSim2/Gazelle/internal/metrics"
	"github.com/TesterSim2/Gazelle/internal/model"
	"github.com/TesterSim2/Gazelle/internal/tensor"
)

// Source yields training sequences as token ids. Every sequence must
// hold at least two tokens so an input/target pair can be formed.
type Source interface {
	Next() ([]int, error)
}

// Config controls a training run.
type Config struct {
	LearningRate float64
	MaxSteps     int
	LogInterval  int
	GradClip     float64 // max global gradient norm; <= 0 disables
	Optimizer    string  // "sgd" or "adam"
	WeightDecay  float64
}

// Validate rejects configs a run could not use.
func (c Config) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("invalid learning rate: %v (must be positive)", c.LearningRate)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("invalid max steps: %d (must be positive)", c.MaxSteps)
	}
	switch c.Optimizer {
	case "sgd", "adam":
	default:
		return fmt.Errorf("unknown optimizer: %q", c.Optimizer)
	}
	return nil
}

// Trainer runs next-token training: each sequence contributes one
// update with input seq[:n-1] and target seq[1:].
type Trainer struct {
	model  *model.Model
	source Source
	cfg    Config
	opt    Optimizer
}

// New builds a trainer. The optimizer is chosen by cfg.Optimizer.
func New(m *model.Model, source Source, cfg Config) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("training config: %w", err)
	}

	var opt Optimizer
	switch cfg.Optimizer {
	case "adam":
		a := NewAdam(cfg.LearningRate)
		a.WeightDecay = cfg.WeightDecay
		opt = a
	case "sgd":
		opt = &SGD{LearningRate: cfg.LearningRate, WeightDecay: cfg.WeightDecay}
	}

	return &Trainer{model: m, source: source, cfg: cfg, opt: opt}, nil
}

// Run performs exactly cfg.MaxSteps parameter updates and returns the
// loss of the final step. Cancelling ctx stops between steps.
func (t *Trainer) Run(ctx context.Context) (float64, error) {
	params := t.model.Parameters()
	interval := t.cfg.LogInterval
	if interval <= 0 {
		interval = 10
	}

	logger.Log.Info("training started",
		"steps", t.cfg.MaxSteps,
		"lr", t.cfg.LearningRate,
		"optimizer", t.cfg.Optimizer)

	var loss float64
	for step := 1; step <= t.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return loss, err
		}

		start := time.Now()
		var err error
		loss, err = t.step(params)
		if err != nil {
			return loss, fmt.Errorf("step %d: %w", step, err)
		}
		metrics.RecordTrainStep(loss, time.Since(start))

		if step%interval == 0 || step == t.cfg.MaxSteps {
			logger.Log.Info("training progress",
				"step", step,
				"loss", fmt.Sprintf("%.4f", loss))
		}
	}

	logger.Log.Info("training finished", "final_loss", fmt.Sprintf("%.4f", loss))
	return loss, nil
}

func (t *Trainer) step(params []*tensor.Tensor) (float64, error) {
	seq, err := t.source.Next()
	if err != nil {
		return 0, fmt.Errorf("fetching batch: %w", err)
	}
	if len(seq) < 2 {
		return 0, fmt.Errorf("sequence too short to train on: %d tokens", len(seq))
	}

	input := seq[:len(seq)-1]
	target := seq[1:]

	for _, p := range params {
		p.ZeroGrad()
	}

	logits, cache, err := t.model.ForwardWithCache(input)
	if err != nil {
		return 0, fmt.Errorf("forward: %w", err)
	}

	loss, err := tensor.CrossEntropyLoss(logits, target)
	if err != nil {
		return 0, fmt.Errorf("loss: %w", err)
	}

	gradLogits := tensor.CrossEntropyBackward(logits, target)
	t.model.Backward(gradLogits, cache)

	clipGradients(params, t.cfg.GradClip)
	t.opt.Step(params)

	return loss, nil
}
