package config

import (
	"fmt"
)

// Config holds the model hyperparameters. Created once at startup and
// treated as read-only afterwards.
type Config struct {
	Dim       int
	HiddenDim int
	Layers    int
	Heads     int
	VocabSize int
	SeqLen    int
	Eps       float64

	// CausalMask constrains self-attention so a position cannot attend
	// to later positions. The original demo ran unmasked encoder blocks;
	// that stays reachable for comparison but masking is the default.
	CausalMask bool
}

func (c *Config) Validate() error {
	if c.Dim <= 0 {
		return fmt.Errorf("invalid dim: %d (must be positive)", c.Dim)
	}
	if c.Layers <= 0 {
		return fmt.Errorf("invalid layers: %d (must be positive)", c.Layers)
	}
	if c.Heads <= 0 {
		return fmt.Errorf("invalid heads: %d (must be positive)", c.Heads)
	}
	if c.Dim%c.Heads != 0 {
		return fmt.Errorf("dim mismatch: %d not divisible by heads (%d)", c.Dim, c.Heads)
	}
	if c.VocabSize <= 0 {
		return fmt.Errorf("invalid vocab_size: %d (must be positive)", c.VocabSize)
	}
	if c.SeqLen <= 0 {
		return fmt.Errorf("invalid seq_len: %d (must be positive)", c.SeqLen)
	}
	if c.HiddenDim <= 0 {
		return fmt.Errorf("invalid hidden_dim: %d (must be positive)", c.HiddenDim)
	}
	if c.Eps <= 0 {
		return fmt.Errorf("invalid eps: %f (must be positive)", c.Eps)
	}
	return nil
}

// HeadDim is Dim / Heads. Only meaningful on a validated config.
func (c *Config) HeadDim() int {
	return c.Dim / c.Heads
}

func Default() Config {
	return Config{
		Dim:        64,
		HiddenDim:  256,
		Layers:     2,
		Heads:      4,
		VocabSize:  512,
		SeqLen:     64,
		Eps:        1e-5,
		CausalMask: true,
	}
}
