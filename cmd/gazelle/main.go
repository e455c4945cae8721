package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/TesterSim2/Gazelle/internal/config"
	"github.com/TesterSim2/Gazelle/internal/dataset"
	"github.com/TesterSim2/Gazelle/internal/device"
	"github.com/TesterSim2/Gazelle/internal/generate"
	"github.com/TesterSim2/Gazelle/internal/logger"
	"github.com/TesterSim2/Gazelle/internal/model"
	"github.com/TesterSim2/Gazelle/internal/monitoring"
	"github.com/TesterSim2/Gazelle/internal/tokenizer"
	"github.com/TesterSim2/Gazelle/internal/train"
)

var (
	dataPath   = flag.String("data", "", "Path to an Arrow IPC dataset file")
	flightAddr = flag.String("flight-addr", "", "Arrow Flight server address (overrides -data)")
	flightName = flag.String("flight-name", "corpus", "Dataset name to fetch over Flight")

	steps     = flag.Int("steps", 50, "Number of training steps")
	lr        = flag.Float64("lr", 0.01, "Learning rate")
	optimizer = flag.String("optimizer", "adam", "Optimizer: sgd or adam")
	gradClip  = flag.Float64("grad-clip", 1.0, "Max gradient norm, <= 0 disables clipping")

	prompt = flag.String("prompt", "the", "Prompt to generate from")
	maxNew = flag.Int("max-new", 20, "Number of tokens to generate")
	seed   = flag.Int64("seed", 1337, "RNG seed for weight initialization")

	deviceName  = flag.String("device", "cpu", "Compute device: cpu, cuda, or metal")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat   = flag.String("log-format", "console", "Log format: console or json")
	metricsAddr = flag.String("metrics-addr", "", "Address for /metrics and /healthz, empty disables")

	dim    = flag.Int("dim", 64, "Embedding width")
	layers = flag.Int("layers", 2, "Number of transformer blocks")
	heads  = flag.Int("heads", 4, "Number of attention heads")
	seqLen = flag.Int("seqlen", 64, "Context length")
)

func main() {
	flag.Parse()
	logger.Setup(*logLevel, *logFormat)

	if err := run(); err != nil {
		logger.Log.Fatal("run failed", "error", err.Error())
	}
}

func run() error {
	// The device guard runs before any other work.
	dev, err := device.Ensure(device.Kind(*deviceName))
	if err != nil {
		return err
	}
	logger.Log.Info("device ready", "kind", string(dev.Kind), "cores", dev.Cores)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		mon := monitoring.New()
		go func() {
			if err := mon.Start(*metricsAddr); err != nil {
				logger.Log.Error("monitoring server error", "error", err.Error())
			}
		}()
		defer mon.Stop(context.Background())
	}

	texts, err := loadCorpus(ctx)
	if err != nil {
		return err
	}

	tok, err := tokenizer.Build(texts)
	if err != nil {
		return fmt.Errorf("building vocabulary: %w", err)
	}

	cfg := config.Default()
	cfg.Dim = *dim
	cfg.HiddenDim = *dim * 4
	cfg.Layers = *layers
	cfg.Heads = *heads
	cfg.SeqLen = *seqLen
	cfg.VocabSize = tok.VocabSize()

	m, err := model.New(cfg, rand.New(rand.NewSource(*seed)))
	if err != nil {
		return err
	}
	logger.Log.Info("model initialized",
		"dim", cfg.Dim, "layers", cfg.Layers, "heads", cfg.Heads,
		"vocab", cfg.VocabSize, "seqlen", cfg.SeqLen)

	seqs := make([][]int, 0, len(texts))
	for _, t := range texts {
		seqs = append(seqs, tok.Encode(t, cfg.SeqLen))
	}
	source, err := dataset.NewBatchSource(seqs)
	if err != nil {
		return err
	}

	trainer, err := train.New(m, source, train.Config{
		LearningRate: *lr,
		MaxSteps:     *steps,
		LogInterval:  10,
		GradClip:     *gradClip,
		Optimizer:    *optimizer,
	})
	if err != nil {
		return err
	}
	if _, err := trainer.Run(ctx); err != nil {
		return fmt.Errorf("training: %w", err)
	}

	promptIDs := tok.EncodePrompt(*prompt)
	gen := generate.New(m, generate.Config{
		MaxNewTokens: *maxNew,
		ContextLen:   cfg.SeqLen,
		EOSToken:     tokenizer.EOSID,
	})
	out, err := gen.Run(ctx, promptIDs)
	if err != nil {
		return fmt.Errorf("generation: %w", err)
	}

	fmt.Println(tok.Decode(out))
	return nil
}

func loadCorpus(ctx context.Context) ([]string, error) {
	if *flightAddr != "" {
		src, err := dataset.NewFlightSource(*flightAddr)
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return src.Fetch(ctx, *flightName)
	}

	if *dataPath == "" {
		fmt.Fprintln(os.Stderr, "either -data or -flight-addr is required")
		flag.Usage()
		os.Exit(1)
	}
	return dataset.ReadFile(*dataPath)
}
