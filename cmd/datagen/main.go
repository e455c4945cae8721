package main

import (
	"bufio"
	"flag"
	"os"

	"github.com/TesterSim2/Gazelle/internal/dataset"
	"github.com/TesterSim2/Gazelle/internal/logger"
)

var (
	outPath   = flag.String("out", "corpus.arrow", "Output Arrow IPC file")
	inPath    = flag.String("in", "", "Plain-text input, one document per line (default: built-in sample)")
	logLevel  = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat = flag.String("log-format", "console", "Log format: console or json")
)

// sample is a tiny corpus with enough repetition for a toy model to
// latch onto.
var sample = []string{
	"the quick brown fox jumps over the lazy dog",
	"the lazy dog sleeps in the warm sun",
	"the quick fox runs through the green field",
	"a brown dog chases the quick fox",
	"the sun warms the green field",
	"the fox and the dog rest in the field",
}

func main() {
	flag.Parse()
	logger.Setup(*logLevel, *logFormat)

	texts := sample
	if *inPath != "" {
		var err error
		texts, err = readLines(*inPath)
		if err != nil {
			logger.Log.Fatal("reading input", "error", err.Error())
		}
	}

	if err := dataset.WriteFile(*outPath, texts); err != nil {
		logger.Log.Fatal("writing dataset", "error", err.Error())
	}
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
