package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samcharles93/peforge/internal/pipeline"
)

const envPeforgeOutDir = "PEFORGE_OUT_DIR"

var errSameFile = errors.New("output path is the input path")

// resolveOutPath picks where the mutated image goes: the explicit flag,
// then $PEFORGE_OUT_DIR/<base>, then <dir>/<stem>.mutated<ext> next to the
// input. The input is never overwritten.
func resolveOutPath(inPath, outFlag string) (string, error) {
	var out string
	switch outFlag = strings.TrimSpace(outFlag); {
	case outFlag != "":
		out = filepath.Clean(outFlag)
	case strings.TrimSpace(os.Getenv(envPeforgeOutDir)) != "":
		out = filepath.Join(strings.TrimSpace(os.Getenv(envPeforgeOutDir)), filepath.Base(inPath))
	default:
		ext := filepath.Ext(inPath)
		stem := strings.TrimSuffix(filepath.Base(inPath), ext)
		out = filepath.Join(filepath.Dir(inPath), stem+".mutated"+ext)
	}

	absIn, err := filepath.Abs(inPath)
	if err != nil {
		return "", err
	}
	absOut, err := filepath.Abs(out)
	if err != nil {
		return "", err
	}
	if absIn == absOut {
		return "", fmt.Errorf("%w: %s", errSameFile, out)
	}
	return out, nil
}

// resolveSeed returns seed when one was given and a random one otherwise.
func resolveSeed(seed uint64, set bool) uint64 {
	if !set {
		return pipeline.RandomSeed()
	}
	return seed
}
