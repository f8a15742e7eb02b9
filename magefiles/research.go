//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Research builds the CLI and runs the iterative research loop on question.
func Research(question string) error {
	mg.Deps(Init, Build)
	return sh.RunV(filepath.Join(binDir, binName), "research", question)
}

// Quick builds the CLI and runs a single-pass research on question.
func Quick(question string) error {
	mg.Deps(Init, Build)
	return sh.RunV(filepath.Join(binDir, binName), "quick", question)
}
