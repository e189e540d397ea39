//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main contains Mage build targets for proposal-engine developer tooling.
package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories the CLI expects.
var projectDirs = []string{
	"output/proposals",
	".cache",
	".secrets",
}

// Init creates the project directory structure and a default config file.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		mg.Deps(Build)
		out, err := sh.Output(binPath(), "config", "--defaults")
		if err != nil {
			return fmt.Errorf("writing %s: %w", configFile, err)
		}
		if err := os.WriteFile(configFile, []byte(out+"\n"), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", configFile, err)
		}
		fmt.Println("  ", configFile)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir     = "bin"
	binName    = "proposal-engine"
	cmdPkg     = "./cmd/proposal-engine"
	configFile = "proposal-engine.yaml"
)

func binPath() string {
	return filepath.Join(binDir, binName)
}

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil {
		version = "dev"
	}
	ldflags := "-X main.version=" + version
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", binPath(), cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", binPath())
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "-count=1", "./...")
}

// Lint runs go vet.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Clean removes build output.
func Clean() error {
	return sh.Rm(binDir)
}

// Stats prints non-blank Go lines per package, split into production and
// test code, and the word count of Markdown and YAML documents.
func Stats() error {
	type count struct{ prod, test int }
	pkgs := map[string]*count{}
	docWords := 0

	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".go" && ext != ".md" && ext != ".yaml" && ext != ".yml" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if ext != ".go" {
			docWords += len(bytes.Fields(data))
			return nil
		}
		dir := filepath.Dir(path)
		c, ok := pkgs[dir]
		if !ok {
			c = &count{}
			pkgs[dir] = c
		}
		n := nonBlank(data)
		if strings.HasSuffix(path, "_test.go") {
			c.test += n
		} else {
			c.prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(pkgs))
	for dir := range pkgs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	var prod, test int
	fmt.Printf("%-28s %8s %8s\n", "package", "prod", "test")
	for _, dir := range dirs {
		c := pkgs[dir]
		fmt.Printf("%-28s %8d %8d\n", dir, c.prod, c.test)
		prod += c.prod
		test += c.test
	}
	fmt.Printf("%-28s %8d %8d\n", "total", prod, test)
	fmt.Printf("Words (documentation): %d\n", docWords)
	return nil
}

func nonBlank(data []byte) int {
	n := 0
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n
}

// skipDir reports whether Stats ignores a directory. Dot and underscore
// prefixes are skipped along with bin/ and output/.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == binDir || name == "output"
}
