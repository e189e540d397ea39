//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Proposal groups targets that run the CLI.
type Proposal mg.Namespace

// Generate writes a proposal for topic into output/proposals.
func (Proposal) Generate(topic string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "generate", topic)
}

// Batch generates a proposal for every line of a topics file.
func (Proposal) Batch(topicsFile string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "generate", "--topics-file", topicsFile)
}

// Review reviews an existing proposal document.
func (Proposal) Review(document string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "review", document)
}

// Serve starts the HTTP and WebSocket API.
func (Proposal) Serve() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "serve")
}

// Prune deletes expired entries from the tool cache.
func (Proposal) Prune() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "cache", "prune")
}
