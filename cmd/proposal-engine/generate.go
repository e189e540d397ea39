// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/proposal-engine/internal/bus"
	"github.com/pdiddy/proposal-engine/internal/engine"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate [topic]",
	Short: "Generate a research proposal for a topic",
	Long: `Generate runs the full proposal workflow for one topic, or for every line
of a topics file. Progress is printed to stderr; the path of each written
proposal is printed to stdout.

Topics in a file run concurrently, at most --parallel at a time. Blank lines
and lines starting with # are ignored.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("topics-file", "", "file with one topic per line")
	generateCmd.Flags().Int("parallel", 2, "maximum concurrent sessions for --topics-file")
	generateCmd.Flags().String("clarification", "", "answer to the clarification questions, skipping the prompt")
	generateCmd.Flags().Bool("interactive", false, "read clarification answers from stdin")
	generateCmd.Flags().String("output-dir", "", "directory for proposals (default output/proposals)")
	generateCmd.Flags().Bool("bibtex", false, "also write a BibTeX file per proposal")
	generateCmd.Flags().Bool("no-review", false, "skip the review and revision loop")
	generateCmd.Flags().Bool("no-rerank", false, "skip relevance re-ranking of references")
	generateCmd.Flags().Int("max-iterations", 0, "maximum executed research steps per session")
	generateCmd.Flags().Bool("quiet", false, "do not print progress messages")

	_ = viper.BindPFlag("output.dir", generateCmd.Flags().Lookup("output-dir"))
	_ = viper.BindPFlag("output.bibtex", generateCmd.Flags().Lookup("bibtex"))

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	topicsFile, _ := cmd.Flags().GetString("topics-file")
	var topics []string
	switch {
	case topicsFile != "" && len(args) > 0:
		return fmt.Errorf("provide a topic or --topics-file, not both")
	case topicsFile != "":
		var err error
		if topics, err = readTopics(topicsFile); err != nil {
			return err
		}
	case len(args) > 0:
		topics = []string{strings.Join(args, " ")}
	default:
		return fmt.Errorf("provide a research topic or --topics-file")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyGenerateFlags(cmd, &cfg)

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	var clarifier engine.Clarifier
	interactive, _ := cmd.Flags().GetBool("interactive")
	if interactive && len(topics) == 1 {
		clarifier = &promptClarifier{in: bufio.NewReader(os.Stdin), out: os.Stderr}
	}

	messages := bus.New(cfg.Server.Backlog)
	eng, err := rt.newEngine(messages, clarifier)
	if err != nil {
		return err
	}

	answer, _ := cmd.Flags().GetString("clarification")
	quiet, _ := cmd.Flags().GetBool("quiet")
	parallel, _ := cmd.Flags().GetInt("parallel")
	if parallel < 1 {
		parallel = 1
	}

	var g errgroup.Group
	g.SetLimit(parallel)
	for _, topic := range topics {
		topic := topic
		g.Go(func() error {
			var opts []engine.SessionOption
			if answer != "" {
				opts = append(opts, engine.WithClarification(answer))
			}
			s := eng.NewSession(topic, opts...)

			var progress sync.WaitGroup
			progress.Add(1)
			go func() {
				defer progress.Done()
				printProgress(ctx, messages, s.ID, os.Stderr, quiet)
			}()

			_, err := eng.Run(ctx, s)
			progress.Wait()
			if err != nil {
				log.Error("proposal failed", zap.String("session_id", s.ID), zap.Error(err))
				return fmt.Errorf("topic %q: %w", firstLine(topic), err)
			}
			reportSession(os.Stdout, s)
			return nil
		})
	}
	return g.Wait()
}

func applyGenerateFlags(cmd *cobra.Command, cfg *types.Config) {
	if v, _ := cmd.Flags().GetBool("no-review"); v {
		cfg.Engine.Review = false
	}
	if v, _ := cmd.Flags().GetBool("no-rerank"); v {
		cfg.Engine.Rerank = false
	}
	if v, _ := cmd.Flags().GetInt("max-iterations"); v > 0 {
		cfg.Engine.MaxIterations = v
	}
}

// readTopics returns the non-blank, non-comment lines of path.
func readTopics(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening topics file: %w", err)
	}
	defer f.Close()

	var topics []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		topics = append(topics, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading topics file: %w", err)
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("topics file %s has no topics", path)
	}
	return topics, nil
}

// printProgress consumes the session's messages until the final one. Drafted
// text arrives in many chunks of one step; only the first is announced.
func printProgress(ctx context.Context, messages *bus.Registry, id string, w io.Writer, quiet bool) {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	last := 0
	for {
		msg, err := messages.Next(ctx, id)
		if err != nil {
			return
		}
		if !quiet && msg.Step != last {
			fmt.Fprintf(w, "[%s] %-18s %s\n", short, msg.Stage, msg.Title)
		}
		last = msg.Step
		if msg.IsFinal {
			return
		}
	}
}

func reportSession(w io.Writer, s *types.Session) {
	review := "not reviewed"
	if s.Review != nil {
		review = fmt.Sprintf("review %.1f/10", s.Review.Overall)
		if s.ImprovementAttempt > 0 {
			review += ", revised"
		}
	}
	fmt.Fprintf(w, "%s\t%d references\t%s\n", s.DocumentPath, len(s.References), review)
}

// promptClarifier prints the questions and reads one line of answer.
type promptClarifier struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *promptClarifier) Await(ctx context.Context, _ string, questions []string) (string, error) {
	fmt.Fprintln(p.out, "\nA few questions to sharpen the topic (press Enter to skip):")
	for i, q := range questions {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, q)
	}
	fmt.Fprint(p.out, "> ")

	type line struct {
		text string
		err  error
	}
	ch := make(chan line, 1)
	go func() {
		text, err := p.in.ReadString('\n')
		ch <- line{text, err}
	}()
	select {
	case l := <-ch:
		if strings.TrimSpace(l.text) == "" && l.err != nil {
			return "", l.err
		}
		return strings.TrimSpace(l.text), nil
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", ctx.Err()
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
