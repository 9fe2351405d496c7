package main

import (
	"context"
	"errors"
	"fmt"
	"go/scanner"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/chazu/replkit/completion"
	"github.com/chazu/replkit/model"
)

const (
	promptMain  = ">> "
	promptCont  = ".. "
	historyFile = ".replkit_history"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session (default)",
	Args:  cobra.NoArgs,
	RunE:  runREPL,
}

func runREPL(_ *cobra.Command, _ []string) error {
	eval, full, err := newEvaluator()
	if err != nil {
		return err
	}
	defer eval.Close()

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetTabCompletionStyle(liner.TabPrints)
	if full != nil {
		ln.SetWordCompleter(newCompleter(full).complete)
	}

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Printf("replkit (%s mode, :help for commands)\n", cfg.Evaluator.Mode)

	for {
		source, ok := readFragment(ln)
		if !ok {
			fmt.Println()
			return nil
		}
		trimmed := strings.TrimSpace(source)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, ":") {
			if quit := handleREPLCommand(os.Stdout, eval, trimmed); quit {
				return nil
			}
			continue
		}

		ln.AppendHistory(strings.ReplaceAll(source, "\n", " "))
		r, err := eval.Evaluate(source)
		if err != nil {
			return err
		}
		printResult(os.Stdout, r)
	}
}

// readFragment reads lines until brackets balance. A blank line forces
// evaluation of what has been read so far.
func readFragment(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return b.String(), b.Len() > 0
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			b.Reset()
			continue
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			if strings.TrimSpace(line) == "" {
				return b.String(), true
			}
			b.WriteByte('\n')
		}
		b.WriteString(line)

		if complete(b.String()) {
			return b.String(), true
		}
	}
}

// complete reports whether src has no open brackets or unterminated
// literals, i.e. whether more input could not be part of it.
func complete(src string) bool {
	var s scanner.Scanner
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))

	unterminated := false
	s.Init(file, []byte(src), func(_ token.Position, msg string) {
		if strings.Contains(msg, "not terminated") {
			unterminated = true
		}
	}, 0)

	depth := 0
	for {
		_, tok, _ := s.Scan()
		switch tok {
		case token.LPAREN, token.LBRACE, token.LBRACK:
			depth++
		case token.RPAREN, token.RBRACE, token.RBRACK:
			depth--
		case token.EOF:
			return depth <= 0 && !unterminated
		}
	}
}

// handleREPLCommand handles meta-commands. It reports whether to quit.
func handleREPLCommand(w io.Writer, eval replEvaluator, cmd string) bool {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(w, "REPL Commands:")
		fmt.Fprintln(w, "  :help, :h, :?     Show this help")
		fmt.Fprintln(w, "  :imports          List imports available to fragments")
		fmt.Fprintln(w, "  :history          List evaluated fragments, oldest first")
		fmt.Fprintln(w, "  :quit, :q         Exit REPL")
		fmt.Fprintln(w, "Tab completes in full mode. A blank line ends a multi-line fragment.")
	case ":imports":
		for _, imp := range eval.Imports() {
			fmt.Fprintln(w, imp)
		}
	case ":history":
		history := eval.History()
		for i := len(history) - 1; i >= 0; i-- {
			g := history[i]
			status := "ok"
			if g.Fault() != nil {
				status = "fault"
			}
			fmt.Fprintf(w, "[%d] %s  %s\n", g.Seq(), status, firstLine(g.Fragment()))
		}
	case ":quit", ":q", ":exit":
		return true
	default:
		fmt.Fprintf(w, "Unknown command: %s (type :help for commands)\n", cmd)
	}
	return false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// completionSource is the part of the Full evaluator tab completion uses.
type completionSource interface {
	Completions(ctx context.Context, source string, caret int, trigger completion.Trigger) ([]model.Candidate, error)
	ApplyCompletion(ctx context.Context, source string, item model.Candidate, caret int, commit rune) (string, int, error)
}

type completer struct {
	src completionSource
}

func newCompleter(src completionSource) *completer {
	return &completer{src: src}
}

// complete is a liner.WordCompleter. pos counts runes. Tab reports the
// character before the caret as typed, so the trigger rules of the
// completion service apply unchanged.
func (c *completer) complete(line string, pos int) (head string, completions []string, tail string) {
	caret := byteOffset(line, pos)

	trigger := completion.Invoke()
	if caret > 0 {
		ch, _ := utf8.DecodeLastRuneInString(line[:caret])
		trigger = completion.Insertion(ch)
	}

	ctx := context.Background()
	items, err := c.src.Completions(ctx, line, caret, trigger)
	if err != nil {
		log.Warningf("completion failed: %v", err)
		return "", nil, ""
	}
	if len(items) == 0 {
		return "", nil, ""
	}

	span := items[0].Span
	if span.End() > len(line) {
		return "", nil, ""
	}
	head, tail = line[:span.Start], line[span.End():]
	for _, item := range items {
		if item.Span != span {
			continue
		}
		text, _, err := c.src.ApplyCompletion(ctx, line, item, caret, 0)
		if err != nil || !strings.HasPrefix(text, head) || !strings.HasSuffix(text, tail) || len(text) < len(head)+len(tail) {
			continue
		}
		completions = append(completions, text[len(head):len(text)-len(tail)])
	}
	return head, completions, tail
}

// byteOffset converts a rune index into line to a byte offset.
func byteOffset(line string, runes int) int {
	for i := range line {
		if runes == 0 {
			return i
		}
		runes--
	}
	return len(line)
}
