package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/replkit/script"
)

var evalCmd = &cobra.Command{
	Use:   "eval <file|->...",
	Short: "Evaluate fragments from files or stdin",
	Long: `Evaluate each file as a sequence of fragments separated by blank lines.
All files share one evaluator, so later fragments see earlier declarations.
Use - to read from stdin.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

func runEval(_ *cobra.Command, args []string) error {
	eval, _, err := newEvaluator()
	if err != nil {
		return err
	}
	defer eval.Close()

	failed := 0
	for _, arg := range args {
		data, err := readSource(arg)
		if err != nil {
			return err
		}
		for _, fragment := range splitFragments(string(data)) {
			r, err := eval.Evaluate(fragment)
			if err != nil {
				return err
			}
			printResult(os.Stdout, r)
			if r.Outcome() != script.OutcomeValue {
				failed++
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d fragment(s) failed", failed)
	}
	return nil
}

func readSource(arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", arg, err)
	}
	return data, nil
}

// splitFragments splits src at blank lines that are outside brackets.
func splitFragments(src string) []string {
	var fragments []string
	var cur []string
	flush := func() {
		if f := strings.TrimSpace(strings.Join(cur, "\n")); f != "" {
			fragments = append(fragments, f)
		}
		cur = cur[:0]
	}
	for _, line := range strings.Split(src, "\n") {
		if strings.TrimSpace(line) == "" && complete(strings.Join(cur, "\n")) {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return fragments
}
