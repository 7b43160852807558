// Command ptrs is the CLI driver for PointerScript: it turns its flags
// into interp.Options and wires interp.Loader (spec.md §1 names this an
// external collaborator; only its hook points into interp are
// prescribed). It does not parse or run the named file.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ptrs-lang/ptrs/interp"
)

var (
	flagSafety    bool
	flagStackSize int
	flagVerbose   bool

	log = logrus.New()
)

func main() {
	root := &cobra.Command{
		Use:   "ptrs <file>",
		Short: "Run a PointerScript program",
		Args:  cobra.ExactArgs(1),
		RunE:  runFile,
	}
	root.Flags().BoolVar(&flagSafety, "safety", true, "enable runtime bounds/type assertions")
	root.Flags().IntVar(&flagStackSize, "stack-size", 0, "per-scope limit in Var slots (0 = default 8<<20)")
	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable diagnostic logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(3)
	}
}

func runFile(cmd *cobra.Command, args []string) error {
	if flagVerbose {
		log.SetLevel(logrus.DebugLevel)
	}
	path := args[0]
	log.WithField("file", path).Debug("loading program")

	// Parsing is an external collaborator (spec.md §1); no parser is
	// part of this repository, so the Loader wired here reports an
	// error for every `import "x.ptrs"` resolution.
	interp.Loader = func(canonical string) (map[string]interp.Var, error) {
		return nil, fmt.Errorf("no parser wired: cannot resolve %q", canonical)
	}

	it := interp.New(interp.Options{
		Safety:       flagSafety,
		StackLimit:   flagStackSize,
		Unrestricted: true,
	})

	_ = it // the parsed program AST is supplied by the external parser;
	// see DESIGN.md for why main.go stops short of invoking interp.Run
	// here (no in-repo lexer/parser to produce the AST from path).
	log.WithField("file", path).Info("program loaded (parser not wired in this build)")
	return nil
}
