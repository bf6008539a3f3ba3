// Package subcmd wraps flag.FlagSet with usage text for one catalog
// subcommand and its positional argument.
package subcmd

import (
	"flag"
	"fmt"
	"io"
	"os"
)

const program = "catalog"

func New(name, doc string) *Subcommand {
	sc := &Subcommand{
		FlagSet: flag.NewFlagSet(name, flag.ContinueOnError),
	}
	sc.FlagSet.Usage = func() { sc.PrintUsage(sc.Output(), doc) }
	return sc
}

type Subcommand struct {
	*flag.FlagSet
	arg *arg
}

type arg struct {
	name     string
	typename string
	usage    string
}

// SetArg declares the subcommand's one positional argument.
func (sc *Subcommand) SetArg(name, typname, usage string) *Subcommand {
	sc.arg = &arg{name, typname, usage}
	return sc
}

// Parse parses flags and, if SetArg was called, requires exactly one
// positional argument after them.
func (sc *Subcommand) Parse(args []string) error {
	if err := sc.FlagSet.Parse(args); err != nil {
		return err
	}
	if sc.arg == nil {
		if sc.NArg() > 0 {
			return fmt.Errorf("unexpected argument '%s'", sc.FlagSet.Arg(0))
		}
		return nil
	}
	if sc.NArg() != 1 {
		sc.Usage()
		return fmt.Errorf("expected one <%s>, got %d arguments", sc.arg.name, sc.NArg())
	}
	return nil
}

// Value is the positional argument. It's empty before a successful Parse.
func (sc *Subcommand) Value() string {
	return sc.FlagSet.Arg(0)
}

func (sc *Subcommand) PrintUsage(w io.Writer, doc string) {
	if w == nil {
		w = os.Stderr
	}
	argSuffix := ""
	if sc.arg != nil {
		argSuffix = fmt.Sprintf(" <%s>", sc.arg.name)
	}
	fmt.Fprintf(w, "\n%s\n\n", doc)
	fmt.Fprintf(w, "  %s %s [flags]%s\n\n", program, sc.Name(), argSuffix)
	fmt.Fprintf(w, "flags:\n")
	sc.FlagSet.SetOutput(w)
	sc.FlagSet.PrintDefaults()
	if sc.arg != nil {
		fmt.Fprintf(w, "  <%s> %s\n", sc.arg.name, sc.arg.typename)
		fmt.Fprintf(w, "  \t%s\n", sc.arg.usage)
	}
}
