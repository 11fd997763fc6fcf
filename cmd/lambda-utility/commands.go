package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/keithlinneman/lambda-utility/internal/cfg"
)

// errUsage marks a bad invocation; main prints it and exits 2.
var errUsage = errors.New("usage error")

func usagef(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errUsage)
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"list", "list archive members that pass the filters", cmdList},
		{"extract", "extract archive members to a directory", cmdExtract},
		{"sequence", "list numbered members (frame001.png ...) in numeric order", cmdSequence},
		{"invoke", "invoke a Lambda function", cmdInvoke},
		{"sqs-url", "resolve a queue name to its URL", cmdSQSURL},
		{"sqs-send", "send a message to a queue", cmdSQSSend},
		{"sqs-receive", "receive messages from a queue", cmdSQSReceive},
		{"sqs-delete", "delete a received message", cmdSQSDelete},
		{"sqs-visibility", "change the visibility timeout of a received message", cmdSQSVisibility},
		{"slack", "post a message to a Slack channel", cmdSlack},
		{"round", "round numbers in decimal with a chosen rounding mode", cmdRound},
		{"run", "run an external program, optionally timing it", cmdRun},
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// newFlagSet returns a subcommand flag set whose unset flags fall back to
// LAMBDA_UTILITY_<FLAG> once parsed with parseFlags.
func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func parseFlags(e *env, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usagef("%s: %v", fs.Name(), err)
	}
	cfg.FillFromEnv(fs, cfg.EnvPrefix, func(format string, args ...any) {
		fmt.Fprintf(e.stderr, format+"\n", args...)
	})
	return nil
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(s string) error {
	*l = append(*l, s)
	return nil
}

// readInput returns inline when set, else the contents of file ("-" is stdin).
func readInput(inline, file string, stdin io.Reader) ([]byte, error) {
	switch {
	case inline != "" && file != "":
		return nil, usagef("give the value inline or as a file, not both")
	case inline != "":
		return []byte(inline), nil
	case file == "-":
		return io.ReadAll(stdin)
	case file != "":
		return os.ReadFile(file)
	default:
		return nil, nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
