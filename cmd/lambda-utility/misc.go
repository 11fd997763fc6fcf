package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/keithlinneman/lambda-utility/internal/chat"
	"github.com/keithlinneman/lambda-utility/internal/numeric"
	"github.com/keithlinneman/lambda-utility/internal/process"
	"github.com/keithlinneman/lambda-utility/internal/timing"
)

func cmdSlack(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "slack")
	var token, channel, text, textFile string
	var o chat.Options
	fs.StringVar(&token, "token", "", "bot token (env LAMBDA_UTILITY_TOKEN)")
	fs.StringVar(&channel, "channel", "", "channel name or id (required)")
	fs.StringVar(&text, "text", "", "message text (or give it as arguments)")
	fs.StringVar(&textFile, "text-file", "", "read the message text from a file (- for stdin)")
	fs.StringVar(&o.ThreadTS, "thread-ts", "", "reply in the thread of this message timestamp")
	fs.StringVar(&o.Username, "username", "", "display name override")
	fs.StringVar(&o.IconEmoji, "icon-emoji", "", "icon emoji override, e.g. :robot_face:")
	fs.BoolVar(&o.DisableUnfurl, "no-unfurl", false, "do not unfurl links")
	if err := parseFlags(e, fs, args); err != nil {
		return err
	}
	if text == "" && fs.NArg() > 0 {
		text = strings.Join(fs.Args(), " ")
	}
	b, err := readInput(text, textFile, os.Stdin)
	if err != nil {
		return err
	}
	if channel == "" || len(b) == 0 {
		return usagef("slack: -channel and a message are required")
	}

	o.HTTPClient = e.slackClient()
	o.APIURL = e.slackURL
	p, err := chat.Post(ctx, token, channel, string(b), o)
	if err != nil {
		return err
	}
	return writeJSON(e.stdout, map[string]string{"channel": p.Channel, "ts": p.Timestamp})
}

func cmdRound(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "round")
	var ndigits int
	var modeName string
	fs.IntVar(&ndigits, "ndigits", 0, "decimal places to keep")
	fs.StringVar(&modeName, "mode", string(numeric.DefaultMode), "ROUND_DOWN|ROUND_HALF_UP|ROUND_HALF_EVEN|ROUND_CEILING|ROUND_FLOOR|ROUND_UP|ROUND_HALF_DOWN|ROUND_05UP")
	if err := parseFlags(e, fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usagef("round: at least one number is required")
	}
	mode, err := numeric.ParseMode(modeName)
	if err != nil {
		return usagef("round: %v", err)
	}
	places := max(ndigits, 0)
	for _, arg := range fs.Args() {
		d, err := numeric.RoundString(arg, ndigits, mode)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(e.stdout, d.StringFixed(int32(places))); err != nil {
			return err
		}
	}
	return nil
}

// optFlag collects -opt name[=value] into process.Flags. A value of "true"
// or "false" switches a bare flag on or off.
type optFlag []process.Flag

func (o *optFlag) String() string { return fmt.Sprint([]process.Flag(*o)) }

func (o *optFlag) Set(s string) error {
	name, val, ok := strings.Cut(s, "=")
	if !ok {
		*o = append(*o, process.Flag{Name: name, Value: true})
		return nil
	}
	switch val {
	case "true":
		*o = append(*o, process.Flag{Name: name, Value: true})
	case "false":
		*o = append(*o, process.Flag{Name: name, Value: false})
	default:
		*o = append(*o, process.Flag{Name: name, Value: val})
	}
	return nil
}

func cmdRun(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "run")
	var opts optFlag
	var timeit, quiet bool
	var dir string
	fs.Var(&opts, "opt", "append an option to the program's arguments: name, name=value, name=true|false (repeatable)")
	fs.BoolVar(&timeit, "time", false, "print the elapsed time to stderr")
	fs.BoolVar(&quiet, "quiet", false, "do not copy the program's output")
	fs.StringVar(&dir, "dir", "", "working directory")
	if err := parseFlags(e, fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usagef("run: usage: run [flags] -- program [args...]")
	}

	program := fs.Arg(0)
	// options first, then the remaining arguments as given
	params := make([]any, 0, len(opts)+1)
	for _, f := range opts {
		params = append(params, f)
	}
	params = append(params, fs.Args()[1:])
	argv := process.Optionize(params...)

	r := process.Runner{Dir: dir, Observer: e.metrics}
	var timeOut io.Writer
	if timeit {
		timeOut = e.stderr
	}
	type output struct{ stdout, stderr []byte }
	out, err := timing.Func(ctx, program, timeOut, func(ctx context.Context) (output, error) {
		so, se, err := r.Run(ctx, program, argv...)
		return output{so, se}, err
	})
	if !quiet {
		e.stdout.Write(out.stdout)
		e.stderr.Write(out.stderr)
	}
	return err
}
