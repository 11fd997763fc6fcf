// Package timing measures wall time around a block or a call and reports it
// through the context logger and an optional writer.
package timing

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/keithlinneman/lambda-utility/internal/log"
)

type Options struct {
	// Round to Places decimal places (ties to even) before reporting.
	Round  bool
	Places int

	// Out, when set, receives one line: Prefix, seconds, Postfix. Postfix is
	// written whether or not Round is set.
	Out     io.Writer
	Prefix  string
	Postfix string
}

// now is swapped in tests.
var now = time.Now

// Measure starts a timer. The returned func stops it, reports the elapsed
// time and returns it. Calling it more than once reports again.
func Measure(ctx context.Context, name string, o Options) func() time.Duration {
	start := now()
	return func() time.Duration {
		d := now().Sub(start)
		secs := Seconds(d, o.Round, o.Places)
		log.FromContext(ctx).Debug(ctx, "elapsed", "name", name, "seconds", secs)
		if o.Out != nil {
			fmt.Fprintf(o.Out, "%s%s%s\n", o.Prefix, secs, o.Postfix)
		}
		return d
	}
}

// Seconds formats d in seconds, optionally rounded to places.
func Seconds(d time.Duration, round bool, places int) string {
	if !round {
		return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	}
	if places < 0 {
		places = 0
	}
	return decimal.NewFromFloat(d.Seconds()).RoundBank(int32(places)).String()
}

// Func times fn and logs "'name' function: N.NNNN seconds" at debug,
// writing the same line to out when it is non-nil.
func Func[T any](ctx context.Context, name string, out io.Writer, fn func(context.Context) (T, error)) (T, error) {
	start := now()
	v, err := fn(ctx)
	d := now().Sub(start)

	line := fmt.Sprintf("'%s' function: %.4f seconds", name, d.Seconds())
	log.FromContext(ctx).Debug(ctx, line, "name", name, "duration", d, "error", err != nil)
	if out != nil {
		fmt.Fprintln(out, line)
	}
	return v, err
}
