// Package numeric rounds numbers in decimal rather than binary, so 2.675
// rounds to 2.68 the way it reads.
package numeric

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/keithlinneman/lambda-utility/internal/xerrors"
)

type Mode string

const (
	Down     Mode = "ROUND_DOWN"      // toward zero
	Up       Mode = "ROUND_UP"        // away from zero
	Ceiling  Mode = "ROUND_CEILING"   // toward +inf
	Floor    Mode = "ROUND_FLOOR"     // toward -inf
	HalfUp   Mode = "ROUND_HALF_UP"   // nearest, ties away from zero
	HalfDown Mode = "ROUND_HALF_DOWN" // nearest, ties toward zero
	HalfEven Mode = "ROUND_HALF_EVEN" // nearest, ties to even
	ZeroFive Mode = "ROUND_05UP"      // toward zero, unless that leaves a final 0 or 5
)

// DefaultMode is used when no mode is given.
const DefaultMode = HalfUp

var ErrUnknownMode = errors.New("unknown rounding mode")

var modes = []Mode{Down, Up, Ceiling, Floor, HalfUp, HalfDown, HalfEven, ZeroFive}

// ParseMode accepts a mode name in any case, with or without the ROUND_
// prefix. Empty means DefaultMode.
func ParseMode(s string) (Mode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DefaultMode, nil
	}
	if !strings.HasPrefix(s, "ROUND_") {
		s = "ROUND_" + s
	}
	for _, m := range modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", xerrors.Markf(ErrUnknownMode, "%q", s)
}

// Round rounds number to ndigits decimal places. The float is first taken at
// its shortest decimal representation. Negative ndigits round to a whole number.
func Round(number float64, ndigits int, mode Mode) (float64, error) {
	d, err := RoundDecimal(decimal.NewFromFloat(number), ndigits, mode)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

// RoundString is Round over a decimal literal, avoiding any float step.
func RoundString(number string, ndigits int, mode Mode) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(number))
	if err != nil {
		return decimal.Decimal{}, xerrors.Wrapf(err, "parse number %q", number)
	}
	return RoundDecimal(d, ndigits, mode)
}

func RoundDecimal(d decimal.Decimal, ndigits int, mode Mode) (decimal.Decimal, error) {
	if ndigits < 0 {
		ndigits = 0
	}
	places := int32(ndigits)

	switch mode {
	case "", HalfUp:
		return d.Round(places), nil
	case Down:
		return d.RoundDown(places), nil
	case Up:
		return d.RoundUp(places), nil
	case Ceiling:
		return d.RoundCeil(places), nil
	case Floor:
		return d.RoundFloor(places), nil
	case HalfEven:
		return d.RoundBank(places), nil
	case HalfDown:
		return roundHalfDown(d, places), nil
	case ZeroFive:
		return round05Up(d, places), nil
	default:
		return decimal.Decimal{}, xerrors.Markf(ErrUnknownMode, "%q", string(mode))
	}
}

var (
	half = decimal.New(5, -1)
	ten  = decimal.NewFromInt(10)
)

func roundHalfDown(d decimal.Decimal, places int32) decimal.Decimal {
	down := d.RoundDown(places)
	// distance past the truncation point, in units of the last kept digit
	frac := d.Sub(down).Abs().Shift(places)
	if frac.GreaterThan(half) {
		return d.RoundUp(places)
	}
	return down
}

func round05Up(d decimal.Decimal, places int32) decimal.Decimal {
	down := d.RoundDown(places)
	if down.Equal(d) {
		return down
	}
	last := down.Shift(places).Abs().Mod(ten)
	if last.IsZero() || last.Equal(decimal.NewFromInt(5)) {
		return d.RoundUp(places)
	}
	return down
}
