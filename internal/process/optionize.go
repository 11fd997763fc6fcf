package process

import (
	"fmt"
	"strconv"
)

// Flag is a named option. A true Value emits only Name; false or nil drops
// the flag; anything else emits Name followed by the formatted Value.
type Flag struct {
	Name  string
	Value any
}

// Optionize flattens params into an argument list. Strings pass through,
// numbers and fmt.Stringers are formatted, slices are flattened element by
// element, and Flags follow the rules on Flag.
//
//	Optionize("-y", Flag{"-pix_fmt", "yuv420p"}, Flag{"-framerate", 29.97}, Flag{"-an", true}, Flag{"-x", false})
//	// ["-y", "-pix_fmt", "yuv420p", "-framerate", "29.97", "-an"]
func Optionize(params ...any) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		switch v := p.(type) {
		case Flag:
			switch fv := v.Value.(type) {
			case nil:
			case bool:
				if fv {
					out = append(out, v.Name)
				}
			default:
				out = append(out, v.Name, format(fv))
			}
		case []string:
			out = append(out, v...)
		case []any:
			for _, e := range v {
				out = append(out, format(e))
			}
		case nil:
		default:
			out = append(out, format(v))
		}
	}
	return out
}

func format(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
