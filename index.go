package hxfield

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/a-h/templ"
)

// IndexTruncateLength is the rune limit DefaultPreProcessIndex truncates to.
const IndexTruncateLength = 100

// DefaultPreProcessIndex is the listing representation used when a
// definition does not implement IndexPreprocessor:
//   - nil becomes ""
//   - strings are truncated to IndexTruncateLength runes
//   - booleans and numbers are formatted
//   - anything else is serialized as compact JSON and truncated
func DefaultPreProcessIndex(value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return Truncate(v, IndexTruncateLength)
	case bool:
		return strconv.FormatBool(v)
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return fmt.Sprint(v)
	case fmt.Stringer:
		return Truncate(v.String(), IndexTruncateLength)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return Truncate(fmt.Sprintf("%v", v), IndexTruncateLength)
		}
		return Truncate(string(data), IndexTruncateLength)
	}
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// preProcessIndex applies def's IndexPreprocessor or the default.
func preProcessIndex(def Definition, value any) any {
	if p, ok := def.(IndexPreprocessor); ok {
		return p.PreProcessIndex(value)
	}
	return DefaultPreProcessIndex(value)
}

// plainIndex renders a listing value as escaped text.
func plainIndex(v any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<span class="hxfield-index">`+templ.EscapeString(fmt.Sprint(v))+`</span>`)
		return err
	})
}
