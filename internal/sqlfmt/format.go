package sqlfmt

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IsSelect reports whether statement is a read-only SELECT. The check is a
// case-insensitive prefix match after trimming whitespace; statements that
// open with a comment or a CTE are not considered read-only.
func IsSelect(statement string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(statement)), "select")
}

// Format returns statement with its bind parameters interpolated as SQL
// literals. The result is for display only and must never be executed.
func Format(statement string, params []any) string {
	return strings.TrimSpace(Interpolate(statement, params))
}

// Interpolate replaces positional placeholders (?, ?N and $N) with literal
// renderings of params. Placeholders without a matching parameter, and named
// placeholders, are left untouched.
func Interpolate(statement string, params []any) string {
	if len(params) == 0 {
		return statement
	}

	var b strings.Builder
	b.Grow(len(statement) + 16*len(params))
	next := 0
	for _, tok := range Tokenize(statement) {
		if tok.Kind != KindPlaceholder {
			b.WriteString(tok.Text)
			continue
		}
		idx, ok := placeholderIndex(tok.Text, &next)
		if !ok || idx < 0 || idx >= len(params) {
			b.WriteString(tok.Text)
			continue
		}
		b.WriteString(Literal(params[idx]))
	}
	return b.String()
}

// placeholderIndex maps a placeholder to a zero-based parameter index. A bare
// "?" consumes the next positional slot.
func placeholderIndex(text string, next *int) (int, bool) {
	switch {
	case text == "?":
		idx := *next
		*next++
		return idx, true
	case text[0] == '?' || text[0] == '$':
		n, err := strconv.Atoi(text[1:])
		if err != nil {
			return 0, false
		}
		return n - 1, true
	default:
		return 0, false
	}
}

// Literal renders a parameter value as a SQL literal.
func Literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quote(val)
	case []byte:
		return "X'" + hex.EncodeToString(val) + "'"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case time.Time:
		return quote(val.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return quote(val.String())
	default:
		return quote(fmt.Sprintf("%v", val))
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
