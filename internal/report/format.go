package report

import (
	"encoding/base64"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

// FormatValue renders v on a single line. Containers are rendered inline
// with dictionary keys in ascending order.
func FormatValue(v plistdiff.Value, theme Theme) string {
	var sb strings.Builder
	writeValue(&sb, v, theme)
	return sb.String()
}

func writeValue(sb *strings.Builder, v plistdiff.Value, theme Theme) {
	switch x := v.(type) {
	case plistdiff.String:
		sb.WriteString(theme.SyntaxHighlight(v, strconv.Quote(string(x))))
	case plistdiff.Boolean:
		sb.WriteString(theme.SyntaxHighlight(v, strconv.FormatBool(bool(x))))
	case plistdiff.Data:
		sb.WriteString(theme.SyntaxHighlight(v, "<data "+humanize.Bytes(uint64(len(x)))+">"))
	case plistdiff.Date:
		sb.WriteString(theme.SyntaxHighlight(v, x.UTC().Format(time.RFC3339)))
	case plistdiff.Integer:
		sb.WriteString(theme.SyntaxHighlight(v, x.String()))
	case plistdiff.Real:
		sb.WriteString(theme.SyntaxHighlight(v, strconv.FormatFloat(float64(x), 'g', -1, 64)))
	case plistdiff.UID:
		sb.WriteString(theme.SyntaxHighlight(v, "UID("+strconv.FormatUint(uint64(x), 10)+")"))
	case plistdiff.Array:
		sb.WriteString("[")
		for i, item := range x {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, item, theme)
		}
		sb.WriteString("]")
	case plistdiff.Dictionary:
		sb.WriteString("{")
		for i, key := range slices.Sorted(maps.Keys(x)) {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(key + ": ")
			writeValue(sb, x[key], theme)
		}
		sb.WriteString("}")
	default:
		panic(fmt.Sprintf("report: unrecognized value variant %T", v))
	}
}

// plainValue converts v into the types yaml.v3 encodes natively.
func plainValue(v plistdiff.Value) any {
	switch x := v.(type) {
	case nil:
		return nil
	case plistdiff.String:
		return string(x)
	case plistdiff.Boolean:
		return bool(x)
	case plistdiff.Data:
		return base64.StdEncoding.EncodeToString(x)
	case plistdiff.Date:
		return x.UTC()
	case plistdiff.Integer:
		if i, ok := x.Int64(); ok {
			return i
		}
		u, _ := x.Uint64()
		return u
	case plistdiff.Real:
		return float64(x)
	case plistdiff.UID:
		return map[string]any{"CF$UID": uint64(x)}
	case plistdiff.Array:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = plainValue(item)
		}
		return out
	case plistdiff.Dictionary:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = plainValue(item)
		}
		return out
	default:
		panic(fmt.Sprintf("report: unrecognized value variant %T", v))
	}
}
