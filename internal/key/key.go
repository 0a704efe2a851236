// Package key derives stable cache identities and artifact file names.
//
// An identity is a slugified "function::arguments" string. Two invocations
// with the same function name and argument set produce the same identity,
// which is what makes them "the same cached computation" to the index.
//
// Argument rendering is deterministic: arguments are canonicalized through a
// JSON round trip before rendering, so native Go values ([]int, float64,
// typed maps) produce the same identity as the json.Number form they decode
// to when a record is read back off disk. Map keys are sorted; numbers keep
// their JSON literal form.
package key

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Extension is the suffix of artifact files. Recovery scanning enumerates
// candidates by this extension without parsing every file in a scope.
const Extension = ".cache"

var (
	// Decompose, drop combining marks, recompose. Turns "café" into "cafe".
	asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	disallowed = regexp.MustCompile(`[^\w\s:{}\[\],-]`)
	dashRuns   = regexp.MustCompile(`[-\s]+`)
)

// Slugify normalizes a string into a filesystem-safe lowercase slug.
// Unicode is NFKD-folded to ASCII, characters outside word/separator/bracket
// classes are removed, and runs of whitespace or hyphens collapse to a
// single hyphen.
func Slugify(s string) string {
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.TrimSpace(folded))
	folded = disallowed.ReplaceAllString(folded, "")
	return dashRuns.ReplaceAllString(folded, "-")
}

// ForCall derives the identity for one logical computation: a function name
// plus its argument set. The result is stable across processes and across
// persistence: recomputing the identity from arguments decoded off disk
// yields the same string.
func ForCall(function string, args map[string]any) string {
	return Slugify(function + "::" + renderArgs(canonicalize(args)))
}

// canonicalize round-trips an argument map through JSON with json.Number
// decoding. Records persist their arguments as JSON, so this is exactly the
// form recovery sees when it recomputes identities from disk; deriving the
// identity from the same form keeps the key function in agreement with
// itself. Unmarshalable arguments pass through untouched (persisting such a
// record fails before any identity is used).
func canonicalize(args map[string]any) map[string]any {
	if len(args) == 0 {
		return args
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return args
	}
	return out
}

// ArtifactName returns the file name holding the record of function(args)
// executed at the given timestamp.
func ArtifactName(identity string, timestamp int64) string {
	return identity + "::" + strconv.FormatInt(timestamp, 10) + Extension
}

// Timestamp returns the current time as nanoseconds since the epoch.
// Cache arbitration is "latest eligible timestamp wins", so the source must
// be fine-grained enough that two folds rarely collide.
func Timestamp() int64 {
	return time.Now().UnixNano()
}

// renderArgs renders an argument map as "{k:v,...}" with sorted keys.
func renderArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(renderValue(args[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func renderValue(v any) string {
	switch t := v.(type) {
	case map[string]any:
		return renderArgs(t)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = renderValue(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%v", t)
	}
}
