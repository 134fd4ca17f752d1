package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/quillblog/quill/internal/apperr"
)

const (
	// Separator joins the segments of a setting key.
	Separator = "."
	// MaxKeyLength is the longest key the store accepts, in bytes.
	MaxKeyLength = 191
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// Entry is one flat setting: a dotted key, its value and its group.
type Entry struct {
	Key   string
	Value Value
	Group string
}

// ValidKey reports whether key is a well formed dotted path of at most
// MaxKeyLength bytes.
func ValidKey(key string) bool {
	return len(key) <= MaxKeyLength && keyPattern.MatchString(key)
}

// Flatten converts obj into flat entries. Objects are walked recursively,
// every other value (arrays included) becomes one entry. Struct fields are
// visited in declaration order and map keys in sorted order, so the result is
// deterministic.
func Flatten(obj any, group, prefix string) ([]Entry, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnserializable, err) //nolint:errorlint // keep the kind
	}

	return FlattenJSON(data, group, prefix)
}

// FlattenJSON flattens a JSON object, emitting entries in document order.
func FlattenJSON(data []byte, group, prefix string) ([]Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, apperr.Validation("flatten: %v", err)
	}

	if tok != json.Delim('{') {
		return nil, apperr.Validation("flatten: top level value must be an object")
	}

	entries := make([]Entry, 0)
	if err = flattenObject(dec, group, prefix, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

// flattenObject walks the members of an object whose opening brace was already read.
func flattenObject(dec *json.Decoder, group, prefix string, out *[]Entry) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return apperr.Validation("flatten: %v", err)
		}

		name, _ := tok.(string)
		if name == "" || strings.Contains(name, Separator) {
			return apperr.Validation("flatten: invalid property name %q below %q", name, prefix)
		}

		var raw json.RawMessage
		if err = dec.Decode(&raw); err != nil {
			return apperr.Validation("flatten: %v", err)
		}

		path := prefix + name

		if isNonEmptyObject(raw) {
			sub := json.NewDecoder(bytes.NewReader(raw))
			if _, err = sub.Token(); err != nil {
				return apperr.Validation("flatten: %v", err)
			}

			if err = flattenObject(sub, group, path+Separator, out); err != nil {
				return err
			}

			continue
		}

		v, err := FromJSON(raw)
		if err != nil {
			return fmt.Errorf("flatten %s: %w", path, err)
		}

		*out = append(*out, Entry{Key: path, Value: v, Group: group})
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return apperr.Validation("flatten: %v", err)
	}

	return nil
}

func isNonEmptyObject(raw json.RawMessage) bool {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return false
	}

	b := buf.Bytes()

	return len(b) > 2 && b[0] == '{'
}

// Unflatten rebuilds the nested object described by entries. Entries are
// applied in key order whatever order they arrive in: a deeper key replaces a
// scalar stored at one of its prefixes, and for duplicate keys the last one wins.
func Unflatten(entries []Entry) map[string]any {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})

	root := make(map[string]any)

	for _, e := range sorted {
		parts := strings.Split(e.Key, Separator)
		node := root

		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[p] = child
			}

			node = child
		}

		node[parts[len(parts)-1]] = e.Value.Decode()
	}

	return root
}

// GroupView unflattens entries per group. Keys that start with their own
// group name are stored below the group without repeating it, so
// "general.siteName" in group "general" reads as {"general": {"siteName": ...}}.
// A key keeps its group name when dropping it would land on the path of
// another key of the group.
func GroupView(entries []Entry) map[string]any {
	byGroup := make(map[string][]Entry)

	for _, e := range entries {
		byGroup[e.Group] = append(byGroup[e.Group], e)
	}

	out := make(map[string]any, len(byGroup))
	for g, es := range byGroup {
		out[g] = Unflatten(shorten(es, g))
	}

	return out
}

// shorten drops the group prefix from the keys of entries unless that makes
// two keys equal.
func shorten(entries []Entry, group string) []Entry {
	var (
		prefix    = group + Separator
		out       = make([]Entry, len(entries))
		shortened = make([]bool, len(entries))
	)

	for i, e := range entries {
		out[i] = e

		if key, ok := strings.CutPrefix(e.Key, prefix); ok {
			out[i].Key = key
			shortened[i] = true
		}
	}

	// restoring one key can clash with another shortened key, repeat until stable
	for changed := true; changed; {
		changed = false

		seen := make(map[string]int, len(out))
		for _, e := range out {
			seen[e.Key]++
		}

		for i := range out {
			if shortened[i] && seen[out[i].Key] > 1 {
				out[i].Key = entries[i].Key
				shortened[i] = false
				changed = true
			}
		}
	}

	return out
}

// Lookup walks a nested object along a dotted key.
func Lookup(obj map[string]any, key string) (any, bool) {
	var node any = obj

	for _, p := range strings.Split(key, Separator) {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}

		if node, ok = m[p]; !ok {
			return nil, false
		}
	}

	return node, true
}
