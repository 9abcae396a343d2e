// Package keys builds structural cache keys.
//
// A key is an ordered list of segments. Two keys are equal when every segment
// is structurally equal, so keys rebuilt from the same arguments always map to
// the same cache slot. A key is a prefix of another when its segments match the
// leading segments of the other, which is what coarse invalidation relies on.
package keys

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/hashstructure/v2"
)

// Key identifies a cacheable request.
type Key struct {
	segments []any
	hashes   []uint64
}

// New builds a key from segments. Segments may be strings, numbers, bools,
// structs or maps; anything hashstructure cannot walk is rejected.
func New(segments ...any) (Key, error) {
	k := Key{
		segments: make([]any, len(segments)),
		hashes:   make([]uint64, len(segments)),
	}
	for i, seg := range segments {
		h, err := hashstructure.Hash(seg, hashstructure.FormatV2, nil)
		if err != nil {
			return Key{}, fmt.Errorf("hash key segment %d: %w", i, err)
		}
		k.segments[i] = seg
		k.hashes[i] = h
	}
	return k, nil
}

// Must is New for segments known to be hashable. It panics otherwise.
func Must(segments ...any) Key {
	k, err := New(segments...)
	if err != nil {
		panic(err)
	}
	return k
}

// Len returns the number of segments.
func (k Key) Len() int { return len(k.hashes) }

// IsZero reports whether the key has no segments.
func (k Key) IsZero() bool { return len(k.hashes) == 0 }

// Segments returns a copy of the key segments.
func (k Key) Segments() []any {
	out := make([]any, len(k.segments))
	copy(out, k.segments)
	return out
}

// Class returns the first segment when it is a string. Cache options are
// configured per class.
func (k Key) Class() string {
	if len(k.segments) == 0 {
		return ""
	}
	s, _ := k.segments[0].(string)
	return s
}

// Equal reports structural equality.
func (k Key) Equal(other Key) bool {
	if len(k.hashes) != len(other.hashes) {
		return false
	}
	return k.HasPrefix(other)
}

// HasPrefix reports whether prefix matches the leading segments of k.
// The empty key is a prefix of every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix.hashes) > len(k.hashes) {
		return false
	}
	for i, h := range prefix.hashes {
		if k.hashes[i] != h {
			return false
		}
	}
	return true
}

// Append returns a new key with extra segments added.
func (k Key) Append(segments ...any) (Key, error) {
	tail, err := New(segments...)
	if err != nil {
		return Key{}, err
	}
	return Key{
		segments: append(k.Segments(), tail.segments...),
		hashes:   append(append([]uint64(nil), k.hashes...), tail.hashes...),
	}, nil
}

// ID returns the slot identifier used by the cache and the in-flight table.
func (k Key) ID() string {
	var sb strings.Builder
	for i, h := range k.hashes {
		if i > 0 {
			sb.WriteByte('/')
		}
		sb.WriteString(strconv.FormatUint(h, 16))
	}
	return sb.String()
}

// Strings renders each segment for persistence.
func (k Key) Strings() []string {
	out := make([]string, len(k.segments))
	for i, seg := range k.segments {
		if s, ok := seg.(string); ok {
			out[i] = s
			continue
		}
		b, err := json.Marshal(seg)
		if err != nil {
			out[i] = fmt.Sprint(seg)
			continue
		}
		out[i] = string(b)
	}
	return out
}

// String renders the key as JSON for logs.
func (k Key) String() string {
	b, err := json.Marshal(k.segments)
	if err != nil {
		return fmt.Sprint(k.segments)
	}
	return string(b)
}
