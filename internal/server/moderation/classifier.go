package moderation

import (
	"encoding/json"
	"sort"

	"github.com/doclearn/doclearn/internal/common"
)

// Payload is a raw profile update: field name to submitted JSON value.
type Payload map[string]json.RawMessage

// Classification is the disjoint split of a payload.
type Classification struct {
	Immediate Payload
	Moderated Payload
}

// ImmediateNames returns the immediate field names in sorted order.
func (c Classification) ImmediateNames() []string { return sortedKeys(c.Immediate) }

// ModeratedNames returns the moderated field names in sorted order.
func (c Classification) ModeratedNames() []string { return sortedKeys(c.Moderated) }

// Classify splits payload into immediate and moderated fields. Keys are
// canonicalised, so a legacy alias lands under its canonical name. Any key
// outside the allow-list fails the whole payload with a validation error
// naming every offender.
func Classify(payload Payload) (Classification, error) {
	if len(payload) == 0 {
		return Classification{}, common.Validation("no fields to update")
	}

	var unknown []string
	for name := range payload {
		if !IsKnownField(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Classification{}, common.Validation("disallowed fields", unknown...)
	}

	c := Classification{Immediate: Payload{}, Moderated: Payload{}}
	for _, name := range sortedKeys(payload) {
		canonical := CanonicalName(name)
		dst := c.Immediate
		if IsModerated(canonical) {
			dst = c.Moderated
		}
		if _, dup := dst[canonical]; dup {
			return Classification{}, common.Validation("field submitted twice under different names", canonical)
		}
		dst[canonical] = payload[name]
	}
	return c, nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
