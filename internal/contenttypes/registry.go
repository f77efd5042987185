// Package contenttypes holds the fixed taxonomy of post templates per platform.
package contenttypes

import (
	"sort"

	"studio/internal/core"
)

// Keys of the custom types that take free-form instructions.
const (
	CustomInstagram  = "custom"
	CustomNewsletter = "custom-newsletter"
)

// Registry is an immutable lookup of content types keyed by platform and type key.
type Registry struct {
	byKey   map[registryKey]core.ContentType
	ordered map[core.Platform][]string
}

type registryKey struct {
	platform core.Platform
	key      string
}

// New builds a registry from the given types. Later duplicates replace earlier ones.
func New(types []core.ContentType) *Registry {
	r := &Registry{
		byKey:   make(map[registryKey]core.ContentType, len(types)),
		ordered: make(map[core.Platform][]string),
	}
	for _, t := range types {
		k := registryKey{t.Platform, t.Key}
		if _, exists := r.byKey[k]; !exists {
			r.ordered[t.Platform] = append(r.ordered[t.Platform], t.Key)
		}
		t.Fields = append([]string(nil), t.Fields...)
		r.byKey[k] = t
	}
	return r
}

var defaultRegistry = New(builtinTypes())

// Default returns the registry of built-in content types.
func Default() *Registry {
	return defaultRegistry
}

// Lookup returns the content type for platform and key. The returned value
// carries its own copy of the field list.
func (r *Registry) Lookup(platform core.Platform, key string) (core.ContentType, bool) {
	t, ok := r.byKey[registryKey{platform, key}]
	if !ok {
		return core.ContentType{}, false
	}
	t.Fields = append([]string(nil), t.Fields...)
	return t, true
}

// List returns the content types of a platform in declaration order.
func (r *Registry) List(platform core.Platform) []core.ContentType {
	keys := r.ordered[platform]
	out := make([]core.ContentType, 0, len(keys))
	for _, k := range keys {
		t, _ := r.Lookup(platform, k)
		out = append(out, t)
	}
	return out
}

// PlatformOf infers the platform of a stored story type key. Keys that are
// not LinkedIn or newsletter types belong to Instagram.
func (r *Registry) PlatformOf(key string) core.Platform {
	for _, p := range []core.Platform{core.PlatformLinkedIn, core.PlatformNewsletter} {
		if _, ok := r.byKey[registryKey{p, key}]; ok {
			return p
		}
	}
	return core.PlatformInstagram
}

// FieldOrder returns the order in which a post's fields are rendered. Fixed
// types use their declared order followed by any unknown keys; custom types
// and unknown story types fall back to sorted keys.
func (r *Registry) FieldOrder(post *core.Post) []string {
	platform := post.Platform
	if platform == "" {
		platform = r.PlatformOf(post.StoryType)
	}

	var order []string
	seen := make(map[string]bool, len(post.Fields))
	if t, ok := r.Lookup(platform, post.StoryType); ok {
		for _, f := range t.Fields {
			if _, present := post.Fields[f]; present {
				order = append(order, f)
				seen[f] = true
			}
		}
	}

	var rest []string
	for k := range post.Fields {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// Tones returns the writing tones offered for every platform.
func Tones() []core.Tone {
	return []core.Tone{
		{ID: "professionell", Name: "Professionell", Description: "Auktoritativ men varm"},
		{ID: "pedagogisk", Name: "Pedagogisk", Description: "Förklarande och tydlig"},
		{ID: "personlig", Name: "Personlig", Description: "Nära och relaterbar"},
		{ID: "energisk", Name: "Energisk", Description: "Engagerande och motiverande"},
	}
}

// DefaultCount is the number of posts requested per platform when the caller
// does not override it.
func DefaultCount(platform core.Platform) int {
	switch platform {
	case core.PlatformNewsletter:
		return 1
	case core.PlatformLinkedIn:
		return 3
	default:
		return 7
	}
}
