package speech

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/text/language"

	"github.com/nikhilbhutani/speechgateway/internal/config"
	"github.com/nikhilbhutani/speechgateway/internal/stt"
)

var (
	ErrLanguageNotSupported = errors.New("language not supported")
	ErrEncodingNotSupported = errors.New("encoding not supported for language")
)

// Binding registers a recognizer for a language and the encodings it serves
// in that language.
type Binding struct {
	Language   string
	Encodings  []Encoding
	Recognizer stt.Recognizer
}

type routeKey struct {
	language string
	encoding Encoding
}

// Registry maps (language, encoding) to a recognizer. It is built once and
// never modified, so lookups need no locking.
type Registry struct {
	routes    map[routeKey]stt.Recognizer
	languages map[string]bool
}

func NewRegistry(bindings []Binding) (*Registry, error) {
	r := &Registry{
		routes:    make(map[routeKey]stt.Recognizer),
		languages: make(map[string]bool),
	}
	for _, b := range bindings {
		if b.Recognizer == nil {
			return nil, fmt.Errorf("language %s: nil recognizer", b.Language)
		}
		lang, err := canonicalLanguage(b.Language)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", b.Recognizer.Name(), err)
		}
		for _, enc := range b.Encodings {
			if _, ok := ParseEncoding(string(enc)); !ok {
				return nil, fmt.Errorf("backend %s: unsupported encoding %q", b.Recognizer.Name(), enc)
			}
			key := routeKey{language: lang, encoding: enc}
			if prev, dup := r.routes[key]; dup {
				return nil, fmt.Errorf("language %s encoding %s registered by both %s and %s",
					lang, enc, prev.Name(), b.Recognizer.Name())
			}
			r.routes[key] = b.Recognizer
		}
		r.languages[lang] = true
	}
	if len(r.routes) == 0 {
		return nil, errors.New("registry has no routes")
	}
	return r, nil
}

// RegistryFromConfig builds recognizers for every configured backend and
// registers them.
func RegistryFromConfig(ctx context.Context, f *config.BackendsFile) (*Registry, error) {
	var bindings []Binding
	for _, b := range f.Backends {
		rec, err := stt.FromConfig(ctx, b)
		if err != nil {
			return nil, err
		}
		encodings := make([]Encoding, 0, len(b.Encodings))
		for _, e := range b.Encodings {
			encodings = append(encodings, Encoding(e))
		}
		for _, lang := range b.Languages {
			bindings = append(bindings, Binding{Language: lang, Encodings: encodings, Recognizer: rec})
		}
	}
	return NewRegistry(bindings)
}

// Lookup finds the recognizer for a language tag and encoding. An exact tag
// match wins; otherwise the tag's base language is tried, so en-GB falls
// back to a backend registered for en.
func (r *Registry) Lookup(languageCode string, enc Encoding) (stt.Recognizer, error) {
	m, err := r.Match(languageCode, enc)
	if err != nil {
		return nil, err
	}
	return m.Recognizer, nil
}

// Route is a resolved registry entry. Language is the registered tag that
// matched, never the caller's spelling of it.
type Route struct {
	Recognizer stt.Recognizer
	Language   string
}

// Match resolves languageCode and enc the same way Lookup does and also
// reports which registered language served the request.
func (r *Registry) Match(languageCode string, enc Encoding) (Route, error) {
	tag, err := language.Parse(languageCode)
	if err != nil {
		return Route{}, fmt.Errorf("%w: %q", ErrLanguageNotSupported, languageCode)
	}

	candidates := []string{tag.String()}
	if base, conf := tag.Base(); conf != language.No && base.String() != tag.String() {
		candidates = append(candidates, base.String())
	}

	knownLanguage := false
	for _, lang := range candidates {
		if !r.languages[lang] {
			continue
		}
		knownLanguage = true
		if rec, ok := r.routes[routeKey{language: lang, encoding: enc}]; ok {
			return Route{Recognizer: rec, Language: lang}, nil
		}
	}
	if knownLanguage {
		return Route{}, fmt.Errorf("%w: %s with %s", ErrEncodingNotSupported, languageCode, enc)
	}
	return Route{}, fmt.Errorf("%w: %q", ErrLanguageNotSupported, languageCode)
}

// Languages lists the registered language tags in sorted order.
func (r *Registry) Languages() []string {
	out := make([]string, 0, len(r.languages))
	for l := range r.languages {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func canonicalLanguage(code string) (string, error) {
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid language code %q: %w", code, err)
	}
	return tag.String(), nil
}
