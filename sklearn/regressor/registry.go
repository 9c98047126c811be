// Package regressor resolves regressor specifications such as
// "forest n_estimators=50 max_depth=8" into fresh, configured regressors.
//
// Each kind registers a typed configuration struct with its defaults and a
// builder. Parameters are decoded into that struct when the specification is
// parsed, so a typo or an ill-typed value fails at configuration time instead
// of in the middle of a fit.
package regressor

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"

	"github.com/YuminosukeSato/labelembed/core/model"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

// DefaultKind is used when no specification is given.
const DefaultKind = "forest"

type entry struct {
	decode func(params map[string]any) (any, error)
	build  func(cfg any) (model.Regressor, error)
}

var (
	mu       sync.RWMutex
	registry = map[string]entry{}
)

// Register makes a regressor kind available to Parse and FromMap.
// defaults returns the configuration used when a parameter is not given; build
// creates a new, unfitted regressor from a decoded configuration. If C has a
// Validate() error method it runs after decoding. Register panics if kind is
// empty or already registered.
func Register[C any](kind string, defaults func() C, build func(C) (model.Regressor, error)) {
	if kind == "" || strings.ContainsAny(kind, " \t=") {
		panic(fmt.Sprintf("regressor: invalid kind %q", kind))
	}

	e := entry{
		decode: func(params map[string]any) (any, error) {
			cfg := defaults()
			if err := decodeParams(params, &cfg); err != nil {
				return nil, err
			}
			if v, ok := any(&cfg).(interface{ Validate() error }); ok {
				if err := v.Validate(); err != nil {
					return nil, err
				}
			}
			return cfg, nil
		},
		build: func(cfg any) (model.Regressor, error) {
			return build(cfg.(C))
		},
	}

	mu.Lock()
	defer mu.Unlock()
	if _, dup := registry[kind]; dup {
		panic("regressor: Register called twice for kind " + kind)
	}
	registry[kind] = e
}

// Kinds returns the registered kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	return kindsLocked()
}

func lookup(kind string) (entry, error) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := registry[kind]
	if !ok {
		return entry{}, errors.NewValidationError("regressor", "unknown kind (known: "+strings.Join(kindsLocked(), ", ")+")", kind)
	}
	return e, nil
}

func kindsLocked() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// decodeParams loads the flat parameter map through koanf and decodes it into
// out with weak typing ("50" -> 50) and unknown keys rejected.
func decodeParams(params map[string]any, out any) error {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(params, "."), nil); err != nil {
		return errors.Wrap(err, "regressor: load params")
	}
	err := k.UnmarshalWithConf("", out, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           out,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		},
	})
	if err != nil {
		return errors.NewValidationError("regressor", err.Error(), params)
	}
	return nil
}

// Spec is a parsed, validated regressor specification. It is immutable and
// safe for concurrent use; every call to New returns an independent regressor.
type Spec struct {
	kind   string
	params map[string]any
	cfg    any
	entry  entry
}

// Parse reads "kind key=value ...". An empty kind, an unknown kind, a token
// without '=', an unknown key or an ill-typed value is a ValidationError.
func Parse(s string) (*Spec, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, errors.NewValidationError("regressor", "specification is empty", s)
	}

	params := make(map[string]any, len(fields)-1)
	for _, tok := range fields[1:] {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			return nil, errors.NewValidationError("regressor", "expected key=value", tok)
		}
		if _, dup := params[key]; dup {
			return nil, errors.NewValidationError("regressor", "duplicate parameter", key)
		}
		params[key] = value
	}
	return FromMap(fields[0], params)
}

// FromMap builds a Spec from an already-structured parameter map, as found in
// YAML configuration files.
func FromMap(kind string, params map[string]any) (*Spec, error) {
	e, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	copied := make(map[string]any, len(params))
	for k, v := range params {
		copied[k] = v
	}
	cfg, err := e.decode(copied)
	if err != nil {
		return nil, err
	}
	return &Spec{kind: kind, params: copied, cfg: cfg, entry: e}, nil
}

// MustParse is like Parse but panics on error. For package-level defaults.
func MustParse(s string) *Spec {
	spec, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return spec
}

// Kind returns the regressor kind.
func (s *Spec) Kind() string { return s.kind }

// New builds a fresh, unfitted regressor.
func (s *Spec) New() (model.Regressor, error) {
	r, err := s.entry.build(s.cfg)
	if err != nil {
		return nil, errors.NewModelError("regressor.New", s.kind, err)
	}
	return r, nil
}

// String renders the canonical form: the kind followed by the given
// parameters in key order. Parse(s.String()) yields an equivalent Spec.
func (s *Spec) String() string {
	keys := make([]string, 0, len(s.params))
	for k := range s.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(s.kind)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, s.params[k])
	}
	return b.String()
}
