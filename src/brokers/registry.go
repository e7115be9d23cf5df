package brokers

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/username/tradejournal/backend/src/models"
)

var (
	ErrBrokerNotFound     = errors.New("broker not found")
	ErrInvalidAliasConfig = errors.New("invalid alias configuration")
)

// Registry is the catalog of broker profiles. It is built once at startup and
// only read afterwards, so it is safe for concurrent use.
type Registry struct {
	profiles map[string]BrokerProfile
	order    []string
}

// NewRegistry builds a registry from profiles. Keys are case-insensitive and
// must be unique. A "generic" profile is required.
func NewRegistry(profiles ...BrokerProfile) (*Registry, error) {
	r := &Registry{profiles: make(map[string]BrokerProfile, len(profiles))}
	for _, p := range profiles {
		key := normalizeKey(p.Key)
		if key == "" {
			return nil, fmt.Errorf("%w: profile %q has an empty key", ErrInvalidAliasConfig, p.Name)
		}
		if _, dup := r.profiles[key]; dup {
			return nil, fmt.Errorf("%w: duplicate broker key %q", ErrInvalidAliasConfig, p.Key)
		}
		if p.Strategy == "" {
			p.Strategy = StrategySingleRow
		}
		if p.Parser == "" {
			p.Parser = ParserGeneric
		}
		p.Key = key
		r.profiles[key] = p
		r.order = append(r.order, key)
	}
	if _, ok := r.profiles[KeyGeneric]; !ok {
		return nil, fmt.Errorf("%w: registry needs a %q profile", ErrInvalidAliasConfig, KeyGeneric)
	}
	return r, nil
}

// NewDefaultRegistry returns a registry holding the built-in profiles.
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultProfiles()...)
	if err != nil {
		panic(err) // built-in catalog is static
	}
	return r
}

// Lookup returns the profile registered under key, ignoring case.
func (r *Registry) Lookup(key string) (BrokerProfile, error) {
	p, ok := r.profiles[normalizeKey(key)]
	if !ok {
		return BrokerProfile{}, fmt.Errorf("%w: %q", ErrBrokerNotFound, key)
	}
	return p, nil
}

// Profiles returns every profile in registration order.
func (r *Registry) Profiles() []BrokerProfile {
	out := make([]BrokerProfile, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.profiles[k])
	}
	return out
}

// Instructions returns the human-readable export steps for a broker.
func (r *Registry) Instructions(key string) ([]string, error) {
	p, err := r.Lookup(key)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), p.Instructions...), nil
}

// CustomAliases is a caller-supplied mapping from canonical field name to
// ordered candidate columns, e.g. {"ticket": ["Deal #"], "profit": ["Net"]}.
type CustomAliases map[string][]string

// GenericWith returns the generic profile with custom aliases layered over
// its defaults, registered under key so results still name the broker the
// caller selected.
func (r *Registry) GenericWith(key string, custom CustomAliases) (BrokerProfile, error) {
	base, err := r.profiles[KeyGeneric].WithAliases(custom)
	if err != nil {
		return BrokerProfile{}, err
	}
	if k := normalizeKey(key); k != "" {
		base.Key = k
		base.Name = key
	}
	return base, nil
}

// WithAliases returns a copy of the profile whose alias table has the custom
// columns layered over it. Broker exports in another language or with
// renamed columns can be read this way.
func (p BrokerProfile) WithAliases(custom CustomAliases) (BrokerProfile, error) {
	aliases, err := mergeAliases(p.Aliases, custom)
	if err != nil {
		return BrokerProfile{}, err
	}
	p.Aliases = aliases
	return p, nil
}

func mergeAliases(base AliasTable, custom CustomAliases) (AliasTable, error) {
	out := base.Clone()
	fields := make([]string, 0, len(custom))
	for f := range custom {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, name := range fields {
		field, ok := ParseField(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidAliasConfig, name)
		}
		var cols []string
		for _, c := range custom[name] {
			if strings.TrimSpace(c) != "" {
				cols = append(cols, strings.TrimSpace(c))
			}
		}
		if len(cols) == 0 {
			return nil, fmt.Errorf("%w: field %q has no columns", ErrInvalidAliasConfig, name)
		}
		out[field] = Columns(cols...)
	}
	return out, nil
}

// ParseField resolves a canonical field from its name, accepting a few
// spellings used in configuration files ("openTime", "open time", "pnl").
func ParseField(name string) (models.Field, bool) {
	n := strings.ReplaceAll(models.NormalizeHeader(name), " ", "")
	switch n {
	case "pnl", "profit":
		return models.FieldProfit, true
	case "direction", "side", "type":
		return models.FieldType, true
	}
	for _, f := range models.CanonicalFields {
		if strings.ReplaceAll(string(f), "_", "") == n {
			return f, true
		}
	}
	return "", false
}
