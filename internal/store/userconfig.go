package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rsilvagit/deptos/internal/filter"
)

const userConfigFile = "user_configs.json"

// ErrUnknownKey is returned for a criteria key that does not exist.
var ErrUnknownKey = errors.New("store: unknown config key")

type keyKind int

const (
	kindInt keyKind = iota
	kindOptionalInt
	kindBool
)

// Keys accepted in a user's override, by kind. Optional ints accept
// "none" to remove the limit.
var configKeys = map[string]keyKind{
	"min_price":                kindOptionalInt,
	"max_price":                kindInt,
	"min_rooms":                kindInt,
	"max_rooms":                kindOptionalInt,
	"max_expensas":             kindInt,
	"require_expensas":         kindBool,
	"casco_only":               kindBool,
	"include_unknown_location": kindBool,
	"active":                   kindBool,
}

// Keys lists the configurable criteria keys in order.
func Keys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type override map[string]json.RawMessage

// UserConfigs stores one partial criteria override per user id. Reading a
// user merges the override onto the defaults.
type UserConfigs struct {
	path     string
	defaults filter.Criteria
	mu       sync.Mutex
}

// NewUserConfigs returns the user config file in dir.
func NewUserConfigs(dir string, defaults filter.Criteria) *UserConfigs {
	return &UserConfigs{
		path:     filepath.Join(dir, userConfigFile),
		defaults: defaults,
	}
}

func (u *UserConfigs) load() (map[string]override, error) {
	all := map[string]override{}
	if _, err := readJSON(u.path, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = map[string]override{}
	}
	return all, nil
}

// IDs returns every registered user id, sorted.
func (u *UserConfigs) IDs() ([]string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	all, err := u.load()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Get returns the effective criteria of id. Unknown users get the defaults.
func (u *UserConfigs) Get(id string) (filter.Criteria, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	all, err := u.load()
	if err != nil {
		return filter.Criteria{}, err
	}
	return merge(u.defaults, all[id])
}

// All returns the effective criteria of every registered user.
func (u *UserConfigs) All() (map[string]filter.Criteria, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	all, err := u.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]filter.Criteria, len(all))
	for id, o := range all {
		c, err := merge(u.defaults, o)
		if err != nil {
			return nil, fmt.Errorf("store: user %s: %w", id, err)
		}
		out[id] = c
	}
	return out, nil
}

// Register adds id with no overrides. Registering twice is a no-op.
func (u *UserConfigs) Register(id string) error {
	_, err := u.Update(id, nil)
	return err
}

// Set parses value for key and stores it for id, e.g. Set("42", "max_price", "450000").
func (u *UserConfigs) Set(id, key, value string) (filter.Criteria, error) {
	kind, ok := configKeys[key]
	if !ok {
		return filter.Criteria{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	raw, err := parseValue(kind, value)
	if err != nil {
		return filter.Criteria{}, fmt.Errorf("store: %s: %w", key, err)
	}
	return u.Update(id, override{key: raw})
}

// Update merges patch into id's stored override. The result must pass
// Criteria.Validate or nothing is written.
func (u *UserConfigs) Update(id string, patch map[string]json.RawMessage) (filter.Criteria, error) {
	if strings.TrimSpace(id) == "" {
		return filter.Criteria{}, errors.New("store: empty user id")
	}
	for key := range patch {
		if _, ok := configKeys[key]; !ok {
			return filter.Criteria{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
		}
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	all, err := u.load()
	if err != nil {
		return filter.Criteria{}, err
	}

	next := override{}
	for k, v := range all[id] {
		next[k] = v
	}
	for k, v := range patch {
		next[k] = v
	}

	c, err := merge(u.defaults, next)
	if err != nil {
		return filter.Criteria{}, err
	}
	if err := c.Validate(); err != nil {
		return filter.Criteria{}, err
	}

	all[id] = next
	if err := writeJSON(u.path, all); err != nil {
		return filter.Criteria{}, err
	}
	return c, nil
}

func merge(defaults filter.Criteria, o override) (filter.Criteria, error) {
	base, err := json.Marshal(defaults)
	if err != nil {
		return filter.Criteria{}, fmt.Errorf("store: encoding defaults: %w", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return filter.Criteria{}, fmt.Errorf("store: decoding defaults: %w", err)
	}
	for k, v := range o {
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return filter.Criteria{}, fmt.Errorf("store: encoding override: %w", err)
	}
	var c filter.Criteria
	if err := json.Unmarshal(merged, &c); err != nil {
		return filter.Criteria{}, fmt.Errorf("%w: %v", filter.ErrInvalidCriteria, err)
	}
	return c, nil
}

func parseValue(kind keyKind, value string) (json.RawMessage, error) {
	value = strings.ToLower(strings.TrimSpace(value))

	switch kind {
	case kindBool:
		switch value {
		case "si", "sí", "yes", "on":
			return json.RawMessage("true"), nil
		case "no", "off":
			return json.RawMessage("false"), nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", value)
		}
		return json.RawMessage(strconv.FormatBool(b)), nil

	case kindOptionalInt:
		if value == "none" || value == "null" || value == "-" {
			return json.RawMessage("null"), nil
		}
		fallthrough

	default:
		n, err := strconv.Atoi(strings.ReplaceAll(value, ".", ""))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%q is not a positive integer", value)
		}
		return json.RawMessage(strconv.Itoa(n)), nil
	}
}
