// Package registry loads and validates integration descriptors.
package registry

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/infra-ci/integ-acceptor/types"
)

// Registry holds the set of integration descriptors loaded from the config
// file. Descriptors are immutable once loaded; lookups are read-only.
type Registry struct {
	config       Config
	integrations map[string]*types.Integration
	mu           sync.RWMutex
}

// Config contains registry configuration.
type Config struct {
	// ConfigFile is the path to the integrations YAML file.
	ConfigFile string

	// DefaultRetries is applied to integrations that don't set their own
	// budget. Negative values are rejected at load time.
	DefaultRetries int

	// DefaultSettle is the post-start settle delay applied when an
	// integration doesn't set its own.
	DefaultSettle time.Duration
}

type configFile struct {
	Integrations []*rawIntegration `yaml:"integrations"`
}

// rawIntegration is the YAML shape of a descriptor. Budget and settle are
// pointers so an explicitly configured zero ("no retries", "no settle") is
// distinguishable from an unset field and survives the defaults.
type rawIntegration struct {
	Name        string          `yaml:"name"`
	Start       types.Command   `yaml:"start"`
	Stop        types.Command   `yaml:"stop"`
	Test        types.Command   `yaml:"test"`
	RetryBudget *int            `yaml:"retries"`
	Settle      *types.Duration `yaml:"settle"`
}

// NewRegistry loads the integrations file and validates every descriptor.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.ConfigFile == "" {
		return nil, fmt.Errorf("integrations config file is required")
	}

	r := &Registry{
		config:       cfg,
		integrations: make(map[string]*types.Integration),
	}

	if err := r.load(cfg.ConfigFile); err != nil {
		return nil, fmt.Errorf("failed to load integrations from %q: %w", cfg.ConfigFile, err)
	}

	return r, nil
}

func (r *Registry) load(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if len(file.Integrations) == 0 {
		return fmt.Errorf("no integrations defined")
	}

	for _, raw := range file.Integrations {
		if err := r.validate(raw); err != nil {
			return err
		}
		if _, exists := r.integrations[raw.Name]; exists {
			return fmt.Errorf("duplicate integration name %q", raw.Name)
		}
		r.integrations[raw.Name] = r.resolve(raw)
	}

	return nil
}

func (r *Registry) validate(raw *rawIntegration) error {
	if raw.Name == "" {
		return fmt.Errorf("integration with empty name")
	}
	if raw.Start.Empty() {
		return fmt.Errorf("integration %q has no start command", raw.Name)
	}
	if raw.Stop.Empty() {
		return fmt.Errorf("integration %q has no stop command", raw.Name)
	}
	if raw.Test.Empty() {
		return fmt.Errorf("integration %q has no test command", raw.Name)
	}
	if raw.RetryBudget != nil && *raw.RetryBudget < 0 {
		return fmt.Errorf("integration %q has negative retry budget %d", raw.Name, *raw.RetryBudget)
	}
	return nil
}

// resolve freezes a descriptor, filling unset fields from the configured
// defaults. Explicit values win even when zero.
func (r *Registry) resolve(raw *rawIntegration) *types.Integration {
	integ := &types.Integration{
		Name:        raw.Name,
		Start:       raw.Start,
		Stop:        raw.Stop,
		Test:        raw.Test,
		RetryBudget: r.config.DefaultRetries,
		Settle:      types.Duration(r.config.DefaultSettle),
	}
	if raw.RetryBudget != nil {
		integ.RetryBudget = *raw.RetryBudget
	}
	if raw.Settle != nil {
		integ.Settle = *raw.Settle
	}
	return integ
}

// Get returns the descriptor for the named integration.
func (r *Registry) Get(name string) (*types.Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	integ, ok := r.integrations[name]
	if !ok {
		return nil, fmt.Errorf("unknown integration %q (known: %v)", name, r.names())
	}
	return integ, nil
}

// All returns every descriptor, sorted by name for deterministic runs.
func (r *Registry) All() []*types.Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*types.Integration, 0, len(r.integrations))
	for _, integ := range r.integrations {
		all = append(all, integ)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.integrations))
	for name := range r.integrations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
