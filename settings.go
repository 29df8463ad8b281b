package llmrt

import (
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// EphemeralKeys is the closed set of per-call overrides the stack recognizes
// (§4.A). Anything else passed to Set is still stored and
// resolved, but providers should not expect adapters to interpret it.
var EphemeralKeys = []string{
	"streaming", "context-limit", "compression-threshold", "base-url",
	"auth-key", "auth-keyfile", "api-version", "custom-headers",
	"tool-format", "socket-timeout", "socket-keepalive", "socket-nodelay",
}

// Defaults holds built-in configuration, the lowest-precedence layer of the
// Settings Stack. It doubles as the on-disk shape for LoadDefaults/SaveDefaults
// so a deployment can pin its own built-ins the way agent_config.go did for
// the teacher's agent.
type Defaults struct {
	Model       string            `yaml:"model" json:"model"`
	Temperature float64           `yaml:"temperature" json:"temperature"`
	TopP        float64           `yaml:"top_p" json:"top_p"`
	MaxTokens   int               `yaml:"max_tokens" json:"max_tokens"`
	Retry       RetryDefaults     `yaml:"retry" json:"retry"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" json:"rate_limit"`
	Ephemerals  map[string]string `yaml:"ephemerals" json:"ephemerals"`
}

type RetryDefaults struct {
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms" json:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms" json:"max_delay_ms"`
}

func DefaultDefaults() *Defaults {
	return &Defaults{
		Model:       "",
		Temperature: 1.0,
		TopP:        1.0,
		MaxTokens:   4096,
		Retry: RetryDefaults{
			MaxAttempts: 3,
			BaseDelayMS: 500,
			MaxDelayMS:  30000,
		},
		RateLimit:  DefaultRateLimitConfig(),
		Ephemerals: map[string]string{},
	}
}

func (d *Defaults) Validate() error {
	if d.Temperature < 0 || d.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", d.Temperature)
	}
	if d.TopP < 0 || d.TopP > 1 {
		return fmt.Errorf("top_p must be between 0 and 1, got %f", d.TopP)
	}
	if d.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive, got %d", d.MaxTokens)
	}
	if d.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", d.Retry.MaxAttempts)
	}
	return nil
}

// Settings is the layered resolver of §4.A. Precedence, lowest to highest:
// defaults, profile, env, per-provider, session, invocation ephemerals,
// per-call overrides. A Settings value is shared process-wide; call-scoped
// views (View) are what the orchestrator actually hands to a provider.
type Settings struct {
	mu sync.RWMutex

	defaults *Defaults
	env      map[string]string

	providerSettings map[string]map[string]string // provider -> key -> value
	session          map[string]string            // process-wide session scope
}

// NewSettings builds a Settings stack from defaults, capturing the current
// process environment as the env layer.
func NewSettings(defaults *Defaults) *Settings {
	if defaults == nil {
		defaults = DefaultDefaults()
	}
	return &Settings{
		defaults:         defaults,
		env:              envSnapshot(),
		providerSettings: make(map[string]map[string]string),
		session:          make(map[string]string),
	}
}

func envSnapshot() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

// Get resolves key by precedence: defaults, env, session. Per-provider and
// per-call layers are consulted via GetProviderSettings / View.Get, since
// they need a provider name / call context to be meaningful.
func (s *Settings) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.session[key]; ok {
		return v, true
	}
	envKey := "LLMRT_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	if v, ok := s.env[envKey]; ok {
		return v, true
	}
	if v, ok := s.defaultValue(key); ok {
		return v, true
	}
	return "", false
}

func (s *Settings) defaultValue(key string) (string, bool) {
	switch key {
	case "model":
		if s.defaults.Model != "" {
			return s.defaults.Model, true
		}
	case "temperature":
		return strconv.FormatFloat(s.defaults.Temperature, 'f', -1, 64), true
	case "max-tokens":
		return strconv.Itoa(s.defaults.MaxTokens), true
	}
	if v, ok := s.defaults.Ephemerals[key]; ok {
		return v, true
	}
	return "", false
}

// Set assigns a session-scope (process-wide) value.
func (s *Settings) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session[key] = value
}

// GetProviderSettings returns a defensive copy of the named provider's
// settings map.
func (s *Settings) GetProviderSettings(provider string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	maps.Copy(out, s.providerSettings[provider])
	return out
}

// SetProviderSetting assigns a value scoped to one provider.
func (s *Settings) SetProviderSetting(provider, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.providerSettings[provider]
	if !ok {
		m = make(map[string]string)
		s.providerSettings[provider] = m
	}
	m[key] = value
}

// GetEphemeralSettings returns a defensive copy of the session-scope
// ephemeral map; mutating the result never affects the store (§4.A).
func (s *Settings) GetEphemeralSettings() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	maps.Copy(out, s.session)
	return out
}

// ApplyProfile validates and applies a Profile: modelParams go to the named
// provider's scope, ephemeralSettings go to session scope. Returns a
// ConfigurationError-kind APIError on any validation failure (§4.A, §6).
func (s *Settings) ApplyProfile(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	providerMap, ok := s.providerSettings[p.Provider]
	if !ok {
		providerMap = make(map[string]string)
		s.providerSettings[p.Provider] = providerMap
	}
	for k, v := range p.ModelParams {
		providerMap[k] = fmt.Sprint(v)
	}
	if p.Model != "" {
		providerMap["model"] = p.Model
	}
	for k, v := range p.EphemeralSettings {
		s.session[k] = fmt.Sprint(v)
	}
	return nil
}

// View is the call-scoped overlay of invocation ephemerals over the stack,
// the shape a provider adapter actually reads from during a call (§4.A
// per-call isolation): it must never read process-global state mid-call.
type View struct {
	base       *Settings
	provider   string
	invocation map[string]string
	overrides  map[string]string
}

// NewView constructs a call-scoped view for one provider, overlaying
// invocation-scoped ephemerals and explicit per-call overrides on top of the
// shared stack. invocation and overrides are copied defensively.
func (s *Settings) NewView(provider string, invocation, overrides map[string]string) *View {
	v := &View{base: s, provider: provider, invocation: make(map[string]string), overrides: make(map[string]string)}
	maps.Copy(v.invocation, invocation)
	maps.Copy(v.overrides, overrides)
	return v
}

// Get resolves key through the full precedence chain, highest first:
// per-call override, invocation ephemeral, session, per-provider, env,
// defaults.
func (v *View) Get(key string) (string, bool) {
	if val, ok := v.overrides[key]; ok {
		return val, true
	}
	if val, ok := v.invocation[key]; ok {
		return val, true
	}
	if val, ok := v.base.GetEphemeralSettings()[key]; ok {
		return val, true
	}
	providerSettings := v.base.GetProviderSettings(v.provider)
	if val, ok := providerSettings[key]; ok {
		return val, true
	}
	return v.base.Get(key)
}

// GetOr resolves key via Get, returning fallback when unset.
func (v *View) GetOr(key, fallback string) string {
	if val, ok := v.Get(key); ok {
		return val
	}
	return fallback
}

// Streaming resolves the three-valued `streaming` ephemeral (§4.A): explicit
// "disabled" means non-streaming, anything else (including unset) streams.
func (v *View) Streaming() bool {
	val, _ := v.Get("streaming")
	return val != "disabled"
}

// LoadDefaults reads Defaults from a YAML file, seeded from DefaultDefaults()
// before unmarshalling so unset fields keep their built-in value.
func LoadDefaults(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read defaults file: %w", err)
	}

	d := DefaultDefaults()
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to parse defaults YAML: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid defaults: %w", err)
	}
	return d, nil
}
