package llmrt

import (
	"encoding/json"
	"fmt"
)

// profileMaxBytes is the strict serialized size cap for a Profile (§6).
const profileMaxBytes = 10 * 1024

// profileDisallowedKeys are rejected at any depth of modelParams/ephemeralSettings,
// since a profile is untrusted input that gets merged into live settings maps.
var profileDisallowedKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// Profile is the external, serializable settings bundle of §6: a provider,
// model, model params, and ephemeral settings snapshot a user can save and
// load. version must currently be 1.
type Profile struct {
	Version           int            `json:"version"`
	Provider          string         `json:"provider"`
	Model             string         `json:"model"`
	ModelParams       map[string]any `json:"modelParams"`
	EphemeralSettings map[string]any `json:"ephemeralSettings"`
}

// ParseProfile parses and validates raw Profile JSON, returning a
// ConfigurationError-kind APIError describing the first problem found.
func ParseProfile(raw []byte) (*Profile, error) {
	if len(raw) > profileMaxBytes {
		return nil, NewConfigurationError("", fmt.Sprintf("profile exceeds %d byte limit (got %d)", profileMaxBytes, len(raw)), nil)
	}

	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, NewConfigurationError("", fmt.Sprintf("profile is not valid JSON: %v", err), err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks version, required fields, and disallowed keys. It does not
// re-check serialized size — ParseProfile does that against the raw bytes,
// since a Profile constructed in memory has no canonical byte size.
func (p *Profile) Validate() error {
	if p.Version != 1 {
		return NewConfigurationError("", fmt.Sprintf("unsupported profile version %d, expected 1", p.Version), nil)
	}
	if p.Provider == "" {
		return NewConfigurationError("", "profile is missing required field \"provider\"", nil)
	}
	if p.Model == "" {
		return NewConfigurationError("", "profile is missing required field \"model\"", nil)
	}
	if key, ok := findDisallowedKey(p.ModelParams); ok {
		return NewConfigurationError("", fmt.Sprintf("profile modelParams contains disallowed key %q", key), nil)
	}
	if key, ok := findDisallowedKey(p.EphemeralSettings); ok {
		return NewConfigurationError("", fmt.Sprintf("profile ephemeralSettings contains disallowed key %q", key), nil)
	}
	return nil
}

// findDisallowedKey walks m (and any nested map[string]any) looking for
// __proto__, constructor, or prototype at any depth, so a crafted nested
// payload cannot smuggle a prototype-pollution-style key past a shallow check.
func findDisallowedKey(m map[string]any) (string, bool) {
	for k, v := range m {
		if profileDisallowedKeys[k] {
			return k, true
		}
		if nested, ok := v.(map[string]any); ok {
			if key, found := findDisallowedKey(nested); found {
				return key, true
			}
		}
		if arr, ok := v.([]any); ok {
			for _, item := range arr {
				if nested, ok := item.(map[string]any); ok {
					if key, found := findDisallowedKey(nested); found {
						return key, true
					}
				}
			}
		}
	}
	return "", false
}

// Marshal serializes the profile, validating it is within the size cap
// before returning.
func (p *Profile) Marshal() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if len(data) > profileMaxBytes {
		return nil, NewConfigurationError("", fmt.Sprintf("profile exceeds %d byte limit (got %d)", profileMaxBytes, len(data)), nil)
	}
	return data, nil
}
