package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Preset names an intent bucket. Each preset selects a fixed set of
// retrieval paths and a prompt template.
type Preset string

const (
	PresetCore Preset = "core"
	PresetCX   Preset = "cx"
	PresetEX   Preset = "ex"
)

// AllPresets returns every known preset in display order.
func AllPresets() []Preset {
	return []Preset{PresetCore, PresetCX, PresetEX}
}

// Valid reports whether p is a known preset.
func (p Preset) Valid() bool {
	switch p {
	case PresetCore, PresetCX, PresetEX:
		return true
	}
	return false
}

// ParsePreset parses a preset name case-insensitively. An empty string
// returns an empty preset and no error so callers can fall back to detection.
func ParsePreset(s string) (Preset, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	p := Preset(s)
	if !p.Valid() {
		return "", eris.Errorf("unknown preset %q", s)
	}
	return p, nil
}

// Request is the inbound question payload.
type Request struct {
	Question    string `json:"question"`
	SiteBaseURL string `json:"siteBaseUrl"`
	Preset      string `json:"preset,omitempty"`
	Model       string `json:"model,omitempty"`
}

// ValidationError reports a request that must be rejected before any
// network activity.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks required fields and the optional preset.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return &ValidationError{Field: "question", Message: "question is required"}
	}
	if strings.TrimSpace(r.SiteBaseURL) == "" {
		return &ValidationError{Field: "siteBaseUrl", Message: "siteBaseUrl is required"}
	}
	if _, err := ParsePreset(r.Preset); err != nil {
		return &ValidationError{Field: "preset", Message: err.Error()}
	}
	return nil
}
