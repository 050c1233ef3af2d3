package chat

import "github.com/kbukum/ailibrary/validation"

// Generation defaults, applied when a field is absent from the request.
const (
	DefaultTemperature = 1.0
	DefaultTopP        = 1.0
	DefaultMaxTokens   = 1024

	// MaxStopSequences is the provider's cap on stop sequences per request.
	MaxStopSequences = 4
)

// Hyperparameters control text generation. Pointer fields distinguish
// "absent, use the default" from an explicit zero (temperature 0 is a valid,
// fully deterministic setting).
type Hyperparameters struct {
	// Temperature controls randomness; 0 is deterministic, 2 is maximally creative.
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	// TopP is the nucleus sampling threshold.
	TopP *float64 `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	// MaxTokens limits the response length.
	MaxTokens *int `json:"max_tokens,omitempty" validate:"omitempty,gte=1,lte=32000"`
	// Stop holds up to four stop sequences.
	Stop []string `json:"stop,omitempty" validate:"omitempty,max=4"`
}

// Validate rejects out-of-range values. It never mutates the receiver; a
// request with invalid hyperparameters fails before any upstream call.
func (h *Hyperparameters) Validate() error {
	if h == nil {
		return nil
	}
	return validation.Validate(h)
}

// EffectiveTemperature returns the configured or default temperature.
func (h *Hyperparameters) EffectiveTemperature() float64 {
	if h == nil || h.Temperature == nil {
		return DefaultTemperature
	}
	return *h.Temperature
}

// EffectiveTopP returns the configured or default nucleus threshold.
func (h *Hyperparameters) EffectiveTopP() float64 {
	if h == nil || h.TopP == nil {
		return DefaultTopP
	}
	return *h.TopP
}

// EffectiveMaxTokens returns the configured or default output token cap.
func (h *Hyperparameters) EffectiveMaxTokens() int {
	if h == nil || h.MaxTokens == nil {
		return DefaultMaxTokens
	}
	return *h.MaxTokens
}

// StopSequences returns the configured stop sequences, nil when unset.
func (h *Hyperparameters) StopSequences() []string {
	if h == nil {
		return nil
	}
	return h.Stop
}
