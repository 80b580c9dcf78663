package builtin

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/datacendia/council/internal/guardrail"
	"github.com/datacendia/council/internal/types"
)

// GuardrailConfig is one entry of the guardrails list in the config file.
type GuardrailConfig struct {
	Type   string         `mapstructure:"type" yaml:"type" json:"type"`
	Config map[string]any `mapstructure:"config" yaml:"config" json:"config"`
}

// SupportedGuardrailTypes returns the list of supported guardrail types
func SupportedGuardrailTypes() []string {
	return []string{
		string(guardrail.GuardrailTypeContent),
		string(guardrail.GuardrailTypePII),
		string(guardrail.GuardrailTypeRate),
	}
}

// ParseGuardrailConfigs builds guardrails in the order they are configured.
func ParseGuardrailConfigs(configs []GuardrailConfig) ([]guardrail.Guardrail, error) {
	out := make([]guardrail.Guardrail, 0, len(configs))
	for i, c := range configs {
		g, err := ParseGuardrailConfig(c)
		if err != nil {
			return nil, types.WrapError(guardrail.ErrGuardrailConfigInvalid,
				fmt.Sprintf("guardrail at index %d", i), err)
		}
		out = append(out, g)
	}
	return out, nil
}

// ParseGuardrailConfig creates a single Guardrail from configuration
func ParseGuardrailConfig(config GuardrailConfig) (guardrail.Guardrail, error) {
	switch guardrail.GuardrailType(config.Type) {
	case guardrail.GuardrailTypeContent:
		var cfg ContentFilterConfig
		if err := decode(config.Config, &cfg); err != nil {
			return nil, err
		}
		if len(cfg.Patterns) == 0 {
			return nil, fmt.Errorf("at least one pattern is required for content filter")
		}
		return NewContentFilter(cfg)

	case guardrail.GuardrailTypePII:
		var cfg PIIDetectorConfig
		if err := decode(config.Config, &cfg); err != nil {
			return nil, err
		}
		return NewPIIDetector(cfg)

	case guardrail.GuardrailTypeRate:
		var cfg RateLimiterConfig
		if err := decode(config.Config, &cfg); err != nil {
			return nil, err
		}
		return NewRateLimiter(cfg)

	case "":
		return nil, fmt.Errorf("guardrail type is required")

	default:
		return nil, fmt.Errorf("unsupported guardrail type: %s (supported types: %v)", config.Type, SupportedGuardrailTypes())
	}
}

// decode maps a loosely typed config block onto a typed struct. Durations
// may be written as strings ("1m", "30s").
func decode(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode guardrail config: %w", err)
	}
	return nil
}
