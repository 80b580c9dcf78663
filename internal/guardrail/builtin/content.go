package builtin

import (
	"context"
	"fmt"
	"regexp"

	"github.com/datacendia/council/internal/guardrail"
)

// ContentPattern pairs a regular expression with the action taken when it matches.
type ContentPattern struct {
	Pattern string                    `mapstructure:"pattern"`
	Action  guardrail.GuardrailAction `mapstructure:"action"`
	Replace string                    `mapstructure:"replace"`
}

// ContentFilterConfig configures the content filter guardrail
type ContentFilterConfig struct {
	Name          string                    `mapstructure:"name"`
	Patterns      []ContentPattern          `mapstructure:"patterns"`
	DefaultAction guardrail.GuardrailAction `mapstructure:"default_action"`
	// InputOnly skips model responses.
	InputOnly bool `mapstructure:"input_only"`
}

// ContentFilter matches prompts and responses against regex patterns.
type ContentFilter struct {
	name      string
	inputOnly bool
	rules     []contentRule
}

type contentRule struct {
	re      *regexp.Regexp
	action  guardrail.GuardrailAction
	replace string
}

// NewContentFilter compiles the configured patterns.
func NewContentFilter(config ContentFilterConfig) (*ContentFilter, error) {
	name := config.Name
	if name == "" {
		name = "content-filter"
	}
	cf := &ContentFilter{
		name:      name,
		inputOnly: config.InputOnly,
		rules:     make([]contentRule, 0, len(config.Patterns)),
	}

	for i, p := range config.Patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern at index %d: %w", i, err)
		}

		action := p.Action
		if action == "" {
			action = config.DefaultAction
		}
		if action == "" {
			action = guardrail.GuardrailActionBlock
		}
		if !action.IsValid() {
			return nil, fmt.Errorf("invalid action %q at index %d", action, i)
		}

		cf.rules = append(cf.rules, contentRule{re: re, action: action, replace: p.Replace})
	}

	return cf, nil
}

func (c *ContentFilter) Name() string {
	return c.name
}

func (c *ContentFilter) Type() guardrail.GuardrailType {
	return guardrail.GuardrailTypeContent
}

func (c *ContentFilter) CheckInput(ctx context.Context, input guardrail.GuardrailInput) (guardrail.GuardrailResult, error) {
	return c.evaluate(input.Content), nil
}

func (c *ContentFilter) CheckOutput(ctx context.Context, output guardrail.GuardrailOutput) (guardrail.GuardrailResult, error) {
	if c.inputOnly {
		return guardrail.NewAllowResult(), nil
	}
	return c.evaluate(output.Content), nil
}

// evaluate applies every rule and reports the most severe action. Redactions
// from all matching redact rules are applied cumulatively.
func (c *ContentFilter) evaluate(content string) guardrail.GuardrailResult {
	var matched []string
	worst := guardrail.GuardrailActionAllow
	redacted := content

	for _, r := range c.rules {
		if !r.re.MatchString(content) {
			continue
		}
		matched = append(matched, r.re.String())
		if severity(r.action) > severity(worst) {
			worst = r.action
		}
		if r.action == guardrail.GuardrailActionRedact {
			replacement := r.replace
			if replacement == "" {
				replacement = "[REDACTED]"
			}
			redacted = r.re.ReplaceAllString(redacted, replacement)
		}
	}

	if len(matched) == 0 {
		return guardrail.NewAllowResult()
	}

	reason := fmt.Sprintf("matched pattern(s): %v", matched)
	var result guardrail.GuardrailResult
	switch worst {
	case guardrail.GuardrailActionBlock:
		result = guardrail.NewBlockResult(reason)
	case guardrail.GuardrailActionRedact:
		result = guardrail.NewRedactResult(reason, redacted)
	case guardrail.GuardrailActionWarn:
		result = guardrail.NewWarnResult(reason)
	default:
		result = guardrail.NewAllowResult()
	}
	result.Metadata["matched_patterns"] = matched
	return result
}

// severity orders actions from least to most restrictive.
func severity(action guardrail.GuardrailAction) int {
	switch action {
	case guardrail.GuardrailActionBlock:
		return 4
	case guardrail.GuardrailActionRedact:
		return 3
	case guardrail.GuardrailActionWarn:
		return 2
	case guardrail.GuardrailActionAllow:
		return 1
	default:
		return 0
	}
}
