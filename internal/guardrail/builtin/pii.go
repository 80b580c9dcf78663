package builtin

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/datacendia/council/internal/guardrail"
)

// PIIKind names a class of personally identifiable information.
type PIIKind string

const (
	PIIKindSSN        PIIKind = "ssn"
	PIIKindEmail      PIIKind = "email"
	PIIKindPhone      PIIKind = "phone"
	PIIKindCreditCard PIIKind = "credit_card"
	PIIKindIPAddress  PIIKind = "ip_address"
)

var builtinPII = map[PIIKind]string{
	PIIKindSSN:        `\b\d{3}-\d{2}-\d{4}\b`,
	PIIKindEmail:      `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
	PIIKindPhone:      `(?:\+?1[-.\s]?)?\(?\b[0-9]{3}\)?[-.\s][0-9]{3}[-.\s][0-9]{4}\b`,
	PIIKindCreditCard: `\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|6(?:011|5[0-9]{2})[0-9]{12})\b`,
	PIIKindIPAddress:  `\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`,
}

// PIIDetectorConfig configures PII detection behavior.
type PIIDetectorConfig struct {
	// Action when PII is found. Defaults to redact.
	Action guardrail.GuardrailAction `mapstructure:"action"`

	// Kinds limits detection to the named built-in kinds. Empty enables all.
	Kinds []string `mapstructure:"kinds"`

	// Custom maps extra kind names to regular expressions.
	Custom map[string]string `mapstructure:"custom"`

	// Allowlist matches are never treated as PII.
	Allowlist []string `mapstructure:"allowlist"`
}

type piiRule struct {
	kind PIIKind
	re   *regexp.Regexp
}

// PIIDetector finds personal data in prompts (board questions often quote
// customer records) and in model output.
type PIIDetector struct {
	action    guardrail.GuardrailAction
	rules     []piiRule
	allowlist *regexp.Regexp
}

// NewPIIDetector compiles the configured patterns.
func NewPIIDetector(config PIIDetectorConfig) (*PIIDetector, error) {
	action := config.Action
	if action == "" {
		action = guardrail.GuardrailActionRedact
	}
	if !action.IsValid() {
		return nil, fmt.Errorf("invalid pii action %q", action)
	}

	d := &PIIDetector{action: action}

	kinds := config.Kinds
	if len(kinds) == 0 {
		for k := range builtinPII {
			kinds = append(kinds, string(k))
		}
	}
	for _, k := range kinds {
		expr, ok := builtinPII[PIIKind(k)]
		if !ok {
			return nil, fmt.Errorf("unknown pii kind %q", k)
		}
		d.rules = append(d.rules, piiRule{kind: PIIKind(k), re: regexp.MustCompile(expr)})
	}

	for name, expr := range config.Custom {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid custom pattern '%s': %w", name, err)
		}
		d.rules = append(d.rules, piiRule{kind: PIIKind(name), re: re})
	}

	// Stable order keeps redaction output and reasons reproducible.
	sort.Slice(d.rules, func(i, j int) bool { return d.rules[i].kind < d.rules[j].kind })

	if len(config.Allowlist) > 0 {
		re, err := regexp.Compile("(?:" + strings.Join(config.Allowlist, "|") + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid allowlist pattern: %w", err)
		}
		d.allowlist = re
	}

	return d, nil
}

func (p *PIIDetector) Name() string {
	return "pii-detector"
}

func (p *PIIDetector) Type() guardrail.GuardrailType {
	return guardrail.GuardrailTypePII
}

func (p *PIIDetector) CheckInput(ctx context.Context, input guardrail.GuardrailInput) (guardrail.GuardrailResult, error) {
	return p.check(input.Content), nil
}

func (p *PIIDetector) CheckOutput(ctx context.Context, output guardrail.GuardrailOutput) (guardrail.GuardrailResult, error) {
	return p.check(output.Content), nil
}

func (p *PIIDetector) check(content string) guardrail.GuardrailResult {
	if content == "" {
		return guardrail.NewAllowResult()
	}

	found := p.detect(content)
	if len(found) == 0 {
		return guardrail.NewAllowResult()
	}

	var result guardrail.GuardrailResult
	switch p.action {
	case guardrail.GuardrailActionBlock:
		result = guardrail.NewBlockResult("PII detected: " + strings.Join(found, ", "))
	case guardrail.GuardrailActionRedact:
		result = guardrail.NewRedactResult("PII redacted", p.redact(content))
	case guardrail.GuardrailActionWarn:
		result = guardrail.NewWarnResult("PII detected: " + strings.Join(found, ", "))
	default:
		return guardrail.NewAllowResult()
	}
	result.Metadata["pii_kinds"] = found
	return result
}

// detect returns the distinct kinds present in content.
func (p *PIIDetector) detect(content string) []string {
	var kinds []string
	for _, r := range p.rules {
		for _, m := range r.re.FindAllString(content, -1) {
			if p.allowed(m) {
				continue
			}
			kinds = append(kinds, string(r.kind))
			break
		}
	}
	return kinds
}

// redact replaces each match with a [REDACTED-KIND] marker.
func (p *PIIDetector) redact(content string) string {
	out := content
	for _, r := range p.rules {
		marker := fmt.Sprintf("[REDACTED-%s]", strings.ToUpper(string(r.kind)))
		out = r.re.ReplaceAllStringFunc(out, func(m string) string {
			if p.allowed(m) {
				return m
			}
			return marker
		})
	}
	return out
}

func (p *PIIDetector) allowed(s string) bool {
	return p.allowlist != nil && p.allowlist.MatchString(s)
}
