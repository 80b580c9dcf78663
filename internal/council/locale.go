package council

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultLocale needs no language instruction.
const DefaultLocale = "en"

// LocaleInstruction returns the "Respond in <Language>." line prefixed to
// every prompt for locale, or "" when locale is empty or shares its base
// language with defaultLocale.
func LocaleInstruction(locale, defaultLocale string) (string, error) {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return "", nil
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return "", NewInvalidRequestError(fmt.Sprintf("invalid locale %q: %v", locale, err))
	}

	if defaultLocale == "" {
		defaultLocale = DefaultLocale
	}
	base, _ := tag.Base()
	if def, err := language.Parse(defaultLocale); err == nil {
		if defBase, _ := def.Base(); defBase == base {
			return "", nil
		}
	}

	name := display.English.Languages().Name(base)
	if name == "" {
		name = base.String()
	}
	return fmt.Sprintf("Respond in %s.", name), nil
}

func withLocale(instruction, prompt string) string {
	if instruction == "" {
		return prompt
	}
	return instruction + "\n\n" + prompt
}
