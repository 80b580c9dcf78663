package council

import "fmt"

// Config tunes deliberations. Zero values select the defaults.
type Config struct {
	// ChiefCode selects the synthesising agent by code. Empty means the
	// agent flagged chief in the catalog.
	ChiefCode string `mapstructure:"chief_code" yaml:"chief_code"`

	MaxCrossExaminations int    `mapstructure:"max_cross_examinations" yaml:"max_cross_examinations" validate:"min=0,max=20"`
	TruncateChars        int    `mapstructure:"truncate_chars" yaml:"truncate_chars" validate:"min=0"`
	DefaultLocale        string `mapstructure:"default_locale" yaml:"default_locale"`

	// MaxParallel bounds concurrent initial analyses; 0 means one per agent.
	MaxParallel int `mapstructure:"max_parallel" yaml:"max_parallel" validate:"min=0"`

	AnalysisTemperature  float64 `mapstructure:"analysis_temperature" yaml:"analysis_temperature" validate:"min=0,max=2"`
	ChallengeTemperature float64 `mapstructure:"challenge_temperature" yaml:"challenge_temperature" validate:"min=0,max=2"`
	SynthesisTemperature float64 `mapstructure:"synthesis_temperature" yaml:"synthesis_temperature" validate:"min=0,max=2"`
	SynthesisNumPredict  int     `mapstructure:"synthesis_num_predict" yaml:"synthesis_num_predict" validate:"min=0"`
}

// DefaultConfig returns the deliberation defaults.
func DefaultConfig() Config {
	return Config{
		ChiefCode:            "matter-lead",
		MaxCrossExaminations: DefaultMaxCrossExaminations,
		TruncateChars:        DefaultTruncateChars,
		DefaultLocale:        DefaultLocale,
		AnalysisTemperature:  0.7,
		ChallengeTemperature: 0.8,
		SynthesisTemperature: 0.5,
		SynthesisNumPredict:  1024,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxCrossExaminations < 0 {
		return fmt.Errorf("max_cross_examinations must be >= 0")
	}
	if c.TruncateChars < 0 {
		return fmt.Errorf("truncate_chars must be >= 0")
	}
	if c.MaxParallel < 0 {
		return fmt.Errorf("max_parallel must be >= 0")
	}
	if _, err := LocaleInstruction(c.DefaultLocale, c.DefaultLocale); err != nil {
		return err
	}
	return nil
}
