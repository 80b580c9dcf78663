package llm

// CallOption is a functional option for configuring a request to the gateway.
type CallOption func(*callConfig)

type callConfig struct {
	options Options
	agent   string
	system  string
}

// WithTemperature sets the sampling temperature. Lower values suit
// analytical prompts, higher values suit brainstorming.
func WithTemperature(temperature float64) CallOption {
	return func(c *callConfig) {
		c.options.Temperature = temperature
	}
}

// WithTopP sets the nucleus sampling parameter (0.0 - 1.0).
func WithTopP(topP float64) CallOption {
	return func(c *callConfig) {
		c.options.TopP = topP
	}
}

// WithTopK limits sampling to the K most likely tokens.
func WithTopK(topK int) CallOption {
	return func(c *callConfig) {
		c.options.TopK = topK
	}
}

// WithNumPredict sets the maximum number of tokens to generate.
func WithNumPredict(n int) CallOption {
	return func(c *callConfig) {
		c.options.NumPredict = n
	}
}

// WithStop sets sequences that stop generation when encountered.
func WithStop(sequences ...string) CallOption {
	return func(c *callConfig) {
		c.options.Stop = sequences
	}
}

// WithOptions replaces all sampling options at once.
func WithOptions(opts Options) CallOption {
	return func(c *callConfig) {
		c.options = opts
	}
}

// WithAgent tags the request with the agent it is made for.
func WithAgent(agent string) CallOption {
	return func(c *callConfig) {
		c.agent = agent
	}
}

// WithSystem sets the system prompt of a Generate call. The safety
// preamble is still prepended to it.
func WithSystem(system string) CallOption {
	return func(c *callConfig) {
		c.system = system
	}
}

func applyCallOptions(defaults Options, opts ...CallOption) callConfig {
	cfg := callConfig{options: defaults}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
