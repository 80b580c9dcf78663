package providers

import (
	"github.com/tmc/langchaingo/llms"

	"github.com/datacendia/council/internal/llm"
)

// toSchemaMessages converts gateway messages to langchaingo MessageContent
func toSchemaMessages(messages []llm.Message) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(messages))

	for _, msg := range messages {
		role := llms.ChatMessageTypeHuman
		switch msg.Role {
		case llm.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case llm.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}

		result = append(result, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(msg.Content)},
		})
	}

	return result
}

// fromLangchainResponse converts a langchaingo response to a gateway response
func fromLangchainResponse(resp *llms.ContentResponse, model string) *llm.CompletionResponse {
	out := &llm.CompletionResponse{Model: model, FinishReason: llm.FinishReasonStop}
	if resp == nil || len(resp.Choices) == 0 {
		return out
	}

	choice := resp.Choices[0]
	out.Content = choice.Content
	out.FinishReason = finishReason(choice.StopReason)
	return out
}

func finishReason(reason string) llm.FinishReason {
	switch reason {
	case "length", "max_tokens":
		return llm.FinishReasonLength
	default:
		return llm.FinishReasonStop
	}
}

// buildCallOptions converts request options to langchaingo call options.
// Zero values are left for the backend to default.
func buildCallOptions(req llm.CompletionRequest) []llms.CallOption {
	callOpts := make([]llms.CallOption, 0, 6)
	opts := req.Options

	if req.Model != "" {
		callOpts = append(callOpts, llms.WithModel(req.Model))
	}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if opts.TopP > 0 {
		callOpts = append(callOpts, llms.WithTopP(opts.TopP))
	}
	if opts.TopK > 0 {
		callOpts = append(callOpts, llms.WithTopK(opts.TopK))
	}
	if opts.NumPredict > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.NumPredict))
	}
	if len(opts.Stop) > 0 {
		callOpts = append(callOpts, llms.WithStopWords(opts.Stop))
	}

	return callOpts
}
