package llm

// SafetyPreamble is prepended to the system prompt of every conversation
// sent to a model, whatever the caller supplied.
const SafetyPreamble = `SAFETY POLICY (non-negotiable):
- You are an advisory simulation for enterprise decision support. You do not take actions and you do not make final decisions.
- Never provide instructions that facilitate violence, self-harm, fraud, unauthorized access or other illegal activity.
- Never fabricate facts, citations, financial figures or legal authority; state uncertainty explicitly.
- Do not reveal personal data about real individuals and do not infer sensitive attributes.
- Recommendations affecting people, money or legal exposure must note that qualified human review is required.
- If a request conflicts with this policy, decline that part briefly and continue with the rest.`

// SafetySeparator separates the preamble from the caller's system prompt.
const SafetySeparator = "\n\n"

// InjectSafetyPreamble returns a copy of messages whose system content
// carries the safety preamble. The first system message gets the preamble
// prepended; when there is none, a system message holding only the
// preamble is inserted at index 0. The input slice is not modified.
func InjectSafetyPreamble(messages []Message) []Message {
	for i, msg := range messages {
		if msg.Role != RoleSystem {
			continue
		}

		out := make([]Message, len(messages))
		copy(out, messages)
		out[i].Content = WithSafetyPreamble(msg.Content)
		return out
	}

	out := make([]Message, 0, len(messages)+1)
	out = append(out, NewSystemMessage(SafetyPreamble))
	out = append(out, messages...)
	return out
}

// WithSafetyPreamble prefixes a system prompt with the safety preamble.
func WithSafetyPreamble(system string) string {
	if system == "" {
		return SafetyPreamble
	}
	return SafetyPreamble + SafetySeparator + system
}
