package council

import (
	"fmt"
	"strings"
)

// DefaultTruncateChars bounds how much of a target's answer a challenger sees.
const DefaultTruncateChars = 1000

func analysisPrompt(question string) string {
	var sb strings.Builder
	sb.WriteString("The council has been asked the following question.\n\n")
	fmt.Fprintf(&sb, "QUESTION: %s\n\n", question)
	sb.WriteString("Give your independent analysis from the perspective of your role. ")
	sb.WriteString("State your recommendation, the main risks you see and what would change your view.")
	return sb.String()
}

func challengePrompt(question string, target AgentResponse, rationale string, limit int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "QUESTION: %s\n\n", question)
	fmt.Fprintf(&sb, "%s answered:\n\"\"\"\n%s\n\"\"\"\n\n", target.AgentName, truncate(target.Content, limit))
	if rationale != "" {
		fmt.Fprintf(&sb, "Focus: %s\n\n", rationale)
	}
	fmt.Fprintf(&sb, "Challenge this analysis constructively. Identify the weakest assumption, ")
	fmt.Fprintf(&sb, "the risk %s underestimates and the evidence that would be needed. Be concise.", target.AgentName)
	return sb.String()
}

func rebuttalPrompt(question, challengerName, challenge string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "QUESTION: %s\n\n", question)
	fmt.Fprintf(&sb, "%s challenged your analysis:\n\"\"\"\n%s\n\"\"\"\n\n", challengerName, challenge)
	sb.WriteString("Respond to the challenge. Concede what is valid, defend what is not and ")
	sb.WriteString("state whether your recommendation changes. Be concise.")
	return sb.String()
}

func synthesisPrompt(question string, responses []AgentResponse, crosses []CrossExamination, names map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "QUESTION: %s\n\n", question)

	sb.WriteString("## Council analyses\n\n")
	for _, r := range responses {
		fmt.Fprintf(&sb, "### %s\n%s\n\n", r.AgentName, r.Content)
	}

	if len(crosses) > 0 {
		sb.WriteString("## Cross-examination\n\n")
		for _, x := range crosses {
			fmt.Fprintf(&sb, "### %s challenges %s\n%s\n\n", names[x.ChallengerID], names[x.TargetID], x.Challenge)
			fmt.Fprintf(&sb, "Rebuttal from %s:\n%s\n\n", names[x.TargetID], x.Rebuttal)
		}
	}

	sb.WriteString("As chief of the council, synthesise a single recommendation. ")
	sb.WriteString("Note where the council agrees, where it disagrees and how you resolve it, ")
	sb.WriteString("then list the concrete next steps.")
	return sb.String()
}

// concatenateSynthesis is the no-model fallback used when the chief is
// not available.
func concatenateSynthesis(responses []AgentResponse) string {
	var sb strings.Builder
	for i, r := range responses {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "**%s**: %s", r.AgentName, r.Content)
	}
	return sb.String()
}

func placeholder(kind string, err error) string {
	return fmt.Sprintf("%s unavailable: %v", kind, err)
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		limit = DefaultTruncateChars
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
