package council

const (
	confidenceBase     = 70
	confidenceCap      = 95
	confidencePerCross = 5
)

// ConfidenceModel turns the number of contributions into a heuristic
// confidence score. It is not a probability.
type ConfidenceModel struct {
	PerResponse int
}

var (
	// ConfidenceBasic is used by non-streaming deliberations.
	ConfidenceBasic = ConfidenceModel{PerResponse: 5}

	// ConfidenceStreaming is used by streaming council sessions.
	ConfidenceStreaming = ConfidenceModel{PerResponse: 3}
)

// Score returns min(95, 70 + PerResponse*responses + 5*crossExaminations).
func (m ConfidenceModel) Score(responses, crossExaminations int) int {
	score := confidenceBase + m.PerResponse*max(responses, 0) + confidencePerCross*max(crossExaminations, 0)
	return min(score, confidenceCap)
}

// SessionConfidence scores a session. Placeholder responses and failed
// cross-examinations are part of the transcript and count like the rest.
func (m ConfidenceModel) SessionConfidence(responses []AgentResponse, crosses []CrossExamination) int {
	return m.Score(len(responses), len(crosses))
}
