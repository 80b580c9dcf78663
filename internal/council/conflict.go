package council

import (
	"github.com/datacendia/council/internal/agent"
)

// DefaultMaxCrossExaminations caps the pairings selected per session.
const DefaultMaxCrossExaminations = 3

// Pairing is a selected conflict rule: Challenger critiques Target.
type Pairing struct {
	Challenger agent.Agent
	Target     agent.Agent
	Rationale  string
}

// DetectConflicts walks rules in declared order and returns the pairings
// whose source and target codes are both among participants, stopping at
// limit. A limit <= 0 selects DefaultMaxCrossExaminations.
func DetectConflicts(rules []agent.ConflictRule, participants []agent.Agent, limit int) []Pairing {
	if limit <= 0 {
		limit = DefaultMaxCrossExaminations
	}

	byCode := make(map[string]agent.Agent, len(participants))
	for _, a := range participants {
		byCode[a.Code] = a
	}

	var pairings []Pairing
	for _, rule := range rules {
		if len(pairings) == limit {
			break
		}
		src, ok1 := byCode[rule.Source]
		dst, ok2 := byCode[rule.Target]
		if !ok1 || !ok2 || src.ID == dst.ID {
			continue
		}
		pairings = append(pairings, Pairing{Challenger: src, Target: dst, Rationale: rule.Rationale})
	}
	return pairings
}
