package usecase

// DefaultFailureModes is the pre-mortem used when no model reply is usable.
func DefaultFailureModes() []FailureMode {
	return []FailureMode{
		{
			Title:       "Execution capacity overestimated",
			Description: "The teams responsible lacked the time or skills to deliver alongside existing commitments.",
			Likelihood:  4, Impact: 4,
			Mitigation: "Name an accountable owner, ring-fence capacity and review staffing at each milestone.",
		},
		{
			Title:       "Costs exceeded the business case",
			Description: "Implementation and run costs grew faster than forecast and eroded the expected return.",
			Likelihood:  3, Impact: 4,
			Mitigation: "Set a contingency budget and a cost threshold that triggers a formal review.",
		},
		{
			Title:       "Stakeholders were not aligned",
			Description: "Key customers, employees or partners resisted the change or were not consulted early enough.",
			Likelihood:  3, Impact: 3,
			Mitigation: "Map stakeholders before launch and run a communication plan with feedback loops.",
		},
		{
			Title:       "Regulatory or legal exposure",
			Description: "The decision created obligations or liabilities that were not assessed up front.",
			Likelihood:  2, Impact: 5,
			Mitigation: "Obtain a compliance review before commitment and document residual risk acceptance.",
		},
		{
			Title:       "Security weaknesses introduced",
			Description: "New systems, vendors or data flows expanded the attack surface without matching controls.",
			Likelihood:  3, Impact: 4,
			Mitigation: "Include a security assessment in the launch criteria and monitor new data flows.",
		},
		{
			Title:       "Market conditions changed",
			Description: "Demand, pricing or competitor moves shifted and invalidated core assumptions.",
			Likelihood:  3, Impact: 3,
			Mitigation: "Define leading indicators and checkpoints at which the decision is revisited.",
		},
	}
}

var defaultBoardQuestions = map[string][]BoardQuestion{
	"cfo": {
		{Question: "What is the payback period and how sensitive is it to a 20% cost overrun?", Concern: "Return on investment", Severity: "high"},
		{Question: "How is this funded and what does it displace?", Concern: "Capital allocation", Severity: "medium"},
	},
	"ciso": {
		{Question: "What new data or systems does this expose and who has access?", Concern: "Attack surface", Severity: "high"},
		{Question: "Has a third-party risk assessment been done for every vendor involved?", Concern: "Supply chain risk", Severity: "medium"},
	},
	"coo": {
		{Question: "Which teams deliver this and what do they stop doing?", Concern: "Operational capacity", Severity: "high"},
		{Question: "What is the rollback plan if launch metrics miss target?", Concern: "Operational resilience", Severity: "medium"},
	},
	"cmo": {
		{Question: "How will customers perceive this and what is the message?", Concern: "Brand and positioning", Severity: "medium"},
		{Question: "Which customer segment benefits first and how do we measure adoption?", Concern: "Market adoption", Severity: "medium"},
	},
}

var genericBoardQuestions = []BoardQuestion{
	{Question: "What are the top three risks and who owns each?", Concern: "Risk ownership", Severity: "high"},
	{Question: "What evidence would make us stop or reverse this decision?", Concern: "Decision criteria", Severity: "medium"},
}

// DefaultBoardQuestions returns the fixed questions for a director code.
func DefaultBoardQuestions(code string) []BoardQuestion {
	qs, ok := defaultBoardQuestions[code]
	if !ok {
		qs = genericBoardQuestions
	}
	return append([]BoardQuestion(nil), qs...)
}
