// Package council runs multi-agent deliberations.
//
// A deliberation moves through a fixed sequence of phases:
//
//	init -> initial_analysis -> cross_examination (optional) -> synthesis -> complete
//
// During initial analysis every selected agent answers the question
// concurrently. Cross-examination then pairs agents according to the
// catalog's conflict rules: the challenger critiques the target's answer
// and the target rebuts. Finally the chief agent synthesises a single
// recommendation, or, when the chief is not online, the answers are
// concatenated without a model call.
//
// A failure of any single agent call is contained: the agent's
// contribution becomes a placeholder and the deliberation continues. Only
// the absence of any online agent fails the whole session.
package council
