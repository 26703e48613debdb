// Package switchboard is a multi-agent conversational router. It accepts a
// user utterance together with a (user, session) identity, classifies which
// registered agent should handle it, dispatches the utterance to that agent,
// and persists both sides of the exchange as durable conversation history.
//
// The three core pieces are the Orchestrator (classify, select, dispatch,
// persist), the Classifier contract (how an agent is proposed with a
// confidence), and the ChatStorage contract (per user/session/agent message
// logs with a merged cross-agent timeline). Concrete agents, classifier
// back-ends, and storage back-ends plug in behind small interfaces; see the
// store, provider, observer, and knowledge subpackages.
package switchboard
