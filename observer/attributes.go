package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for routing observability spans and metrics.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")
	AttrLLMMethod   = attribute.Key("llm.method")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrCostUSD      = attribute.Key("llm.cost_usd")

	AttrToolCount = attribute.Key("llm.tool_count")
	AttrToolNames = attribute.Key("llm.tool_names")

	AttrStreamChunks = attribute.Key("llm.stream_chunks")

	AttrAgentID     = attribute.Key("agent.id")
	AttrAgentName   = attribute.Key("agent.name")
	AttrAgentStatus = attribute.Key("agent.status")

	AttrUserID    = attribute.Key("chat.user_id")
	AttrSessionID = attribute.Key("chat.session_id")

	AttrStorageOp      = attribute.Key("storage.operation")
	AttrStorageBackend = attribute.Key("storage.backend")
)
