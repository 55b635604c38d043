// Package metricskey declares the metrics emitted by the agents and
// the model adapters.
package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	StatsLLMMessagesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_messages_sent",
		Help:         "stats_llm_messages_sent provides total messages sent to LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMBytesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_sent",
		Help:         "stats_llm_bytes_sent provides total bytes sent to LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMBytesReceived = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_received",
		Help:         "stats_llm_bytes_received provides total bytes received from LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMInputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_input_tokens",
		Help:         "stats_llm_input_tokens provides total input tokens sent to LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMOutputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_output_tokens",
		Help:         "stats_llm_output_tokens provides total output tokens received from LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMTotalTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_total_tokens",
		Help:         "stats_llm_total_tokens provides total tokens sent and received from LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsAgentCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_calls_succeeded",
		Help:         "stats_agent_calls_succeeded provides total agent calls succeeded",
		RequiredTags: []string{"agent"},
	}

	StatsAgentCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_calls_failed",
		Help:         "stats_agent_calls_failed provides total agent calls failed",
		RequiredTags: []string{"agent"},
	}

	StatsAgentCallsRetried = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_calls_retried",
		Help:         "stats_agent_calls_retried provides total agent calls retried",
		RequiredTags: []string{"agent"},
	}

	StatsAgentParseErrors = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_parse_errors",
		Help:         "stats_agent_parse_errors provides total agent LLM parse errors",
		RequiredTags: []string{"agent"},
	}

	StatsAgentFallbacks = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_fallbacks",
		Help:         "stats_agent_fallbacks provides total agent fallback responses",
		RequiredTags: []string{"agent", "stage"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls not found",
		RequiredTags: []string{"tool"},
	}

	StatsGraphQueriesSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_graph_queries_succeeded",
		Help:         "stats_graph_queries_succeeded provides total graph queries succeeded",
		RequiredTags: []string{"database"},
	}

	StatsGraphQueriesFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_graph_queries_failed",
		Help:         "stats_graph_queries_failed provides total graph queries failed",
		RequiredTags: []string{"database"},
	}
)

// Perf
var (
	PerfAgentCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_agent_call",
		Help:         "perf_agent_call provides duration of agent call",
		RequiredTags: []string{"agent"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}

	PerfGraphQuery = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_graph_query",
		Help:         "perf_graph_query provides duration of graph query",
		RequiredTags: []string{"database"},
	}

	PerfQueryRun = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_query_run",
		Help:         "perf_query_run provides duration of an end to end query run",
		RequiredTags: []string{"agent"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfAgentCall,
	&PerfGraphQuery,
	&PerfQueryRun,
	&PerfToolCall,
	&StatsAgentCallsFailed,
	&StatsAgentCallsRetried,
	&StatsAgentCallsSucceeded,
	&StatsAgentFallbacks,
	&StatsAgentParseErrors,
	&StatsGraphQueriesFailed,
	&StatsGraphQueriesSucceeded,
	&StatsLLMBytesReceived,
	&StatsLLMBytesSent,
	&StatsLLMInputTokens,
	&StatsLLMMessagesSent,
	&StatsLLMOutputTokens,
	&StatsLLMTotalTokens,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
}
