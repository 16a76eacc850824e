package orchestrator

// Fixed user-facing messages. Clients key UI states off these exact
// strings, so they never vary per request.
const (
	// NotFoundMessage is returned when nothing relevant exists in the
	// knowledge base.
	NotFoundMessage = "I couldn't find information about that in the campus knowledge base. Try rephrasing, or contact the administration office."

	// HighTrafficMessage is returned when every generation attempt hit
	// quota limits.
	HighTrafficMessage = "I'm experiencing heavy traffic right now. Please try again in a moment."

	// SearchIssueMessage is returned when retrieval or generation failed
	// for reasons other than quota.
	SearchIssueMessage = "I ran into a problem while searching for your answer. Please try again."
)
