package answer

import "fmt"

// promptTemplate is the fixed grounding template. It instructs the model
// to answer only from the supplied context and to state explicitly when
// the context is insufficient, which keeps ungrounded claims out of the
// output even when retrieval surfaces weak matches.
const promptTemplate = `You are a medical assistant. Based on the following medical information, answer the user's question.
If the information provided doesn't contain the answer, say so clearly.

Medical Information:
%s

User Question: %s

Please provide a clear, accurate, and helpful answer based on the medical information above. Do not use any knowledge beyond the medical information supplied.`

// BuildPrompt renders the grounding prompt from a context block and the
// user's question. It is a pure function, unit-testable without the generation
// service.
func BuildPrompt(contextText, question string) string {
	return fmt.Sprintf(promptTemplate, contextText, question)
}
