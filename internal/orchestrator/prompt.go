package orchestrator

import (
	"fmt"
	"strings"
)

// promptTemplate instructs the model to answer strictly from the supplied
// context. Source names stay out of the answer; students see prose, not
// citations.
const promptTemplate = `You are a helpful campus assistant answering student questions.

Answer the question using ONLY the information in the context below.
If the context does not contain the answer, say you don't have that information.
Do not invent facts, dates, fees, or policies. Do not mention the context,
sources, or document names in your answer. Keep the answer short and direct.

Context:
%s

Question: %s

Answer:`

// BuildPrompt assembles the generation prompt from the retrieved context
// and the student's question.
func BuildPrompt(contextText, question string) string {
	return fmt.Sprintf(promptTemplate, strings.TrimSpace(contextText), strings.TrimSpace(question))
}
