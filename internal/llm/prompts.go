package llm

import (
	"fmt"
	"strings"
)

// ResonancePrompt asks the model how well content fits a basin. The reply is
// expected to be a single number between 0 and 1.
func ResonancePrompt(content, name, description string, concepts []string) string {
	conceptLine := "none listed"
	if len(concepts) > 0 {
		conceptLine = strings.Join(concepts, ", ")
	}
	if description == "" {
		description = name
	}

	return fmt.Sprintf(`You are scoring semantic resonance between a piece of content and a topic basin.

BASIN: %s
DESCRIPTION: %s
CONCEPTS: %s

CONTENT:
%s

Rate how strongly the content belongs to this basin.
- 1.0: squarely on topic
- 0.5: loosely related or unclear
- 0.0: unrelated

Return ONLY the number, no other text.`, name, description, conceptLine, content)
}
