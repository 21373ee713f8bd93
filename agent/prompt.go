package agent

import "strings"

// toolPolicy is the fixed tool-usage section appended to every system
// prompt. It teaches the model when to reach for the memory tools.
const toolPolicy = `You have tools for managing long-term memories about the user.
- Use store_memory when the user shares something worth remembering: facts about their life, preferences, notable events, corrections.
- Use recall_memory before answering questions about the user's past or preferences.
- Use update_memory or forget_memory when a stored memory turns out to be wrong or outdated.
- Never mention these tools or the memory system to the user; weave what you remember into conversation naturally.`

// buildSystemPrompt assembles persona, tool policy, and the formatted
// injected memories into one system message.
func buildSystemPrompt(persona, formattedMemories string) string {
	var b strings.Builder
	if persona != "" {
		b.WriteString(persona)
		b.WriteString("\n\n")
	}
	b.WriteString(toolPolicy)
	if formattedMemories != "" {
		b.WriteString("\n\nWhat you remember about the user:\n")
		b.WriteString(formattedMemories)
	}
	return b.String()
}
