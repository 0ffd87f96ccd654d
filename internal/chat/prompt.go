package chat

import (
	"embed"
	"encoding/json"
	"io/fs"
	"sort"
	"strings"
)

//go:embed knowledge/*.md
var knowledgeFS embed.FS

const assistantPreamble = `You are the SuperNomad travel assistant. You help digital nomads stay within
visa limits and avoid accidental tax residency. Be concise and practical.
Never claim certainty about immigration or tax law; point the user to official
sources for binding answers.`

// KnowledgeBase concatenates the embedded reference documents in name order.
func KnowledgeBase() (string, error) {
	entries, err := fs.Glob(knowledgeFS, "knowledge/*.md")
	if err != nil {
		return "", err
	}
	sort.Strings(entries)

	var b strings.Builder
	for _, name := range entries {
		data, err := knowledgeFS.ReadFile(name)
		if err != nil {
			return "", err
		}
		b.Write(data)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// SystemPrompt builds the system message from the knowledge base and the
// already sanitized user context.
func SystemPrompt(knowledge string, userContext map[string]any) string {
	var b strings.Builder
	b.WriteString(assistantPreamble)
	b.WriteString("\n\n# Reference\n\n")
	b.WriteString(knowledge)
	if len(userContext) > 0 {
		if data, err := json.MarshalIndent(userContext, "", "  "); err == nil {
			b.WriteString("\n# Traveller context\n\n")
			b.Write(data)
			b.WriteString("\n")
		}
	}
	return b.String()
}
