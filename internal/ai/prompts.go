package ai

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxPromptChars caps the article text placed in a prompt.
const MaxPromptChars = 10000

const summarizeSystemPrompt = `You are a technical news editor. You write concise, factual English summaries of articles for busy engineers. Cover the main points and any concrete numbers or technologies. Do NOT add a heading or a prefix such as "Summary:". Start directly with the first sentence.`

// SummaryPrompt describes one summarization request.
type SummaryPrompt struct {
	Title    string
	Source   string
	Content  string
	Language string // English name of the source language, empty for English
	MinWords int
	MaxWords int
	// Expand asks for a longer answer after a previous reply fell short.
	Expand bool
}

// Build returns the system and user prompts. Non-English content is
// translated and summarized in the same call.
func (p SummaryPrompt) Build() (systemPrompt string, userPrompt string) {
	content := truncateChars(p.Content, MaxPromptChars)

	var b strings.Builder
	if p.Language != "" && p.Language != "English" {
		fmt.Fprintf(&b, "Read the following article written in %s and write a concise summary of it in English.\n\n", p.Language)
	} else {
		b.WriteString("Write a concise summary of the following article.\n\n")
	}

	b.WriteString("Requirements:\n")
	b.WriteString("- The summary must be in English\n")
	fmt.Fprintf(&b, "- Length: %d-%d words\n", p.MinWords, p.MaxWords)
	if p.Expand {
		fmt.Fprintf(&b, "- A previous answer was too short. Write at least %d words and include more detail from the article\n", p.MinWords)
	}
	b.WriteString("- Focus on key points and main ideas\n\n")

	if p.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", p.Title)
	}
	if p.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", p.Source)
	}
	b.WriteString("Article:\n")
	b.WriteString(content)

	return summarizeSystemPrompt, b.String()
}

// CleanSummary strips whitespace and heading prefixes models sometimes add.
func CleanSummary(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"# Summary", "Summary:", "English Summary:", "**Summary:**", "**Summary**"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = strings.TrimSpace(after)
		}
	}
	return s
}

func truncateChars(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
