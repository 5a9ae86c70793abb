package llm

import (
	"encoding/json"
	"strings"
)

// DefaultLanguage is used when no answer language is configured.
const DefaultLanguage = "English"

func lang(language string) string {
	if l := strings.TrimSpace(language); l != "" {
		return l
	}
	return DefaultLanguage
}

// BuildTextSystemPrompt is the system message of the text analysis.
func BuildTextSystemPrompt(language string) string {
	parts := []string{
		"You are a helpful assistant analyzing OCR outputs. It's important to remember that these outputs may represent only a part of the document.",
		"Provide the following information:",
		"1. Creation date of the document.",
		"2. A short title of 3-4 words.",
		"3. A meaningful summary of 3-4 sentences.",
		"4. Creator/Issuer.",
		"5. Suitable keywords/tags related to the content.",
		"6. Rate the importance of the document on a scale from 0 (unimportant) to 10 (vital).",
		"7. Rate your confidence for each of the above points on a scale from 0 (no information) over 5 (few hints) to 10 (very sure).",
		"You always answer in " + lang(language) + " language.",
		"For gathering information, you use the given filename, pathname and OCR-analyzed text.",
		"You always answer in a specified JSON format.",
	}
	return strings.Join(parts, "\n")
}

// BuildTextUserIntro asks the model to extend recordJSON and carries the
// document context that precedes the page texts.
func BuildTextUserIntro(recordJSON, filename, folder string) string {
	var b strings.Builder
	b.WriteString("Analyze the following document context and extend the existing information by keeping this JSON format: ")
	b.WriteString(recordJSON)
	b.WriteString("\nContext info:\n")
	if filename != "" {
		b.WriteString("Filename: ")
		b.WriteString(filename)
		b.WriteString("\n")
	}
	if folder != "" {
		b.WriteString("Folder path: ")
		b.WriteString(folder)
		b.WriteString("\n")
	}
	b.WriteString("Content:\n")
	return b.String()
}

// BuildImagePrompt is the intro block of the image analysis.
func BuildImagePrompt(recordJSON, language string) string {
	return "You are a helpful assistant analyzing images inside of documents. Based on the shown images and page texts, provide:" +
		" creation date, 3-4 word title, 3-4 sentence summary, creator/issuer, suitable keywords/tags," +
		" importance 0-10, and per-field confidence 0-10. " +
		"Always answer in " + lang(language) + ". Keep the exact JSON format provided in the input." +
		" Extend this JSON consistently: " + recordJSON
}

// BuildTagMessages asks for a normalization of the collection's tags.
func BuildTagMessages(tags []string, language string) []Message {
	system := "You are a helpful assistant for unifying and normalizing tags/keywords. " +
		"Always answer in " + lang(language) + ". Output must be a JSON list of objects with keys 'original' and 'replacement'."
	list, _ := json.Marshal(tags)
	user := "Given the following unique tags across a document collection, propose replacements to normalize synonyms," +
		" merge duplicates, correct case, and simplify taxonomy (replace with empty string to drop).\n\n" + string(list)
	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}
