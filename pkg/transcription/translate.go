package transcription

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/otherjamesbrown/notetaker/pkg/llm"
)

// translationTemperature keeps translations close to the source wording.
const translationTemperature = 0.3

// Translator translates text into English.
type Translator interface {
	Translate(ctx context.Context, text string, from language.Tag) (string, error)
}

// LLMTranslator translates with a chat-completion provider.
type LLMTranslator struct {
	provider llm.Provider
}

// NewLLMTranslator creates a translator backed by provider.
func NewLLMTranslator(provider llm.Provider) *LLMTranslator {
	return &LLMTranslator{provider: provider}
}

// TranslationPrompt returns the system prompt for translating from the named language.
func TranslationPrompt(from language.Tag) string {
	return fmt.Sprintf("You are a translator. Translate the following %s text to English. Maintain the meaning and context.",
		LanguageName(from))
}

// Translate implements Translator.
func (t *LLMTranslator) Translate(ctx context.Context, text string, from language.Tag) (string, error) {
	resp, err := t.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: TranslationPrompt(from),
		Prompt:       text,
		Temperature:  translationTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("translate from %s: %w", from, err)
	}
	return strings.TrimSpace(resp.Content), nil
}
