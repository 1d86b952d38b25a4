package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const narratorSystemPrompt = `You are a dramatic storyteller for a medieval werewolf game. When players are killed, you tell a short atmospheric story about their fate. Keep it to 2-3 sentences. Be gothic and dramatic, fitting for a village plagued by werewolves.`

// Narrator generates a dramatic story after deaths in the game.
// onChunk is called with each text chunk as it streams in.
type Narrator interface {
	Tell(ctx context.Context, prompt string, onChunk func(string)) (string, error)
}

type llmNarrator struct {
	llm          llms.Model
	systemPrompt string
	callOpts     []llms.CallOption
}

func (n *llmNarrator) Tell(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, n.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	var fullText strings.Builder
	opts := append(n.callOpts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		text := string(chunk)
		fullText.WriteString(text)
		if onChunk != nil {
			onChunk(text)
		}
		return nil
	}))

	_, err := n.llm.GenerateContent(ctx, messages, opts...)
	return strings.TrimSpace(fullText.String()), err
}

// narrate runs the narrator with a bounded deadline and returns the complete
// story text. Room delivery happens on the caller's side, as a single
// broadcast once the text is final.
func narrate(n Narrator, round int, casualties []string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	prompt := fmt.Sprintf(
		"It is the morning after night %d. The villagers found %s dead.\n\nTell a short dramatic story (2-3 sentences) about what happened to them.",
		round, strings.Join(casualties, " and "))
	return n.Tell(ctx, prompt, nil)
}

// buildCallOpts builds LLM call options from the config.
func buildCallOpts(cfg AppConfig) []llms.CallOption {
	var opts []llms.CallOption

	if cfg.NarratorTemperature != "" {
		if f, err := strconv.ParseFloat(cfg.NarratorTemperature, 64); err == nil {
			opts = append(opts, llms.WithTemperature(f))
			log.Printf("Narrator: temperature=%.2f", f)
		} else {
			log.Printf("Narrator: invalid temperature %q: %v", cfg.NarratorTemperature, err)
		}
	}

	return opts
}

// initNarrator builds the narrator from config, or returns nil when no
// provider is configured (feature disabled).
func initNarrator(cfg AppConfig) Narrator {
	provider := cfg.NarratorProvider
	model := cfg.NarratorModel
	callOpts := buildCallOpts(cfg)

	switch provider {
	case "ollama":
		llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(cfg.NarratorOllamaURL))
		if err != nil {
			log.Printf("Narrator: failed to init Ollama (%s at %s): %v", model, cfg.NarratorOllamaURL, err)
			return nil
		}
		log.Printf("Narrator: Ollama model=%s url=%s", model, cfg.NarratorOllamaURL)
		return &llmNarrator{llm: llm, systemPrompt: narratorSystemPrompt, callOpts: callOpts}
	case "openai":
		llm, err := openai.New(openai.WithModel(model))
		if err != nil {
			log.Printf("Narrator: failed to init OpenAI (%s): %v", model, err)
			return nil
		}
		log.Printf("Narrator: OpenAI model=%s", model)
		return &llmNarrator{llm: llm, systemPrompt: narratorSystemPrompt, callOpts: callOpts}
	case "claude":
		llm, err := anthropic.New(anthropic.WithModel(model))
		if err != nil {
			log.Printf("Narrator: failed to init Claude (%s): %v", model, err)
			return nil
		}
		log.Printf("Narrator: Claude model=%s", model)
		return &llmNarrator{llm: llm, systemPrompt: narratorSystemPrompt, callOpts: callOpts}
	case "gemini":
		llm, err := googleai.New(context.Background(), googleai.WithDefaultModel(model))
		if err != nil {
			log.Printf("Narrator: failed to init Gemini (%s): %v", model, err)
			return nil
		}
		log.Printf("Narrator: Gemini model=%s", model)
		return &llmNarrator{llm: llm, systemPrompt: narratorSystemPrompt, callOpts: callOpts}
	case "openai-compatible":
		if cfg.NarratorURL == "" {
			log.Printf("Narrator: narrator_url is required for openai-compatible provider")
			return nil
		}
		opts := []openai.Option{
			openai.WithModel(model),
			openai.WithBaseURL(cfg.NarratorURL),
		}
		if cfg.NarratorAPIKey != "" {
			opts = append(opts, openai.WithToken(cfg.NarratorAPIKey))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			log.Printf("Narrator: failed to init openai-compatible (%s at %s): %v", model, cfg.NarratorURL, err)
			return nil
		}
		log.Printf("Narrator: openai-compatible model=%s url=%s", model, cfg.NarratorURL)
		return &llmNarrator{llm: llm, systemPrompt: narratorSystemPrompt, callOpts: callOpts}
	default:
		log.Printf("Narrator: disabled (set narrator_provider to enable)")
		return nil
	}
}
