package summarizer

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// systemInstruction pins the tone of generated summaries: calm, formal,
// jargon-free plain text aimed at everyday readers.
const systemInstruction = "You are an AI assistant that summarizes PHIVOLCS earthquake reports. " +
	"Your tone should be calm, and formal but still easy-to-digest — as if you're explaining the situation to everyday Filipinos. " +
	"Avoid technical jargon, but keep the facts accurate. Avoid greetings as well -- just straight to the report. " +
	"Never use decorations (like bold, italics, headers, or bullets). " +
	"Respond in plain text only."

// GeminiGenerator implements Generator against the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGemini creates a generator bound to the given API key and model.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate asks Gemini for a summary of the prompt.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("empty generation response")
	}
	return text, nil
}
