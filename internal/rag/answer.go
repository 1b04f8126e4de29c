package rag

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// NoResultsAnswer is returned by Ask when the index holds nothing
// relevant. No model call is made in that case.
const NoResultsAnswer = "No relevant transcripts found. Have you indexed any files?"

const answerSystemPrompt = `You are a helpful assistant analyzing meeting transcripts.
Answer questions based on the provided transcript excerpts.
The transcripts may not be in English - respond in the same language as the question.
If you can't find the answer in the provided context, say so.
Always cite which meeting/date the information comes from.`

// answerTemperature keeps answers grounded in the retrieved excerpts.
const answerTemperature = 0.3

// Searcher retrieves relevant transcript chunks for a query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Answerer answers questions over indexed transcripts with
// retrieval-augmented generation.
type Answerer struct {
	client   *genai.Client
	model    string
	searcher Searcher
}

// NewAnswerer creates an Answerer using the given chat model.
func NewAnswerer(ctx context.Context, apiKey, model string, searcher Searcher) (*Answerer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Answerer{client: client, model: model, searcher: searcher}, nil
}

// Ask retrieves the limit most relevant chunks and asks the model to
// answer the question from them, citing meeting and date.
func (a *Answerer) Ask(ctx context.Context, question string, limit int) (string, error) {
	results, err := a.searcher.Search(ctx, question, limit)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}

	if len(results) == 0 {
		return NoResultsAnswer, nil
	}

	prompt := BuildPrompt(question, results)

	resp, err := a.client.Models.GenerateContent(ctx, a.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:       genai.Ptr[float32](answerTemperature),
			SystemInstruction: genai.NewContentFromText(answerSystemPrompt, genai.RoleUser),
		},
	)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}

	answer := resp.Text()
	if answer == "" {
		return "", fmt.Errorf("empty model response")
	}

	return answer, nil
}

// BuildPrompt assembles the user prompt from retrieved chunks, labeling
// each excerpt with its meeting and date so the model can cite them.
func BuildPrompt(question string, results []Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[%s - %s]\n%s", r.Meeting, r.Date, r.Text)
	}

	return fmt.Sprintf("Based on these transcript excerpts:\n\n%s\n\n---\n\nQuestion: %s",
		strings.Join(parts, "\n\n---\n\n"), question)
}
