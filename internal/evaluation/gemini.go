package evaluation

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used for scoring
const DefaultModel = "gemini-2.5-flash"

const systemInstruction = `You are an AI assistant embedded inside a live online interview platform.
Speech from the interviewer and the candidate is converted to text in real time and sent to you.

You will be given a JSON object containing the interview domain, the interviewer's question, and the candidate's answer.

1. Interviewer question:
   - Decide whether the question belongs to the given domain.
   - Score its relevance to the domain from 0 to 100.

2. Candidate answer:
   - Decide whether the answer correctly and clearly responds to the question.
   - Score its relevance to the question from 0 to 100.

3. Suggested questions:
   - Provide exactly 3 practical, moderately challenging questions the interviewer can ask next.
   - They must belong strictly to the domain.

Judge the question only against the domain and the answer only against the current question.
Respond with a single JSON object that conforms to the provided schema.`

var resultSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"question_relevance_score": {
			Type:        genai.TypeInteger,
			Description: "A score from 0-100 indicating how relevant the interviewer's question is to the specified domain.",
		},
		"answer_relevance_score": {
			Type:        genai.TypeInteger,
			Description: "A score from 0-100 indicating how relevant the candidate's answer is to the asked question.",
		},
		"suggested_questions": {
			Type:        genai.TypeArray,
			Description: "Three new, domain-relevant interview questions for the interviewer.",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"question_relevance_score", "answer_relevance_score", "suggested_questions"},
}

// GeminiGenerator calls the Gemini API with the evaluation schema
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a generator; an empty key is ErrConfiguration
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrConfiguration
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate sends prompt as the user turn and returns the JSON text
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    resultSchema,
	})
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
