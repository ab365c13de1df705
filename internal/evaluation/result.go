package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrValidation covers bad requests and model output that breaks the contract
	ErrValidation = errors.New("evaluation validation failed")

	// ErrConfiguration is returned when no model credential is configured
	ErrConfiguration = errors.New("evaluation is not configured")
)

// SuggestionCount is the exact number of follow-up questions a result carries
const SuggestionCount = 3

// Request is one interviewer question and candidate answer pair
type Request struct {
	Domain              string `json:"domain"`
	InterviewerQuestion string `json:"interviewer_question"`
	CandidateAnswer     string `json:"candidate_answer"`
}

// Validate trims the fields and requires all of them
func (r *Request) Validate() error {
	r.Domain = strings.TrimSpace(r.Domain)
	r.InterviewerQuestion = strings.TrimSpace(r.InterviewerQuestion)
	r.CandidateAnswer = strings.TrimSpace(r.CandidateAnswer)

	var missing []string
	if r.Domain == "" {
		missing = append(missing, "domain")
	}
	if r.InterviewerQuestion == "" {
		missing = append(missing, "interviewer_question")
	}
	if r.CandidateAnswer == "" {
		missing = append(missing, "candidate_answer")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// Result scores both sides of the exchange and suggests what to ask next
type Result struct {
	QuestionRelevanceScore int      `json:"question_relevance_score"`
	AnswerRelevanceScore   int      `json:"answer_relevance_score"`
	SuggestedQuestions     []string `json:"suggested_questions"`
}

type rawResult struct {
	QuestionRelevanceScore *float64  `json:"question_relevance_score"`
	AnswerRelevanceScore   *float64  `json:"answer_relevance_score"`
	SuggestedQuestions     *[]string `json:"suggested_questions"`
}

// ParseResult decodes model output. Both scores must be integers in
// [0,100] and there must be exactly three non-empty suggestions.
func ParseResult(data []byte) (*Result, error) {
	var raw rawResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	questionScore, err := score("question_relevance_score", raw.QuestionRelevanceScore)
	if err != nil {
		return nil, err
	}
	answerScore, err := score("answer_relevance_score", raw.AnswerRelevanceScore)
	if err != nil {
		return nil, err
	}

	if raw.SuggestedQuestions == nil {
		return nil, fmt.Errorf("%w: suggested_questions missing", ErrValidation)
	}
	suggestions := *raw.SuggestedQuestions
	if len(suggestions) != SuggestionCount {
		return nil, fmt.Errorf("%w: expected %d suggested questions, got %d", ErrValidation, SuggestionCount, len(suggestions))
	}
	trimmed := make([]string, len(suggestions))
	for i, q := range suggestions {
		trimmed[i] = strings.TrimSpace(q)
		if trimmed[i] == "" {
			return nil, fmt.Errorf("%w: suggested question %d is empty", ErrValidation, i+1)
		}
	}

	return &Result{
		QuestionRelevanceScore: questionScore,
		AnswerRelevanceScore:   answerScore,
		SuggestedQuestions:     trimmed,
	}, nil
}

func score(field string, v *float64) (int, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: %s missing", ErrValidation, field)
	}
	if *v != math.Trunc(*v) || *v < 0 || *v > 100 {
		return 0, fmt.Errorf("%w: %s must be an integer in [0,100], got %v", ErrValidation, field, *v)
	}
	return int(*v), nil
}
