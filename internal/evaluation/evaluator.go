package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-assistant/internal/observability"
	"github.com/lexiqai/interview-assistant/internal/resilience"
)

// Generator turns a JSON prompt into a JSON answer following the result schema
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Evaluator scores interview exchanges through a Generator
type Evaluator struct {
	generator Generator
	breaker   *resilience.CircuitBreaker
	logger    zerolog.Logger
}

// NewEvaluator creates an evaluator. A nil generator reports
// ErrConfiguration on every call; a nil breaker disables it.
func NewEvaluator(generator Generator, breaker *resilience.CircuitBreaker, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		generator: generator,
		breaker:   breaker,
		logger:    logger.With().Str("component", "evaluator").Logger(),
	}
}

// Configured reports whether a generator is present
func (e *Evaluator) Configured() bool {
	return e.generator != nil
}

// Evaluate validates req, asks the model and validates its answer.
// Failures are returned as-is; there is no retry.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if e.generator == nil {
		return nil, ErrConfiguration
	}

	prompt, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prompt: %w", err)
	}

	started := time.Now()
	var result *Result
	call := func() error {
		text, err := e.generator.Generate(ctx, string(prompt))
		if err != nil {
			return err
		}
		result, err = ParseResult([]byte(text))
		if err != nil {
			// A bad answer is not an outage
			return resilience.Ignore(err)
		}
		return nil
	}

	if e.breaker != nil {
		err = e.breaker.Call(call)
	} else {
		err = call()
	}
	observability.RecordEvaluation(started, err == nil)

	if err != nil {
		if errors.Is(err, ErrValidation) {
			observability.RecordError("invalid_output", "evaluator")
		} else {
			observability.RecordError("request_failed", "evaluator")
		}
		e.logger.Error().Err(err).Str("domain", req.Domain).Msg("Evaluation failed")
		return nil, err
	}

	e.logger.Info().
		Str("domain", req.Domain).
		Int("question_score", result.QuestionRelevanceScore).
		Int("answer_score", result.AnswerRelevanceScore).
		Dur("latency", time.Since(started)).
		Msg("Evaluation completed")
	return result, nil
}
