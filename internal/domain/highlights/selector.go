package highlights

import (
	"context"
	"errors"
	"fmt"

	"github.com/forPelevin/hlclip/internal/apperr"
	"github.com/forPelevin/hlclip/internal/ports"
	"github.com/forPelevin/hlclip/internal/types"
)

const systemPrompt = "You are an expert video editor."

// Selector picks the highlight window with a single reasoning call.
type Selector struct {
	reasoner ports.Reasoner
	policy   Policy
}

func NewSelector(r ports.Reasoner, p Policy) *Selector {
	return &Selector{reasoner: r, policy: p}
}

func (s *Selector) Select(ctx context.Context, tr types.Transcript) (types.TimeRange, error) {
	if len(tr.Segments) == 0 {
		return types.TimeRange{}, apperr.New(apperr.KindEmptyTranscript, "select highlight", "transcript has no segments")
	}
	answer, err := s.reasoner.Complete(ctx, systemPrompt, buildPrompt(tr.FullText()))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return types.TimeRange{}, apperr.Wrap(apperr.KindReasoning, "select highlight", fmt.Errorf("timeout: %w", err))
		}
		return types.TimeRange{}, apperr.Classify(apperr.KindReasoning, "select highlight", err)
	}
	r, err := ParseRange(answer)
	if err != nil {
		return types.TimeRange{}, err
	}
	return s.policy.Apply(r, tr)
}

func buildPrompt(fullText string) string {
	return "The following is a transcript of a video:\n\n---\n" +
		fullText +
		"\n---\n\n" +
		"Analyze the transcript and identify the single most exciting, climactic, or emotionally impactful " +
		"30-60 second moment. Your response MUST be only the start and end timestamps (in seconds) of that " +
		"moment, formatted as 'start_time,end_time'. For example: '123.45,170.21'. " +
		"Do not include any other text or explanation."
}
