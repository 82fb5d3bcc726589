package interpreter

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/winnow/internal/logging"
	"github.com/aretw0/winnow/pkg/domain"
)

// Mode-specific minimum result sizes after filtering. Dropping below the
// minimum triggers deterministic fallback content.
const (
	minFeedback = 1
	minItems    = 3
)

// Interpretation is the structured result of one raw response.
type Interpretation struct {
	Feedback         []string
	FollowUpQuestion string
	Items            []string

	// Substituted marks that fallback content replaced filtered-out output.
	Substituted bool
}

// Interpreter parses raw reasoning output according to the strategy's mode.
type Interpreter struct {
	segmenter Segmenter
	filter    *Filter
	logger    *slog.Logger
}

// Option configures the Interpreter.
type Option func(*Interpreter)

// WithSegmenter substitutes the text segmentation strategy.
func WithSegmenter(s Segmenter) Option {
	return func(i *Interpreter) { i.segmenter = s }
}

// WithFilter substitutes the content-policy filter.
func WithFilter(f *Filter) Option {
	return func(i *Interpreter) { i.filter = f }
}

// WithLogger configures a logger for recovered parse problems.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interpreter) { i.logger = logger }
}

// New creates an Interpreter with the default segmenter and lexicon.
func New(opts ...Option) *Interpreter {
	i := &Interpreter{
		segmenter: NewMarkerSegmenter(),
		filter:    NewFilter(),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Interpret parses raw text under the given mode. Content-quality problems
// are always recovered locally: malformed items yield an empty list, and
// over-filtered results are backfilled from the focus topic.
func (i *Interpreter) Interpret(raw string, mode domain.OutputMode, topic string) Interpretation {
	switch mode {
	case domain.ModeItems:
		return i.interpretItems(raw, topic)
	default:
		return i.interpretFeedback(raw, topic)
	}
}

func (i *Interpreter) interpretItems(raw, topic string) Interpretation {
	parsed := ParseItems(raw)
	if len(parsed) == 0 {
		i.logger.Debug("items parse produced nothing", "raw_len", len(raw))
	}

	kept := i.filter.Keep(parsed)
	dropped := len(parsed) - len(kept)
	if dropped > 0 {
		i.logger.Debug("content filter dropped items", "dropped", dropped)
	}

	// Only filtering triggers substitution; a clean empty parse stays a
	// no-op for the caller.
	if dropped > 0 && len(kept) < minItems {
		return Interpretation{Items: fallbackItems(topic), Substituted: true}
	}
	return Interpretation{Items: kept}
}

func (i *Interpreter) interpretFeedback(raw, topic string) Interpretation {
	statements, followUp := i.segmenter.Segment(raw)

	kept := i.filter.Keep(statements)
	if followUp != "" && i.filter.Reject(followUp) {
		followUp = ""
	}

	if len(kept) < minFeedback {
		return Interpretation{
			Feedback:         fallbackFeedback(topic),
			FollowUpQuestion: followUp,
			Substituted:      true,
		}
	}
	return Interpretation{Feedback: kept, FollowUpQuestion: followUp}
}

// fallbackFeedback derives deterministic prompts from the focus topic so a
// fully filtered response still leaves the learner something to work with.
func fallbackFeedback(topic string) []string {
	if topic == "" {
		return []string{"Think about who feels this problem most sharply, and what they do about it today."}
	}
	return []string{
		fmt.Sprintf("Consider what about %q matters most to the people affected, and what they do about it today.", topic),
	}
}

func fallbackItems(topic string) []string {
	if topic == "" {
		topic = "your topic"
	}
	return []string{
		fmt.Sprintf("What does %s look like from the perspective of the person most affected?", topic),
		fmt.Sprintf("What is already being tried around %s, and where does it fall short?", topic),
		fmt.Sprintf("What would have to be true for %s to stop being a problem?", topic),
	}
}
