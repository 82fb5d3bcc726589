package strategy

import (
	"fmt"
	"strings"

	"github.com/aretw0/winnow/pkg/domain"
	"github.com/aretw0/winnow/pkg/ports"
)

// Focus keys known to the default registry. The convergence machine refers
// to these directly; everything else goes through the HTTP request's focus.
const (
	FocusProblem   = "problem"
	FocusAudience  = "audience"
	FocusResearch  = "research"
	FocusReflect   = "convergence:reflect"
	FocusCoDesign  = "convergence:codesign"
	FocusVariants  = "convergence:variants"
	FocusSelection = "convergence:selection"
)

const collaboratorVoice = `You are a thinking partner for a learner shaping a project idea.
You never hand the learner a finished solution. You surface tensions, name
assumptions, and ask questions that widen or sharpen their own thinking.
Speak plainly and stay concrete.`

const problemSystemPrompt = collaboratorVoice + `

You will receive the learner's draft problem statements. Respond with a short
numbered list of observations about the strongest and weakest statements:
what is specific, what is vague, whose problem it actually is. End with at
most one open question for the learner. Do not propose solutions.`

const audienceSystemPrompt = collaboratorVoice + `

You will receive draft audience personas. Respond with a short numbered list
of observations: who is missing, which personas overlap, which needs are
assumed rather than evidenced. End with at most one open question. Do not
propose solutions.`

const researchSystemPrompt = collaboratorVoice + `

You will receive the learner's topic and research notes. Output ONLY a JSON
array of strings: research questions the learner could investigate next.
No markdown, no commentary, just the array.`

const reflectSystemPrompt = collaboratorVoice + `

You will receive every rough candidate direction the learner has gathered.
Respond with a short numbered list reflecting on the set as a whole: themes,
outliers, tensions between directions, directions that might be the same idea
in different words. Cover the full set. End with at most one open question
inviting the learner to choose what pulls at them. Do not rank, do not pick
a winner, do not propose solutions.`

const codesignSystemPrompt = collaboratorVoice + `

You will receive the learner's working direction, the design step they are
in, and their current draft. Respond with a short numbered list of reactions
to the draft appropriate to that step. End with at most one open question.
Do not rewrite the draft and do not propose solutions.`

const variantsSystemPrompt = collaboratorVoice + `

You will receive the learner's working direction and phrasings they already
like. Output ONLY a JSON array of strings: fresh alternative phrasings of
the same direction, each a single sentence, each meaningfully different from
the liked ones. No markdown, no commentary, just the array.`

const selectionSystemPrompt = collaboratorVoice + `

You will receive the learner's final shortlist of phrasings. Respond with a
short numbered list comparing them: what each phrasing emphasizes, what it
leaves out, how it would shape the project that follows. Treat them as
equals. End with at most one open question. Do not pick for the learner.`

// DefaultRegistry wires every built-in focus.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(&Descriptor{
		Focus:             domain.ParseFocus(FocusProblem),
		SystemInstruction: problemSystemPrompt,
		Sampling:          ports.SamplingParams{Temperature: 0.7, MaxTokens: 700},
		OutputMode:        domain.ModeFeedback,
		NewPayload:        func() any { return &ProblemPayload{} },
		BuildPrompt:       buildProblemPrompt,
	})

	r.Register(&Descriptor{
		Focus:             domain.ParseFocus(FocusAudience),
		SystemInstruction: audienceSystemPrompt,
		Sampling:          ports.SamplingParams{Temperature: 0.7, MaxTokens: 700},
		OutputMode:        domain.ModeFeedback,
		NewPayload:        func() any { return &AudiencePayload{} },
		BuildPrompt:       buildAudiencePrompt,
	})

	r.Register(&Descriptor{
		Focus:             domain.ParseFocus(FocusResearch),
		SystemInstruction: researchSystemPrompt,
		Sampling:          ports.SamplingParams{Temperature: 0.9, MaxTokens: 500},
		OutputMode:        domain.ModeItems,
		NewPayload:        func() any { return &ResearchPayload{} },
		BuildPrompt:       buildResearchPrompt,
	})

	r.Register(&Descriptor{
		Focus:             domain.ParseFocus(FocusReflect),
		SystemInstruction: reflectSystemPrompt,
		Sampling:          ports.SamplingParams{Temperature: 0.6, MaxTokens: 900},
		OutputMode:        domain.ModeFeedback,
		NewPayload:        func() any { return &ReflectPayload{} },
		BuildPrompt:       buildReflectPrompt,
	})

	r.Register(&Descriptor{
		Focus:             domain.ParseFocus(FocusCoDesign),
		SystemInstruction: codesignSystemPrompt,
		Sampling:          ports.SamplingParams{Temperature: 0.7, MaxTokens: 700},
		OutputMode:        domain.ModeFeedback,
		NewPayload:        func() any { return &CoDesignPayload{} },
		BuildPrompt:       buildCoDesignPrompt,
	})

	r.Register(&Descriptor{
		Focus:             domain.ParseFocus(FocusVariants),
		SystemInstruction: variantsSystemPrompt,
		Sampling:          ports.SamplingParams{Temperature: 1.0, MaxTokens: 400},
		OutputMode:        domain.ModeItems,
		NewPayload:        func() any { return &VariantsPayload{} },
		BuildPrompt:       buildVariantsPrompt,
	})

	r.Register(&Descriptor{
		Focus:             domain.ParseFocus(FocusSelection),
		SystemInstruction: selectionSystemPrompt,
		Sampling:          ports.SamplingParams{Temperature: 0.5, MaxTokens: 900},
		OutputMode:        domain.ModeFeedback,
		NewPayload:        func() any { return &SelectionPayload{} },
		BuildPrompt:       buildSelectionPrompt,
	})

	return r
}

func buildProblemPrompt(fc *domain.FocusContext) string {
	var b strings.Builder
	writeTopic(&b, fc)
	payload, _ := fc.Payload.(*ProblemPayload)
	statements := payloadOrFeature(payload.statements(), fc, "problem", "statements")
	b.WriteString("Draft problem statements:\n")
	writeNumbered(&b, statements)
	return b.String()
}

func buildAudiencePrompt(fc *domain.FocusContext) string {
	var b strings.Builder
	writeTopic(&b, fc)
	payload, _ := fc.Payload.(*AudiencePayload)
	personas := payloadOrFeature(payload.personas(), fc, "audience", "personas")
	b.WriteString("Draft audience personas:\n")
	writeNumbered(&b, personas)
	return b.String()
}

func buildResearchPrompt(fc *domain.FocusContext) string {
	var b strings.Builder
	writeTopic(&b, fc)
	payload, _ := fc.Payload.(*ResearchPayload)
	if payload != nil && len(payload.Notes) > 0 {
		b.WriteString("Research notes so far:\n")
		writeNumbered(&b, payload.Notes)
	}
	b.WriteString("Suggest research questions the learner could investigate next.\n")
	return b.String()
}

func buildReflectPrompt(fc *domain.FocusContext) string {
	var b strings.Builder
	writeTopic(&b, fc)
	payload, _ := fc.Payload.(*ReflectPayload)
	candidates := payloadOrFeature(payload.candidates(), fc, "ideas", "entries")
	b.WriteString("Every candidate direction the learner has gathered:\n")
	writeNumbered(&b, candidates)
	b.WriteString("\nReflect on the set as a whole.\n")
	return b.String()
}

func buildCoDesignPrompt(fc *domain.FocusContext) string {
	var b strings.Builder
	writeTopic(&b, fc)
	payload, _ := fc.Payload.(*CoDesignPayload)
	if payload != nil {
		fmt.Fprintf(&b, "Working direction: %s\n", payload.Direction)
		fmt.Fprintf(&b, "Design step: %s\n", payload.Phase)
		fmt.Fprintf(&b, "Learner's current draft:\n%s\n", payload.Draft)
	}
	return b.String()
}

func buildVariantsPrompt(fc *domain.FocusContext) string {
	var b strings.Builder
	writeTopic(&b, fc)
	payload, _ := fc.Payload.(*VariantsPayload)
	count := 3
	if payload != nil {
		if payload.Count > 0 {
			count = payload.Count
		}
		fmt.Fprintf(&b, "Working direction: %s\n", payload.Direction)
		if len(payload.Liked) > 0 {
			b.WriteString("Phrasings the learner already likes:\n")
			writeNumbered(&b, payload.Liked)
		}
	}
	fmt.Fprintf(&b, "Produce %d fresh alternative phrasings.\n", count)
	return b.String()
}

func buildSelectionPrompt(fc *domain.FocusContext) string {
	var b strings.Builder
	writeTopic(&b, fc)
	payload, _ := fc.Payload.(*SelectionPayload)
	if payload != nil {
		b.WriteString("The learner's final shortlist:\n")
		writeNumbered(&b, payload.Ideas)
	}
	b.WriteString("\nCompare them as equals.\n")
	return b.String()
}

func writeTopic(b *strings.Builder, fc *domain.FocusContext) {
	if fc.Topic != "" {
		fmt.Fprintf(b, "Project topic: %s\n\n", fc.Topic)
	}
}

func writeNumbered(b *strings.Builder, items []string) {
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, item)
	}
}

// payloadOrFeature prefers the inline payload, falling back to the feature
// data merged into the context. A degraded context may yield nothing; the
// prompt still goes out with what we have.
func payloadOrFeature(fromPayload []string, fc *domain.FocusContext, feature, field string) []string {
	if len(fromPayload) > 0 {
		return fromPayload
	}
	return fc.FeatureList(feature, field)
}

func (p *ProblemPayload) statements() []string {
	if p == nil {
		return nil
	}
	return p.Statements
}

func (p *AudiencePayload) personas() []string {
	if p == nil {
		return nil
	}
	return p.Personas
}

func (p *ReflectPayload) candidates() []string {
	if p == nil {
		return nil
	}
	return p.Candidates
}
