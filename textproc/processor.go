package textproc

import (
	"context"
	"fmt"
	"strings"

	"sotto/log"
)

// Tone selects the register of the LLM cleanup prompt.
type Tone string

const (
	ToneAuto         Tone = "auto"
	ToneCasual       Tone = "casual"
	ToneProfessional Tone = "professional"
	ToneTechnical    Tone = "technical"
)

// ParseTone maps a settings value to a Tone, defaulting to auto.
func ParseTone(s string) Tone {
	switch Tone(strings.ToLower(strings.TrimSpace(s))) {
	case ToneCasual:
		return ToneCasual
	case ToneProfessional:
		return ToneProfessional
	case ToneTechnical:
		return ToneTechnical
	}
	return ToneAuto
}

// ToneForApp picks a register from the frontmost application name when the
// preference is auto.
func ToneForApp(appName string) Tone {
	name := strings.ToLower(appName)
	switch {
	case strings.Contains(name, "slack"), strings.Contains(name, "discord"),
		strings.Contains(name, "messages"), strings.Contains(name, "telegram"):
		return ToneCasual
	case strings.Contains(name, "mail"), strings.Contains(name, "outlook"),
		strings.Contains(name, "pages"), strings.Contains(name, "word"):
		return ToneProfessional
	case strings.Contains(name, "code"), strings.Contains(name, "terminal"),
		strings.Contains(name, "iterm"), strings.Contains(name, "xcode"):
		return ToneTechnical
	}
	return ToneCasual
}

var toneInstructions = map[Tone]string{
	ToneCasual:       "Keep the tone relaxed and conversational.",
	ToneProfessional: "Keep the tone clear and professional.",
	ToneTechnical:    "Preserve technical terms, identifiers and commands exactly as spoken.",
}

// Processor runs transcripts through the LLM with validation, falling back
// to rule-based cleanup whenever the model fails or drifts.
type Processor struct {
	llm       LLM
	threshold float64
	validate  bool
}

func NewProcessor(llm LLM, threshold float64, validate bool) *Processor {
	return &Processor{llm: llm, threshold: threshold, validate: validate}
}

// Process returns the cleaned transcript. It never returns an error for LLM
// failures; the result degrades to BasicCleanup instead.
func (p *Processor) Process(ctx context.Context, text string, tone Tone) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if p.llm == nil {
		return BasicCleanup(text)
	}

	out, err := p.llm.Generate(ctx, buildPrompt(text, tone))
	if err != nil {
		log.Warnf("textproc: llm unavailable, using basic cleanup: %v", err)
		return BasicCleanup(text)
	}
	out = StripArtifacts(out)
	if out == "" {
		return BasicCleanup(text)
	}

	if p.validate {
		ok, score := Validate(text, out, p.threshold)
		if !ok {
			log.Warnf("textproc: llm output rejected (similarity %.2f), using basic cleanup", score)
			return BasicCleanup(text)
		}
		log.Info(fmt.Sprintf("textproc: llm output accepted (similarity %.2f)", score))
	}
	return out
}

func buildPrompt(text string, tone Tone) string {
	var b strings.Builder
	b.WriteString("Fix only the grammar, punctuation and capitalization of this transcribed speech. ")
	b.WriteString("Remove filler words (um, uh, like). ")
	b.WriteString("Do not add information, do not remove content words, do not rephrase. ")
	if instr, ok := toneInstructions[tone]; ok {
		b.WriteString(instr)
		b.WriteString(" ")
	}
	b.WriteString("Reply with the corrected text only, no explanations.\n\nText: ")
	b.WriteString(text)
	return b.String()
}
