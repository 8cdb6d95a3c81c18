package orchestrator

import (
	"context"
	"log"
	"strings"

	"github.com/ShayCichocki/taskhunter/pkg/models"
)

// Preprocess reduces an utterance to what the voice model reads well:
// ASCII letters, digits, '.', ',' and whitespace. Everything else is
// dropped and whitespace is collapsed.
func Preprocess(text string) string {
	kept := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == ',':
			return r
		case r == ' ', r == '\t', r == '\n', r == '\r', r == '\f', r == '\v':
			return ' '
		default:
			return -1
		}
	}, text)
	return strings.Join(strings.Fields(kept), " ")
}

// say preprocesses text and delivers it as voice when a synthesizer is
// configured, otherwise as text. An utterance that preprocesses to nothing
// is not sent.
func (o *Orchestrator) say(ctx context.Context, chatID int64, text string) {
	clean := Preprocess(text)
	if clean == "" {
		o.logger.Log("[orchestrator] empty utterance dropped chat=%d raw=%q", chatID, models.Preview(text))
		return
	}

	if o.synth == nil {
		o.sendText(ctx, chatID, clean)
		return
	}

	art, err := o.synth.Synthesize(ctx, clean)
	if err != nil {
		log.Printf("[orchestrator] synthesize chat=%d content=%q: %v", chatID, models.Preview(clean), err)
		if o.fallbackText {
			o.sendText(ctx, chatID, clean)
		}
		return
	}
	o.sched.Costs().AddSynthesis(art.Cost)

	if err := o.deliverer.SendVoice(ctx, chatID, art.Path); err != nil {
		log.Printf("[orchestrator] send voice chat=%d path=%s: %v", chatID, art.Path, err)
	}
}

func (o *Orchestrator) sendText(ctx context.Context, chatID int64, text string) {
	if err := o.deliverer.SendText(ctx, chatID, text); err != nil {
		log.Printf("[orchestrator] send text chat=%d content=%q: %v", chatID, models.Preview(text), err)
	}
}
