package patterns

import (
	"fmt"
	"strings"

	"github.com/diogenlabs/semvec/pkg/phi"
)

// JudgmentRecord is the slice of a judgment the matcher can learn from:
// the free-text reasoning, the per-axiom notes, and the scores that become
// pattern confidence.
type JudgmentRecord struct {
	ID          string             `json:"id"`
	Verdict     string             `json:"verdict"`
	QScore      float64            `json:"q_score"`
	Confidence  float64            `json:"confidence"`
	Reasoning   string             `json:"reasoning"`
	AxiomScores map[string]float64 `json:"axiom_scores,omitempty"`
	AxiomNotes  map[string]string  `json:"axiom_notes,omitempty"`
}

// ExtractFromJudgment turns a judgment's reasoning and per-axiom notes into
// tracked patterns. The overall reasoning becomes one pattern; each
// non-empty axiom note becomes another, prefixed with its axiom name.
// Extracted patterns inherit the judgment's confidence, capped at 1/φ.
//
// The transform itself is pure; only the AddPattern calls mutate state.
func (m *Matcher) ExtractFromJudgment(rec JudgmentRecord) ([]Pattern, error) {
	confidence := rec.Confidence
	if confidence <= 0 {
		confidence = m.cfg.InitialConfidence
	}
	if confidence > phi.MaxConfidence {
		confidence = phi.MaxConfidence
	}

	var created []Pattern

	if reasoning := strings.TrimSpace(rec.Reasoning); reasoning != "" {
		p, err := m.addExtracted(reasoning, confidence, map[string]any{
			"source":      "judgment",
			"judgment_id": rec.ID,
			"verdict":     rec.Verdict,
			"q_score":     rec.QScore,
		})
		if err != nil {
			return created, err
		}
		created = append(created, p)
	}

	for axiom, note := range rec.AxiomNotes {
		note = strings.TrimSpace(note)
		if note == "" {
			continue
		}
		extra := map[string]any{
			"source":      "judgment",
			"judgment_id": rec.ID,
			"axiom":       axiom,
		}
		if score, ok := rec.AxiomScores[axiom]; ok {
			extra["axiom_score"] = score
		}
		p, err := m.addExtracted(fmt.Sprintf("%s: %s", axiom, note), confidence, extra)
		if err != nil {
			return created, err
		}
		created = append(created, p)
	}
	return created, nil
}

// addExtracted adds a pattern with an explicit starting confidence.
func (m *Matcher) addExtracted(description string, confidence float64, extra map[string]any) (Pattern, error) {
	p, err := m.AddPattern("", description, extra)
	if err != nil {
		return Pattern{}, err
	}
	if confidence == p.Metadata.Confidence {
		return p, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if tracked, ok := m.patterns[p.ID]; ok && tracked.Metadata.Occurrences == 1 {
		tracked.Metadata.Confidence = confidence
		if err := m.mirror(tracked); err != nil {
			return Pattern{}, err
		}
		p = *tracked
	}
	return p, nil
}
