// This file implements the operational methods of the Engine, wrapping the
// matcher and store actions with dirty tracking so the auto-save policy can
// react to accumulated writes.
package engine

import (
	"github.com/diogenlabs/semvec/pkg/patterns"
	"github.com/diogenlabs/semvec/pkg/vectorstore"
)

// --- Pattern Operations ---

// AddPattern records or reinforces a pattern. See patterns.Matcher.AddPattern.
func (e *Engine) AddPattern(id, description string, extra map[string]any) (patterns.Pattern, error) {
	p, err := e.matcher.Load().AddPattern(id, description, extra)
	if err == nil {
		e.dirtyCounter.Add(1)
	}
	return p, err
}

// RemovePattern deletes a pattern. Returns false if the id is unknown.
func (e *Engine) RemovePattern(id string) bool {
	ok := e.matcher.Load().RemovePattern(id)
	if ok {
		e.dirtyCounter.Add(1)
	}
	return ok
}

// ExtractFromJudgment mines patterns from a judgment record.
func (e *Engine) ExtractFromJudgment(rec patterns.JudgmentRecord) ([]patterns.Pattern, error) {
	ps, err := e.matcher.Load().ExtractFromJudgment(rec)
	e.dirtyCounter.Add(int64(len(ps)))
	return ps, err
}

// FindSimilar returns up to k patterns semantically similar to the query.
func (e *Engine) FindSimilar(query string, k int, opts *patterns.FindOptions) ([]patterns.Match, error) {
	return e.matcher.Load().FindSimilar(query, k, opts)
}

// MatchExisting reports whether a description duplicates a tracked pattern.
func (e *Engine) MatchExisting(description string, threshold float64) (*patterns.Match, error) {
	return e.matcher.Load().MatchExisting(description, threshold)
}

// RecommendPatterns ranks patterns for a context by score and confidence.
func (e *Engine) RecommendPatterns(context string, k int) ([]patterns.Match, error) {
	return e.matcher.Load().RecommendPatterns(context, k)
}

// ClusterPatterns groups tracked patterns by semantic similarity.
func (e *Engine) ClusterPatterns(opts patterns.ClusterOptions) ([]patterns.Cluster, error) {
	return e.matcher.Load().ClusterPatterns(opts)
}

// --- Store Operations ---

// StoreText embeds and indexes a document under the given id.
//
// The store is shared with the matcher; ids written here are visible to
// similarity searches but are not tracked as patterns.
func (e *Engine) StoreText(id, text string, metadata map[string]any) error {
	err := e.matcher.Load().Store().Store(id, text, metadata)
	if err == nil {
		e.dirtyCounter.Add(1)
	}
	return err
}

// SearchText returns up to k documents semantically similar to the query.
func (e *Engine) SearchText(query string, k int, opts *vectorstore.SearchOptions) ([]vectorstore.SearchResult, error) {
	return e.matcher.Load().Store().Search(query, k, opts)
}

// DeleteText removes a document. Returns false if the id is unknown.
func (e *Engine) DeleteText(id string) bool {
	ok := e.matcher.Load().Store().Delete(id)
	if ok {
		e.dirtyCounter.Add(1)
	}
	return ok
}
