package match

import (
	"context"
	"errors"
	"time"

	"gitea.kood.tech/petrkubec/match-engine/logger"
	"gitea.kood.tech/petrkubec/match-engine/metrics"
)

// Options tune the engine. Zero values fall back to DefaultOptions.
type Options struct {
	// OverFetchFactor multiplies the requested limit when pulling raw candidates.
	OverFetchFactor int
	// MaxLimit caps findPotentialMatches; larger limits are clamped.
	MaxLimit int
	// MaxPageSize caps getMatches pages.
	MaxPageSize int
	// CandidateFetchTimeout bounds the candidate query.
	CandidateFetchTimeout time.Duration
	// AttributeTimeout bounds every single attribute lookup.
	AttributeTimeout time.Duration
	// BatchWait is the dataloader collection window.
	BatchWait time.Duration
	// Publisher receives lifecycle events; nil disables them.
	Publisher EventPublisher
	// Now stamps new match records.
	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		OverFetchFactor:       3,
		MaxLimit:              100,
		MaxPageSize:           100,
		CandidateFetchTimeout: 2 * time.Second,
		AttributeTimeout:      500 * time.Millisecond,
		BatchWait:             2 * time.Millisecond,
		Now:                   time.Now,
	}
}

// Engine computes compatibility, ranks candidates and manages match records.
// It holds no mutable state of its own and is safe for concurrent use.
type Engine struct {
	attrs      AttributeSource
	candidates CandidateSource
	matches    MatchStore
	opts       Options
	log        *logger.Logger
}

func NewEngine(attrs AttributeSource, candidates CandidateSource, matches MatchStore, opts Options, log *logger.Logger) *Engine {
	def := DefaultOptions()
	if opts.OverFetchFactor <= 0 {
		opts.OverFetchFactor = def.OverFetchFactor
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = def.MaxLimit
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = def.MaxPageSize
	}
	if opts.CandidateFetchTimeout <= 0 {
		opts.CandidateFetchTimeout = def.CandidateFetchTimeout
	}
	if opts.AttributeTimeout <= 0 {
		opts.AttributeTimeout = def.AttributeTimeout
	}
	if opts.BatchWait <= 0 {
		opts.BatchWait = def.BatchWait
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{
		attrs:      attrs,
		candidates: candidates,
		matches:    matches,
		opts:       opts,
		log:        log.With("component", "match-engine"),
	}
}

// requestReader returns the attribute reader for one operation. Batch-capable
// sources get a fresh dataloader so lookups within the call are coalesced.
func (e *Engine) requestReader() AttributeReader {
	if b, ok := e.attrs.(BatchAttributeSource); ok {
		return NewBatchedReader(b, e.opts.BatchWait)
	}
	return NewReader(e.attrs)
}

// lookup loads one bundle under the per-lookup timeout.
func (e *Engine) lookup(ctx context.Context, r AttributeReader, id string) (*Attributes, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.AttributeTimeout)
	defer cancel()
	return r.GetUserAttributes(ctx, id)
}

func (e *Engine) publish(ctx context.Context, evt MatchEvent) {
	if e.opts.Publisher == nil {
		return
	}
	if err := e.opts.Publisher.PublishMatchEvent(context.WithoutCancel(ctx), evt); err != nil {
		e.log.Warn("publish match event failed", "type", evt.Type, "match_id", evt.MatchID, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(evt.Type).Inc()
}

func degradeReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "dependency"
	}
}
