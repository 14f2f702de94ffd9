// Package pipeline turns a niche and location into contact-enriched leads.
//
// A run captures listings through one browser session, then looks up a
// contact address for every listing on a bounded pool of workers. Only a
// failed capture fails the run; per-lead contact problems are recorded on
// the lead.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/leadhunter/internal/logger"
	"github.com/jmylchreest/leadhunter/pkg/lead"
)

// DefaultConcurrency is the number of contact lookups run at once.
const DefaultConcurrency = 4

// Capturer reads listings from the search feed.
type Capturer interface {
	Capture(ctx context.Context, niche, location string, limit int) ([]lead.PartialLead, error)
}

// Extractor finds a contact address on a website. It reports every outcome
// as a value.
type Extractor interface {
	Extract(ctx context.Context, website string) lead.ContactResult
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency bounds the contact stage to n lookups at once. 1 runs
// them one after another.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithObserver registers fn to receive each lead as its contact lookup
// completes. Calls are serialized but arrive in completion order.
func WithObserver(fn func(lead.Lead)) Option {
	return func(p *Pipeline) {
		p.observer = fn
	}
}

// Pipeline runs captures. It holds no per-run state and may be reused.
type Pipeline struct {
	capturer    Capturer
	extractor   Extractor
	concurrency int
	observer    func(lead.Lead)
}

// New creates a Pipeline.
func New(capturer Capturer, extractor Extractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		capturer:    capturer,
		extractor:   extractor,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run returns the leads for params in capture order.
//
// Invalid params, a failed capture and cancellation all return nil leads
// with the cause. A lead whose website could not be read or searched still
// appears, with its contact outcome saying why.
func (p *Pipeline) Run(ctx context.Context, params lead.Params) ([]lead.Lead, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params = params.Normalized()

	log := logger.Component("pipeline").With("niche", params.Niche, "location", params.Location, "limit", params.Limit)
	log.Info("run started")
	start := time.Now()

	partials, err := p.capturer.Capture(ctx, params.Niche, params.Location, params.Limit)
	if err != nil {
		log.Error("capture failed", "error", err)
		return nil, fmt.Errorf("capture: %w", err)
	}
	if len(partials) > params.Limit {
		partials = partials[:params.Limit]
	}
	log.Debug("capture finished", "captured", len(partials))

	leads := make([]lead.Lead, len(partials))
	for i, partial := range partials {
		leads[i] = lead.Lead{
			Name:     partial.Name,
			Location: params.Location,
			Website:  partial.Website,
			Rating:   partial.Rating,
		}
	}

	if err := p.enrich(ctx, leads); err != nil {
		log.Warn("run canceled during contact lookup", "error", err)
		return nil, err
	}

	log.Info("run finished",
		"leads", len(leads),
		"duration", time.Since(start).Round(time.Millisecond),
		"summary", Summarize(leads).String())
	return leads, nil
}

// enrich fills in contact results in place. Each worker owns one slot, so
// order is preserved without sorting. It fails only when cancellation left a
// slot unresolved or resolved under a canceled context.
func (p *Pipeline) enrich(ctx context.Context, leads []lead.Lead) error {
	var (
		g        errgroup.Group
		mu       sync.Mutex
		resolved atomic.Int32
	)
	g.SetLimit(p.concurrency)

	for i := range leads {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			l := &leads[i]
			if !l.HasWebsite() {
				l.Contact = lead.NoWebsite()
			} else {
				l.Contact = p.extractor.Extract(ctx, l.Website)
			}
			if ctx.Err() == nil {
				resolved.Add(1)
			}
			logger.Debug("contact resolved", "index", i, "name", l.Name, "outcome", l.Contact.Outcome.String())

			if p.observer != nil {
				mu.Lock()
				p.observer(*l)
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	if int(resolved.Load()) == len(leads) {
		return nil
	}
	return ctx.Err()
}
