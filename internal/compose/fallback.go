package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmylchreest/leadhunter/internal/logger"
)

// ErrNoProvider is returned by an empty fallback chain.
var ErrNoProvider = errors.New("no provider configured")

// Fallback tries each provider in order until one succeeds.
type Fallback struct {
	providers []Provider
}

var _ Provider = (*Fallback)(nil)

// NewFallback creates a fallback chain. Nil providers are skipped.
func NewFallback(providers ...Provider) *Fallback {
	f := &Fallback{}
	for _, p := range providers {
		if p != nil {
			f.providers = append(f.providers, p)
		}
	}
	return f
}

// Complete returns the first successful response. It stops early when ctx
// is done.
func (f *Fallback) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(f.providers) == 0 {
		return nil, ErrNoProvider
	}

	var errs []error
	var tried []string
	for _, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tried = append(tried, p.Name())
		resp, err := p.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		logger.Warn("provider failed, trying next", "provider", p.Name(), "error", err)
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("all providers failed (tried: %s): %w", strings.Join(tried, ", "), errors.Join(errs...))
}

// Name returns the chain name.
func (f *Fallback) Name() string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return "fallback(" + strings.Join(names, "->") + ")"
}

// Model returns the first provider's model.
func (f *Fallback) Model() string {
	if len(f.providers) == 0 {
		return ""
	}
	return f.providers[0].Model()
}
