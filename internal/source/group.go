package source

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

// Group presents several sites as one category source. Members run in order
// with the same params, each under its own lifecycle; a failing member is
// logged and skipped, and the group only fails when every selected member
// failed.
type Group struct {
	name      string
	selectKey string
	members   []scrape.Source
	logger    *zap.Logger
}

// GroupOption customizes a Group.
type GroupOption func(*Group)

// SelectBy lets params[key] (a list of member names) restrict which members
// run. Absent or empty means all.
func SelectBy(key string) GroupOption {
	return func(g *Group) { g.selectKey = key }
}

// WithGroupLogger sets the logger used for member failures.
func WithGroupLogger(logger *zap.Logger) GroupOption {
	return func(g *Group) { g.logger = logger }
}

// NewGroup builds a Group named name over members.
func NewGroup(name string, members []scrape.Source, opts ...GroupOption) *Group {
	g := &Group{name: name, members: members, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.Named(name)
	return g
}

// Name implements scrape.Source.
func (g *Group) Name() string { return g.name }

// Members returns the member names in run order.
func (g *Group) Members() []string {
	names := make([]string, 0, len(g.members))
	for _, m := range g.members {
		names = append(names, m.Name())
	}
	return names
}

// Scrape implements scrape.Source.
func (g *Group) Scrape(ctx context.Context, params scrape.Params) ([]scrape.Record, error) {
	var selected []string
	if g.selectKey != "" {
		selected = params.Strings(g.selectKey)
	}
	records := []scrape.Record{}
	var (
		ran  int
		errs []error
	)
	for _, member := range g.members {
		if len(selected) > 0 && !slices.Contains(selected, member.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return records, err
		}
		ran++
		batch, err := g.scrapeMember(ctx, member, params)
		if err != nil {
			g.logger.Warn("member failed", zap.String("member", member.Name()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		records = append(records, batch...)
	}
	if ran > 0 && len(errs) == ran {
		return nil, &scrape.SourceError{Source: g.name, Err: errors.Join(errs...)}
	}
	return records, nil
}

func (g *Group) scrapeMember(ctx context.Context, member scrape.Source, params scrape.Params) ([]scrape.Record, error) {
	lc, ok := member.(scrape.Lifecycle)
	if !ok {
		return member.Scrape(ctx, params)
	}
	scoped, err := lc.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", member.Name(), err)
	}
	defer func() {
		if err := lc.Release(context.WithoutCancel(scoped)); err != nil {
			g.logger.Warn("member release failed", zap.String("member", member.Name()), zap.Error(err))
		}
	}()
	return member.Scrape(scoped, params)
}
