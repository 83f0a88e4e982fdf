package dashboard

import (
	"context"
	"log/slog"
	"time"
)

const DefaultPollPeriod = time.Second

// Source is the part of Client the poller needs.
type Source interface {
	List(ctx context.Context) ([]Link, error)
	Counters(ctx context.Context) ([]Counter, error)
}

// PollerConfig holds configuration for a Poller.
type PollerConfig struct {
	Source Source
	Board  *Board
	Period time.Duration // default: 1s
	Logger *slog.Logger
	// OnChange is called after a poll changed the board. reloaded is true
	// when the set of links changed and the board was loaded again.
	OnChange func(changed []string, reloaded bool)
}

// Poller refreshes a Board on a fixed period. The counters view patches
// rows in place; the full list is fetched only when links appeared or
// disappeared.
type Poller struct {
	source   Source
	board    *Board
	period   time.Duration
	logger   *slog.Logger
	onChange func([]string, bool)
}

// NewPoller creates a new Poller.
func NewPoller(cfg PollerConfig) *Poller {
	period := cfg.Period
	if period <= 0 {
		period = DefaultPollPeriod
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	onChange := cfg.OnChange
	if onChange == nil {
		onChange = func([]string, bool) {}
	}
	return &Poller{
		source:   cfg.Source,
		board:    cfg.Board,
		period:   period,
		logger:   logger,
		onChange: onChange,
	}
}

// Load fetches the full list into the board.
func (p *Poller) Load(ctx context.Context) error {
	links, err := p.source.List(ctx)
	if err != nil {
		return err
	}
	p.board.Load(links)
	return nil
}

// Poll runs one refresh and returns the codes that changed.
func (p *Poller) Poll(ctx context.Context) (changed []string, reloaded bool, err error) {
	counters, err := p.source.Counters(ctx)
	if err != nil {
		return nil, false, err
	}

	if !p.board.Matches(counters) {
		if err := p.Load(ctx); err != nil {
			return nil, false, err
		}
		return p.board.Codes(), true, nil
	}
	return p.board.Patch(counters), false, nil
}

// Run polls until ctx is cancelled. Failed polls are logged and the next
// tick tries again.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			changed, reloaded, err := p.Poll(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.WarnContext(ctx, "poll failed", "error", err)
				continue
			}
			if reloaded || len(changed) > 0 {
				p.onChange(changed, reloaded)
			}
		}
	}
}
