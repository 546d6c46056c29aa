package scrape

import (
	"context"
	"time"

	"github.com/go-go-golems/deskhand/pkg/browser"
	"github.com/rs/zerolog/log"
)

// Direction of a scroll command on the message list.
type Direction string

const (
	ScrollTop    Direction = "top"
	ScrollBottom Direction = "bottom"
)

// ListView is the virtualized message list: it can be scrolled and it can
// report the bubbles that are currently materialized.
type ListView interface {
	Scroll(ctx context.Context, dir Direction) error
	Snapshot(ctx context.Context) ([]Bubble, error)
}

// StabilityConfig bounds the scroll-until-stable loop. The list has no
// "fully loaded" signal, so completeness is a heuristic: a phase ends after
// Threshold consecutive scrolls that surfaced no new message, or after
// MaxIterations scrolls.
type StabilityConfig struct {
	Threshold     int           `mapstructure:"stability_threshold"`
	MaxIterations int           `mapstructure:"max_iterations"`
	Pause         time.Duration `mapstructure:"scroll_pause"`
}

func (c StabilityConfig) withDefaults() StabilityConfig {
	if c.Threshold <= 0 {
		c.Threshold = 3
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 40
	}
	if c.Pause < 0 {
		c.Pause = 0
	}
	return c
}

// PhaseStats describes one scroll phase.
type PhaseStats struct {
	Direction  Direction
	Iterations int
	Added      int
	Capped     bool
}

// stabilize scrolls to the top until stable, then to the bottom until stable,
// feeding every snapshot into h.
func stabilize(ctx context.Context, view ListView, h *harvest, cfg StabilityConfig) ([]PhaseStats, error) {
	cfg = cfg.withDefaults()

	initial, err := view.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	h.add(initial)

	stats := make([]PhaseStats, 0, 2)
	for _, dir := range []Direction{ScrollTop, ScrollBottom} {
		st, err := runPhase(ctx, view, h, cfg, dir)
		stats = append(stats, st)
		if err != nil {
			return stats, err
		}
		log.Debug().
			Str("direction", string(dir)).
			Int("iterations", st.Iterations).
			Int("added", st.Added).
			Bool("capped", st.Capped).
			Int("total", h.len()).
			Msg("scroll phase done")
	}
	return stats, nil
}

func runPhase(ctx context.Context, view ListView, h *harvest, cfg StabilityConfig, dir Direction) (PhaseStats, error) {
	st := PhaseStats{Direction: dir}
	stable := 0
	for st.Iterations < cfg.MaxIterations {
		st.Iterations++
		if err := view.Scroll(ctx, dir); err != nil {
			return st, err
		}
		if err := browser.Sleep(ctx, cfg.Pause); err != nil {
			return st, err
		}
		snap, err := view.Snapshot(ctx)
		if err != nil {
			return st, err
		}
		added := h.add(snap)
		st.Added += added
		if added == 0 {
			stable++
		} else {
			stable = 0
		}
		if stable >= cfg.Threshold {
			return st, nil
		}
	}
	st.Capped = true
	return st, nil
}
