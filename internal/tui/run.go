package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/fintracker/internal/taxonomy"
	tea "github.com/charmbracelet/bubbletea"
)

// Config wires the review to its data.
type Config struct {
	Resolver Resolver
	Loader   Loader
	Taxonomy *taxonomy.Taxonomy
	Currency string
}

// Run shows the review until the user quits or ctx is canceled.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	if cfg.Resolver == nil || cfg.Loader == nil {
		return Stats{}, errors.New("tui: resolver and loader are required")
	}
	if cfg.Taxonomy == nil {
		cfg.Taxonomy = taxonomy.Default()
	}

	program := tea.NewProgram(newModel(ctx, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return Stats{}, fmt.Errorf("review failed: %w", err)
	}
	if m, ok := final.(Model); ok {
		return m.Stats(), nil
	}
	return Stats{}, nil
}
