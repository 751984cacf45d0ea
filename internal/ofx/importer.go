package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/fintracker/internal/engine"
	"github.com/Veraticus/fintracker/internal/model"
)

// ImportOptions say whose expenses a statement holds.
type ImportOptions struct {
	Progress func(done, total int)
	GroupID  int64
	UserID   int64
}

// ImportResult counts what happened to each statement line.
type ImportResult struct {
	Pending    []*model.PendingDecision
	Recorded   int
	Credits    int
	Duplicates int
}

// Importer routes statement debits through the engine.
type Importer struct {
	engine *engine.Engine
	parser *Parser
}

// NewImporter creates an importer.
func NewImporter(eng *engine.Engine) *Importer {
	return &Importer{engine: eng, parser: NewParser()}
}

// Import parses a statement and routes its debits.
func (i *Importer) Import(ctx context.Context, reader io.Reader, opts ImportOptions) (*ImportResult, error) {
	transactions, err := i.parser.ParseFile(ctx, reader)
	if err != nil {
		return nil, err
	}
	return i.ImportTransactions(ctx, transactions, opts)
}

// ImportTransactions routes each debit through ClassifyAndRoute. Credits and
// lines repeated within the batch are skipped.
func (i *Importer) ImportTransactions(ctx context.Context, transactions []model.Transaction, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{}
	seen := make(map[string]bool, len(transactions))

	for n := range transactions {
		tx := &transactions[n]
		if opts.Progress != nil {
			opts.Progress(n+1, len(transactions))
		}

		if !tx.IsDebit() {
			result.Credits++
			continue
		}
		hash := tx.Hash
		if hash == "" {
			hash = tx.GenerateHash()
		}
		if seen[hash] {
			result.Duplicates++
			continue
		}
		seen[hash] = true

		routed, err := i.engine.ClassifyAndRoute(ctx, engine.Entry{
			GroupID: opts.GroupID,
			UserID:  opts.UserID,
			Amount:  tx.Amount.Abs(),
			Note:    tx.Note(),
			SpentAt: tx.Date,
		})
		if err != nil {
			return result, fmt.Errorf("failed to import transaction %s: %w", tx.ID, err)
		}
		if routed.Pending != nil {
			result.Pending = append(result.Pending, routed.Pending)
			continue
		}
		result.Recorded++
	}

	slog.InfoContext(ctx, "Statement imported",
		"group", opts.GroupID,
		"recorded", result.Recorded,
		"pending", len(result.Pending),
		"credits", result.Credits,
		"duplicates", result.Duplicates)
	return result, nil
}
