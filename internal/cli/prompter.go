package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/fintracker/internal/chat"
	"github.com/Veraticus/fintracker/internal/common"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/taxonomy"
	"github.com/schollz/progressbar/v3"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// Resolver finalizes pending decisions.
type Resolver interface {
	ResolvePending(ctx context.Context, pendingID, resolverID int64, chosen string) (*model.Expense, error)
	DiscardPending(ctx context.Context, pendingID, resolverID int64) error
}

// ReviewStats summarizes an interactive review.
type ReviewStats struct {
	Duration  time.Duration
	Total     int
	Accepted  int
	Corrected int
	Discarded int
	Skipped   int
	Stale     int
}

// Prompter walks the operator through open decisions on the terminal,
// acting on behalf of each decision's author.
type Prompter struct {
	reader   *bufio.Reader
	writer   io.Writer
	tax      *taxonomy.Taxonomy
	resolver Resolver
	progress *progressbar.ProgressBar
	currency string
	stats    ReviewStats
	readMu   sync.Mutex
}

// NewPrompter creates a prompter. Nil reader and writer default to the
// process's stdin and stdout.
func NewPrompter(reader io.Reader, writer io.Writer, tax *taxonomy.Taxonomy, resolver Resolver, currency string) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		reader:   bufio.NewReader(reader),
		writer:   writer,
		tax:      tax,
		resolver: resolver,
		currency: currency,
	}
}

// Review prompts for each decision in turn. "q" stops early; the rest stay
// open.
func (p *Prompter) Review(ctx context.Context, pending []model.PendingDecision) (ReviewStats, error) {
	start := time.Now()
	p.stats = ReviewStats{Total: len(pending)}
	p.progress = NewProgressBar(p.writer, len(pending), "Reviewing decisions")

	for i := range pending {
		quit, err := p.reviewOne(ctx, &pending[i])
		if err != nil {
			p.stats.Duration = time.Since(start)
			return p.stats, err
		}
		if err := p.progress.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
		if quit {
			p.stats.Skipped += len(pending) - i - 1
			break
		}
	}

	p.stats.Duration = time.Since(start)
	p.showCompletion()
	return p.stats, nil
}

func (p *Prompter) reviewOne(ctx context.Context, d *model.PendingDecision) (bool, error) {
	if _, err := fmt.Fprintln(p.writer, "\n"+RenderBox(fmt.Sprintf("Decision #%d", d.ID), p.describe(d))); err != nil {
		return false, fmt.Errorf("failed to write decision: %w", err)
	}

	categories := p.tax.Categories()
	valid := []string{"d", "s", "q"}
	for i, c := range categories {
		if _, err := fmt.Fprintf(p.writer, "  [%d] %s\n", i+1, c.Label); err != nil {
			return false, fmt.Errorf("failed to write options: %w", err)
		}
		valid = append(valid, strconv.Itoa(i+1))
	}
	if d.PredictedCategory != "" {
		if _, err := fmt.Fprintf(p.writer, "  [A] Accept: %s\n", SuccessStyle.Render(p.tax.SubcategoryLabel(d.PredictedSubcategory))); err != nil {
			return false, fmt.Errorf("failed to write options: %w", err)
		}
		valid = append(valid, "a")
	}
	if _, err := fmt.Fprintln(p.writer, "  [D] Discard  [S] Skip  [Q] Quit"); err != nil {
		return false, fmt.Errorf("failed to write options: %w", err)
	}

	choice, err := p.promptChoice(ctx, "Choice", valid)
	if err != nil {
		return false, err
	}

	switch choice {
	case "q":
		p.stats.Skipped++
		return true, nil
	case "s":
		p.stats.Skipped++
		return false, nil
	case "d":
		err := p.resolver.DiscardPending(ctx, d.ID, d.UserID)
		if p.handleStale(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		p.stats.Discarded++
		return false, p.say(FormatInfo("Discarded"))
	}

	category := d.PredictedCategory
	if choice != "a" {
		n, _ := strconv.Atoi(choice)
		category = categories[n-1].Key
	}

	expense, err := p.resolver.ResolvePending(ctx, d.ID, d.UserID, category)
	if p.handleStale(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if category == d.PredictedCategory {
		p.stats.Accepted++
	} else {
		p.stats.Corrected++
	}
	return false, p.say(FormatSuccess(fmt.Sprintf("Recorded #%d as %s",
		expense.ID, chat.ExpenseLabel(p.tax, expense.Category, expense.Subcategory))))
}

// handleStale reports whether err means the decision was already closed.
func (p *Prompter) handleStale(err error) bool {
	if !errors.Is(err, common.ErrNotFound) {
		return false
	}
	p.stats.Stale++
	if sayErr := p.say(FormatWarning("Already processed elsewhere")); sayErr != nil {
		slog.Warn("Failed to write stale notice", "error", sayErr)
	}
	return true
}

func (p *Prompter) describe(d *model.PendingDecision) string {
	lines := []string{
		fmt.Sprintf("Amount:  %s", BoldStyle.Render(chat.FormatAmount(d.Amount, p.currency))),
		fmt.Sprintf("Author:  %d", d.UserID),
		fmt.Sprintf("Created: %s", d.CreatedAt.Format(dateLayout)),
	}
	if d.Note != "" {
		lines = append(lines, "Note:    "+d.Note)
	}
	if d.PredictedSubcategory != "" {
		lines = append(lines, fmt.Sprintf("Guess:   %s (%.2f)", p.tax.SubcategoryLabel(d.PredictedSubcategory), d.PredictedConfidence))
	}
	return strings.Join(lines, "\n")
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, valid []string) (string, error) {
	for {
		if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.readLine(ctx)
		if err != nil {
			return "", err
		}
		choice := strings.ToLower(input)
		for _, v := range valid {
			if choice == v {
				return choice, nil
			}
		}
		if err := p.say(FormatError("Invalid choice. Please try again.")); err != nil {
			return "", err
		}
	}
}

// readLine reads one line, giving up when ctx is canceled. The blocked
// read keeps running; its result is dropped.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	type result struct {
		err   error
		value string
	}
	ch := make(chan result, 1)
	go func() {
		p.readMu.Lock()
		defer p.readMu.Unlock()
		value, err := p.reader.ReadString('\n')
		ch <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-ch:
		if res.err != nil {
			if errors.Is(res.err, io.EOF) && strings.TrimSpace(res.value) != "" {
				return strings.TrimSpace(res.value), nil
			}
			if errors.Is(res.err, io.EOF) {
				return "", fmt.Errorf("input terminated: %w", res.err)
			}
			return "", res.err
		}
		return strings.TrimSpace(res.value), nil
	}
}

func (p *Prompter) say(line string) error {
	if _, err := fmt.Fprintln(p.writer, line); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (p *Prompter) showCompletion() {
	s := p.stats
	summary := fmt.Sprintf("  • Accepted: %d\n  • Corrected: %d\n  • Discarded: %d\n  • Skipped: %d\n  • Time taken: %s",
		s.Accepted, s.Corrected, s.Discarded, s.Skipped+s.Stale, s.Duration.Round(time.Second))
	if _, err := fmt.Fprintln(p.writer, "\n"+RenderBox(ChartIcon+" Review Complete", summary)); err != nil {
		slog.Warn("Failed to write completion box", "error", err)
	}
}
