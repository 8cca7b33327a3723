// SPDX-License-Identifier: GPL-3.0-or-later
package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/CrawX/go-mxctl/bridge"
	"github.com/CrawX/go-mxctl/decode"
	"github.com/CrawX/go-mxctl/domain"

	"github.com/charmbracelet/lipgloss"
)

const maxColumnWidth = 48

// NoBatches is printed by Batches for an empty journal.
const NoBatches = "No recent batch operations to undo"

// Printer writes command results either as styled text or as JSON.
type Printer struct {
	w    io.Writer
	json bool
}

func NewPrinter(w io.Writer, json bool) *Printer {
	return &Printer{w: w, json: json}
}

func (p *Printer) JSON() bool {
	return p.json
}

// PrintJSON writes v as indented JSON. Message-IDs and addresses keep their
// angle brackets.
func (p *Printer) PrintJSON(v interface{}) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("could not encode output: %w", err)
	}
	return nil
}

func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.w, SuccessStyle.Render("✓ "+msg))
}

func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.w, MutedStyle.Render("• "+msg))
}

// Message prints msg as text or as {"message": msg}.
func (p *Printer) Message(msg string) error {
	if p.json {
		return p.PrintJSON(map[string]string{"message": msg})
	}
	p.Info(msg)
	return nil
}

// Records prints decoded records. columns selects and orders the fields of
// the text table; JSON output always carries every field.
func (p *Printer) Records(records []*decode.Record, columns ...string) error {
	if p.json {
		out := make([]map[string]interface{}, 0, len(records))
		for _, r := range records {
			out = append(out, r.Map())
		}
		return p.PrintJSON(out)
	}

	if len(records) == 0 {
		p.Info("Nothing found")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			v, _ := r.Value(c)
			row[i] = formatValue(v)
		}
		rows = append(rows, row)
	}
	p.Table(columns, rows)
	return nil
}

func formatValue(v decode.Value) string {
	switch i := v.Interface().(type) {
	case nil:
		return ""
	case time.Time:
		return i.Local().Format("2006-01-02 15:04")
	case bool:
		if i {
			return "yes"
		}
		return "no"
	default:
		return fmt.Sprint(i)
	}
}

// Table prints rows under upper-cased headers, columns padded to the widest cell.
func (p *Printer) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		if widths[i] > maxColumnWidth {
			widths[i] = maxColumnWidth
		}
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = HeaderStyle.Render(pad(strings.ToUpper(h), widths[i]))
	}
	fmt.Fprintln(p.w, strings.TrimRight(strings.Join(cells, "  "), " "))

	for _, row := range rows {
		for i, cell := range row {
			cells[i] = pad(truncate(cell, widths[i]), widths[i])
		}
		fmt.Fprintln(p.w, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

// Batch prints the result of a journaled batch.
func (p *Printer) Batch(result *bridge.BatchResult) error {
	if p.json {
		return p.PrintJSON(result)
	}

	summary := fmt.Sprintf("%s: %d succeeded, %d failed", result.Kind, len(result.Succeeded), len(result.Failed))
	switch result.Status {
	case domain.BatchComplete:
		p.Success(summary)
	case domain.BatchPartial:
		fmt.Fprintln(p.w, WarningStyle.Render("! "+summary))
	default:
		fmt.Fprintln(p.w, ErrorStyle.Render("✗ "+summary))
	}

	for _, s := range result.Succeeded {
		line := fmt.Sprintf("  %s", s.Target)
		if s.Outcome == domain.OutcomeUnchanged {
			line += " (unchanged)"
		}
		if !s.Invertible {
			line += " (cannot be undone: " + s.Reason + ")"
		}
		fmt.Fprintln(p.w, line)
	}
	for _, f := range result.Failed {
		fmt.Fprintln(p.w, ErrorStyle.Render(fmt.Sprintf("  %s: %s", f.Target, f.Error)))
	}

	if len(result.Succeeded) > 0 {
		p.Info("Undo with: mxctl undo " + result.BatchID)
	}
	return nil
}

// Undo prints the per-entry statuses of an undo.
func (p *Printer) Undo(result *bridge.UndoResult) error {
	if p.json {
		return p.PrintJSON(result)
	}

	if result.CorrectiveBatchID == "" {
		p.Info(fmt.Sprintf("Nothing to revert in batch %s", result.BatchID))
	} else {
		p.Success(fmt.Sprintf("Reverted batch %s (undo batch %s)", result.BatchID, result.CorrectiveBatchID))
	}

	for _, e := range result.Entries {
		line := fmt.Sprintf("  %-16s %s %s", e.Status, e.Kind, e.Target)
		if e.Unverified {
			line += " (unverified)"
		}
		if e.Error != "" {
			line += ": " + e.Error
		}
		switch e.Status {
		case bridge.Reverted, bridge.AlreadyReverted:
			fmt.Fprintln(p.w, line)
		case bridge.UndoFailed:
			fmt.Fprintln(p.w, ErrorStyle.Render(line))
		default:
			fmt.Fprintln(p.w, WarningStyle.Render(line))
		}
	}
	return nil
}

// Batches prints the journal, newest first.
func (p *Printer) Batches(summaries []*domain.BatchSummary) error {
	if p.json {
		if summaries == nil {
			summaries = []*domain.BatchSummary{}
		}
		return p.PrintJSON(summaries)
	}

	if len(summaries) == 0 {
		p.Info(NoBatches)
		return nil
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		undo := ""
		switch {
		case s.UndoneBy != "":
			undo = "undone by " + s.UndoneBy
		case s.Corrects != "":
			undo = "undoes " + s.Corrects
		}
		rows = append(rows, []string{
			s.ID,
			string(s.Kind),
			string(s.Status),
			fmt.Sprintf("%d/%d", s.Succeeded+s.Unchanged, s.Entries),
			s.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			undo,
		})
	}
	p.Table([]string{"id", "kind", "status", "done", "created", "undo"}, rows)
	return nil
}

// ErrorType names err for the JSON error payload.
func ErrorType(err error) string {
	var (
		templateErr      *domain.TemplateError
		timeoutErr       *domain.TimeoutError
		automationErr    *domain.AutomationError
		decodeErr        *domain.DecodeError
		tooLargeErr      *domain.BatchTooLargeError
		nonInvertibleErr *domain.NonInvertibleError
		notFoundErr      *domain.BatchNotFoundError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &templateErr):
		return "template"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.Is(err, domain.ErrMessageNotFound):
		return "not_found"
	case errors.As(err, &automationErr):
		return "automation"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &tooLargeErr):
		return "batch_too_large"
	case errors.As(err, &nonInvertibleErr):
		return "non_invertible"
	case errors.As(err, &notFoundErr):
		return "batch_not_found"
	}
	return "error"
}

// Error prints err as {"error": {"type": ..., "message": ...}} or as styled text.
func (p *Printer) Error(err error) {
	if p.json {
		p.PrintJSON(map[string]interface{}{
			"error": map[string]string{
				"type":    ErrorType(err),
				"message": err.Error(),
			},
		})
		return
	}
	fmt.Fprintln(p.w, ErrorStyle.Render("✗ "+err.Error()))
}
