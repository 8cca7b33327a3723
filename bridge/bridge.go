// SPDX-License-Identifier: GPL-3.0-or-later
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CrawX/go-mxctl/decode"
	"github.com/CrawX/go-mxctl/domain"
	"github.com/CrawX/go-mxctl/log"
	"github.com/CrawX/go-mxctl/script"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Bridge drives the mail application: reads go straight through the
// template engine, the executor and the decoder, writes are journaled so
// they can be undone.
type Bridge struct {
	engine   *script.Engine
	executor domain.Executor
	journal  domain.Journal

	configuration *configuration

	l *logrus.Logger
}

func NewBridge(executor domain.Executor, journal domain.Journal, configFunc ...ConfigFunc) (*Bridge, error) {
	config := defaultConfiguration()
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}

	engine, err := script.NewEngine(script.Catalog(config.ScanCap))
	if err != nil {
		return nil, fmt.Errorf("could not load script templates: %w", err)
	}
	engine.Allow(script.VocabMailbox, script.DefaultMailboxes...)
	engine.Allow(script.VocabMailbox, config.DefaultTrash)
	for _, trash := range config.Trash {
		engine.Allow(script.VocabMailbox, trash)
	}

	return &Bridge{
		engine:        engine,
		executor:      executor,
		journal:       journal,
		configuration: config,
		l:             log.Logger(log.LOG_BRIDGE),
	}, nil
}

// Request is one read for QueryAll.
type Request struct {
	Template string
	Params   script.Params
}

type QueryResult struct {
	Records []*decode.Record
	Err     error
}

// Query runs a non-mutating template and decodes its output.
func (b *Bridge) Query(ctx context.Context, template string, params script.Params) ([]*decode.Record, error) {
	tmpl, ok := b.engine.Template(template)
	if !ok {
		return nil, &domain.TemplateError{Template: template, Reason: "unknown template"}
	}
	if tmpl.Mutating {
		return nil, fmt.Errorf("template %s changes state and has to run in a batch", template)
	}

	rendered, err := b.engine.Render(template, params)
	if err != nil {
		return nil, err
	}

	logger := b.l.WithFields(logrus.Fields{"template": template})

	var raw *domain.RawResult
	for attempt := 0; ; attempt++ {
		raw, err = b.executor.Execute(ctx, rendered, b.timeout(tmpl.Class))
		if err == nil || attempt >= b.configuration.QueryRetries || !retryable(ctx, err) {
			break
		}
		logger.WithFields(logrus.Fields{"attempt": attempt + 1, "error": err}).Debug("Query failed, retrying")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", template, err)
	}

	records, err := decode.Decode(raw.Stdout, tmpl.Schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", template, err)
	}

	logger.WithFields(logrus.Fields{"records": len(records), "elapsed": raw.Elapsed.Round(time.Millisecond)}).Debug("Query finished")
	return records, nil
}

// QueryAll runs independent reads concurrently. A failing request does not
// affect the others; results are in request order.
func (b *Bridge) QueryAll(ctx context.Context, requests []Request) []QueryResult {
	results := make([]QueryResult, len(requests))

	g := errgroup.Group{}
	g.SetLimit(b.configuration.QueryConcurrency)
	for i := range requests {
		index := i
		g.Go(func() error {
			records, err := b.Query(ctx, requests[index].Template, requests[index].Params)
			results[index] = QueryResult{Records: records, Err: err}
			return nil
		})
	}
	g.Wait()

	return results
}

// AllowMailboxes makes mailbox names acceptable as template parameters.
func (b *Bridge) AllowMailboxes(names ...string) {
	b.engine.Allow(script.VocabMailbox, names...)
}

// LoadMailboxes asks the application for the mailboxes of account and allows them.
func (b *Bridge) LoadMailboxes(ctx context.Context, account string) ([]string, error) {
	records, err := b.Query(ctx, script.ListMailboxes, script.Params{"account": account})
	if err != nil {
		return nil, fmt.Errorf("could not list mailboxes of %s: %w", account, err)
	}

	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.String("name"))
	}
	b.AllowMailboxes(names...)

	b.l.WithFields(logrus.Fields{"account": account, "mailboxes": len(names)}).Debug("Loaded mailboxes")
	return names, nil
}

// EnsureMailbox loads the mailboxes of account unless mailbox is already known.
func (b *Bridge) EnsureMailbox(ctx context.Context, account, mailbox string) error {
	if b.mailboxAllowed(mailbox) {
		return nil
	}
	if _, err := b.LoadMailboxes(ctx, account); err != nil {
		return err
	}
	if !b.mailboxAllowed(mailbox) {
		return fmt.Errorf("mailbox %q not found in account %s", mailbox, account)
	}
	return nil
}

func (b *Bridge) mailboxAllowed(mailbox string) bool {
	for _, m := range b.engine.Allowed(script.VocabMailbox) {
		if m == mailbox {
			return true
		}
	}
	return false
}

// ClampLimit keeps a read limit within [1, ScanCap].
func (b *Bridge) ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > b.configuration.ScanCap {
		return b.configuration.ScanCap
	}
	return limit
}

func (b *Bridge) MaxBatchSize() int {
	return b.configuration.MaxBatchSize
}

func (b *Bridge) timeout(class script.Class) time.Duration {
	if class == script.ClassScan {
		return b.configuration.ScanTimeout
	}
	return b.configuration.SingleTimeout
}

// retryable excludes failures a second attempt cannot fix or would only
// make the user wait for twice.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var timeoutErr *domain.TimeoutError
	if errors.As(err, &timeoutErr) {
		return false
	}
	return !errors.Is(err, domain.ErrMessageNotFound)
}
