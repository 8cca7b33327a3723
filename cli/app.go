// SPDX-License-Identifier: GPL-3.0-or-later
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/CrawX/go-mxctl/automation"
	"github.com/CrawX/go-mxctl/bridge"
	"github.com/CrawX/go-mxctl/config"
	"github.com/CrawX/go-mxctl/domain"
	"github.com/CrawX/go-mxctl/log"
	"github.com/CrawX/go-mxctl/output"
	"github.com/CrawX/go-mxctl/persistence"
	"github.com/CrawX/go-mxctl/script"

	"github.com/sirupsen/logrus"
)

// app holds everything a command needs. It lives for one command run.
type app struct {
	conf    *config.Config
	journal domain.Journal
	bridge  *bridge.Bridge
	printer *output.Printer

	account string
	mailbox string

	l *logrus.Logger
}

func (o *options) newApp() (*app, error) {
	logger := log.Logger(log.LOG_MAIN)

	path := o.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	conf, err := config.ReadConfig(path)
	if err != nil {
		return nil, err
	}

	switch {
	case o.logLevel != "":
		log.SetLogLevel(o.logLevel)
	case conf.Loglevel != nil:
		log.SetLogLevel(*conf.Loglevel)
	}

	p, err := persistence.NewPersistence(conf.Database)
	if err != nil {
		return nil, fmt.Errorf("could not open journal: %w", err)
	}

	executor := o.executor
	if executor == nil {
		executor = automation.NewOsascript(conf.Osascript...)
	}

	b, err := bridge.NewBridge(executor, p, bridgeConfig(conf)...)
	if err != nil {
		p.Close()
		return nil, err
	}
	b.AllowMailboxes(conf.Mailboxes...)

	logger.WithFields(logrus.Fields{"config": path, "journal": conf.Database}).Debug("Started")

	mailbox := o.mailbox
	if mailbox == "" {
		mailbox = conf.DefaultMailbox
	}
	account := o.account
	if account == "" {
		account = conf.DefaultAccount
	}

	return &app{
		conf:    conf,
		journal: p,
		bridge:  b,
		printer: output.NewPrinter(o.out, o.json),
		account: account,
		mailbox: mailbox,
		l:       logger,
	}, nil
}

func bridgeConfig(conf *config.Config) []bridge.ConfigFunc {
	configs := []bridge.ConfigFunc{
		bridge.MaxBatchSize(conf.MaxBatchSize),
		bridge.ScanCap(conf.ScanCap),
		bridge.RetainBatches(conf.RetainBatches),
		bridge.QueryConcurrency(conf.QueryConcurrency),
		bridge.QueryRetries(conf.QueryRetries),
		bridge.Timeouts(time.Duration(conf.SingleTimeoutSeconds)*time.Second, time.Duration(conf.ScanTimeoutSeconds)*time.Second),
		bridge.DefaultTrashMailbox(conf.DefaultTrash),
	}
	for name, account := range conf.Accounts {
		if account.PermanentDelete {
			configs = append(configs, bridge.PermanentDelete(name))
		} else if account.Trash != "" {
			configs = append(configs, bridge.Trash(name, account.Trash))
		}
	}
	return configs
}

func (a *app) Close() error {
	return a.journal.Close()
}

// resolveAccount returns the account to work on. Without -a and a
// DefaultAccount it falls back to the only enabled account.
func (a *app) resolveAccount(ctx context.Context) (string, error) {
	if a.account != "" {
		return a.account, nil
	}

	accounts, err := a.enabledAccounts(ctx)
	if err != nil {
		return "", err
	}
	if len(accounts) != 1 {
		return "", fmt.Errorf("no account given and %d accounts are enabled, use -a or set DefaultAccount in the config", len(accounts))
	}
	a.account = accounts[0]
	return a.account, nil
}

func (a *app) enabledAccounts(ctx context.Context) ([]string, error) {
	records, err := a.bridge.Query(ctx, script.ListAccounts, script.Params{})
	if err != nil {
		return nil, err
	}
	accounts := []string{}
	for _, r := range records {
		if r.Bool("enabled") {
			accounts = append(accounts, r.String("name"))
		}
	}
	return accounts, nil
}

// location resolves account and mailbox and makes sure the mailbox exists.
func (a *app) location(ctx context.Context) (string, string, error) {
	account, err := a.resolveAccount(ctx)
	if err != nil {
		return "", "", err
	}
	if err := a.bridge.EnsureMailbox(ctx, account, a.mailbox); err != nil {
		return "", "", err
	}
	return account, a.mailbox, nil
}
