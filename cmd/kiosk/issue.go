package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrymomot/kiosk/pkg/checkin"
	"github.com/dmitrymomot/kiosk/pkg/subcode"
)

type issueFlags struct {
	service  string
	client   string
	provider string
	sessions int
}

func parseIssueFlags(args []string, out io.Writer) (issueFlags, error) {
	var f issueFlags
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&f.service, "service", string(checkin.ServicePersonalTraining),
		"personal_training, nutrition, physiotherapy or group_class")
	fs.StringVar(&f.client, "client", "", "client name (required)")
	fs.StringVar(&f.provider, "provider", "", "provider name")
	fs.IntVar(&f.sessions, "sessions", 10, "number of prepaid sessions")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.client == "" {
		return f, errors.New("issue: -client is required")
	}
	return f, nil
}

// issue creates a subscription in the configured store and prints its code.
func issue(ctx context.Context, args []string, out io.Writer) error {
	f, err := parseIssueFlags(args, out)
	if err != nil {
		return err
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.StoreDriver == DriverMemory {
		return errors.New("issue: STORE_DRIVER=memory does not persist subscriptions")
	}

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	sub, err := checkin.NewIssuer(be.store, nil, log).Issue(ctx, checkin.IssueParams{
		Service:      checkin.Service(f.service),
		ClientName:   f.client,
		ProviderName: f.provider,
		Sessions:     f.sessions,
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "%s #%d\ncode: %s\n      %s\nsessions: %d\n",
		sub.Service, sub.Number, sub.Code, subcode.FormatForDisplay(sub.Code), sub.SessionsPurchased)
	return err
}
