package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/dmitrymomot/kiosk/pkg/logger"
	"github.com/dmitrymomot/kiosk/pkg/subcode"
)

// maxCreateAttempts bounds retries when a freshly generated code loses a
// race with a concurrent insert.
const maxCreateAttempts = 3

// IssueParams describes a subscription being sold.
type IssueParams struct {
	Service      Service
	ClientName   string
	ProviderName string
	Sessions     int
}

func (p IssueParams) validate() error {
	switch {
	case !p.Service.Valid():
		return fmt.Errorf("%w: unknown service %q", ErrInvalidSubscription, p.Service)
	case cleanName(p.ClientName) == "":
		return fmt.Errorf("%w: client name is required", ErrInvalidSubscription)
	case p.Sessions < 0:
		return fmt.Errorf("%w: sessions must not be negative, got %d", ErrInvalidSubscription, p.Sessions)
	}
	return nil
}

// Issuer creates subscriptions with fresh unique codes.
type Issuer struct {
	store  IssuerStore
	gen    *subcode.Generator
	logger *slog.Logger
}

// NewIssuer returns an Issuer. A nil gen uses a default crypto/rand generator.
func NewIssuer(store IssuerStore, gen *subcode.Generator, log *slog.Logger) *Issuer {
	if gen == nil {
		gen = subcode.NewGenerator(subcode.WithLogger(log))
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Issuer{store: store, gen: gen, logger: log}
}

// Issue creates a subscription with a full balance.
func (i *Issuer) Issue(ctx context.Context, p IssueParams) (*Subscription, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		code, err := i.gen.GenerateUnique(ctx, i.store.Exists)
		if err != nil {
			return nil, err
		}

		sub := &Subscription{
			Code:              code,
			Service:           p.Service,
			ClientName:        cleanName(p.ClientName),
			ProviderName:      cleanName(p.ProviderName),
			SessionsPurchased: p.Sessions,
			SessionsRemaining: p.Sessions,
		}
		err = i.store.CreateSubscription(ctx, sub)
		if err == nil {
			i.logger.InfoContext(ctx, "subscription issued",
				logger.Code(code),
				slog.String("service", string(sub.Service)),
				slog.Int64("number", sub.Number),
				slog.Int("sessions", sub.SessionsPurchased),
			)
			return sub, nil
		}
		if !errors.Is(err, ErrDuplicateCode) || attempt >= maxCreateAttempts {
			return nil, err
		}
		i.logger.WarnContext(ctx, "generated code taken at insert, retrying", logger.Attempt(attempt))
	}
}

// cleanName trims and NFC-normalises a person's name, and collapses inner
// runs of whitespace, so the same name typed on different keyboards is
// stored identically.
func cleanName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
