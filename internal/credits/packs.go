// Package credits holds the static credit pack catalog and applies
// completed purchases to the ledger.
package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/photo-relay/internal/ledger"
)

// ErrUnknownPack is returned when a purchase names a pack not in the catalog
var ErrUnknownPack = errors.New("unknown credit pack")

// Pack is one purchasable bundle of credits. Read-only at runtime.
type Pack struct {
	PackID  string
	Title   string
	Credits int
	// Price is in the payment provider's smallest unit.
	Price int
}

// Catalog is the set of packs offered to users.
type Catalog struct {
	packs  map[string]Pack
	order  []string
	ledger ledger.Ledger
	logger *slog.Logger
}

// NewCatalog builds a catalog from configured packs, preserving their order.
func NewCatalog(packs []Pack, l ledger.Ledger, logger *slog.Logger) (*Catalog, error) {
	byID := make(map[string]Pack, len(packs))
	order := make([]string, 0, len(packs))

	for _, p := range packs {
		if p.PackID == "" {
			return nil, fmt.Errorf("credit pack with empty id")
		}
		if p.Credits <= 0 {
			return nil, fmt.Errorf("credit pack %q: credits must be positive", p.PackID)
		}
		if p.Price <= 0 {
			return nil, fmt.Errorf("credit pack %q: price must be positive", p.PackID)
		}
		if _, dup := byID[p.PackID]; dup {
			return nil, fmt.Errorf("duplicate credit pack id %q", p.PackID)
		}
		byID[p.PackID] = p
		order = append(order, p.PackID)
	}

	return &Catalog{
		packs:  byID,
		order:  order,
		ledger: l,
		logger: logger,
	}, nil
}

// Packs returns the catalog in configuration order.
func (c *Catalog) Packs() []Pack {
	out := make([]Pack, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.packs[id])
	}
	return out
}

// Get looks up a pack by id.
func (c *Catalog) Get(packID string) (Pack, error) {
	p, ok := c.packs[packID]
	if !ok {
		return Pack{}, ErrUnknownPack
	}
	return p, nil
}

// ApplyPurchase credits the pack's amount to the user after a completed
// payment and returns the new balance.
func (c *Catalog) ApplyPurchase(ctx context.Context, userID, packID string) (int, error) {
	pack, err := c.Get(packID)
	if err != nil {
		return 0, err
	}

	balance, err := c.ledger.Credit(ctx, userID, pack.Credits)
	if err != nil {
		return 0, fmt.Errorf("failed to apply purchase: %w", err)
	}

	c.logger.Info("Credit pack purchased",
		slog.String("user_id", userID),
		slog.String("pack_id", packID),
		slog.Int("credits", pack.Credits),
		slog.Int("balance", balance),
	)

	return balance, nil
}
