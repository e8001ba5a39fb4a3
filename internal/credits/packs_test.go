package credits

import (
	"context"
	"log/slog"
	"testing"

	"github.com/cuongbtq/photo-relay/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPacks() []Pack {
	return []Pack{
		{PackID: "starter", Title: "Starter pack", Credits: 5, Price: 199},
		{PackID: "bulk", Title: "Bulk pack", Credits: 25, Price: 799},
	}
}

func TestNewCatalog_Validation(t *testing.T) {
	l := ledger.NewMemoryLedger()
	discard := slog.New(slog.DiscardHandler)

	tests := []struct {
		name      string
		packs     []Pack
		errString string
	}{
		{
			name:  "valid packs",
			packs: testPacks(),
		},
		{
			name:      "empty id",
			packs:     []Pack{{Credits: 1, Price: 1}},
			errString: "empty id",
		},
		{
			name:      "non-positive credits",
			packs:     []Pack{{PackID: "p", Credits: 0, Price: 1}},
			errString: "credits must be positive",
		},
		{
			name:      "non-positive price",
			packs:     []Pack{{PackID: "p", Credits: 1, Price: 0}},
			errString: "price must be positive",
		},
		{
			name: "duplicate id",
			packs: []Pack{
				{PackID: "p", Credits: 1, Price: 1},
				{PackID: "p", Credits: 2, Price: 2},
			},
			errString: "duplicate credit pack id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog, err := NewCatalog(tt.packs, l, discard)
			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
				assert.Len(t, catalog.Packs(), len(tt.packs))
			}
		})
	}
}

func TestCatalog_PacksPreserveOrder(t *testing.T) {
	catalog, err := NewCatalog(testPacks(), ledger.NewMemoryLedger(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	packs := catalog.Packs()
	require.Len(t, packs, 2)
	assert.Equal(t, "starter", packs[0].PackID)
	assert.Equal(t, "bulk", packs[1].PackID)
}

func TestCatalog_ApplyPurchase(t *testing.T) {
	l := ledger.NewMemoryLedger()
	catalog, err := NewCatalog(testPacks(), l, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	ctx := context.Background()

	balance, err := catalog.ApplyPurchase(ctx, "user-1", "starter")
	require.NoError(t, err)
	assert.Equal(t, 5, balance)

	balance, err = catalog.ApplyPurchase(ctx, "user-1", "bulk")
	require.NoError(t, err)
	assert.Equal(t, 30, balance)

	_, err = catalog.ApplyPurchase(ctx, "user-1", "nonexistent")
	assert.ErrorIs(t, err, ErrUnknownPack)

	// Failed purchase leaves the balance untouched
	got, err := l.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 30, got)
}
