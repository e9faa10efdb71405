package mappings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting/shared"
)

func TestLoadDefaults(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)

	out, err := r.Resolve("SALE", 1, false, ItemAccounts{})
	require.NoError(t, err)
	require.Equal(t, "1400", out.Inventory)
	require.Equal(t, "5000", out.Expense)

	in, err := r.Resolve("PURCHASE", 1, true, ItemAccounts{Inventory: "1410"})
	require.NoError(t, err)
	require.Equal(t, "1410", in.Inventory)
	require.Equal(t, "2100", in.Offset)
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.yaml")
	content := []byte(`default:
  inventory: "1300"
  cogs: "5100"
  payable: "2000"
move_types:
  purchase:
    offset: "1010"
  sale:
    cogs: "5200"
warehouses:
  "2":
    inventory: "1420"
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	r, err := Load(path)
	require.NoError(t, err)

	in, err := r.Resolve("PURCHASE", 1, true, ItemAccounts{})
	require.NoError(t, err)
	require.Equal(t, "1300", in.Inventory)
	require.Equal(t, "1010", in.Offset)

	out, err := r.Resolve("SALE", 1, false, ItemAccounts{Expense: "5300"})
	require.NoError(t, err)
	require.Equal(t, "5200", out.Expense)

	adj, err := r.Resolve("ADJUSTMENT", 1, false, ItemAccounts{Expense: "5300"})
	require.NoError(t, err)
	require.Equal(t, "5900", adj.Expense)

	require.Equal(t, "1420", r.Inventory(2, ItemAccounts{Inventory: "1410"}))
	require.Equal(t, "1410", r.Inventory(1, ItemAccounts{Inventory: "1410"}))
}

func TestResolveMissingAccount(t *testing.T) {
	r := NewResolver(Config{})
	_, err := r.Resolve("SALE", 1, false, ItemAccounts{})
	require.ErrorIs(t, err, shared.ErrMappingNotFound)

	_, err = r.Resolve("SALE", 1, false, ItemAccounts{Inventory: "1400"})
	require.ErrorIs(t, err, shared.ErrMappingNotFound)

	got, err := r.Resolve("SALE", 1, false, ItemAccounts{Inventory: "1400", Expense: "5000"})
	require.NoError(t, err)
	require.Equal(t, "5000", got.Expense)
}
