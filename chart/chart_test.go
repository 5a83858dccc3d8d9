package chart_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvetik19-lab/finapp-sub014/chart"
	"github.com/corvetik19-lab/finapp-sub014/ledger"
	"github.com/corvetik19-lab/finapp-sub014/ledger/store"
)

const testTenant = ledger.TenantID("tenant-1")

func newImporter() (*chart.Importer, *ledger.Registry) {
	registry := ledger.NewRegistry(store.NewMemory())
	return chart.NewImporter(registry), registry
}

// =============================================================================
// DEFAULT CHART
// =============================================================================

func TestDefault_IsInternallyConsistent(t *testing.T) {
	defs := chart.Default()
	require.NotEmpty(t, defs)

	byCode := make(map[string]chart.Definition, len(defs))
	for _, def := range defs {
		_, dup := byCode[def.Code]
		require.False(t, dup, "duplicate code %s", def.Code)
		byCode[def.Code] = def
	}

	for _, def := range defs {
		assert.True(t, def.Type.Valid(), "code %s has invalid type %q", def.Code, def.Type)
		assert.NotEmpty(t, def.Name, "code %s has no name", def.Code)
		if def.ParentCode != "" {
			_, ok := byCode[def.ParentCode]
			assert.True(t, ok, "code %s references missing parent %s", def.Code, def.ParentCode)
		}
	}
}

func TestImportDefault_CreatesFullChart(t *testing.T) {
	imp, registry := newImporter()
	ctx := context.Background()

	result, err := imp.ImportDefault(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, len(chart.Default()), result.Created)
	assert.Zero(t, result.Skipped)

	// Sub-accounts are linked under their parents.
	parent, err := registry.ResolveByCode(ctx, testTenant, "60")
	require.NoError(t, err)
	child, err := registry.ResolveByCode(ctx, testTenant, "60.01")
	require.NoError(t, err)
	assert.Equal(t, parent.ID, child.ParentID)
}

// =============================================================================
// IMPORT
// =============================================================================

func TestImport_OrdersParentsBeforeChildren(t *testing.T) {
	imp, registry := newImporter()
	ctx := context.Background()

	// Child listed before its parent.
	defs := []chart.Definition{
		{Code: "62.01", Name: "Settlements with buyers", Type: ledger.AccountAsset, ParentCode: "62"},
		{Code: "62", Name: "Settlements with buyers and customers", Type: ledger.AccountAsset},
	}
	result, err := imp.Import(ctx, testTenant, defs)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)

	parent, err := registry.ResolveByCode(ctx, testTenant, "62")
	require.NoError(t, err)
	child, err := registry.ResolveByCode(ctx, testTenant, "62.01")
	require.NoError(t, err)
	assert.Equal(t, parent.ID, child.ParentID)
}

func TestImport_SkipsExistingCodes(t *testing.T) {
	imp, _ := newImporter()
	ctx := context.Background()

	defs := []chart.Definition{
		{Code: "51", Name: "Settlement accounts", Type: ledger.AccountAsset},
	}
	_, err := imp.Import(ctx, testTenant, defs)
	require.NoError(t, err)

	result, err := imp.Import(ctx, testTenant, defs)
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Equal(t, 1, result.Skipped)
}

func TestImport_ResolvesParentAlreadyInTenant(t *testing.T) {
	imp, registry := newImporter()
	ctx := context.Background()

	parent, err := registry.CreateAccount(ctx, ledger.CreateAccountInput{
		TenantID: testTenant, Code: "76", Name: "Sundry debtors and creditors", Type: ledger.AccountAsset,
	})
	require.NoError(t, err)

	defs := []chart.Definition{
		{Code: "76.05", Name: "Other settlements", Type: ledger.AccountAsset, ParentCode: "76"},
	}
	_, err = imp.Import(ctx, testTenant, defs)
	require.NoError(t, err)

	child, err := registry.ResolveByCode(ctx, testTenant, "76.05")
	require.NoError(t, err)
	assert.Equal(t, parent.ID, child.ParentID)
}

func TestImport_RejectsDuplicateCodes(t *testing.T) {
	imp, _ := newImporter()

	defs := []chart.Definition{
		{Code: "51", Name: "A", Type: ledger.AccountAsset},
		{Code: "51", Name: "B", Type: ledger.AccountAsset},
	}
	_, err := imp.Import(context.Background(), testTenant, defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate code")
}

func TestImport_RejectsParentCycle(t *testing.T) {
	imp, _ := newImporter()

	defs := []chart.Definition{
		{Code: "a", Name: "A", Type: ledger.AccountAsset, ParentCode: "b"},
		{Code: "b", Name: "B", Type: ledger.AccountAsset, ParentCode: "a"},
	}
	_, err := imp.Import(context.Background(), testTenant, defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

// =============================================================================
// CSV
// =============================================================================

func TestCSV_RoundTrip(t *testing.T) {
	defs := []chart.Definition{
		{Code: "51", Name: "Settlement accounts", Type: ledger.AccountAsset},
		{Code: "60", Name: "Settlements with suppliers", Type: ledger.AccountLiability},
		{Code: "60.01", Name: "Payables", Type: ledger.AccountLiability, ParentCode: "60"},
	}

	var buf bytes.Buffer
	require.NoError(t, chart.WriteDefinitions(&buf, defs))

	got, err := chart.ReadDefinitions(&buf)
	require.NoError(t, err)
	assert.Equal(t, defs, got)
}

func TestReadDefinitions_RejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{
			name: "missing code",
			csv:  "code,name,type,parent_code\n,Cash,asset,\n",
		},
		{
			name: "unknown type",
			csv:  "code,name,type,parent_code\n50,Cash,metal,\n",
		},
		{
			name: "wrong field count",
			csv:  "code,name,type,parent_code\n50,Cash,asset\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chart.ReadDefinitions(strings.NewReader(tt.csv))
			assert.Error(t, err)
		})
	}
}

func TestReadDefinitions_EmptyInput(t *testing.T) {
	defs, err := chart.ReadDefinitions(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, defs)
}
