package warehouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSchemaSession() *FakeSession {
	fake := NewFakeSession()
	fake.StubQuery("INFORMATION_SCHEMA.COLUMNS", []Row{
		{"SALES", "TRADE_DATE"},
		{"SALES", "ACCOUNT_ID"},
		{"POSITIONS", "AS_OF_DATE"},
	})
	return fake
}

func TestMetadataCacheCanonicalizesNames(t *testing.T) {
	a := assert.New(t)

	fake := fakeSchemaSession()
	cache := NewMetadataCache("market", "raw")

	table, err := cache.RequireTable(context.Background(), fake, "sales")
	require.NoError(t, err)
	a.Equal("SALES", table)

	cols, err := cache.RequireColumns(context.Background(), fake, "Sales", "trade_date", "Account_Id")
	require.NoError(t, err)
	a.Equal([]string{"TRADE_DATE", "ACCOUNT_ID"}, cols)
}

func TestMetadataCacheFetchesOnce(t *testing.T) {
	a := assert.New(t)

	fake := fakeSchemaSession()
	cache := NewMetadataCache("MARKET", "RAW")

	ctx := context.Background()
	_, err := cache.RequireTable(ctx, fake, "SALES")
	require.NoError(t, err)
	_, err = cache.RequireTable(ctx, fake, "POSITIONS")
	require.NoError(t, err)
	_, err = cache.RequireColumns(ctx, fake, "POSITIONS", "AS_OF_DATE")
	require.NoError(t, err)

	a.Len(fake.Queries, 1)
}

func TestMetadataCacheUnknownTable(t *testing.T) {
	a := assert.New(t)

	cache := NewMetadataCache("MARKET", "RAW")
	_, err := cache.RequireTable(context.Background(), fakeSchemaSession(), "ORDERS")

	var identErr *IdentifierError
	require.ErrorAs(t, err, &identErr)
	a.Equal("ORDERS", identErr.Name)
	a.Contains(identErr.Error(), "ORDERS")
}

func TestMetadataCacheUnknownColumn(t *testing.T) {
	a := assert.New(t)

	cache := NewMetadataCache("MARKET", "RAW")
	_, err := cache.RequireColumns(context.Background(), fakeSchemaSession(), "SALES", "TRADE_DATE", "QTY")

	var identErr *IdentifierError
	require.ErrorAs(t, err, &identErr)
	a.Equal("SALES.QTY", identErr.Name)
}

func TestMetadataCacheQueryFailure(t *testing.T) {
	fake := NewFakeSession()
	fake.StubQueryError("INFORMATION_SCHEMA.COLUMNS", assert.AnError)

	cache := NewMetadataCache("MARKET", "RAW")
	_, err := cache.RequireTable(context.Background(), fake, "SALES")

	require.ErrorIs(t, err, assert.AnError)
}
