package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-inventory-engine/internal/domain/inventory"
	"github.com/example/ec-inventory-engine/internal/domain/product"
	"github.com/example/ec-inventory-engine/internal/infrastructure/store"
)

type cartFixture struct {
	svc      *Service
	products *product.Catalog
	ledger   *inventory.Ledger
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	st := store.NewMemoryStore()
	catalog := product.NewCatalog(st)
	ledger := inventory.NewLedger(st, nil)
	return &cartFixture{
		svc:      NewService(st, catalog, ledger),
		products: catalog,
		ledger:   ledger,
	}
}

func (f *cartFixture) seedProduct(t *testing.T, name string, price, stock int) *product.Product {
	t.Helper()
	ctx := context.Background()
	p, err := f.products.Create(ctx, name, "", "misc", price)
	require.NoError(t, err)
	_, err = f.ledger.Create(ctx, p.ID, stock)
	require.NoError(t, err)
	return p
}

func TestService_AddItem(t *testing.T) {
	f := newCartFixture(t)
	p := f.seedProduct(t, "widget", 500, 10)

	c, err := f.svc.AddItem(context.Background(), "cust-1", p.ID, 2)

	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, 500, c.Items[0].UnitPrice)
	assert.Equal(t, p.Version, c.Items[0].ProductVersion)
	assert.Equal(t, 1000, c.Total())
}

func TestService_AddItemMergesSameProduct(t *testing.T) {
	f := newCartFixture(t)
	p := f.seedProduct(t, "widget", 500, 10)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "cust-1", p.ID, 2)
	require.NoError(t, err)
	c, err := f.svc.AddItem(ctx, "cust-1", p.ID, 3)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
}

func TestService_AddItemInsufficientStock(t *testing.T) {
	f := newCartFixture(t)
	p := f.seedProduct(t, "widget", 500, 3)

	_, err := f.svc.AddItem(context.Background(), "cust-1", p.ID, 4)

	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
}

func TestService_AddItemUnknownProduct(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.svc.AddItem(context.Background(), "cust-1", "ghost", 1)

	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestService_AddItemInvalidQuantity(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.svc.AddItem(context.Background(), "cust-1", "any", 0)

	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestService_UpdateQuantity(t *testing.T) {
	f := newCartFixture(t)
	p := f.seedProduct(t, "widget", 500, 10)
	ctx := context.Background()

	c, err := f.svc.AddItem(ctx, "cust-1", p.ID, 2)
	require.NoError(t, err)

	c, err = f.svc.UpdateQuantity(ctx, "cust-1", c.Items[0].ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Items[0].Quantity)
}

func TestService_UpdateQuantityUnknownItem(t *testing.T) {
	f := newCartFixture(t)
	p := f.seedProduct(t, "widget", 500, 10)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "cust-1", p.ID, 2)
	require.NoError(t, err)

	_, err = f.svc.UpdateQuantity(ctx, "cust-1", "missing-item", 3)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestService_RemoveItem(t *testing.T) {
	f := newCartFixture(t)
	p := f.seedProduct(t, "widget", 500, 10)
	ctx := context.Background()

	c, err := f.svc.AddItem(ctx, "cust-1", p.ID, 2)
	require.NoError(t, err)

	c, err = f.svc.RemoveItem(ctx, "cust-1", c.Items[0].ID)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestService_GetReturnsEmptyCartForNewCustomer(t *testing.T) {
	f := newCartFixture(t)

	c, err := f.svc.Get(context.Background(), "cust-new")

	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, CartID("cust-new"), c.ID)
}

func TestService_ValidateCleanCart(t *testing.T) {
	f := newCartFixture(t)
	p := f.seedProduct(t, "widget", 500, 10)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "cust-1", p.ID, 2)
	require.NoError(t, err)

	report, err := f.svc.Validate(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.False(t, report.Stale)
	assert.Empty(t, report.Issues)
}

func TestService_ValidateEmptyCart(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.svc.Validate(context.Background(), "cust-1")

	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestService_ValidateStaleAfterProductChange(t *testing.T) {
	f := newCartFixture(t)
	p := f.seedProduct(t, "widget", 500, 10)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "cust-1", p.ID, 2)
	require.NoError(t, err)

	// Price revision bumps the product version behind the cart's back.
	_, err = f.products.Update(ctx, p.ID, p.Name, p.Description, p.Category, 600)
	require.NoError(t, err)

	report, err := f.svc.Validate(ctx, "cust-1")
	assert.ErrorIs(t, err, ErrStaleCart)
	require.NotNil(t, report)
	assert.True(t, report.Stale)
	assert.False(t, report.OK)

	reasons := make(map[string]bool)
	for _, issue := range report.Issues {
		reasons[issue.Reason] = true
	}
	assert.True(t, reasons[IssueStale])
	assert.True(t, reasons[IssuePriceChanged])
}

func TestService_ValidateInsufficientStockIsNotStale(t *testing.T) {
	f := newCartFixture(t)
	p := f.seedProduct(t, "widget", 500, 10)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "cust-1", p.ID, 8)
	require.NoError(t, err)

	// Another customer's reservation eats the stock.
	_, err = f.ledger.Reserve(ctx, p.ID, 5)
	require.NoError(t, err)

	report, err := f.svc.Validate(ctx, "cust-1")
	require.NoError(t, err)
	assert.False(t, report.OK)
	assert.False(t, report.Stale)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueInsufficientStock, report.Issues[0].Reason)
	assert.Equal(t, 8, report.Issues[0].Requested)
	assert.Equal(t, 5, report.Issues[0].Available)
}

func TestService_Clear(t *testing.T) {
	f := newCartFixture(t)
	p := f.seedProduct(t, "widget", 500, 10)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "cust-1", p.ID, 2)
	require.NoError(t, err)

	require.NoError(t, f.svc.Clear(ctx, "cust-1"))

	c, err := f.svc.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}
