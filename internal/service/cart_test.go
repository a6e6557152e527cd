package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/testdb"
)

type cartFixture struct {
	db     *gorm.DB
	svc    *CartService
	events *recordingPublisher
	cat    *models.Category
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	gdb := testdb.New(t)
	events := &recordingPublisher{}
	return &cartFixture{
		db:     gdb,
		svc:    &CartService{Repo: repo.New(gdb), Events: events},
		events: events,
		cat:    testdb.Category(t, gdb, "Cart things"),
	}
}

func TestCart_GetMissingIsEmptyAndUnsaved(t *testing.T) {
	f := newCartFixture(t)
	cart, err := f.svc.Get(context.Background(), models.CartOwner{SessionID: "anon"})
	require.NoError(t, err)
	assert.Zero(t, cart.ID)
	assert.Empty(t, cart.Items)

	var n int64
	require.NoError(t, f.db.Model(&models.Cart{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCart_AddItemMergesAndFreezesPrice(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testdb.Product(t, f.db, f.cat.ID, "Mug", "12.00", 5)
	require.NoError(t, f.db.Model(&models.Product{}).Where("id = ?", p.ID).Update("discount_price", dec("9.50")).Error)
	owner := models.CartOwner{SessionID: "anon-1"}

	line, err := f.svc.AddItem(ctx, owner, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, dec("9.50").Equal(line.UnitPrice))

	require.NoError(t, f.db.Model(&models.Product{}).Where("id = ?", p.ID).Update("discount_price", nil).Error)
	line, err = f.svc.AddItem(ctx, owner, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, line.Quantity)

	cart, err := f.svc.Get(ctx, owner)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, dec("9.50").Equal(cart.Items[0].UnitPrice), "frozen price kept, got %s", cart.Items[0].UnitPrice)

	n, err := f.svc.Count(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, []string{"cart_item_added", "cart_item_added"}, f.events.types())
}

func TestCart_AddItemFailures(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testdb.Product(t, f.db, f.cat.ID, "Pen", "1.00", 2)
	owner := models.CartOwner{UserID: testdb.User(t, f.db, "pen@example.com", models.RoleCustomer).ID}

	_, err := f.svc.AddItem(ctx, owner, p.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.AddItem(ctx, owner, p.ID+99, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.AddItem(ctx, owner, p.ID, 2)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, owner, p.ID, 1)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	require.NoError(t, f.svc.Repo.SetProductActive(ctx, p.ID, false))
	_, err = f.svc.AddItem(ctx, owner, p.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.AddItem(ctx, models.CartOwner{}, p.ID, 1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCart_UpdateAndRemoveOwnership(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testdb.Product(t, f.db, f.cat.ID, "Cup", "3.00", 4)
	owner := models.CartOwner{SessionID: "owner"}
	stranger := models.CartOwner{SessionID: "stranger"}

	line, err := f.svc.AddItem(ctx, owner, p.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.UpdateItem(ctx, stranger, line.ID, 2)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.svc.RemoveItem(ctx, stranger, line.ID), ErrForbidden)

	_, err = f.svc.UpdateItem(ctx, owner, line.ID, 5)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	updated, err := f.svc.UpdateItem(ctx, owner, line.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)

	removed, err := f.svc.UpdateItem(ctx, owner, line.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, removed)

	_, err = f.svc.UpdateItem(ctx, owner, line.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.RemoveItem(ctx, owner, line.ID), ErrNotFound)
}

func TestCart_ClearIsIdempotent(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	owner := models.CartOwner{SessionID: "empty"}

	require.NoError(t, f.svc.Clear(ctx, owner))

	p := testdb.Product(t, f.db, f.cat.ID, "Sock", "2.00", 10)
	_, err := f.svc.AddItem(ctx, owner, p.ID, 2)
	require.NoError(t, err)
	require.NoError(t, f.svc.Clear(ctx, owner))
	require.NoError(t, f.svc.Clear(ctx, owner))

	cart, err := f.svc.Get(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCart_MergeAnonymousIntoUser(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	shared := testdb.Product(t, f.db, f.cat.ID, "Shared", "5.00", 20)
	onlyAnon := testdb.Product(t, f.db, f.cat.ID, "Anon only", "7.00", 20)
	u := testdb.User(t, f.db, "merge@example.com", models.RoleCustomer)
	userOwner := models.CartOwner{UserID: u.ID}
	anon := models.CartOwner{SessionID: "sess-merge"}

	_, err := f.svc.AddItem(ctx, userOwner, shared.ID, 2)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, anon, shared.ID, 3)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, anon, onlyAnon.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.svc.MergeAnonymousIntoUser(ctx, u.ID, anon.SessionID))

	cart, err := f.svc.Get(ctx, userOwner)
	require.NoError(t, err)
	qty := map[uint]int{}
	for _, it := range cart.Items {
		qty[it.ProductID] = it.Quantity
	}
	assert.Equal(t, map[uint]int{shared.ID: 5, onlyAnon.ID: 1}, qty)

	_, err = f.svc.Repo.FindCart(ctx, anon)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCart_MergeReownsWhenUserHasNoCart(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testdb.Product(t, f.db, f.cat.ID, "Hat", "15.00", 3)
	u := testdb.User(t, f.db, "hat@example.com", models.RoleCustomer)
	anon := models.CartOwner{SessionID: "sess-hat"}

	line, err := f.svc.AddItem(ctx, anon, p.ID, 1)
	require.NoError(t, err)
	require.NoError(t, f.svc.MergeAnonymousIntoUser(ctx, u.ID, anon.SessionID))

	cart, err := f.svc.Get(ctx, models.CartOwner{UserID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, line.CartID, cart.ID)
	require.Len(t, cart.Items, 1)

	require.NoError(t, f.svc.MergeAnonymousIntoUser(ctx, u.ID, "no-such-session"))
}
