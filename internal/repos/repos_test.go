package repos_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"tfsrentals/internal/domain"
	"tfsrentals/internal/repos"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// openFileDB opens a database file so the pool holds several connections.
func openFileDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(filepath.Join(t.TempDir(), "tfs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func product(t *testing.T, db *sqlx.DB) string {
	t.Helper()
	ctx := context.Background()
	cat, err := repos.NewCategoryRepo(db).Upsert(ctx, domain.Category{Slug: "cameras", NameEN: "Cameras", NameFR: "Caméras"})
	require.NoError(t, err)
	id, err := repos.NewProductRepo(db).Upsert(ctx, domain.Product{
		Slug: "red-komodo", NameEN: "RED Komodo", CategoryID: cat, StockAvailable: 1, IsVisible: true,
	})
	require.NoError(t, err)
	return id
}

func TestSeededPasswordsAreHashed(t *testing.T) {
	db := openDB(t)
	var hashes []string
	require.NoError(t, db.Select(&hashes, `SELECT password_hash FROM users`))
	require.NotEmpty(t, hashes)
	for _, h := range hashes {
		assert.NotContains(t, h, "Passw0rd!")
		assert.True(t, strings.HasPrefix(h, "$2"), "unexpected hash format: %s", h)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("Passw0rd!")))
	}
}

func TestOpenDBIsIdempotent(t *testing.T) {
	path := t.TempDir() + "/tfs.db"
	db, err := repos.OpenDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = repos.OpenDB(path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, 2, n)
}

func TestAddGroupIsAllOrNothing(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	prod := product(t, db)
	carts := repos.NewCartRepo(db)

	cart, err := carts.EnsureActive(ctx, "u-client")
	require.NoError(t, err)

	err = carts.AddGroup(ctx, cart.ID, []repos.CartItemRow{
		{ProductID: prod, Quantity: 1, GroupID: "g1", StartDate: "2025-07-01", EndDate: "2025-07-02"},
		{ProductID: prod, Quantity: 0, GroupID: "g1", StartDate: "2025-07-01", EndDate: "2025-07-02"},
	})
	require.Error(t, err, "quantity check must reject the second row")

	items, err := carts.Items(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, carts.AddGroup(ctx, cart.ID, []repos.CartItemRow{
		{ProductID: prod, Quantity: 2, GroupID: "g2", StartDate: "2025-07-01", EndDate: "2025-07-02"},
	}))
	items, err = carts.Items(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "g2", items[0].GroupID)
	assert.Empty(t, items[0].KitTemplateID)
}

func TestConnectionsShareSettings(t *testing.T) {
	db := openFileDB(t)
	ctx := context.Background()

	// two connections checked out at once are distinct pool members
	c1, err := db.Connx(ctx)
	require.NoError(t, err)
	defer c1.Close()
	c2, err := db.Connx(ctx)
	require.NoError(t, err)
	defer c2.Close()

	for _, c := range []*sqlx.Conn{c1, c2} {
		var fk, busy int
		var mode string
		require.NoError(t, c.GetContext(ctx, &fk, `PRAGMA foreign_keys`))
		require.NoError(t, c.GetContext(ctx, &busy, `PRAGMA busy_timeout`))
		require.NoError(t, c.GetContext(ctx, &mode, `PRAGMA journal_mode`))
		assert.Equal(t, 1, fk)
		assert.Equal(t, 5000, busy)
		assert.Equal(t, "wal", strings.ToLower(mode))
	}

	_, err = c2.ExecContext(ctx, `INSERT INTO cart_items(id, cart_id, product_id, quantity, group_id, start_date, end_date, created_at)
		VALUES ('x', 'no-such-cart', 'no-such-product', 1, 'g', '2025-07-01', '2025-07-02', '2025-06-01T00:00:00.000Z')`)
	assert.Error(t, err, "foreign keys are enforced on every connection")
}

func TestEnsureActiveConverges(t *testing.T) {
	db := openFileDB(t)
	carts := repos.NewCartRepo(db)

	ids := make([]string, 6)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := carts.EnsureActive(context.Background(), "u-client")
			assert.NoError(t, err)
			if err == nil {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.NotEmpty(t, ids[0])

	require.NoError(t, carts.SetStatus(context.Background(), ids[0], domain.CartCompleted))
	next, err := carts.EnsureActive(context.Background(), "u-client")
	require.NoError(t, err)
	assert.NotEqual(t, ids[0], next.ID)

	assert.Error(t, carts.SetStatus(context.Background(), next.ID, "archived"))
}

func TestSaveTemplateReplacesItems(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	prod := product(t, db)
	kits := repos.NewKitRepo(db)

	id, err := kits.SaveTemplate(ctx, domain.KitTemplate{Name: "Komodo", MainProductID: prod}, []domain.KitItem{
		{ProductID: prod, SlotName: "Body", IsMandatory: true},
		{ProductID: prod, SlotName: "Spare", DisplayOrder: 1},
	})
	require.NoError(t, err)

	again, err := kits.SaveTemplate(ctx, domain.KitTemplate{Name: "Komodo v2", MainProductID: prod}, []domain.KitItem{
		{ProductID: prod, SlotName: "Body", IsMandatory: true},
	})
	require.NoError(t, err)
	assert.Equal(t, id, again, "one template per anchor")

	tmpl, err := kits.TemplateByMainProduct(ctx, prod)
	require.NoError(t, err)
	assert.Equal(t, "Komodo v2", tmpl.Name)

	items, err := kits.Items(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].DefaultQuantity)
}

func TestEmailQueueStateTransitionsOnlyFromPending(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	repo := repos.NewEmailQueueRepo(db)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, domain.EmailQueueRecord{
		ID: "e1", To: "a@b.test", Subject: "s", HTML: "h", Status: domain.EmailPending,
		MaxAttempts: 3, NextAttemptAt: domain.FormatTime(now), PayloadData: "{}",
		CreatedAt: domain.FormatTime(now), UpdatedAt: domain.FormatTime(now),
	}))

	due, err := repo.Due(ctx, now.Add(-time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
	due, err = repo.Due(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	require.NoError(t, repo.MarkFailed(ctx, "e1", 3, "boom", now))
	require.NoError(t, repo.MarkSent(ctx, "e1", now))
	rec, err := repo.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.EmailFailed, rec.Status)
	assert.Empty(t, rec.SentAt)
}

func TestDeleteUserCascadeKeepsQuotes(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	users := repos.NewUserRepo(db)
	carts := repos.NewCartRepo(db)
	prod := product(t, db)

	cart, err := carts.EnsureActive(ctx, "u-client")
	require.NoError(t, err)
	require.NoError(t, carts.AddGroup(ctx, cart.ID, []repos.CartItemRow{
		{ProductID: prod, Quantity: 1, GroupID: "g", StartDate: "2025-07-01", EndDate: "2025-07-01"},
	}))
	require.NoError(t, users.BindSession(ctx, "sid-1", "u-client"))

	q := domain.Quote{
		ID: "q1", UserID: "u-client", ClientName: "C", ClientEmail: "client@tfs.test", ClientPhone: "5145550100",
		ItemsJSON: "[]", RentalStartDate: "2025-07-01", RentalEndDate: "2025-07-01", Language: "en",
		Status: domain.QuotePending, ConfirmationNumber: "TFS-250601-AAAA", AccessToken: "tok",
		CreatedAt: "2025-06-01T00:00:00.000Z", UpdatedAt: "2025-06-01T00:00:00.000Z",
	}
	require.NoError(t, repos.NewQuoteRepo(db).Insert(ctx, &q))

	require.NoError(t, users.DeleteUserCascade(ctx, "u-client"))

	u, err := users.SessionUser(ctx, "sid-1")
	assert.True(t, err != nil || u == nil)
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM cart_items`))
	assert.Zero(t, n)

	kept, err := repos.NewQuoteRepo(db).Get(ctx, "q1")
	require.NoError(t, err)
	assert.Empty(t, kept.UserID)
}
