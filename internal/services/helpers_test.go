package services_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tfsrentals/internal/domain"
	"tfsrentals/internal/mailer"
	"tfsrentals/internal/repos"
	"tfsrentals/internal/services"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeSender fails while fail is set and records what it delivered.
type fakeSender struct {
	mu    sync.Mutex
	fail  bool
	calls int
	sent  []mailer.Message
}

func (f *fakeSender) Send(_ context.Context, m mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("smtp: 421 service not available")
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeSender) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fileStore is an in-memory storage.FileStore.
type fileStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFileStore() *fileStore { return &fileStore{files: map[string][]byte{}} }

func (m *fileStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.files[key] = b
	m.mu.Unlock()
	return nil
}

func (m *fileStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[key]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *fileStore) URL(_ context.Context, key string) (string, error) {
	return "http://files.test/" + key, nil
}

func (m *fileStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key]
	return ok
}

type fixture struct {
	DB      *sqlx.DB
	Clock   *clock
	Sender  *fakeSender
	Files   *fileStore
	Logs    *observer.ObservedLogs
	Kits    *services.KitService
	Carts   *services.CartService
	Quotes  *services.QuoteService
	Emails  *services.EmailQueue
	Catalog *services.CatalogService

	CatCameras, CatLenses, CatMonitors string
	Camera, LensA, LensB, Monitor, Battery string
}

func fileURL(coll, id, name string) string { return "http://api.test/media/" + coll + "/" + id + "/" + name }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureDSN(t, ":memory:")
}

// newFileFixture backs the services with a database file, so requests run on
// separate pooled connections the way the server does.
func newFileFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureDSN(t, filepath.Join(t.TempDir(), "tfs.db"))
}

func newFixtureDSN(t *testing.T, dsn string) *fixture {
	t.Helper()
	db, err := repos.OpenDB(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)

	f := &fixture{
		DB:     db,
		Clock:  &clock{t: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)},
		Sender: &fakeSender{},
		Files:  newFileStore(),
		Logs:   logs,
	}
	prods := repos.NewProductRepo(db)
	f.Catalog = services.NewCatalogService(repos.NewCategoryRepo(db), prods, fileURL)
	f.Kits = services.NewKitService(repos.NewKitRepo(db), prods, nil, fileURL, log)
	f.Carts = services.NewCartService(repos.NewCartRepo(db), prods, fileURL, log)
	f.Emails = services.NewEmailQueue(repos.NewEmailQueueRepo(db), f.Sender, nil, log)
	f.Emails.Now = f.Clock.Now

	renderer, err := mailer.NewRenderer("TFS", "https://tfs.test")
	require.NoError(t, err)
	f.Quotes = services.NewQuoteService(repos.NewQuoteRepo(db), f.Carts, f.Emails, renderer, f.Files, "desk@tfs.test", log)
	f.Quotes.Now = f.Clock.Now

	f.seedCatalog(t)
	return f
}

func (f *fixture) seedCatalog(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	cats := repos.NewCategoryRepo(f.DB)
	prods := repos.NewProductRepo(f.DB)

	mustCat := func(slug, en, fr string) string {
		id, err := cats.Upsert(ctx, domain.Category{Slug: slug, NameEN: en, NameFR: fr})
		require.NoError(t, err)
		return id
	}
	f.CatCameras = mustCat("cameras", "Cameras", "Caméras")
	f.CatLenses = mustCat("lenses", "Lenses", "Objectifs")
	f.CatMonitors = mustCat("monitors", "Monitors", "Moniteurs")

	mustProd := func(slug, cat, name string, stock int, visible bool) string {
		id, err := prods.Upsert(ctx, domain.Product{
			Slug: slug, NameEN: name, NameFR: name + " FR", CategoryID: cat,
			ImagesJSON: `["main.jpg"]`, StockAvailable: stock, IsVisible: visible, DailyRate: 100,
		})
		require.NoError(t, err)
		return id
	}
	f.Camera = mustProd("arri-alexa-mini", f.CatCameras, "ARRI Alexa Mini", 2, true)
	f.LensA = mustProd("cooke-32", f.CatLenses, "Cooke 32mm", 3, true)
	f.LensB = mustProd("zeiss-50", f.CatLenses, "Zeiss 50mm", 0, true)
	mustProd("hidden-lens", f.CatLenses, "Prototype Lens", 1, false)
	f.Monitor = mustProd("smallhd-703", f.CatMonitors, "SmallHD 703", 5, true)
	f.Battery = mustProd("vmount", f.CatCameras, "V-Mount Battery", 10, true)
}

// saveKit anchors a kit on the camera: a swappable lens slot with one
// mandatory and one optional lens, a mandatory monitor and fixed batteries.
func (f *fixture) saveKit(t *testing.T) string {
	t.Helper()
	id, err := f.Kits.SaveTemplate(context.Background(), domain.KitTemplate{
		Name: "Alexa Mini Kit", MainProductID: f.Camera, BasePriceModifier: 0.9,
	}, []domain.KitItem{
		{ProductID: f.Monitor, SlotName: "Monitor", IsMandatory: true, SwappableCategoryID: f.CatMonitors, DisplayOrder: 2},
		{ProductID: f.LensA, SlotName: "Lens", IsMandatory: true, SwappableCategoryID: f.CatLenses, DisplayOrder: 1},
		{ProductID: f.LensB, SlotName: "Lens", IsMandatory: false, SwappableCategoryID: f.CatLenses, DisplayOrder: 1},
		{ProductID: f.Battery, SlotName: "Power", IsMandatory: true, DefaultQuantity: 4, DisplayOrder: 3},
	})
	require.NoError(t, err)
	return id
}

func dates(t *testing.T, start, end string) domain.DateRange {
	t.Helper()
	r, err := domain.NewDateRange(start, end)
	require.NoError(t, err)
	return r
}
