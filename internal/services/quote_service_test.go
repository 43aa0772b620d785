package services_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"tfsrentals/internal/domain"
	"tfsrentals/internal/repos"
	"tfsrentals/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quoteRequest(f *fixture) services.QuoteRequest {
	return services.QuoteRequest{
		ClientName:      "Marie Tremblay",
		ClientEmail:     "marie@prod.test",
		ClientPhone:     "+1 514 555 0100",
		ClientCompany:   "Films du Nord",
		Items:           []domain.QuoteItem{{ProductID: f.Camera, Name: "ARRI Alexa Mini", Quantity: 1}},
		RentalStartDate: "2025-07-01",
		RentalEndDate:   "2025-07-04",
		Location:        "Montréal",
		Language:        "fr",
	}
}

func count(t *testing.T, f *fixture, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.DB.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}

func TestCreateQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.Quotes.Create(ctx, quoteRequest(f))
	require.NoError(t, err)
	assert.Regexp(t, `^TFS-250601-[A-HJ-NP-Z2-9]{4}$`, res.ConfirmationNumber)
	assert.NotEmpty(t, res.AccessToken)

	q, err := f.Quotes.Get(ctx, res.QuoteID)
	require.NoError(t, err)
	assert.Equal(t, domain.QuotePending, q.Status)
	assert.Equal(t, "fr", q.Language)
	require.Len(t, q.Items, 1)
	assert.Equal(t, f.Camera, q.Items[0].ProductID)

	// both notifications are queued, none is sent inline
	assert.Equal(t, 2, count(t, f, "email_queue"))
	assert.Zero(t, f.Sender.Calls())

	var subjects []string
	require.NoError(t, f.DB.Select(&subjects, `SELECT subject FROM email_queue ORDER BY to_addr`))
	assert.Equal(t, []string{
		"New Quote Request: " + res.ConfirmationNumber,
		"Demande de soumission reçue - " + res.ConfirmationNumber,
	}, subjects)

	var adminHTML string
	require.NoError(t, f.DB.Get(&adminHTML, `SELECT html FROM email_queue WHERE to_addr = ?`, "desk@tfs.test"))
	assert.NotContains(t, adminHTML, res.AccessToken)
}

func TestNewConfirmationNumber(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	got, err := services.NewConfirmationNumber(now, bytes.NewReader([]byte{0, 1, 31, 32}))
	require.NoError(t, err)
	assert.Equal(t, "TFS-250601-AB9A", got)

	_, err = services.NewConfirmationNumber(now, bytes.NewReader([]byte{1}))
	assert.Error(t, err)
}

func TestCreateQuoteValidationLeavesNothing(t *testing.T) {
	f := newFixture(t)
	mutate := map[string]func(*services.QuoteRequest){
		"name":  func(r *services.QuoteRequest) { r.ClientName = " " },
		"email": func(r *services.QuoteRequest) { r.ClientEmail = "not-an-email" },
		"phone": func(r *services.QuoteRequest) { r.ClientPhone = "call me" },
		"items": func(r *services.QuoteRequest) { r.Items = nil },
		"dates": func(r *services.QuoteRequest) { r.RentalEndDate = "2025-06-01" },
	}
	for name, m := range mutate {
		t.Run(name, func(t *testing.T) {
			req := quoteRequest(f)
			m(&req)
			_, err := f.Quotes.Create(context.Background(), req)
			assert.ErrorIs(t, err, services.ErrQuoteCreate)
			assert.ErrorIs(t, err, services.ErrValidation)
		})
	}
	assert.Zero(t, count(t, f, "quotes"))
	assert.Zero(t, count(t, f, "email_queue"))
}

func TestCreateQuoteStoreFailure(t *testing.T) {
	f := newFixture(t)
	_, err := f.DB.Exec(`CREATE TRIGGER fail_quotes BEFORE INSERT ON quotes BEGIN SELECT RAISE(ABORT, 'boom'); END;`)
	require.NoError(t, err)

	_, err = f.Quotes.Create(context.Background(), quoteRequest(f))
	assert.ErrorIs(t, err, services.ErrQuoteCreate)
	assert.NotErrorIs(t, err, services.ErrValidation)
	assert.Zero(t, count(t, f, "email_queue"))
	assert.Equal(t, 1, f.Logs.FilterMessage("quote insert failed").Len())
}

func TestGetByTokenNeedsExactToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.Quotes.Create(ctx, quoteRequest(f))
	require.NoError(t, err)

	q, err := f.Quotes.GetByToken(ctx, res.QuoteID, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.QuoteID, q.ID)

	for _, tok := range []string{"", res.AccessToken[:8], strings.ToUpper(res.AccessToken), res.AccessToken + "x"} {
		_, err := f.Quotes.GetByToken(ctx, res.QuoteID, tok)
		assert.ErrorIs(t, err, services.ErrQuoteNotFound, "token %q", tok)
	}
	_, err = f.Quotes.GetByToken(ctx, "missing", res.AccessToken)
	assert.ErrorIs(t, err, services.ErrQuoteNotFound)
}

func TestUploadThenGracePeriodLocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.Quotes.Create(ctx, quoteRequest(f))
	require.NoError(t, err)

	require.NoError(t, f.Quotes.SetEstimatedPrice(ctx, res.QuoteID, 900))

	price := 1250.0
	q, err := f.Quotes.Upload(ctx, res.QuoteID, strings.NewReader("%PDF-1.4"), 8, &price)
	require.NoError(t, err)
	assert.Equal(t, domain.QuoteQuoted, q.Status)
	assert.True(t, q.PDFGenerated)
	require.NotNil(t, q.EstimatedPrice)
	assert.Equal(t, price, *q.EstimatedPrice)
	assert.True(t, f.Files.Has(q.QuotePDF))
	assert.Equal(t, "http://files.test/"+q.QuotePDF, q.PDFURL)

	var ready string
	require.NoError(t, f.DB.Get(&ready, `SELECT subject FROM email_queue WHERE payload_type = ?`, domain.PayloadQuoteReady))
	assert.Equal(t, "Votre soumission est prête - "+res.ConfirmationNumber, ready)

	f.Clock.Advance(10 * time.Minute)
	require.NoError(t, f.Quotes.SetEstimatedPrice(ctx, res.QuoteID, 1300))

	f.Clock.Advance(6 * time.Minute)
	assert.ErrorIs(t, f.Quotes.SetEstimatedPrice(ctx, res.QuoteID, 1400), services.ErrQuoteLocked)
	_, err = f.Quotes.Upload(ctx, res.QuoteID, strings.NewReader("%PDF"), 4, nil)
	assert.ErrorIs(t, err, services.ErrQuoteLocked)
}

func TestSignConfirmsQuotedQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.Quotes.Create(ctx, quoteRequest(f))
	require.NoError(t, err)

	_, err = f.Quotes.Sign(ctx, res.QuoteID, res.AccessToken, strings.NewReader("png"), 3)
	assert.ErrorIs(t, err, services.ErrInvalidStatus, "pending quotes cannot be signed")

	_, err = f.Quotes.Upload(ctx, res.QuoteID, strings.NewReader("%PDF"), 4, nil)
	require.NoError(t, err)

	_, err = f.Quotes.Sign(ctx, res.QuoteID, "wrong", strings.NewReader("png"), 3)
	assert.ErrorIs(t, err, services.ErrQuoteNotFound)

	q, err := f.Quotes.Sign(ctx, res.QuoteID, res.AccessToken, strings.NewReader("png"), 3)
	require.NoError(t, err)
	assert.Equal(t, domain.QuoteConfirmed, q.Status)
	assert.True(t, q.Locked)
	assert.NotEmpty(t, q.SignedAt)
	assert.True(t, f.Files.Has("quotes/"+res.QuoteID+"/signature.png"))
	assert.ErrorIs(t, f.Quotes.SetEstimatedPrice(ctx, res.QuoteID, 1), services.ErrQuoteLocked)

	var n int
	require.NoError(t, f.DB.Get(&n, `SELECT COUNT(*) FROM email_queue WHERE subject = ?`, "Quote Accepted - "+res.ConfirmationNumber))
	assert.Equal(t, 1, n)
}

func TestRejectKeepsReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.Quotes.Create(ctx, quoteRequest(f))
	require.NoError(t, err)
	_, err = f.Quotes.Upload(ctx, res.QuoteID, strings.NewReader("%PDF"), 4, nil)
	require.NoError(t, err)

	require.NoError(t, f.Quotes.Reject(ctx, res.QuoteID, res.AccessToken, "Budget cut"))

	q, err := f.Quotes.Get(ctx, res.QuoteID)
	require.NoError(t, err)
	assert.Equal(t, domain.QuoteRejected, q.Status)
	assert.Contains(t, q.InternalNotes, "[REJECTION REASON - ")
	assert.Contains(t, q.InternalNotes, "Budget cut")

	assert.ErrorIs(t, f.Quotes.Reject(ctx, res.QuoteID, res.AccessToken, ""), services.ErrInvalidStatus)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.Quotes.Create(ctx, quoteRequest(f))
	require.NoError(t, err)

	notes := "called the client"
	require.NoError(t, f.Quotes.UpdateStatus(ctx, res.QuoteID, domain.QuoteReviewing, &notes))
	q, err := f.Quotes.Get(ctx, res.QuoteID)
	require.NoError(t, err)
	assert.Equal(t, domain.QuoteReviewing, q.Status)
	assert.Equal(t, notes, q.InternalNotes)

	assert.ErrorIs(t, f.Quotes.UpdateStatus(ctx, res.QuoteID, "archived", nil), services.ErrInvalidStatus)
	assert.ErrorIs(t, f.Quotes.UpdateStatus(ctx, "missing", domain.QuoteReviewing, nil), services.ErrQuoteNotFound)
}

func TestQuotedOnlyThroughUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.Quotes.Create(ctx, quoteRequest(f))
	require.NoError(t, err)

	assert.ErrorIs(t, f.Quotes.UpdateStatus(ctx, res.QuoteID, domain.QuoteQuoted, nil), services.ErrInvalidStatus)
	q, err := f.Quotes.Get(ctx, res.QuoteID)
	require.NoError(t, err)
	assert.Equal(t, domain.QuotePending, q.Status)

	// a row marked quoted without a document cannot be signed or edited
	_, err = f.DB.Exec(`UPDATE quotes SET status = 'quoted' WHERE id = ?`, res.QuoteID)
	require.NoError(t, err)
	_, err = f.Quotes.Sign(ctx, res.QuoteID, res.AccessToken, strings.NewReader("png"), 3)
	assert.ErrorIs(t, err, services.ErrInvalidStatus)
	f.Clock.Advance(24 * time.Hour)
	assert.ErrorIs(t, f.Quotes.SetEstimatedPrice(ctx, res.QuoteID, 900), services.ErrQuoteLocked)
}

func TestSubmitFromCartIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.Carts.AddItem(ctx, "u-client", f.Monitor, 1, dates(t, "2025-08-10", "2025-08-11"))
	require.NoError(t, err)

	// the caller's items slice is left alone
	req := quoteRequest(f)
	callerItems := req.Items
	want := callerItems[0]

	_, err = f.DB.Exec(`CREATE TRIGGER fail_quotes BEFORE INSERT ON quotes BEGIN SELECT RAISE(ABORT, 'boom'); END;`)
	require.NoError(t, err)
	_, err = f.Quotes.SubmitFromCart(ctx, "u-client", req)
	assert.ErrorIs(t, err, services.ErrQuoteCreate)
	assert.Equal(t, want, callerItems[0])

	cart, err := f.Carts.Get(ctx, "u-client", "en")
	require.NoError(t, err, "a failed submit keeps the cart open")
	assert.Len(t, cart.Items, 1)

	_, err = f.DB.Exec(`DROP TRIGGER fail_quotes`)
	require.NoError(t, err)
	_, err = f.Quotes.SubmitFromCart(ctx, "u-client", req)
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, f, "quotes"))
}

func TestCartBacksOneQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.Carts.AddItem(ctx, "u-client", f.Monitor, 1, dates(t, "2025-08-10", "2025-08-11"))
	require.NoError(t, err)
	cart, err := f.Carts.Get(ctx, "u-client", "en")
	require.NoError(t, err)

	q := domain.Quote{
		ID: "q1", UserID: "u-client", ClientName: "C", ClientEmail: "client@tfs.test", ClientPhone: "5145550100",
		ItemsJSON: "[]", RentalStartDate: "2025-08-10", RentalEndDate: "2025-08-11", Language: "en",
		Status: domain.QuotePending, ConfirmationNumber: "TFS-250601-AAAA", AccessToken: "t1",
		CreatedAt: "2025-06-01T00:00:00.000Z", UpdatedAt: "2025-06-01T00:00:00.000Z",
	}
	quotes := repos.NewQuoteRepo(f.DB)
	require.NoError(t, quotes.InsertFromCart(ctx, &q, cart.ID))

	q.ID, q.AccessToken = "q2", "t2"
	assert.ErrorIs(t, quotes.InsertFromCart(ctx, &q, cart.ID), repos.ErrCartClosed)
	assert.Equal(t, 1, count(t, f, "quotes"))
}

func TestListPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.Quotes.Create(ctx, quoteRequest(f))
		require.NoError(t, err)
		f.Clock.Advance(time.Minute)
	}

	page, err := f.Quotes.List(ctx, 1, 2, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 3, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)

	page, err = f.Quotes.List(ctx, 2, 2, string(domain.QuotePending))
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	page, err = f.Quotes.List(ctx, 1, 20, string(domain.QuoteQuoted))
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	_, err = f.Quotes.List(ctx, 1, 20, "archived")
	assert.ErrorIs(t, err, services.ErrInvalidStatus)

	mine, err := f.Quotes.ListByEmail(ctx, "marie@prod.test")
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}

func TestSubmitFromCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := quoteRequest(f)
	req.Items = nil
	req.RentalStartDate, req.RentalEndDate = "", ""

	_, err := f.Quotes.SubmitFromCart(ctx, "u-client", req)
	assert.ErrorIs(t, err, services.ErrValidation)

	added, err := f.Carts.AddBundle(ctx, "u-client", []domain.Selection{
		{ProductID: f.Camera, Quantity: 1}, {ProductID: f.LensA, Quantity: 2},
	}, dates(t, "2025-08-10", "2025-08-12"))
	require.NoError(t, err)

	res, err := f.Quotes.SubmitFromCart(ctx, "u-client", req)
	require.NoError(t, err)

	q, err := f.Quotes.Get(ctx, res.QuoteID)
	require.NoError(t, err)
	assert.Equal(t, "u-client", q.UserID)
	assert.Equal(t, "2025-08-10", q.RentalStartDate)
	assert.Equal(t, "2025-08-12", q.RentalEndDate)
	require.Len(t, q.Items, 2)
	for _, it := range q.Items {
		assert.Equal(t, added.GroupID, it.GroupID)
		assert.NotEmpty(t, it.Name)
	}

	_, err = f.Carts.Get(ctx, "u-client", "en")
	assert.ErrorIs(t, err, services.ErrNoCart, "submitted cart is closed")

	mine, err := f.Quotes.ListByUser(ctx, "u-client")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
