package mailer_test

import (
	"context"
	"testing"

	"tfsrentals/internal/domain"
	"tfsrentals/internal/mailer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func payload() mailer.QuotePayload {
	price := 1250.0
	return mailer.QuotePayload{
		QuoteID:            "q1",
		AccessToken:        "tok-123",
		ConfirmationNumber: "TFS-250601-AB23",
		Language:           "en",
		CustomerName:       "Jane <b>Doe</b>",
		CustomerEmail:      "jane@example.com",
		CustomerPhone:      "+1 514 555 0100",
		Items:              []domain.QuoteItem{{ProductID: "p1", Name: "ARRI Alexa Mini", Quantity: 1}},
		RentalStartDate:    "2025-06-01",
		RentalEndDate:      "2025-06-05",
		EstimatedPrice:     &price,
	}
}

func TestRenderQuoteConfirmation(t *testing.T) {
	r, err := mailer.NewRenderer("TFS", "https://tfs.test/")
	require.NoError(t, err)

	subject, body, err := r.Render(domain.PayloadQuoteConfirmation, payload())
	require.NoError(t, err)
	assert.Equal(t, "Quote Request Received - TFS-250601-AB23", subject)
	assert.Contains(t, body, "TFS-250601-AB23")
	assert.Contains(t, body, "ARRI Alexa Mini")
	assert.Contains(t, body, "Rental Period (5 days)")
	assert.Contains(t, body, "https://tfs.test/en/quote/q1?token=tok-123")
	assert.NotContains(t, body, "<b>Doe</b>", "customer input must be escaped")
}

func TestRenderFrenchQuoteReady(t *testing.T) {
	r, err := mailer.NewRenderer("TFS", "https://tfs.test")
	require.NoError(t, err)

	p := payload()
	p.Language = "fr"
	subject, body, err := r.Render(domain.PayloadQuoteReady, p)
	require.NoError(t, err)
	assert.Equal(t, "Votre soumission est prête - TFS-250601-AB23", subject)
	assert.Contains(t, body, "$1250.00")
	assert.Contains(t, body, "https://tfs.test/fr/quote/q1?token=tok-123")
}

func TestRenderAdminNotification(t *testing.T) {
	r, err := mailer.NewRenderer("TFS", "https://tfs.test")
	require.NoError(t, err)

	p := payload()
	p.Language = "fr"
	subject, body, err := r.Render(domain.PayloadAdminNotification, p)
	require.NoError(t, err)
	assert.Equal(t, "New Quote Request: TFS-250601-AB23", subject)
	assert.Contains(t, body, "jane@example.com")
	assert.Contains(t, body, "/en/admin/quotes/q1")
}

func TestRenderUnknownType(t *testing.T) {
	r, err := mailer.NewRenderer("TFS", "https://tfs.test")
	require.NoError(t, err)
	_, _, err = r.Render("newsletter", payload())
	assert.Error(t, err)
}

func TestLogSenderRecords(t *testing.T) {
	s := &mailer.LogSender{Log: zaptest.NewLogger(t)}
	require.NoError(t, s.Send(context.Background(), mailer.Message{To: "a@b.test", Subject: "hi"}))
	assert.Len(t, s.Messages(), 1)
}

func TestNewSMTPSenderNeedsHost(t *testing.T) {
	_, err := mailer.NewSMTPSender(mailer.SMTPConfig{})
	assert.Error(t, err)
}
