package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tfsrentals/internal/domain"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

// QuotePayload carries everything the quote emails need. It is also what the
// queue stores as payload data.
type QuotePayload struct {
	QuoteID            string             `json:"quoteId"`
	AccessToken        string             `json:"accessToken,omitempty"`
	ConfirmationNumber string             `json:"confirmationNumber"`
	Language           string             `json:"language"`
	CustomerName       string             `json:"customerName"`
	CustomerEmail      string             `json:"customerEmail"`
	CustomerPhone      string             `json:"customerPhone,omitempty"`
	CustomerCompany    string             `json:"customerCompany,omitempty"`
	Items              []domain.QuoteItem `json:"items,omitempty"`
	RentalStartDate    string             `json:"rentalStartDate"`
	RentalEndDate      string             `json:"rentalEndDate"`
	ProjectDescription string             `json:"projectDescription,omitempty"`
	SpecialRequests    string             `json:"specialRequests,omitempty"`
	Location           string             `json:"location,omitempty"`
	EstimatedPrice     *float64           `json:"estimatedPrice,omitempty"`
}

type Renderer struct {
	engine   *html.Engine
	siteName string
	siteURL  string
}

func NewRenderer(siteName, siteURL string) (*Renderer, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("price", func(p *float64) string {
		if p == nil {
			return ""
		}
		return "$" + strconv.FormatFloat(*p, 'f', 2, 64)
	})
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load email templates: %w", err)
	}
	return &Renderer{engine: engine, siteName: siteName, siteURL: strings.TrimRight(siteURL, "/")}, nil
}

// Render builds subject and body for one payload type.
func (r *Renderer) Render(payloadType string, p QuotePayload) (subject, body string, err error) {
	lang := p.Language
	if lang != "fr" {
		lang = "en"
	}
	var tmpl string
	switch payloadType {
	case domain.PayloadQuoteConfirmation:
		tmpl = "quote_confirmation"
		subject = pickLang(lang, "Quote Request Received - ", "Demande de soumission reçue - ") + p.ConfirmationNumber
	case domain.PayloadAdminNotification:
		// staff mail is always English
		lang = "en"
		tmpl = "admin_notification"
		subject = "New Quote Request: " + p.ConfirmationNumber
	case domain.PayloadQuoteReady:
		tmpl = "quote_ready"
		subject = pickLang(lang, "Your Quote is Ready - ", "Votre soumission est prête - ") + p.ConfirmationNumber
	default:
		return "", "", fmt.Errorf("unknown email payload type %q", payloadType)
	}

	dates := domain.DateRange{}
	dates.Start, _ = domain.ParseDay(p.RentalStartDate)
	dates.End, _ = domain.ParseDay(p.RentalEndDate)

	binding := map[string]any{
		"SiteName":  r.siteName,
		"Year":      time.Now().Year(),
		"P":         p,
		"Lang":      lang,
		"Days":      dates.Days(),
		"Start":     formatDay(lang, dates.Start),
		"End":       formatDay(lang, dates.End),
		"TrackURL":  r.TrackURL(p),
		"AdminURL":  r.siteURL + "/" + lang + "/admin/quotes/" + p.QuoteID,
		"French":    lang == "fr",
		"HasPeriod": !dates.Start.IsZero(),
	}
	var buf bytes.Buffer
	if err := r.engine.Render(&buf, tmpl, binding, "layout"); err != nil {
		return "", "", fmt.Errorf("render %s: %w", tmpl, err)
	}
	return subject, buf.String(), nil
}

// TrackURL is the customer's magic link to the quote page.
func (r *Renderer) TrackURL(p QuotePayload) string {
	if p.QuoteID == "" || p.AccessToken == "" {
		return ""
	}
	lang := p.Language
	if lang == "" {
		lang = "en"
	}
	return r.siteURL + "/" + lang + "/quote/" + p.QuoteID + "?token=" + p.AccessToken
}

var frMonths = [...]string{"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre"}

func formatDay(lang string, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if lang == "fr" {
		return strconv.Itoa(t.Day()) + " " + frMonths[t.Month()-1] + " " + strconv.Itoa(t.Year())
	}
	return t.Format("Mon, January 2, 2006")
}

func pickLang(lang, en, fr string) string {
	if lang == "fr" {
		return fr
	}
	return en
}
