package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"tfsrentals/internal/domain"
	"tfsrentals/internal/mailer"
	"tfsrentals/internal/repos"
	"tfsrentals/internal/storage"
	"tfsrentals/internal/validate"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// confirmation suffix alphabet; 0, 1, O and I are left out
const confirmationAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxQuoteItems = 100

type QuoteService struct {
	Quotes     *repos.QuoteRepo
	Carts      *CartService
	Emails     *EmailQueue
	Mail       *mailer.Renderer
	Files      storage.FileStore
	AdminEmail string
	Log        *zap.Logger
	Now        func() time.Time
}

func NewQuoteService(quotes *repos.QuoteRepo, carts *CartService, emails *EmailQueue, mail *mailer.Renderer, files storage.FileStore, adminEmail string, log *zap.Logger) *QuoteService {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuoteService{Quotes: quotes, Carts: carts, Emails: emails, Mail: mail, Files: files,
		AdminEmail: adminEmail, Log: log, Now: time.Now}
}

type QuoteRequest struct {
	UserID             string             `json:"-"`
	ClientName         string             `json:"clientName"`
	ClientEmail        string             `json:"clientEmail"`
	ClientPhone        string             `json:"clientPhone"`
	ClientCompany      string             `json:"clientCompany"`
	Items              []domain.QuoteItem `json:"items"`
	RentalStartDate    string             `json:"rentalStartDate"`
	RentalEndDate      string             `json:"rentalEndDate"`
	ProjectDescription string             `json:"projectDescription"`
	SpecialRequests    string             `json:"specialRequests"`
	Location           string             `json:"location"`
	Language           string             `json:"language"`
}

type CreateResult struct {
	QuoteID            string `json:"quoteId"`
	ConfirmationNumber string `json:"confirmationNumber"`
	AccessToken        string `json:"accessToken"`
}

func (s *QuoteService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Create records a quote request and queues the customer and staff emails.
// Every failure wraps ErrQuoteCreate; input problems also wrap ErrValidation.
func (s *QuoteService) Create(ctx context.Context, req QuoteRequest) (CreateResult, error) {
	return s.create(ctx, req, "")
}

// create stores the quote. With a cartID the cart is completed in the same
// transaction, so a cart can back at most one quote.
func (s *QuoteService) create(ctx context.Context, req QuoteRequest, cartID string) (CreateResult, error) {
	q, err := s.build(req)
	if err != nil {
		return CreateResult{}, fmt.Errorf("%w: %w", ErrQuoteCreate, err)
	}
	if cartID == "" {
		err = s.Quotes.Insert(ctx, &q)
	} else {
		err = s.Quotes.InsertFromCart(ctx, &q, cartID)
	}
	if errors.Is(err, repos.ErrCartClosed) {
		return CreateResult{}, fmt.Errorf("%w: %w: cart already submitted", ErrQuoteCreate, ErrValidation)
	}
	if err != nil {
		s.Log.Error("quote insert failed", zap.String("email", q.ClientEmail), zap.Error(err))
		return CreateResult{}, ErrQuoteCreate
	}
	s.Log.Info("quote created",
		zap.String("quote_id", q.ID),
		zap.String("confirmation", q.ConfirmationNumber),
		zap.Int("items", len(q.Items)))

	p := payloadFor(q)
	s.notify(ctx, domain.PayloadQuoteConfirmation, q.ClientEmail, s.AdminEmail, "", p)
	p.AccessToken = ""
	s.notify(ctx, domain.PayloadAdminNotification, s.AdminEmail, q.ClientEmail, "", p)

	return CreateResult{QuoteID: q.ID, ConfirmationNumber: q.ConfirmationNumber, AccessToken: q.AccessToken}, nil
}

func (s *QuoteService) build(req QuoteRequest) (domain.Quote, error) {
	var q domain.Quote
	name, ok := validate.Name(req.ClientName)
	if !ok {
		return q, fmt.Errorf("%w: name", ErrValidation)
	}
	email, ok := validate.Email(req.ClientEmail)
	if !ok {
		return q, fmt.Errorf("%w: email", ErrValidation)
	}
	phone, ok := validate.Phone(req.ClientPhone)
	if !ok {
		return q, fmt.Errorf("%w: phone", ErrValidation)
	}
	if len(req.Items) == 0 || len(req.Items) > maxQuoteItems {
		return q, fmt.Errorf("%w: items", ErrValidation)
	}
	items := make([]domain.QuoteItem, 0, len(req.Items))
	for _, it := range req.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return q, fmt.Errorf("%w: item product", ErrValidation)
		}
		it.Quantity = validate.ClampQty(it.Quantity)
		items = append(items, it)
	}
	dates, err := domain.NewDateRange(req.RentalStartDate, req.RentalEndDate)
	if err != nil {
		return q, fmt.Errorf("%w: rental dates", ErrValidation)
	}
	company, ok1 := validate.Text(req.ClientCompany, 200)
	project, ok2 := validate.Text(req.ProjectDescription, 5000)
	special, ok3 := validate.Text(req.SpecialRequests, 5000)
	location, ok4 := validate.Text(req.Location, 300)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return q, fmt.Errorf("%w: text too long", ErrValidation)
	}

	snapshot, err := json.Marshal(items)
	if err != nil {
		return q, err
	}
	number, err := NewConfirmationNumber(s.now(), rand.Reader)
	if err != nil {
		return q, err
	}
	ts := domain.FormatTime(s.now())
	q = domain.Quote{
		ID:                 uuid.NewString(),
		UserID:             req.UserID,
		ClientName:         name,
		ClientEmail:        email,
		ClientPhone:        phone,
		ClientCompany:      company,
		ItemsJSON:          string(snapshot),
		Items:              items,
		RentalStartDate:    dates.Start.Format(domain.DayLayout),
		RentalEndDate:      dates.End.Format(domain.DayLayout),
		ProjectDescription: project,
		SpecialRequests:    special,
		Location:           location,
		Language:           validate.Lang(req.Language),
		Status:             domain.QuotePending,
		ConfirmationNumber: number,
		AccessToken:        uuid.NewString(),
		CreatedAt:          ts,
		UpdatedAt:          ts,
	}
	return q, nil
}

// NewConfirmationNumber formats TFS-YYMMDD-XXXX with a random suffix.
func NewConfirmationNumber(now time.Time, rnd io.Reader) (string, error) {
	var b [4]byte
	if _, err := io.ReadFull(rnd, b[:]); err != nil {
		return "", err
	}
	suffix := make([]byte, len(b))
	for i, v := range b {
		// 256 is a multiple of the alphabet size, so this stays uniform
		suffix[i] = confirmationAlphabet[int(v)%len(confirmationAlphabet)]
	}
	return "TFS-" + now.UTC().Format("060102") + "-" + string(suffix), nil
}

// SubmitFromCart snapshots the user's active cart into a quote request and
// closes the cart.
func (s *QuoteService) SubmitFromCart(ctx context.Context, userID string, req QuoteRequest) (CreateResult, error) {
	cart, err := s.Carts.Get(ctx, userID, validate.Lang(req.Language))
	if errors.Is(err, ErrNoCart) || (err == nil && len(cart.Items) == 0) {
		return CreateResult{}, fmt.Errorf("%w: %w: cart is empty", ErrQuoteCreate, ErrValidation)
	}
	if err != nil {
		return CreateResult{}, fmt.Errorf("%w: %w", ErrQuoteCreate, err)
	}

	req.UserID = userID
	req.Items = make([]domain.QuoteItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		qi := domain.QuoteItem{ProductID: it.ProductID, Quantity: it.Quantity, GroupID: it.GroupID}
		if it.Product != nil {
			qi.Name, qi.Slug, qi.ImageURL = it.Product.Name, it.Product.Slug, it.Product.ImageURL
		}
		req.Items = append(req.Items, qi)
	}
	if req.RentalStartDate == "" || req.RentalEndDate == "" {
		first := cart.Items[0].Dates
		req.RentalStartDate = first.Start.Format(domain.DayLayout)
		req.RentalEndDate = first.End.Format(domain.DayLayout)
	}

	return s.create(ctx, req, cart.ID)
}

func (s *QuoteService) Get(ctx context.Context, id string) (domain.Quote, error) {
	q, err := s.Quotes.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return q, ErrQuoteNotFound
	}
	if err != nil {
		return q, fmt.Errorf("load quote: %w", err)
	}
	s.attachPDF(ctx, &q)
	return q, nil
}

// GetByToken is the guest read path. A wrong or empty token looks exactly
// like a missing quote.
func (s *QuoteService) GetByToken(ctx context.Context, id, token string) (domain.Quote, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if !tokenMatches(q.AccessToken, token) {
		return domain.Quote{}, ErrQuoteNotFound
	}
	return q, nil
}

func tokenMatches(want, got string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func (s *QuoteService) ListByEmail(ctx context.Context, email string) ([]domain.Quote, error) {
	return s.Quotes.ListByEmail(ctx, email)
}

func (s *QuoteService) ListByUser(ctx context.Context, userID string) ([]domain.Quote, error) {
	return s.Quotes.ListByUser(ctx, userID)
}

// List pages through quotes for the admin dashboard.
func (s *QuoteService) List(ctx context.Context, page, perPage int, status string) (domain.Page[domain.Quote], error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	if status != "" && !domain.QuoteStatus(status).Valid() {
		return domain.Page[domain.Quote]{}, ErrInvalidStatus
	}
	items, total, err := s.Quotes.Page(ctx, status, perPage, (page-1)*perPage)
	if err != nil {
		return domain.Page[domain.Quote]{}, fmt.Errorf("list quotes: %w", err)
	}
	return domain.NewPage(items, page, perPage, total), nil
}

// UpdateStatus is the admin status change. A quote only becomes quoted
// through Upload, which stores the document and starts the grace period.
func (s *QuoteService) UpdateStatus(ctx context.Context, id string, status domain.QuoteStatus, notes *string) error {
	if !status.Valid() || status == domain.QuoteQuoted {
		return ErrInvalidStatus
	}
	ok, err := s.Quotes.UpdateStatus(ctx, id, status, notes, s.now())
	if err != nil {
		return fmt.Errorf("update quote status: %w", err)
	}
	if !ok {
		return ErrQuoteNotFound
	}
	return nil
}

// SetEstimatedPrice is refused once the quote's grace period is over.
func (s *QuoteService) SetEstimatedPrice(ctx context.Context, id string, price float64) error {
	if price < 0 {
		return fmt.Errorf("%w: price", ErrValidation)
	}
	q, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !q.Editable(s.now()) {
		return ErrQuoteLocked
	}
	if _, err := s.Quotes.SetPrice(ctx, id, price, s.now()); err != nil {
		return fmt.Errorf("set quote price: %w", err)
	}
	return nil
}

// Upload attaches the quote document, marks the quote as quoted and emails
// the customer their magic link.
func (s *QuoteService) Upload(ctx context.Context, id string, doc io.Reader, size int64, price *float64) (domain.Quote, error) {
	if price != nil && *price < 0 {
		return domain.Quote{}, fmt.Errorf("%w: price", ErrValidation)
	}
	q, err := s.Get(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if !q.Editable(s.now()) {
		return domain.Quote{}, ErrQuoteLocked
	}
	if s.Files == nil {
		return domain.Quote{}, errors.New("file storage not configured")
	}
	key, err := storage.Key("quotes", q.ID, fmt.Sprintf("quote-%d.pdf", s.now().Unix()))
	if err != nil {
		return domain.Quote{}, err
	}
	if err := s.Files.Put(ctx, key, doc, size, "application/pdf"); err != nil {
		return domain.Quote{}, fmt.Errorf("store quote document: %w", err)
	}
	if _, err := s.Quotes.MarkQuoted(ctx, q.ID, key, price, s.now()); err != nil {
		return domain.Quote{}, fmt.Errorf("mark quote quoted: %w", err)
	}

	q, err = s.Get(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	p := payloadFor(q)
	p.Items = nil
	s.notify(ctx, domain.PayloadQuoteReady, q.ClientEmail, s.AdminEmail, "", p)
	return q, nil
}

// Sign records the customer's signature and confirms the quote.
func (s *QuoteService) Sign(ctx context.Context, id, token string, png io.Reader, size int64) (domain.Quote, error) {
	q, err := s.GetByToken(ctx, id, token)
	if err != nil {
		return domain.Quote{}, err
	}
	if q.Status != domain.QuoteQuoted || q.QuotePDF == "" {
		return domain.Quote{}, ErrInvalidStatus
	}
	if s.Files == nil {
		return domain.Quote{}, errors.New("file storage not configured")
	}
	key, err := storage.Key("quotes", q.ID, "signature.png")
	if err != nil {
		return domain.Quote{}, err
	}
	if err := s.Files.Put(ctx, key, png, size, "image/png"); err != nil {
		return domain.Quote{}, fmt.Errorf("store signature: %w", err)
	}
	ok, err := s.Quotes.MarkSigned(ctx, q.ID, key, s.now())
	if err != nil {
		return domain.Quote{}, fmt.Errorf("mark quote signed: %w", err)
	}
	if !ok {
		return domain.Quote{}, ErrInvalidStatus
	}
	s.Log.Info("quote signed", zap.String("quote_id", q.ID))

	p := payloadFor(q)
	p.AccessToken = ""
	s.notify(ctx, domain.PayloadAdminNotification, s.AdminEmail, q.ClientEmail,
		"Quote Accepted - "+q.ConfirmationNumber, p)
	return s.Get(ctx, id)
}

// Reject lets the customer decline a quoted request, keeping their reason in
// the internal notes.
func (s *QuoteService) Reject(ctx context.Context, id, token, reason string) error {
	q, err := s.GetByToken(ctx, id, token)
	if err != nil {
		return err
	}
	if q.Status != domain.QuoteQuoted {
		return ErrInvalidStatus
	}
	reason, ok := validate.Text(reason, 2000)
	if !ok {
		return fmt.Errorf("%w: reason", ErrValidation)
	}
	notes := q.InternalNotes
	if reason != "" {
		notes = strings.TrimSpace(notes + "\n\n[REJECTION REASON - " + domain.FormatTime(s.now()) + "]:\n" + reason)
	}
	if err := s.UpdateStatus(ctx, id, domain.QuoteRejected, &notes); err != nil {
		return err
	}

	p := payloadFor(q)
	p.AccessToken = ""
	p.Items = nil
	if reason != "" {
		p.ProjectDescription = "Rejection reason: " + reason
	} else {
		p.ProjectDescription = "No reason provided."
	}
	s.notify(ctx, domain.PayloadAdminNotification, s.AdminEmail, q.ClientEmail,
		"Quote Rejected - "+q.ConfirmationNumber, p)
	return nil
}

func (s *QuoteService) attachPDF(ctx context.Context, q *domain.Quote) {
	if q.QuotePDF == "" || s.Files == nil {
		return
	}
	u, err := s.Files.URL(ctx, q.QuotePDF)
	if err != nil {
		s.Log.Warn("quote document url", zap.String("quote_id", q.ID), zap.Error(err))
		return
	}
	q.PDFURL = u
}

// notify renders and queues one email. Failures are logged and swallowed:
// a quote never fails because of email.
func (s *QuoteService) notify(ctx context.Context, payloadType, to, replyTo, subject string, p mailer.QuotePayload) {
	if to == "" {
		s.Log.Warn("email skipped, no recipient", zap.String("type", payloadType), zap.String("quote_id", p.QuoteID))
		return
	}
	if s.Mail == nil || s.Emails == nil {
		return
	}
	defSubject, body, err := s.Mail.Render(payloadType, p)
	if err != nil {
		s.Log.Error("render email", zap.String("type", payloadType), zap.Error(err))
		return
	}
	if subject == "" {
		subject = defSubject
	}
	if _, err := s.Emails.Enqueue(ctx, EnqueueParams{
		To:          to,
		Subject:     subject,
		HTML:        body,
		ReplyTo:     replyTo,
		PayloadType: payloadType,
		PayloadData: p,
	}); err != nil {
		s.Log.Error("queue email", zap.String("type", payloadType), zap.String("quote_id", p.QuoteID), zap.Error(err))
	}
}

func payloadFor(q domain.Quote) mailer.QuotePayload {
	return mailer.QuotePayload{
		QuoteID:            q.ID,
		AccessToken:        q.AccessToken,
		ConfirmationNumber: q.ConfirmationNumber,
		Language:           q.Language,
		CustomerName:       q.ClientName,
		CustomerEmail:      q.ClientEmail,
		CustomerPhone:      q.ClientPhone,
		CustomerCompany:    q.ClientCompany,
		Items:              q.Items,
		RentalStartDate:    q.RentalStartDate,
		RentalEndDate:      q.RentalEndDate,
		ProjectDescription: q.ProjectDescription,
		SpecialRequests:    q.SpecialRequests,
		Location:           q.Location,
		EstimatedPrice:     q.EstimatedPrice,
	}
}
