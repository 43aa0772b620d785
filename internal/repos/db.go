package repos

import (
	"strings"
	"time"

	"tfsrentals/internal/domain"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// connPragmas run on every pooled connection. Writers wait for the lock
// instead of failing with SQLITE_BUSY, and transactions take the write lock
// up front so a read-then-write never needs an upgrade.
var connPragmas = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=foreign_keys(1)",
	"_pragma=journal_mode(WAL)",
	"_txlock=immediate",
}

// withPragmas appends connPragmas to dsn, keeping any the caller already set.
func withPragmas(dsn string) string {
	var add []string
	for _, p := range connPragmas {
		name, _, _ := strings.Cut(p, "(")
		if name == p {
			name, _, _ = strings.Cut(p, "=")
		}
		if !strings.Contains(dsn, name) {
			add = append(add, p)
		}
	}
	if len(add) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(add, "&")
}

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, err
	}
	// every :memory: connection is its own database
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	// Ensure staff accounts exist (idempotent; safe to run every start)
	if err := seedUsers(db); err != nil {
		return nil, err
	}

	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
-- Catalog
CREATE TABLE IF NOT EXISTS categories(
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  name_en TEXT NOT NULL,
  name_fr TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS equipment(
  id TEXT PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  name_en TEXT NOT NULL,
  name_fr TEXT NOT NULL DEFAULT '',
  description_en TEXT NOT NULL DEFAULT '',
  description_fr TEXT NOT NULL DEFAULT '',
  specs_en TEXT NOT NULL DEFAULT '',
  specs_fr TEXT NOT NULL DEFAULT '',
  category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE RESTRICT,
  brand TEXT NOT NULL DEFAULT '',
  images_json TEXT NOT NULL DEFAULT '[]',
  stock_available INTEGER NOT NULL DEFAULT 0 CHECK (stock_available >= 0),
  is_visible INTEGER NOT NULL DEFAULT 1,
  is_kit_anchor INTEGER NOT NULL DEFAULT 0,
  daily_rate NUMERIC NOT NULL DEFAULT 0 CHECK (daily_rate >= 0),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_equipment_category ON equipment(category_id);
CREATE INDEX IF NOT EXISTS idx_equipment_name     ON equipment(LOWER(name_en));

-- Kits
CREATE TABLE IF NOT EXISTS kit_templates(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  main_product_id TEXT NOT NULL UNIQUE REFERENCES equipment(id) ON DELETE CASCADE,
  base_price_modifier NUMERIC NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS kit_items(
  id TEXT PRIMARY KEY,
  template_id TEXT NOT NULL REFERENCES kit_templates(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL REFERENCES equipment(id) ON DELETE CASCADE,
  slot_name TEXT NOT NULL,
  is_mandatory INTEGER NOT NULL DEFAULT 0,
  default_quantity INTEGER NOT NULL DEFAULT 1 CHECK (default_quantity >= 1),
  swappable_category_id TEXT,
  display_order INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_kit_items_template ON kit_items(template_id, display_order);

-- Carts
CREATE TABLE IF NOT EXISTS carts(
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','completed','abandoned')),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_one_active ON carts(user_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS cart_items(
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL REFERENCES equipment(id) ON DELETE RESTRICT,
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  group_id TEXT NOT NULL,
  kit_template_id TEXT,
  start_date TEXT NOT NULL,
  end_date TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cart_items_cart  ON cart_items(cart_id);
CREATE INDEX IF NOT EXISTS idx_cart_items_group ON cart_items(cart_id, group_id);

-- Quotes
CREATE TABLE IF NOT EXISTS quotes(
  id TEXT PRIMARY KEY,
  user_id TEXT,
  client_name TEXT NOT NULL,
  client_email TEXT NOT NULL,
  client_phone TEXT NOT NULL,
  client_company TEXT NOT NULL DEFAULT '',
  items_json TEXT NOT NULL,
  rental_start_date TEXT NOT NULL,
  rental_end_date TEXT NOT NULL,
  project_description TEXT NOT NULL DEFAULT '',
  special_requests TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  language TEXT NOT NULL DEFAULT 'en' CHECK (language IN ('en','fr')),
  status TEXT NOT NULL DEFAULT 'pending'
    CHECK (status IN ('pending','reviewing','quoted','confirmed','rejected')),
  confirmation_number TEXT NOT NULL,
  access_token TEXT NOT NULL,
  internal_notes TEXT NOT NULL DEFAULT '',
  estimated_price REAL,
  quote_pdf TEXT NOT NULL DEFAULT '',
  pdf_generated INTEGER NOT NULL DEFAULT 0,
  locked INTEGER NOT NULL DEFAULT 0,
  quoted_at TEXT NOT NULL DEFAULT '',
  signature TEXT NOT NULL DEFAULT '',
  signed_at TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quotes_email   ON quotes(LOWER(client_email));
CREATE INDEX IF NOT EXISTS idx_quotes_user    ON quotes(user_id);
CREATE INDEX IF NOT EXISTS idx_quotes_status  ON quotes(status, created_at);

-- Outbound email
CREATE TABLE IF NOT EXISTS email_queue(
  id TEXT PRIMARY KEY,
  to_addr TEXT NOT NULL,
  subject TEXT NOT NULL,
  html TEXT NOT NULL,
  reply_to TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','sent','failed')),
  attempts INTEGER NOT NULL DEFAULT 0,
  max_attempts INTEGER NOT NULL DEFAULT 3,
  next_attempt_at TEXT NOT NULL,
  error_message TEXT NOT NULL DEFAULT '',
  sent_at TEXT NOT NULL DEFAULT '',
  payload_type TEXT NOT NULL DEFAULT '',
  payload_data TEXT NOT NULL DEFAULT '{}',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_email_queue_due ON email_queue(status, next_attempt_at);

-- Users & Sessions
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('USER','ADMIN')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,               -- same value as the 'sid' cookie
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`
	_, err := db.Exec(schema)
	return err
}

// seedUsers ensures a demo customer and the rental desk admin exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, Name, Role, Hash string
	}
	mk := func(id, email, name, role, raw string) u {
		h, _ := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		return u{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}
	}

	users := []u{
		mk("u-client", "client@tfs.test", "Client", domain.RoleUser, "Passw0rd!"),
		mk("u-admin", "admin@tfs.test", "Rental Desk", domain.RoleAdmin, "Passw0rd!"),
	}

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(id,email,name,password_hash,role)
			VALUES(?,?,?,?,?)
			ON CONFLICT(email) DO NOTHING
		`, x.ID, x.Email, x.Name, x.Hash, x.Role); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func stamp(t time.Time) string { return domain.FormatTime(t) }

func now() string { return stamp(time.Now()) }
