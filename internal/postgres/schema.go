package postgres

import (
	"context"
	"fmt"
)

// schema is idempotent; Migrate can run on every boot when AUTO_MIGRATE is set.
const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL,
	full_name  TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user','teacher','admin')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pianos (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	price_per_day BIGINT NOT NULL CHECK (price_per_day >= 0),
	sale_price    BIGINT NOT NULL DEFAULT 0 CHECK (sale_price >= 0),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS courses (
	id         BIGSERIAL PRIMARY KEY,
	title      TEXT NOT NULL,
	price      BIGINT NOT NULL CHECK (price >= 0),
	teacher_id TEXT NOT NULL REFERENCES profiles(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id                 BIGSERIAL PRIMARY KEY,
	buyer_id           TEXT NOT NULL REFERENCES profiles(id),
	piano_id           BIGINT REFERENCES pianos(id),
	course_id          BIGINT REFERENCES courses(id),
	type               TEXT NOT NULL CHECK (type IN ('buy','rent','course')),
	total_price        BIGINT NOT NULL CHECK (total_price >= 0),
	rental_start       TIMESTAMPTZ,
	rental_end         TIMESTAMPTZ,
	rental_days        INT NOT NULL DEFAULT 0,
	status             TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending','approved','rejected','cancelled','payment_failed')),
	payment_method     TEXT NOT NULL CHECK (payment_method IN ('COD','QR')),
	payment_expired_at TIMESTAMPTZ,
	transaction_code   TEXT,
	paid_at            TIMESTAMPTZ,
	approved_by        TEXT,
	approved_at        TIMESTAMPTZ,
	admin_notes        TEXT NOT NULL DEFAULT '',
	referral_code      TEXT NOT NULL DEFAULT '',
	idempotency_key    TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK ((piano_id IS NULL) <> (course_id IS NULL))
);
CREATE UNIQUE INDEX IF NOT EXISTS orders_buyer_idempotency_key
	ON orders (buyer_id, idempotency_key) WHERE idempotency_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS orders_pending_qr_expiry
	ON orders (payment_expired_at) WHERE status = 'pending' AND payment_method = 'QR';

CREATE TABLE IF NOT EXISTS wallets (
	id                BIGSERIAL PRIMARY KEY,
	user_id           TEXT NOT NULL UNIQUE,
	available_balance BIGINT NOT NULL DEFAULT 0 CHECK (available_balance >= 0),
	locked_balance    BIGINT NOT NULL DEFAULT 0 CHECK (locked_balance >= 0),
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS wallet_transactions (
	id             BIGSERIAL PRIMARY KEY,
	wallet_id      BIGINT NOT NULL REFERENCES wallets(id),
	direction      TEXT NOT NULL CHECK (direction IN ('IN','OUT')),
	amount         BIGINT NOT NULL CHECK (amount > 0),
	reference_type TEXT NOT NULL,
	reference_id   TEXT NOT NULL,
	note           TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (wallet_id, direction, reference_type, reference_id)
);

CREATE TABLE IF NOT EXISTS withdrawal_requests (
	id             BIGSERIAL PRIMARY KEY,
	user_id        TEXT NOT NULL,
	amount         BIGINT NOT NULL CHECK (amount > 0),
	bank_name      TEXT NOT NULL,
	bank_account   TEXT NOT NULL,
	account_holder TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','approved','rejected')),
	resolved_by    TEXT,
	resolved_at    TIMESTAMPTZ,
	admin_note     TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS affiliates (
	id              BIGSERIAL PRIMARY KEY,
	user_id         TEXT NOT NULL REFERENCES profiles(id),
	referral_code   TEXT NOT NULL UNIQUE,
	commission_rate NUMERIC(5,4) NOT NULL CHECK (commission_rate >= 0 AND commission_rate <= 1),
	active          BOOLEAN NOT NULL DEFAULT true,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS commissions (
	id             BIGSERIAL PRIMARY KEY,
	affiliate_id   BIGINT NOT NULL REFERENCES affiliates(id),
	amount         BIGINT NOT NULL CHECK (amount > 0),
	reference_type TEXT NOT NULL,
	reference_id   TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','approved','rejected')),
	note           TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (reference_type, reference_id)
);

CREATE TABLE IF NOT EXISTS enrollments (
	id         BIGSERIAL PRIMARY KEY,
	user_id    TEXT NOT NULL,
	course_id  BIGINT NOT NULL REFERENCES courses(id),
	order_id   BIGINT NOT NULL REFERENCES orders(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, course_id)
);

CREATE TABLE IF NOT EXISTS webhook_events (
	id             BIGSERIAL PRIMARY KEY,
	reference_code TEXT UNIQUE,
	order_id       BIGINT,
	outcome        TEXT NOT NULL,
	amount         BIGINT NOT NULL,
	payload        JSONB NOT NULL,
	received_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
