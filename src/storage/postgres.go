package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/clubops/memberbook/src/models"
)

// PostgresStore implements Store over PostgreSQL via database/sql.
//
// The partial unique index on (member_id) for active members is the schema
// half of the ID-claim discipline; transactions run serializable so the
// scan-and-claim in the service layer cannot observe a stale free list and
// commit on top of it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle. The handle is owned by
// the caller.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS member_types (
	id              BIGSERIAL PRIMARY KEY,
	name            VARCHAR(50) NOT NULL UNIQUE,
	monthly_dues    NUMERIC(8,2) NOT NULL,
	coverage_months INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS payment_methods (
	id   BIGSERIAL PRIMARY KEY,
	name VARCHAR(50) NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS members (
	member_uuid         UUID PRIMARY KEY,
	member_id           INTEGER,
	preferred_member_id INTEGER,
	first_name          VARCHAR(50) NOT NULL,
	last_name           VARCHAR(50) NOT NULL,
	email               VARCHAR(254) NOT NULL DEFAULT '',
	member_type_id      BIGINT NOT NULL REFERENCES member_types(id),
	status              VARCHAR(20) NOT NULL DEFAULT 'active',
	expiration_date     DATE NOT NULL,
	milestone_date      DATE,
	date_joined         DATE NOT NULL,
	date_inactivated    DATE,
	home_address        TEXT NOT NULL DEFAULT '',
	home_city           VARCHAR(100) NOT NULL DEFAULT '',
	home_state          VARCHAR(2) NOT NULL DEFAULT '',
	home_zip            VARCHAR(10) NOT NULL DEFAULT '',
	home_phone          VARCHAR(20) NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- One active holder per member ID; inactive/deceased rows carry NULL.
CREATE UNIQUE INDEX IF NOT EXISTS members_active_member_id
	ON members (member_id) WHERE status = 'active';

CREATE INDEX IF NOT EXISTS members_name ON members (last_name, first_name);
CREATE INDEX IF NOT EXISTS members_status ON members (status);
CREATE INDEX IF NOT EXISTS members_expiration ON members (expiration_date);

CREATE TABLE IF NOT EXISTS payments (
	id                UUID PRIMARY KEY,
	member_uuid       UUID NOT NULL REFERENCES members(member_uuid),
	payment_method_id BIGINT NOT NULL REFERENCES payment_methods(id),
	amount            NUMERIC(10,2) NOT NULL,
	date              DATE NOT NULL,
	receipt_number    VARCHAR(50) NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS payments_member_date ON payments (member_uuid, date);
CREATE INDEX IF NOT EXISTS payments_date ON payments (date);
`

// EnsureSchema creates the tables and indexes if they do not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const memberColumns = `member_uuid, member_id, preferred_member_id, first_name, last_name, email,
	member_type_id, status, expiration_date, milestone_date, date_joined, date_inactivated,
	home_address, home_city, home_state, home_zip, home_phone, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMember(row rowScanner) (*models.Member, error) {
	var (
		m           models.Member
		memberID    sql.NullInt64
		preferredID sql.NullInt64
		milestone   sql.NullTime
		inactivated sql.NullTime
	)
	err := row.Scan(
		&m.MemberUUID, &memberID, &preferredID, &m.FirstName, &m.LastName, &m.Email,
		&m.MemberTypeID, &m.Status, &m.ExpirationDate, &milestone, &m.DateJoined, &inactivated,
		&m.HomeAddress, &m.HomeCity, &m.HomeState, &m.HomeZip, &m.HomePhone, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if memberID.Valid {
		v := int(memberID.Int64)
		m.MemberID = &v
	}
	if preferredID.Valid {
		v := int(preferredID.Int64)
		m.PreferredMemberID = &v
	}
	if milestone.Valid {
		v := milestone.Time
		m.MilestoneDate = &v
	}
	if inactivated.Valid {
		v := inactivated.Time
		m.DateInactivated = &v
	}
	return &m, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func getMember(ctx context.Context, q querier, id uuid.UUID) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE member_uuid = $1`
	m, err := scanMember(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func getMemberType(ctx context.Context, q querier, id int64) (*models.MemberType, error) {
	var mt models.MemberType
	query := `SELECT id, name, monthly_dues, coverage_months FROM member_types WHERE id = $1`
	err := q.QueryRowContext(ctx, query, id).Scan(&mt.ID, &mt.Name, &mt.MonthlyDues, &mt.CoverageMonths)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &mt, nil
}

func getPaymentMethod(ctx context.Context, q querier, id int64) (*models.PaymentMethod, error) {
	var pm models.PaymentMethod
	query := `SELECT id, name FROM payment_methods WHERE id = $1`
	err := q.QueryRowContext(ctx, query, id).Scan(&pm.ID, &pm.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

func activeMemberIDs(ctx context.Context, q querier) ([]int, error) {
	query := `
		SELECT member_id FROM members
		WHERE status = 'active' AND member_id IS NOT NULL
		ORDER BY member_id
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func queryMembers(ctx context.Context, q querier, query string, args ...interface{}) ([]models.Member, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func queryPayments(ctx context.Context, q querier, query string, args ...interface{}) ([]models.Payment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		var p models.Payment
		err := rows.Scan(&p.ID, &p.MemberUUID, &p.PaymentMethodID, &p.Amount, &p.Date, &p.ReceiptNumber, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	return getMember(ctx, s.db, id)
}

func (s *PostgresStore) GetMemberType(ctx context.Context, id int64) (*models.MemberType, error) {
	return getMemberType(ctx, s.db, id)
}

func (s *PostgresStore) GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error) {
	return getPaymentMethod(ctx, s.db, id)
}

func (s *PostgresStore) ActiveMemberIDs(ctx context.Context) ([]int, error) {
	return activeMemberIDs(ctx, s.db)
}

func (s *PostgresStore) MembersByName(ctx context.Context, firstName, lastName string) ([]models.Member, error) {
	query := `
		SELECT ` + memberColumns + ` FROM members
		WHERE LOWER(first_name) = LOWER($1) AND LOWER(last_name) = LOWER($2)
		ORDER BY last_name, first_name
	`
	return queryMembers(ctx, s.db, query, firstName, lastName)
}

func (s *PostgresStore) MembersByPhone(ctx context.Context, phone string) ([]models.Member, error) {
	query := `
		SELECT ` + memberColumns + ` FROM members
		WHERE home_phone <> '' AND home_phone = $1
		ORDER BY last_name, first_name
	`
	return queryMembers(ctx, s.db, query, phone)
}

func (s *PostgresStore) MembersByEmail(ctx context.Context, email string) ([]models.Member, error) {
	query := `
		SELECT ` + memberColumns + ` FROM members
		WHERE email <> '' AND LOWER(email) = LOWER($1)
		ORDER BY last_name, first_name
	`
	return queryMembers(ctx, s.db, query, email)
}

func (s *PostgresStore) ExpiredWithoutPayment(ctx context.Context, cutoff time.Time) ([]models.Member, error) {
	// Active members expired before the cutoff with no payment dated after
	// their expiration.
	query := `
		SELECT ` + memberColumns + ` FROM members m
		WHERE m.status = 'active'
		  AND m.expiration_date < $1
		  AND NOT EXISTS (
			SELECT 1 FROM payments p
			WHERE p.member_uuid = m.member_uuid AND p.date > m.expiration_date
		  )
		ORDER BY m.last_name, m.first_name
	`
	return queryMembers(ctx, s.db, query, cutoff)
}

func (s *PostgresStore) MembersExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Member, error) {
	query := `
		SELECT ` + memberColumns + ` FROM members
		WHERE status = 'active' AND expiration_date BETWEEN $1 AND $2
		ORDER BY last_name, first_name
	`
	return queryMembers(ctx, s.db, query, from, to)
}

func (s *PostgresStore) MembersJoinedBetween(ctx context.Context, from, to time.Time) ([]models.Member, error) {
	query := `
		SELECT ` + memberColumns + ` FROM members
		WHERE date_joined BETWEEN $1 AND $2
		ORDER BY last_name, first_name
	`
	return queryMembers(ctx, s.db, query, from, to)
}

func (s *PostgresStore) MembersWithMilestoneInMonth(ctx context.Context, month time.Month) ([]models.Member, error) {
	query := `
		SELECT ` + memberColumns + ` FROM members
		WHERE status = 'active' AND milestone_date IS NOT NULL
		  AND EXTRACT(MONTH FROM milestone_date) = $1
		ORDER BY last_name, first_name
	`
	return queryMembers(ctx, s.db, query, int(month))
}

func (s *PostgresStore) PaymentsByMember(ctx context.Context, id uuid.UUID) ([]models.Payment, error) {
	query := `
		SELECT id, member_uuid, payment_method_id, amount, date, receipt_number, created_at
		FROM payments WHERE member_uuid = $1
		ORDER BY date DESC, created_at DESC
	`
	return queryPayments(ctx, s.db, query, id)
}

func (s *PostgresStore) PaymentsBetween(ctx context.Context, from, to time.Time) ([]models.Payment, error) {
	query := `
		SELECT id, member_uuid, payment_method_id, amount, date, receipt_number, created_at
		FROM payments WHERE date BETWEEN $1 AND $2
		ORDER BY date DESC, created_at DESC
	`
	return queryPayments(ctx, s.db, query, from, to)
}

// WithinTx runs fn in a serializable transaction
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	if err := fn(&postgresTx{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type postgresTx struct {
	tx *sql.Tx
}

func (t *postgresTx) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	return getMember(ctx, t.tx, id)
}

func (t *postgresTx) GetMemberType(ctx context.Context, id int64) (*models.MemberType, error) {
	return getMemberType(ctx, t.tx, id)
}

func (t *postgresTx) GetPaymentMethod(ctx context.Context, id int64) (*models.PaymentMethod, error) {
	return getPaymentMethod(ctx, t.tx, id)
}

func (t *postgresTx) ActiveMemberIDs(ctx context.Context) ([]int, error) {
	return activeMemberIDs(ctx, t.tx)
}

func (t *postgresTx) InsertMember(ctx context.Context, m *models.Member) error {
	query := `
		INSERT INTO members (
			member_uuid, member_id, preferred_member_id, first_name, last_name, email,
			member_type_id, status, expiration_date, milestone_date, date_joined, date_inactivated,
			home_address, home_city, home_state, home_zip, home_phone, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := t.tx.ExecContext(ctx, query,
		m.MemberUUID, intPtrValue(m.MemberID), intPtrValue(m.PreferredMemberID),
		m.FirstName, m.LastName, m.Email,
		m.MemberTypeID, m.Status, m.ExpirationDate, timePtrValue(m.MilestoneDate),
		m.DateJoined, timePtrValue(m.DateInactivated),
		m.HomeAddress, m.HomeCity, m.HomeState, m.HomeZip, m.HomePhone,
		m.CreatedAt, m.UpdatedAt,
	)
	return mapConstraintErr(err)
}

func (t *postgresTx) UpdateMember(ctx context.Context, m *models.Member) error {
	query := `
		UPDATE members SET
			member_id = $2, preferred_member_id = $3, first_name = $4, last_name = $5,
			email = $6, member_type_id = $7, status = $8, expiration_date = $9,
			milestone_date = $10, date_joined = $11, date_inactivated = $12,
			home_address = $13, home_city = $14, home_state = $15, home_zip = $16,
			home_phone = $17, updated_at = $18
		WHERE member_uuid = $1
	`
	result, err := t.tx.ExecContext(ctx, query,
		m.MemberUUID, intPtrValue(m.MemberID), intPtrValue(m.PreferredMemberID),
		m.FirstName, m.LastName, m.Email, m.MemberTypeID, m.Status, m.ExpirationDate,
		timePtrValue(m.MilestoneDate), m.DateJoined, timePtrValue(m.DateInactivated),
		m.HomeAddress, m.HomeCity, m.HomeState, m.HomeZip, m.HomePhone, m.UpdatedAt,
	)
	if err != nil {
		return mapConstraintErr(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *postgresTx) InsertPayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (id, member_uuid, payment_method_id, amount, date, receipt_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := t.tx.ExecContext(ctx, query,
		p.ID, p.MemberUUID, p.PaymentMethodID, p.Amount, p.Date, p.ReceiptNumber, p.CreatedAt,
	)
	return mapConstraintErr(err)
}

// mapConstraintErr translates unique violations: the active member ID
// index means a lost claim race, the members primary key a reused UUID
func mapConstraintErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "members_active_member_id":
			return ErrMemberIDConflict
		case "members_pkey":
			return ErrMemberExists
		}
	}
	return err
}

func intPtrValue(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func timePtrValue(p *time.Time) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
