// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package pgstore implements account.Store on postgres.
//
// Login and email uniqueness is enforced by unique indices on lower(login) and
// lower(email), so concurrent creates of the same login cannot both succeed.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/relabs-tech/labadmin/core/access"
	"github.com/relabs-tech/labadmin/core/account"
	"github.com/relabs-tech/labadmin/core/csql"
	"github.com/relabs-tech/labadmin/core/logger"
)

// names of the unique indices, reported back by postgres on violations
const (
	loginIndex = "account_login_key"
	emailIndex = "account_email_key"
)

const accountColumns = `id, login, first_name, last_name, email, image_url, activated, lang_key, authorities, password_hash, activation_key, reset_key, reset_date, created_by, created_date, last_modified_by, last_modified_date`

const labColumns = `id, code, name, department, institution, address, city, country, director_name, director_email, contact_name, contact_email, contact_phone, created_at`

// sortColumns maps sort properties to columns
var sortColumns = map[account.SortProperty]string{
	account.SortByID:               "id",
	account.SortByLogin:            "login",
	account.SortByEmail:            "email",
	account.SortByFirstName:        "first_name",
	account.SortByLastName:         "last_name",
	account.SortByCreatedDate:      "created_date",
	account.SortByLastModifiedDate: "last_modified_date",
}

// Builder is a builder helper for the Store
type Builder struct {
	// DB is the postgres database. Mandatory.
	DB *csql.DB
	// UpdateSchema creates the tables and indices if they do not exist
	UpdateSchema bool
}

// Store is a postgres account.Store
type Store struct {
	db       *csql.DB
	accounts string
	labs     string
	profiles string
}

var _ account.Store = (*Store)(nil)

// New creates a new postgres store
func New(sb *Builder) *Store {
	s := &Store{
		db:       sb.DB,
		accounts: sb.DB.Table("account"),
		labs:     sb.DB.Table("lab"),
		profiles: sb.DB.Table("lab_profile"),
	}
	if sb.UpdateSchema {
		s.updateSchema()
	}
	return s
}

func (s *Store) updateSchema() {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
id uuid PRIMARY KEY,
login varchar(50) NOT NULL,
first_name varchar(50) NOT NULL DEFAULT '',
last_name varchar(50) NOT NULL DEFAULT '',
email varchar(254) NOT NULL,
image_url varchar(256) NOT NULL DEFAULT '',
activated boolean NOT NULL DEFAULT false,
lang_key varchar(10) NOT NULL DEFAULT '',
authorities varchar(50)[] NOT NULL DEFAULT '{}',
password_hash varchar(60) NOT NULL DEFAULT '',
activation_key varchar(20) NOT NULL DEFAULT '',
reset_key varchar(20) NOT NULL DEFAULT '',
reset_date timestamptz,
created_by varchar(50) NOT NULL DEFAULT '',
created_date timestamptz NOT NULL DEFAULT now(),
last_modified_by varchar(50) NOT NULL DEFAULT '',
last_modified_date timestamptz NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS %[4]s ON %[1]s(lower(login));
CREATE UNIQUE INDEX IF NOT EXISTS %[5]s ON %[1]s(lower(email));
CREATE TABLE IF NOT EXISTS %[2]s (
id uuid PRIMARY KEY,
code varchar(50) NOT NULL DEFAULT '',
name varchar NOT NULL DEFAULT '',
department varchar NOT NULL DEFAULT '',
institution varchar NOT NULL DEFAULT '',
address varchar NOT NULL DEFAULT '',
city varchar NOT NULL DEFAULT '',
country varchar NOT NULL DEFAULT '',
director_name varchar NOT NULL DEFAULT '',
director_email varchar NOT NULL DEFAULT '',
contact_name varchar NOT NULL DEFAULT '',
contact_email varchar NOT NULL DEFAULT '',
contact_phone varchar NOT NULL DEFAULT '',
created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS %[3]s (
account_id uuid PRIMARY KEY REFERENCES %[1]s(id) ON DELETE CASCADE,
lab_id uuid REFERENCES %[2]s(id) ON DELETE SET NULL,
phone varchar NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS lab_profile_lab ON %[3]s(lab_id);`,
		s.accounts, s.labs, s.profiles, loginIndex, emailIndex)

	if _, err := s.db.Exec(query); err != nil {
		logger.Default().WithError(err).Errorf("Error while updating schema when running: %s", query)
		panic(fmt.Sprintf("cannot update schema: %v", err))
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row scanner) (account.Account, error) {
	var a account.Account
	var authorities pq.StringArray
	err := row.Scan(&a.ID, &a.Login, &a.FirstName, &a.LastName, &a.Email, &a.ImageURL, &a.Activated,
		&a.LangKey, &authorities, &a.PasswordHash, &a.ActivationKey, &a.ResetKey, &a.ResetDate,
		&a.CreatedBy, &a.CreatedDate, &a.LastModifiedBy, &a.LastModifiedDate)
	if errors.Is(err, csql.ErrNoRows) {
		return account.Account{}, account.ErrNotFound
	}
	if err != nil {
		return account.Account{}, err
	}
	a.Authorities = make(access.Roles, 0, len(authorities))
	for _, name := range authorities {
		role, err := access.ParseRole(name)
		if err != nil {
			return account.Account{}, fmt.Errorf("account %s: %w", a.ID, err)
		}
		a.Authorities = append(a.Authorities, role)
	}
	a.Authorities = a.Authorities.Normalize()
	return a, nil
}

func (s *Store) findOne(ctx context.Context, where string, arg interface{}) (account.Account, error) {
	query := "SELECT " + accountColumns + " FROM " + s.accounts + " WHERE " + where + ";"
	return scanAccount(s.db.QueryRowContext(ctx, query, arg))
}

// FindByID implements account.Store
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (account.Account, error) {
	return s.findOne(ctx, "id = $1", id)
}

// FindByLogin implements account.Store
func (s *Store) FindByLogin(ctx context.Context, login string) (account.Account, error) {
	return s.findOne(ctx, "login = $1", login)
}

// FindByLoginFold implements account.Store
func (s *Store) FindByLoginFold(ctx context.Context, login string) (account.Account, error) {
	return s.findOne(ctx, "lower(login) = lower($1)", login)
}

// FindByEmailFold implements account.Store
func (s *Store) FindByEmailFold(ctx context.Context, email string) (account.Account, error) {
	return s.findOne(ctx, "lower(email) = lower($1)", email)
}

// conflictError maps unique violations of the login and email indices
func conflictError(err error) error {
	constraint, ok := csql.UniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case loginIndex, "account_pkey":
		return account.ErrLoginConflict
	case emailIndex:
		return account.ErrEmailConflict
	}
	return err
}

// Create implements account.Store
func (s *Store) Create(ctx context.Context, a account.Account) (account.Account, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	if a.CreatedDate.IsZero() {
		a.CreatedDate = now
	}
	if a.LastModifiedDate.IsZero() {
		a.LastModifiedDate = a.CreatedDate
	}
	query := "INSERT INTO " + s.accounts + " (" + accountColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
RETURNING ` + accountColumns + ";"
	created, err := scanAccount(s.db.QueryRowContext(ctx, query,
		a.ID, a.Login, a.FirstName, a.LastName, a.Email, a.ImageURL, a.Activated, a.LangKey,
		pq.Array(a.Authorities.Strings()), a.PasswordHash, a.ActivationKey, a.ResetKey, a.ResetDate,
		a.CreatedBy, a.CreatedDate, a.LastModifiedBy, a.LastModifiedDate))
	if err != nil {
		return account.Account{}, conflictError(err)
	}
	return created, nil
}

// Update implements account.Store
func (s *Store) Update(ctx context.Context, a account.Account) (account.Account, error) {
	if a.LastModifiedDate.IsZero() {
		a.LastModifiedDate = time.Now().UTC()
	}
	query := "UPDATE " + s.accounts + ` SET login = $2, first_name = $3, last_name = $4, email = $5,
image_url = $6, activated = $7, lang_key = $8, authorities = $9, password_hash = $10,
activation_key = $11, reset_key = $12, reset_date = $13, last_modified_by = $14, last_modified_date = $15
WHERE id = $1 RETURNING ` + accountColumns + ";"
	updated, err := scanAccount(s.db.QueryRowContext(ctx, query,
		a.ID, a.Login, a.FirstName, a.LastName, a.Email, a.ImageURL, a.Activated, a.LangKey,
		pq.Array(a.Authorities.Strings()), a.PasswordHash, a.ActivationKey, a.ResetKey, a.ResetDate,
		a.LastModifiedBy, a.LastModifiedDate))
	if err != nil {
		return account.Account{}, conflictError(err)
	}
	return updated, nil
}

// DeleteByLogin implements account.Store. The lab profile goes with the account.
func (s *Store) DeleteByLogin(ctx context.Context, login string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM "+s.accounts+" WHERE login = $1;", login)
	return err
}

// List implements account.Store
func (s *Store) List(ctx context.Context, filter account.ListFilter, page account.PageRequest) (account.Page, error) {
	from := " FROM " + s.accounts + " a"
	var args []interface{}
	if filter.LabID != uuid.Nil {
		from += " JOIN " + s.profiles + " p ON p.account_id = a.id WHERE p.lab_id = $1"
		args = append(args, filter.LabID)
	}

	result := account.Page{Request: page, Items: []account.Account{}}
	if err := s.db.QueryRowContext(ctx, "SELECT count(*)"+from+";", args...).Scan(&result.Total); err != nil {
		return account.Page{}, fmt.Errorf("count accounts: %w", err)
	}

	column, ok := sortColumns[page.Sort]
	if !ok {
		column = "login"
	}
	direction := "ASC"
	if page.Descending {
		direction = "DESC"
	}
	query := "SELECT a." + strings.ReplaceAll(accountColumns, ", ", ", a.") + from +
		fmt.Sprintf(" ORDER BY a.%s %s, a.login ASC", column, direction)
	if !page.Unpaged() {
		offset, ok := page.Offset()
		if !ok {
			return result, nil
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", page.Size, offset)
	}

	rows, err := s.db.QueryContext(ctx, query+";", args...)
	if err != nil {
		return account.Page{}, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return account.Page{}, err
		}
		result.Items = append(result.Items, a)
	}
	return result, rows.Err()
}

// ProfileByAccount implements account.Store
func (s *Store) ProfileByAccount(ctx context.Context, accountID uuid.UUID) (account.LabProfile, error) {
	p := account.LabProfile{AccountID: accountID}
	var labID uuid.NullUUID
	err := s.db.QueryRowContext(ctx, "SELECT lab_id, phone FROM "+s.profiles+" WHERE account_id = $1;", accountID).
		Scan(&labID, &p.Phone)
	if errors.Is(err, csql.ErrNoRows) {
		return account.LabProfile{}, account.ErrNotFound
	}
	if err != nil {
		return account.LabProfile{}, err
	}
	p.LabID = labID.UUID
	return p, nil
}

// SaveProfile implements account.Store
func (s *Store) SaveProfile(ctx context.Context, profile account.LabProfile) error {
	labID := uuid.NullUUID{UUID: profile.LabID, Valid: profile.LabID != uuid.Nil}
	_, err := s.db.ExecContext(ctx, "INSERT INTO "+s.profiles+` (account_id, lab_id, phone) VALUES ($1, $2, $3)
ON CONFLICT (account_id) DO UPDATE SET lab_id = EXCLUDED.lab_id, phone = EXCLUDED.phone;`,
		profile.AccountID, labID, profile.Phone)
	if csql.ForeignKeyViolation(err) {
		return account.ErrNotFound
	}
	return err
}

// FindLab implements account.Store
func (s *Store) FindLab(ctx context.Context, id uuid.UUID) (account.Lab, error) {
	var l account.Lab
	err := s.db.QueryRowContext(ctx, "SELECT "+labColumns+" FROM "+s.labs+" WHERE id = $1;", id).Scan(
		&l.ID, &l.Code, &l.Name, &l.Department, &l.Institute, &l.Address, &l.City, &l.Country,
		&l.DirectorName, &l.DirectorEmail, &l.ContactName, &l.ContactEmail, &l.ContactPhone, &l.CreatedAt)
	if errors.Is(err, csql.ErrNoRows) {
		return account.Lab{}, account.ErrNotFound
	}
	return l, err
}

// SaveLab implements account.Store
func (s *Store) SaveLab(ctx context.Context, l account.Lab) (account.Lab, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO "+s.labs+" ("+labColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name, department = EXCLUDED.department,
institution = EXCLUDED.institution, address = EXCLUDED.address, city = EXCLUDED.city, country = EXCLUDED.country, director_name = EXCLUDED.director_name, director_email = EXCLUDED.director_email,
contact_name = EXCLUDED.contact_name, contact_email = EXCLUDED.contact_email, contact_phone = EXCLUDED.contact_phone;`,
		l.ID, l.Code, l.Name, l.Department, l.Institute, l.Address, l.City, l.Country,
		l.DirectorName, l.DirectorEmail, l.ContactName, l.ContactEmail, l.ContactPhone, l.CreatedAt)
	if err != nil {
		return account.Lab{}, err
	}
	return l, nil
}
