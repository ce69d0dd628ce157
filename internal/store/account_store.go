// Package store holds the gorm-backed persistence for accounts and analyses.
// Callers get a store bound either to the pool or to an open transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/healthmate_be/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Accounts is the account persistence contract used by the workflows.
type Accounts interface {
	// InTx runs fn against a store bound to one transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Accounts) error) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUID(ctx context.Context, uid int) (*models.User, error)
	NextUID(ctx context.Context) (int, error)
	Create(ctx context.Context, u *models.User) error
}

type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) InTx(ctx context.Context, fn func(tx Accounts) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&AccountStore{db: tx})
	})
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *AccountStore) FindByUID(ctx context.Context, uid int) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("uid = ?", uid).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// NextUID returns MinUID for an empty table (or one holding only lower
// values) and MAX(uid)+1 otherwise.
func (s *AccountStore) NextUID(ctx context.Context) (int, error) {
	var maxUID sql.NullInt64
	row := s.db.WithContext(ctx).Model(&models.User{}).Select("MAX(uid)").Row()
	if err := row.Scan(&maxUID); err != nil {
		return 0, fmt.Errorf("max uid: %w", err)
	}
	if !maxUID.Valid || maxUID.Int64 < models.MinUID {
		return models.MinUID, nil
	}
	return int(maxUID.Int64) + 1, nil
}

func (s *AccountStore) Create(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return translate(err)
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "unique constraint")
}
