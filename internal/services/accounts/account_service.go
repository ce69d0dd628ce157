package accounts

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/healthmate_be/internal/metrics"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/models"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/store"
	"github.com/Windi-Fikriyansyah/healthmate_be/internal/utils"
)

// MaxUIDAttempts bounds how often a registration is retried after losing a
// uid race to a concurrent signup.
const MaxUIDAttempts = 8

// retryBaseDelay scales the jittered pause between uid retries.
const retryBaseDelay = 10 * time.Millisecond

// retryDelay returns a duration in [base*attempt, 2*base*attempt).
func retryDelay(attempt int) time.Duration {
	step := retryBaseDelay * time.Duration(attempt)
	return step + time.Duration(rand.Int63n(int64(step)))
}

const Anonymous = "Anonymous"

type Service struct {
	store  store.Accounts
	hasher utils.Hasher
	log    logrus.FieldLogger
}

func NewService(s store.Accounts, hasher utils.Hasher, log logrus.FieldLogger) *Service {
	return &Service{store: s, hasher: hasher, log: log}
}

type RegisterInput struct {
	Name            string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
	Role            string
}

type Result struct {
	Account     *models.User
	RedirectURL string
}

// Register creates an account. The email check, uid allocation and insert run
// in one transaction; the unique indexes on email and uid decide races, and a
// lost uid race is retried with a fresh allocation.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	if in.Password != in.ConfirmPassword {
		metrics.RegistrationsTotal.WithLabelValues("validation").Inc()
		return nil, ErrPasswordMismatch
	}

	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if name == "" || email == "" || in.Password == "" {
		metrics.RegistrationsTotal.WithLabelValues("validation").Inc()
		return nil, ErrMissingField
	}

	role, ok := models.ParseRole(in.Role)
	if !ok {
		metrics.RegistrationsTotal.WithLabelValues("validation").Inc()
		return nil, ErrInvalidRole
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: hash password: %v", ErrInternal, err)
	}

	for attempt := 1; attempt <= MaxUIDAttempts; attempt++ {
		u := &models.User{
			Name:     name,
			Email:    email,
			Phone:    strings.TrimSpace(in.Phone),
			Password: digest,
			Role:     role,
		}

		err := s.store.InTx(ctx, func(tx store.Accounts) error {
			if _, err := tx.FindByEmail(ctx, email); err == nil {
				return ErrEmailTaken
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}

			uid, err := tx.NextUID(ctx)
			if err != nil {
				return err
			}
			u.UID = uid
			return tx.Create(ctx, u)
		})

		switch {
		case err == nil:
			metrics.RegistrationsTotal.WithLabelValues("success").Inc()
			s.log.WithFields(logrus.Fields{"uid": u.UID, "role": u.Role}).Info("account registered")
			return &Result{Account: u, RedirectURL: u.DashboardPath()}, nil

		case errors.Is(err, ErrEmailTaken):
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
			return nil, ErrEmailTaken

		case errors.Is(err, store.ErrDuplicate):
			// either a concurrent signup took our uid or the same email;
			// the next attempt's email check tells them apart
			metrics.UIDConflictRetries.Inc()
			s.log.WithFields(logrus.Fields{"attempt": attempt, "uid": u.UID}).Warn("uid conflict, retrying registration")
			if attempt < MaxUIDAttempts {
				select {
				case <-time.After(retryDelay(attempt)):
				case <-ctx.Done():
					metrics.RegistrationsTotal.WithLabelValues("error").Inc()
					return nil, fmt.Errorf("%w: %v", ErrInternal, ctx.Err())
				}
			}

		default:
			metrics.RegistrationsTotal.WithLabelValues("error").Inc()
			s.log.WithError(err).Error("registration failed")
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
	}

	metrics.RegistrationsTotal.WithLabelValues("error").Inc()
	s.log.WithField("attempts", MaxUIDAttempts).Error("registration gave up after repeated uid conflicts")
	return nil, fmt.Errorf("%w: uid allocation exhausted", ErrInternal)
}

// Login checks credentials first and the selected role second. A role
// mismatch is reported separately, which does reveal that the credentials
// were valid.
func (s *Service) Login(ctx context.Context, email, password, role string) (*Result, error) {
	u, err := s.store.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, ErrInvalidCredentials
		}
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		s.log.WithError(err).Error("login lookup failed")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if !s.hasher.Check(u.Password, password) {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	if string(u.Role) != strings.ToLower(strings.TrimSpace(role)) {
		metrics.LoginsTotal.WithLabelValues("role_mismatch").Inc()
		return nil, ErrRoleMismatch
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return &Result{Account: u, RedirectURL: u.DashboardPath()}, nil
}

// ResolveDisplayName never fails: unknown or absent uids render as Anonymous.
func (s *Service) ResolveDisplayName(ctx context.Context, uid int) string {
	if uid == 0 {
		return Anonymous
	}
	u, err := s.store.FindByUID(ctx, uid)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.WithError(err).WithField("uid", uid).Warn("dashboard lookup failed")
		}
		return Anonymous
	}
	return u.Name
}

func (s *Service) Account(ctx context.Context, uid int) (*models.User, error) {
	return s.store.FindByUID(ctx, uid)
}

func (s *Service) AccountByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.store.FindByEmail(ctx, strings.TrimSpace(email))
}
