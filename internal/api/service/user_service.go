package service

import (
	"context"
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/repository/postgres"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]{3,30}$`)

// UserService регистрация. Доступна анонимно, поэтому защищена только файрволом.
type UserService struct {
	db     *postgres.DB
	guard  FirewallChecker
	logger *zap.Logger
}

func NewUserService(db *postgres.DB, guard FirewallChecker, logger *zap.Logger) *UserService {
	return &UserService{db: db, guard: guard, logger: logger.Named("user-service")}
}

func validateUser(in *domain.UserInput) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if !usernamePattern.MatchString(in.Username) {
		return &domain.ValidationError{
			Key:     "username",
			Message: `"username" must have 3 to 30 letters or digits.`,
		}
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return &domain.ValidationError{Key: "email", Message: `"email" must be a valid address.`}
	}
	return nil
}

func (s *UserService) Create(ctx context.Context, origin domain.Origin, in domain.UserInput) (*domain.User, error) {
	if err := validateUser(&in); err != nil {
		return nil, err
	}
	if err := s.guard.Check(ctx, domain.RuleCreateUser, origin); err != nil {
		return nil, err
	}

	var user *domain.User
	err := s.db.WithStore(ctx, postgres.ReadCommitted, func(st *postgres.Store) error {
		ev, err := st.Events.Record(ctx, domain.EventInput{Type: domain.EventCreateUser, Origin: origin})
		if err != nil {
			return err
		}
		if user, err = st.Users.Create(ctx, in); err != nil {
			return err
		}
		return st.Events.BackfillMetadata(ctx, ev.ID, "id", user.ID.String())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.String("user_id", user.ID.String()), zap.String("ip", origin.IP))
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.db.Store().Users.Get(ctx, id)
}
