package service

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/policy"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/repository/postgres"
)

type arrayConverter struct{}

func (arrayConverter) ConvertValue(v any) (driver.Value, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		return valuer.Value()
	}
	if _, ok := v.([]string); ok {
		return v, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

type fakeGuard struct {
	err   error
	rules []domain.RuleID
}

func (g *fakeGuard) Check(ctx context.Context, ruleID domain.RuleID, origin domain.Origin) error {
	g.rules = append(g.rules, ruleID)
	return g.err
}

func newDB(t *testing.T) (*postgres.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(arrayConverter{}))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return postgres.NewDB(db), mock
}

func author() domain.Actor {
	return domain.Actor{ID: uuid.New(), Features: map[string]bool{domain.FeatureCreateContent: true}}
}

func expectEventInsert(mock sqlmock.Sqlmock, typ domain.EventType) uuid.UUID {
	id := uuid.New()
	mock.ExpectQuery("INSERT INTO events").
		WithArgs(string(typ), sqlmock.AnyArg(), sqlmock.AnyArg(), "{}").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(id.String(), time.Now()))
	return id
}

func TestContentService_CreateRoot(t *testing.T) {
	db, mock := newDB(t)
	guard := &fakeGuard{}
	logger := zaptest.NewLogger(t)
	svc := NewContentService(db, guard, policy.NewFeatureAuthorizer(nil, logger), logger)
	contentID := uuid.New()

	mock.ExpectBegin()
	evID := expectEventInsert(mock, domain.EventCreateContentTextRoot)
	mock.ExpectQuery("INSERT INTO contents").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "published_at"}).
			AddRow(contentID.String(), time.Now(), time.Now()))
	mock.ExpectExec("UPDATE events SET metadata").
		WithArgs(evID.String(), "id", contentID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := svc.Create(context.Background(), author(), domain.Origin{IP: "10.0.0.1"},
		CreateContentInput{Title: "Hello", Body: "World"})
	require.NoError(t, err)
	assert.Equal(t, contentID, c.ID)
	assert.Equal(t, []domain.RuleID{domain.RuleCreateContentTextRoot}, guard.rules)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContentService_FirewallDenyWritesNothing(t *testing.T) {
	db, mock := newDB(t)
	limited := &domain.RateLimitedError{Rule: domain.RuleCreateContentTextChild, BlockEventID: uuid.New()}
	guard := &fakeGuard{err: limited}
	logger := zaptest.NewLogger(t)
	svc := NewContentService(db, guard, policy.NewFeatureAuthorizer(nil, logger), logger)

	_, err := svc.Create(context.Background(), author(), domain.Origin{IP: "10.0.0.1"}, CreateContentInput{
		ParentID: uuid.NullUUID{UUID: uuid.New(), Valid: true},
		Body:     "reply",
	})
	assert.ErrorIs(t, err, limited)
	assert.Equal(t, []domain.RuleID{domain.RuleCreateContentTextChild}, guard.rules)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContentService_Validation(t *testing.T) {
	db, _ := newDB(t)
	logger := zaptest.NewLogger(t)
	svc := NewContentService(db, &fakeGuard{}, policy.NewFeatureAuthorizer(nil, logger), logger)

	_, err := svc.Create(context.Background(), author(), domain.Origin{}, CreateContentInput{Body: "no title"})
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "title", validation.Key)

	_, err = svc.Create(context.Background(), domain.Actor{ID: uuid.New()}, domain.Origin{},
		CreateContentInput{Title: "t", Body: "b"})
	var forbidden *domain.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)
}

func TestUserService_Create(t *testing.T) {
	db, mock := newDB(t)
	guard := &fakeGuard{}
	svc := NewUserService(db, guard, zaptest.NewLogger(t))
	userID := uuid.New()

	mock.ExpectBegin()
	evID := expectEventInsert(mock, domain.EventCreateUser)
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("newbie", "newbie@example.com", domain.DefaultUserFeatures).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(userID.String(), time.Now()))
	mock.ExpectExec("UPDATE events SET metadata").
		WithArgs(evID.String(), "id", userID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := svc.Create(context.Background(), domain.Origin{IP: "10.0.0.2"},
		domain.UserInput{Username: "newbie", Email: " Newbie@Example.com "})
	require.NoError(t, err)
	assert.Equal(t, userID, u.ID)
	assert.Equal(t, []domain.RuleID{domain.RuleCreateUser}, guard.rules)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserService_RejectsBadInputBeforeFirewall(t *testing.T) {
	db, _ := newDB(t)
	guard := &fakeGuard{}
	svc := NewUserService(db, guard, zaptest.NewLogger(t))

	_, err := svc.Create(context.Background(), domain.Origin{IP: "10.0.0.2"},
		domain.UserInput{Username: "a b", Email: "x@example.com"})
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "username", validation.Key)
	assert.Empty(t, guard.rules)
}

func moderator() domain.Actor {
	return domain.Actor{ID: uuid.New(), Features: map[string]bool{domain.FeatureReviewFirewall: true}}
}

func TestEventService_ListPagesNewestFirst(t *testing.T) {
	cases := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, DefaultEventLimit},
		{"explicit", 20, 20},
		{"capped", 100000, MaxEventLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newDB(t)
			svc := NewEventService(db, policy.NewFeatureAuthorizer(nil, zaptest.NewLogger(t)))

			mock.ExpectQuery(`FROM events ORDER BY created_at DESC LIMIT \$1`).
				WithArgs(tc.want).
				WillReturnRows(sqlmock.NewRows([]string{"id", "type", "originator_user_id", "host", "metadata", "created_at"}))

			events, err := svc.List(context.Background(), moderator(), domain.EventQuery{Limit: tc.limit})
			require.NoError(t, err)
			assert.Empty(t, events)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEventService_ListRejectsBadIP(t *testing.T) {
	db, mock := newDB(t)
	svc := NewEventService(db, policy.NewFeatureAuthorizer(nil, zaptest.NewLogger(t)))

	_, err := svc.List(context.Background(), moderator(), domain.EventQuery{OriginatorIP: "10.0.0"})
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "ip", validation.Key)
	require.NoError(t, mock.ExpectationsWereMet())
}
