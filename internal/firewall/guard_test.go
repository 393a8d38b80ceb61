package firewall

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/notify"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/policy"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/repository/postgres"
)

const testIP = "10.0.0.7"

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

type recordingDispatcher struct {
	mu      sync.Mutex
	batches [][]notify.Notification
}

func (d *recordingDispatcher) Dispatch(batch []notify.Notification) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, batch)
	return true
}

func (d *recordingDispatcher) all() []notify.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notify.Notification
	for _, b := range d.batches {
		out = append(out, b...)
	}
	return out
}

func testFirewallConfig(threshold int) infra.FirewallConfig {
	rule := infra.RuleConfig{Window: time.Minute, Threshold: threshold}
	return infra.FirewallConfig{
		CreateUser:             rule,
		CreateContentTextRoot:  rule,
		CreateContentTextChild: rule,
		SideEffectTimeout:      time.Second,
	}
}

func newTestGuard(t *testing.T, threshold int) (*Guard, sqlmock.Sqlmock, *recordingDispatcher) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(arrayConverter{}))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t)
	disp := &recordingDispatcher{}
	g := NewGuard(postgres.NewDB(db), NewRegistry(testFirewallConfig(threshold)),
		policy.NewFeatureAuthorizer(nil, logger), disp, time.Second, logger, nil)
	return g, mock, disp
}

func expectCount(mock sqlmock.Sqlmock, n int) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(`SELECT count\(\*\) FROM events`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(n))
}

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "type", "originator_user_id", "originator_ip", "metadata", "created_at"})
}

func addEvent(rows *sqlmock.Rows, typ domain.EventType, meta map[string]any) *sqlmock.Rows {
	raw, _ := json.Marshal(meta)
	return rows.AddRow(uuid.NewString(), string(typ), nil, testIP, raw, time.Now())
}

func contentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "username", "email", "parent_id", "title", "slug",
		"prev", "status", "tabcoins"})
}

func expectRecord(mock sqlmock.Sqlmock, typ domain.EventType) uuid.UUID {
	id := uuid.New()
	mock.ExpectQuery("INSERT INTO events").
		WithArgs(string(typ), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(id.String(), time.Now()))
	return id
}

func TestRule_Exceeded(t *testing.T) {
	r := Rule{Threshold: 3}
	assert.False(t, r.Exceeded(0))
	assert.False(t, r.Exceeded(2))
	assert.True(t, r.Exceeded(3))
	assert.True(t, r.Exceeded(10))
}

func TestRegistry_SideEffectFor(t *testing.T) {
	reg := NewRegistry(testFirewallConfig(1))

	se, ok := reg.SideEffectFor(domain.EventFirewallBlockContentsTextRoot)
	require.True(t, ok)
	assert.IsType(t, &RootContentSideEffect{}, se)

	se, ok = reg.SideEffectFor(domain.EventFirewallBlockContentsTextChild)
	require.True(t, ok)
	assert.IsType(t, &ChildContentSideEffect{}, se)

	se, ok = reg.SideEffectFor(domain.EventFirewallBlockUsers)
	require.True(t, ok)
	assert.IsType(t, &UserSideEffect{}, se)

	_, ok = reg.SideEffectFor(domain.EventCreateUser)
	assert.False(t, ok)
}

func TestCheck_BelowThresholdAllows(t *testing.T) {
	g, mock, disp := newTestGuard(t, 2)
	expectCount(mock, 1)

	err := g.Check(context.Background(), domain.RuleCreateContentTextRoot, domain.Origin{IP: testIP})
	require.NoError(t, err)
	assert.Empty(t, disp.all())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheck_EmptyIPSkipsDetection(t *testing.T) {
	g, mock, _ := newTestGuard(t, 1)

	require.NoError(t, g.Check(context.Background(), domain.RuleCreateUser, domain.Origin{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheck_UnknownRule(t *testing.T) {
	g, _, _ := newTestGuard(t, 1)

	err := g.Check(context.Background(), domain.RuleID("delete:everything"), domain.Origin{IP: testIP})
	var unexpected *domain.UnexpectedError
	assert.ErrorAs(t, err, &unexpected)
}

func TestCheck_QuarantinesRootContents(t *testing.T) {
	g, mock, disp := newTestGuard(t, 2)
	c1, c2 := uuid.New(), uuid.New()
	owner := uuid.New()

	expectCount(mock, 2)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, type.*FROM events.*ORDER BY created_at`).
		WillReturnRows(addEvent(addEvent(eventRows(),
			domain.EventCreateContentTextRoot, map[string]any{"id": c1.String()}),
			domain.EventCreateContentTextRoot, map[string]any{"id": c2.String()}))
	mock.ExpectQuery(`WITH targets AS.*UPDATE contents c`).
		WithArgs([]string{c1.String(), c2.String()}, sqlmock.AnyArg(), string(domain.ContentFirewall), true).
		WillReturnRows(contentRows().
			AddRow(c1.String(), owner.String(), "spammer", "s@example.com", nil, "One", "one", "published", "firewall", int64(0)).
			AddRow(c2.String(), owner.String(), "spammer", "s@example.com", nil, "Two", "two", "draft", "firewall", int64(0)))
	blockID := expectRecord(mock, domain.EventFirewallBlockContentsTextRoot)
	mock.ExpectCommit()

	err := g.Check(context.Background(), domain.RuleCreateContentTextRoot, domain.Origin{IP: testIP})

	var limited *domain.RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, domain.RuleCreateContentTextRoot, limited.Rule)
	assert.Equal(t, blockID, limited.BlockEventID)
	assert.Equal(t, 2, limited.Affected)

	sent := disp.all()
	require.Len(t, sent, 2)
	for _, n := range sent {
		assert.Equal(t, notify.KindContentQuarantined, n.Kind)
		assert.Equal(t, blockID, n.EventID)
		assert.Equal(t, owner, n.RecipientID)
	}
	assert.ElementsMatch(t, []uuid.UUID{c1, c2}, []uuid.UUID{sent[0].SubjectID, sent[1].SubjectID})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheck_NothingToQuarantineStillRecordsBlock(t *testing.T) {
	g, mock, disp := newTestGuard(t, 1)

	expectCount(mock, 1)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, type.*FROM events`).WillReturnRows(eventRows())
	expectRecord(mock, domain.EventFirewallBlockContentsTextChild)
	mock.ExpectCommit()

	err := g.Check(context.Background(), domain.RuleCreateContentTextChild, domain.Origin{IP: testIP})

	var limited *domain.RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Zero(t, limited.Affected)
	assert.Empty(t, disp.all())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheck_StripsUserFeatures(t *testing.T) {
	g, mock, disp := newTestGuard(t, 1)
	u1 := uuid.New()

	expectCount(mock, 1)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, type.*FROM events`).
		WillReturnRows(addEvent(eventRows(), domain.EventCreateUser, map[string]any{"id": u1.String()}))
	mock.ExpectQuery(`WITH targets AS.*UPDATE users u`).
		WithArgs([]string{u1.String()}, domain.FirewallStrippedFeatures).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "prev", "curr"}).
			AddRow(u1.String(), "bot", "bot@example.com", "read:activation_token", ""))
	expectRecord(mock, domain.EventFirewallBlockUsers)
	mock.ExpectCommit()

	err := g.Check(context.Background(), domain.RuleCreateUser, domain.Origin{IP: testIP})

	var limited *domain.RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, 1, limited.Affected)

	sent := disp.all()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.KindUserDisabled, sent[0].Kind)
	assert.Equal(t, u1, sent[0].RecipientID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheck_MissingTableFailsOpen(t *testing.T) {
	g, mock, disp := newTestGuard(t, 1)

	mock.ExpectQuery(`SELECT count\(\*\) FROM events`).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "events" does not exist`})

	require.NoError(t, g.Check(context.Background(), domain.RuleCreateUser, domain.Origin{IP: testIP}))
	assert.Empty(t, disp.all())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheck_SideEffectFailureRollsBackWithoutNotifications(t *testing.T) {
	g, mock, disp := newTestGuard(t, 1)
	boom := errors.New("connection reset")

	expectCount(mock, 1)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, type.*FROM events`).
		WillReturnRows(addEvent(eventRows(), domain.EventCreateContentTextRoot, map[string]any{"id": uuid.NewString()}))
	mock.ExpectQuery(`WITH targets AS.*UPDATE contents c`).WillReturnError(boom)
	mock.ExpectRollback()

	err := g.Check(context.Background(), domain.RuleCreateContentTextRoot, domain.Origin{IP: testIP})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var limited *domain.RateLimitedError
	assert.False(t, errors.As(err, &limited))
	assert.Empty(t, disp.all())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectIDs_DedupesAndSkipsInvalid(t *testing.T) {
	id := uuid.New()
	events := []domain.Event{
		{Metadata: map[string]any{"id": id.String()}},
		{Metadata: map[string]any{"id": id.String()}},
		{Metadata: map[string]any{"id": "not-a-uuid"}},
		{},
	}
	assert.Equal(t, []uuid.UUID{id}, subjectIDs(events))
}
