package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
)

func TestBuildEventFilter(t *testing.T) {
	where, args := buildEventFilter(domain.EventQuery{
		Type:         domain.EventCreateUser,
		OriginatorIP: "10.0.0.1",
		Window:       30 * time.Minute,
		Metadata:     map[string]string{"content_id": "c1", "action": "x"},
	})

	assert.Equal(t,
		" WHERE type = $1 AND originator_ip = $2::inet AND created_at > now() - make_interval(secs => $3)"+
			" AND metadata->>$4 = $5 AND metadata->>$6 = $7",
		where)
	assert.Equal(t, []any{"create:user", "10.0.0.1", float64(1800), "action", "x", "content_id", "c1"}, args)

	where, args = buildEventFilter(domain.EventQuery{})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestEventRepo_Record(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventRepo(db)

	userID, eventID := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO events").
		WithArgs("update:content:tabcoins", userID.String(), "10.0.0.1", `{"content_id":"abc"}`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(eventID.String(), now))

	ev, err := repo.Record(context.Background(), domain.EventInput{
		Type:     domain.EventUpdateContentTabCoins,
		Origin:   domain.UserOrigin(userID, "10.0.0.1"),
		Metadata: map[string]any{"content_id": "abc"},
	})
	require.NoError(t, err)
	assert.Equal(t, eventID, ev.ID)
	assert.Equal(t, "abc", ev.MetadataString("content_id"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_RecordAnonymous(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventRepo(db)

	mock.ExpectQuery("INSERT INTO events").
		WithArgs("create:user", nil, "10.0.0.9", `{}`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.NewString(), time.Now()))

	_, err := repo.Record(context.Background(), domain.EventInput{
		Type:   domain.EventCreateUser,
		Origin: domain.Origin{IP: "10.0.0.9"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_Count(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventRepo(db)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM events WHERE type = \\$1 AND originator_ip = \\$2::inet").
		WithArgs("create:user", "10.0.0.1", float64(60)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.Count(context.Background(), domain.EventQuery{
		Type: domain.EventCreateUser, OriginatorIP: "10.0.0.1", Window: time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_ListDecodesMetadata(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventRepo(db)

	id1, id2 := uuid.New(), uuid.New()
	mock.ExpectQuery("FROM events WHERE type = \\$1 .* ORDER BY created_at").
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "originator_user_id", "host", "metadata", "created_at"}).
			AddRow(id1.String(), "create:user", nil, "10.0.0.1", []byte(`{"id":"`+id2.String()+`"}`), time.Now()).
			AddRow(id2.String(), "create:user", nil, "10.0.0.1", []byte(`{}`), time.Now()))

	events, err := repo.List(context.Background(), domain.EventQuery{Type: domain.EventCreateUser, OriginatorIP: "10.0.0.1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.False(t, events[0].OriginatorUserID.Valid)
	assert.Equal(t, id2.String(), events[0].MetadataString("id"))
	assert.Empty(t, events[1].MetadataString("id"))
}

func TestEventRepo_ListNewestPage(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventRepo(db)

	mock.ExpectQuery(`FROM events WHERE type = \$1 ORDER BY created_at DESC LIMIT \$2$`).
		WithArgs("firewall:block_users", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "originator_user_id", "host", "metadata", "created_at"}))

	events, err := repo.List(context.Background(), domain.EventQuery{
		Type:        domain.EventFirewallBlockUsers,
		Limit:       50,
		NewestFirst: true,
	})
	require.NoError(t, err)
	assert.Empty(t, events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_BackfillMetadata(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventRepo(db)
	eventID := uuid.New()

	mock.ExpectExec("UPDATE events SET metadata = metadata \\|\\| jsonb_build_object").
		WithArgs(eventID.String(), "id", "new-id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.BackfillMetadata(context.Background(), eventID, "id", "new-id"))

	mock.ExpectExec("UPDATE events SET metadata").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.BackfillMetadata(context.Background(), eventID, "id", "new-id")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.NoError(t, mock.ExpectationsWereMet())
}
