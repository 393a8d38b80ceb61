package engine

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
)

var operationColumns = []string{
	"id", "sequence", "recipient_id", "balance_type", "amount", "originator_type", "originator_id", "created_at",
}

func expectUndo(mock sqlmock.Sqlmock, opID, userID uuid.UUID, amount int64) {
	mock.ExpectBegin()
	undoEvent := expectEvent(mock, "undo:operation")
	mock.ExpectQuery("FROM user_tabcoin_operations WHERE id = \\$1").
		WithArgs(opID.String()).
		WillReturnRows(sqlmock.NewRows(operationColumns).
			AddRow(opID.String(), int64(1), userID.String(), "", amount, "event", uuid.NewString(), time.Now()))
	expectAppend(mock, "user_tabcoin_operations", userID.String(), -amount, "event", undoEvent.String())
	mock.ExpectCommit()
}

func TestUndo_AppendsReversal(t *testing.T) {
	e, mock := newTestEngine(t)
	actor := actorWith(domain.FeatureUndoOperation)
	opID, userID := uuid.New(), uuid.New()

	expectUndo(mock, opID, userID, -2)

	res, err := e.Undo(context.Background(), actor, domain.UserOrigin(actor.ID, "10.0.0.1"), UndoInput{
		Kind: domain.KindUserTabCoin, OperationID: opID, Reason: "fraud",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Operation.Amount)
	assert.Equal(t, res.Event.ID, res.Operation.OriginatorID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUndo_TwiceAppendsTwice(t *testing.T) {
	e, mock := newTestEngine(t)
	actor := actorWith(domain.FeatureUndoOperation)
	opID, userID := uuid.New(), uuid.New()

	expectUndo(mock, opID, userID, 1)
	expectUndo(mock, opID, userID, 1)

	in := UndoInput{Kind: domain.KindUserTabCoin, OperationID: opID}
	first, err := e.Undo(context.Background(), actor, domain.Origin{}, in)
	require.NoError(t, err)
	second, err := e.Undo(context.Background(), actor, domain.Origin{}, in)
	require.NoError(t, err)

	assert.NotEqual(t, first.Operation.ID, second.Operation.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUndo_UnknownOperationRollsBack(t *testing.T) {
	e, mock := newTestEngine(t)
	actor := actorWith(domain.FeatureUndoOperation)

	mock.ExpectBegin()
	expectEvent(mock, "undo:operation")
	mock.ExpectQuery("FROM user_tabcash_operations WHERE id").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := e.Undo(context.Background(), actor, domain.Origin{}, UndoInput{
		Kind: domain.KindUserTabCash, OperationID: uuid.New(),
	})
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUndo_Validation(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Undo(context.Background(), actorWith(), domain.Origin{}, UndoInput{Kind: domain.KindUserTabCoin})
	var forbidden *domain.ForbiddenError
	require.ErrorAs(t, err, &forbidden)

	_, err = e.Undo(context.Background(), actorWith(domain.FeatureUndoOperation), domain.Origin{}, UndoInput{Kind: "nope", OperationID: uuid.New()})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
}
