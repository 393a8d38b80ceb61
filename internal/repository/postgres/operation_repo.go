package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
)

// operationTables раздел журнала и его таблица. Имена таблиц не приходят извне,
// поэтому подстановка через Sprintf безопасна.
var operationTables = map[domain.SubjectKind]string{
	domain.KindContentTabCoin:          "content_tabcoin_operations",
	domain.KindUserTabCoin:             "user_tabcoin_operations",
	domain.KindUserTabCash:             "user_tabcash_operations",
	domain.KindSponsoredContentTabCoin: "sponsored_content_tabcoin_operations",
	domain.KindSponsoredContentTabCash: "sponsored_content_tabcash_operations",
}

func tableFor(kind domain.SubjectKind) (string, error) {
	t, ok := operationTables[kind]
	if !ok {
		return "", &domain.ValidationError{
			Key:     "kind",
			Message: fmt.Sprintf("Unknown operation kind %q.", kind),
			Action:  "Use one of the supported ledger partitions.",
		}
	}
	return t, nil
}

// OperationRepo append-only журнал операций. Строки никогда не обновляются и не удаляются.
type OperationRepo struct {
	q Querier
}

func NewOperationRepo(q Querier) *OperationRepo {
	return &OperationRepo{q: q}
}

// Append дописывает одну строку и возвращает ее вместе с id, sequence и created_at.
func (r *OperationRepo) Append(ctx context.Context, in domain.OperationInput) (*domain.Operation, error) {
	table, err := tableFor(in.Kind)
	if err != nil {
		return nil, err
	}
	if in.Kind.HasBalanceType() && in.BalanceType == "" {
		return nil, &domain.ValidationError{Key: "balance_type", Message: "Balance type is required for this partition."}
	}
	if !in.Kind.HasBalanceType() && in.BalanceType != "" {
		return nil, &domain.ValidationError{Key: "balance_type", Message: "This partition does not track balance types."}
	}
	if in.OriginatorKind == "" {
		in.OriginatorKind = domain.OriginatorEvent
	}

	op := &domain.Operation{
		Kind:           in.Kind,
		RecipientID:    in.RecipientID,
		Amount:         in.Amount,
		BalanceType:    in.BalanceType,
		OriginatorKind: in.OriginatorKind,
		OriginatorID:   in.OriginatorID,
	}

	var row *sql.Row
	if in.Kind.HasBalanceType() {
		query := fmt.Sprintf(`
			INSERT INTO %s (recipient_id, balance_type, amount, originator_type, originator_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, sequence, created_at`, table)
		row = r.q.QueryRowContext(ctx, query,
			in.RecipientID, string(in.BalanceType), in.Amount, string(in.OriginatorKind), in.OriginatorID)
	} else {
		query := fmt.Sprintf(`
			INSERT INTO %s (recipient_id, amount, originator_type, originator_id)
			VALUES ($1, $2, $3, $4)
			RETURNING id, sequence, created_at`, table)
		row = r.q.QueryRowContext(ctx, query,
			in.RecipientID, in.Amount, string(in.OriginatorKind), in.OriginatorID)
	}

	if err := row.Scan(&op.ID, &op.Sequence, &op.CreatedAt); err != nil {
		return nil, wrap("append "+table, err)
	}
	return op, nil
}

// CurrentBalance сумма всех строк получателя. Для неизвестного получателя 0.
func (r *OperationRepo) CurrentBalance(ctx context.Context, kind domain.SubjectKind, recipientID uuid.UUID) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT COALESCE(SUM(amount), 0) FROM %s WHERE recipient_id = $1`, table)

	var balance int64
	if err := r.q.QueryRowContext(ctx, query, recipientID).Scan(&balance); err != nil {
		return 0, wrap("balance "+table, err)
	}
	return balance, nil
}

// CreditDebitSplit раскладывает баланс контента на credit и debit (debit со знаком).
func (r *OperationRepo) CreditDebitSplit(ctx context.Context, kind domain.SubjectKind, recipientID uuid.UUID) (domain.BalanceSplit, error) {
	var split domain.BalanceSplit
	table, err := tableFor(kind)
	if err != nil {
		return split, err
	}
	if !kind.HasBalanceType() {
		return split, &domain.ValidationError{
			Key:     "kind",
			Message: fmt.Sprintf("Partition %q has no credit/debit breakdown.", kind),
		}
	}

	query := fmt.Sprintf(`
		SELECT
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(amount) FILTER (WHERE balance_type = 'credit'), 0),
			COALESCE(SUM(amount) FILTER (WHERE balance_type = 'debit'), 0)
		FROM %s WHERE recipient_id = $1`, table)

	if err := r.q.QueryRowContext(ctx, query, recipientID).Scan(&split.Total, &split.Credit, &split.Debit); err != nil {
		return split, wrap("split "+table, err)
	}
	return split, nil
}

func (r *OperationRepo) selectColumns(kind domain.SubjectKind) string {
	if kind.HasBalanceType() {
		return "id, sequence, recipient_id, balance_type, amount, originator_type, originator_id, created_at"
	}
	return "id, sequence, recipient_id, '' AS balance_type, amount, originator_type, originator_id, created_at"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(s rowScanner, kind domain.SubjectKind) (*domain.Operation, error) {
	op := &domain.Operation{Kind: kind}
	var balanceType, originator string
	if err := s.Scan(&op.ID, &op.Sequence, &op.RecipientID, &balanceType, &op.Amount,
		&originator, &op.OriginatorID, &op.CreatedAt); err != nil {
		return nil, err
	}
	op.BalanceType = domain.BalanceType(balanceType)
	op.OriginatorKind = domain.OriginatorKind(originator)
	return op, nil
}

func (r *OperationRepo) Get(ctx context.Context, kind domain.SubjectKind, id uuid.UUID) (*domain.Operation, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, r.selectColumns(kind), table)

	op, err := scanOperation(r.q.QueryRowContext(ctx, query, id), kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "operation", ID: id.String()}
		}
		return nil, wrap("get "+table, err)
	}
	return op, nil
}

// History строки получателя в порядке sequence, для аудита и пересчета.
func (r *OperationRepo) History(ctx context.Context, kind domain.SubjectKind, recipientID uuid.UUID, limit int) ([]domain.Operation, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE recipient_id = $1 ORDER BY sequence LIMIT $2`,
		r.selectColumns(kind), table)

	rows, err := r.q.QueryContext(ctx, query, recipientID, limit)
	if err != nil {
		return nil, wrap("history "+table, err)
	}
	defer rows.Close()

	var ops []domain.Operation
	for rows.Next() {
		op, err := scanOperation(rows, kind)
		if err != nil {
			return nil, wrap("scan "+table, err)
		}
		ops = append(ops, *op)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("history "+table, err)
	}
	return ops, nil
}

// Undo дописывает компенсирующую строку: -amount, тот же balance_type, автор: событие отмены.
// Повторный вызов добавит еще одну строку.
func (r *OperationRepo) Undo(ctx context.Context, kind domain.SubjectKind, opID, reversingEventID uuid.UUID) (*domain.Operation, error) {
	orig, err := r.Get(ctx, kind, opID)
	if err != nil {
		return nil, err
	}
	return r.Append(ctx, domain.OperationInput{
		Kind:           kind,
		RecipientID:    orig.RecipientID,
		Amount:         -orig.Amount,
		BalanceType:    orig.BalanceType,
		OriginatorKind: domain.OriginatorEvent,
		OriginatorID:   reversingEventID,
	})
}
