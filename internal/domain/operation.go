package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubjectKind раздел журнала операций (валюта + тип получателя).
type SubjectKind string

const (
	KindContentTabCoin          SubjectKind = "content_tabcoin"
	KindUserTabCoin             SubjectKind = "user_tabcoin"
	KindUserTabCash             SubjectKind = "user_tabcash"
	KindSponsoredContentTabCoin SubjectKind = "sponsored_content_tabcoin"
	KindSponsoredContentTabCash SubjectKind = "sponsored_content_tabcash"
)

// Valid проверяет, что раздел известен журналу.
func (k SubjectKind) Valid() bool {
	switch k {
	case KindContentTabCoin, KindUserTabCoin, KindUserTabCash,
		KindSponsoredContentTabCoin, KindSponsoredContentTabCash:
		return true
	}
	return false
}

// HasBalanceType только контентные разделы TabCoins размечают строки initial/credit/debit.
func (k SubjectKind) HasBalanceType() bool {
	return k == KindContentTabCoin || k == KindSponsoredContentTabCoin
}

type BalanceType string

const (
	BalanceInitial BalanceType = "initial"
	BalanceCredit  BalanceType = "credit"
	BalanceDebit   BalanceType = "debit"
)

// OriginatorKind кто породил операцию. Для транзакций движка это всегда событие.
type OriginatorKind string

const (
	OriginatorEvent OriginatorKind = "event"
	OriginatorUser  OriginatorKind = "user"
)

// Operation неизменяемая запись журнала. Исправление = новая строка с обратным знаком.
type Operation struct {
	ID             uuid.UUID      `json:"id"`
	Sequence       int64          `json:"sequence"` // монотонный внутри раздела
	Kind           SubjectKind    `json:"kind"`
	RecipientID    uuid.UUID      `json:"recipient_id"`
	Amount         int64          `json:"amount"`
	BalanceType    BalanceType    `json:"balance_type,omitempty"`
	OriginatorKind OriginatorKind `json:"originator_type"`
	OriginatorID   uuid.UUID      `json:"originator_id"`
	CreatedAt      time.Time      `json:"created_at"`
}

type OperationInput struct {
	Kind           SubjectKind
	RecipientID    uuid.UUID
	Amount         int64
	BalanceType    BalanceType // пусто для разделов без разметки
	OriginatorKind OriginatorKind
	OriginatorID   uuid.UUID
}

// BalanceSplit разложение баланса контента. Debit хранится со знаком (<= 0).
type BalanceSplit struct {
	Total  int64 `json:"total"`
	Credit int64 `json:"credit"`
	Debit  int64 `json:"debit"`
}

// Direction направление оценки контента.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Sign возвращает +1 для credit и -1 для debit.
func (d Direction) Sign() int64 {
	if d == DirectionDebit {
		return -1
	}
	return 1
}

func (d Direction) BalanceType() BalanceType {
	if d == DirectionDebit {
		return BalanceDebit
	}
	return BalanceCredit
}

// Экономика оценки контента.
const (
	RatingCost   int64 = 2 // TabCoins, списываются с оценивающего
	RatingReward int64 = 1 // TabCash, начисляются оценивающему
	RatingEffect int64 = 1 // TabCoins, ±1 контенту и его владельцу
)
