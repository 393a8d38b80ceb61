package domain

import (
	"time"

	"github.com/google/uuid"
)

// Возможности пользователя (features), проверяются внешним слоем авторизации.
const (
	FeatureReadActivationToken  = "read:activation_token"
	FeatureCreateSession        = "create:session"
	FeatureReadSession          = "read:session"
	FeatureUpdateUser           = "update:user"
	FeatureCreateContent        = "create:content"
	FeatureUpdateContentTabCoin = "update:content:tabcoins"
	FeatureCreateSponsored      = "create:sponsored_content"
	FeatureUndoOperation        = "undo:operation"
	FeatureReviewFirewall       = "review:firewall"
)

// DefaultUserFeatures выдаются только что зарегистрированному (не активированному) пользователю.
var DefaultUserFeatures = []string{FeatureReadActivationToken}

// FirewallStrippedFeatures снимаются со всех пользователей, созданных с IP-нарушителя.
var FirewallStrippedFeatures = []string{
	FeatureReadActivationToken,
	FeatureCreateSession,
	FeatureReadSession,
	FeatureUpdateUser,
}

type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"-"`
	Features  []string  `json:"features"`
	CreatedAt time.Time `json:"created_at"`
}

type UserInput struct {
	Username string
	Email    string
}

// AffectedUser пользователь, у которого файрвол или модерация изменили набор features.
type AffectedUser struct {
	ID               uuid.UUID `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"-"`
	PreviousFeatures []string  `json:"previous_features"`
	Features         []string  `json:"features"`
}

// Actor аутентифицированный (или анонимный) участник запроса.
type Actor struct {
	ID       uuid.UUID
	Features map[string]bool
}

func (a Actor) IsAnonymous() bool { return a.ID == uuid.Nil }

func (a Actor) Has(feature string) bool { return a.Features[feature] }
