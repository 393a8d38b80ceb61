package firewall

import (
	"time"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
)

// Rule — правило скользящего окна: тип отслеживаемого события, окно, порог и
// компенсирующее действие.
type Rule struct {
	ID         domain.RuleID
	EventType  domain.EventType
	Window     time.Duration
	Threshold  int
	SideEffect SideEffect
}

// Exceeded — проверяемая попытка считается еще одним совпадением.
// При recorded == threshold-1 попытка проходит, при recorded == threshold уже нет.
func (r Rule) Exceeded(recorded int) bool {
	return recorded+1 > r.Threshold
}

// Registry — явный набор правил, собирается один раз при старте.
type Registry struct {
	rules   map[domain.RuleID]Rule
	byBlock map[domain.EventType]SideEffect
}

func NewRegistry(cfg infra.FirewallConfig) *Registry {
	return NewRegistryFromRules(
		Rule{
			ID:         domain.RuleCreateUser,
			EventType:  domain.EventCreateUser,
			Window:     cfg.CreateUser.Window,
			Threshold:  cfg.CreateUser.Threshold,
			SideEffect: NewUserSideEffect(),
		},
		Rule{
			ID:         domain.RuleCreateContentTextRoot,
			EventType:  domain.EventCreateContentTextRoot,
			Window:     cfg.CreateContentTextRoot.Window,
			Threshold:  cfg.CreateContentTextRoot.Threshold,
			SideEffect: NewRootContentSideEffect(),
		},
		Rule{
			ID:         domain.RuleCreateContentTextChild,
			EventType:  domain.EventCreateContentTextChild,
			Window:     cfg.CreateContentTextChild.Window,
			Threshold:  cfg.CreateContentTextChild.Threshold,
			SideEffect: NewChildContentSideEffect(),
		},
	)
}

func NewRegistryFromRules(rules ...Rule) *Registry {
	r := &Registry{
		rules:   make(map[domain.RuleID]Rule, len(rules)),
		byBlock: make(map[domain.EventType]SideEffect, len(rules)),
	}
	for _, rule := range rules {
		r.rules[rule.ID] = rule
		r.byBlock[rule.SideEffect.BlockEventType()] = rule.SideEffect
	}
	return r
}

func (r *Registry) Rule(id domain.RuleID) (Rule, bool) {
	rule, ok := r.rules[id]
	return rule, ok
}

// SideEffectFor находит вариант обработчика по типу события блокировки.
func (r *Registry) SideEffectFor(blockType domain.EventType) (SideEffect, bool) {
	se, ok := r.byBlock[blockType]
	return se, ok
}
