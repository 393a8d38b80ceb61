package firewall

import (
	"context"

	"github.com/google/uuid"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/notify"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/repository/postgres"
)

// Phase — этап жизни блокировки, от него зависит вид уведомления.
type Phase int

const (
	PhaseBlock Phase = iota
	PhaseUnblock
	PhaseConfirm
)

// SideEffect — компенсирующее действие правила. Каждая реализация переводит строки
// одним statement и возвращает их вместе с метаданными для события аудита.
type SideEffect interface {
	BlockEventType() domain.EventType
	UnblockEventType() domain.EventType
	ConfirmEventType() domain.EventType

	Apply(ctx context.Context, s *postgres.Store, ids []uuid.UUID) (domain.BlockResult, map[string]any, error)
	Restore(ctx context.Context, s *postgres.Store, block *domain.Event) (domain.BlockResult, map[string]any, error)
	Confirm(ctx context.Context, s *postgres.Store, block *domain.Event) (domain.BlockResult, map[string]any, error)

	// Notifications — по одному сообщению на затронутую строку, кроме строк skip.
	Notifications(res *domain.BlockResult, phase Phase, skip uuid.UUID) []notify.Notification
}

const (
	metaContents        = "contents"
	metaUsers           = "users"
	metaRemovedFeatures = "removed_features"
)

// contentSideEffect — общая часть двух вариантов для контента. Уровень (root/child)
// задается при сборке, а не определяется по полям строки.
type contentSideEffect struct {
	root    bool
	block   domain.EventType
	unblock domain.EventType
	confirm domain.EventType
}

// RootContentSideEffect отправляет в карантин публикации.
type RootContentSideEffect struct{ contentSideEffect }

// ChildContentSideEffect отправляет в карантин комментарии.
type ChildContentSideEffect struct{ contentSideEffect }

func NewRootContentSideEffect() *RootContentSideEffect {
	return &RootContentSideEffect{contentSideEffect{
		root:    true,
		block:   domain.EventFirewallBlockContentsTextRoot,
		unblock: domain.EventFirewallUnblockContentsTextRoot,
		confirm: domain.EventModerationBlockContentsTextRoot,
	}}
}

func NewChildContentSideEffect() *ChildContentSideEffect {
	return &ChildContentSideEffect{contentSideEffect{
		root:    false,
		block:   domain.EventFirewallBlockContentsTextChild,
		unblock: domain.EventFirewallUnblockContentsTextChild,
		confirm: domain.EventModerationBlockContentsTextChild,
	}}
}

func (c contentSideEffect) BlockEventType() domain.EventType   { return c.block }
func (c contentSideEffect) UnblockEventType() domain.EventType { return c.unblock }
func (c contentSideEffect) ConfirmEventType() domain.EventType { return c.confirm }

func contentResult(affected []domain.AffectedContent) (domain.BlockResult, map[string]any) {
	ids := make([]string, len(affected))
	for i, a := range affected {
		ids[i] = a.ID.String()
	}
	return domain.BlockResult{Contents: affected}, map[string]any{metaContents: ids}
}

func (c contentSideEffect) Apply(ctx context.Context, s *postgres.Store, ids []uuid.UUID) (domain.BlockResult, map[string]any, error) {
	affected, err := s.Contents.Quarantine(ctx, ids, c.root)
	if err != nil {
		return domain.BlockResult{}, nil, err
	}
	res, meta := contentResult(affected)
	return res, meta, nil
}

func (c contentSideEffect) Restore(ctx context.Context, s *postgres.Store, block *domain.Event) (domain.BlockResult, map[string]any, error) {
	affected, err := s.Contents.Restore(ctx, block.MetadataIDs(metaContents), c.root)
	if err != nil {
		return domain.BlockResult{}, nil, err
	}
	res, meta := contentResult(affected)
	return res, meta, nil
}

func (c contentSideEffect) Confirm(ctx context.Context, s *postgres.Store, block *domain.Event) (domain.BlockResult, map[string]any, error) {
	affected, err := s.Contents.Delete(ctx, block.MetadataIDs(metaContents), c.root)
	if err != nil {
		return domain.BlockResult{}, nil, err
	}
	res, meta := contentResult(affected)
	return res, meta, nil
}

func (c contentSideEffect) Notifications(res *domain.BlockResult, phase Phase, skip uuid.UUID) []notify.Notification {
	kind := notify.KindContentQuarantined
	switch phase {
	case PhaseUnblock:
		kind = notify.KindContentRestored
	case PhaseConfirm:
		kind = notify.KindContentRemoved
	}

	var out []notify.Notification
	for _, a := range res.Contents {
		if skip != uuid.Nil && a.OwnerID == skip {
			continue
		}
		payload := map[string]any{
			"content_id":      a.ID.String(),
			"title":           a.Title,
			"slug":            a.Slug,
			"previous_status": string(a.PreviousStatus),
			"status":          string(a.Status),
			"tabcoins":        a.TabCoins,
		}
		if a.ParentID.Valid {
			payload["parent_id"] = a.ParentID.UUID.String()
		}
		out = append(out, notify.Notification{
			Kind:        kind,
			EventID:     res.Event.ID,
			SubjectID:   a.ID,
			RecipientID: a.OwnerID,
			Username:    a.OwnerUsername,
			Email:       a.OwnerEmail,
			Payload:     payload,
		})
	}
	return out
}

// UserSideEffect снимает с новых аккаунтов features, без которых аккаунт не активировать
// и не войти.
type UserSideEffect struct {
	stripped []string
}

func NewUserSideEffect() *UserSideEffect {
	return &UserSideEffect{stripped: domain.FirewallStrippedFeatures}
}

func (u *UserSideEffect) BlockEventType() domain.EventType { return domain.EventFirewallBlockUsers }
func (u *UserSideEffect) UnblockEventType() domain.EventType {
	return domain.EventFirewallUnblockUsers
}
func (u *UserSideEffect) ConfirmEventType() domain.EventType {
	return domain.EventModerationBlockUsers
}

func userIDs(affected []domain.AffectedUser) []string {
	ids := make([]string, len(affected))
	for i, a := range affected {
		ids[i] = a.ID.String()
	}
	return ids
}

func (u *UserSideEffect) Apply(ctx context.Context, s *postgres.Store, ids []uuid.UUID) (domain.BlockResult, map[string]any, error) {
	affected, err := s.Users.StripFeatures(ctx, ids, u.stripped)
	if err != nil {
		return domain.BlockResult{}, nil, err
	}

	// Запоминаем, что именно снято, чтобы ревью могло вернуть ровно это
	removed := make(map[string][]string, len(affected))
	for _, a := range affected {
		removed[a.ID.String()] = intersect(a.PreviousFeatures, u.stripped)
	}
	return domain.BlockResult{Users: affected}, map[string]any{
		metaUsers:           userIDs(affected),
		metaRemovedFeatures: removed,
	}, nil
}

func (u *UserSideEffect) Restore(ctx context.Context, s *postgres.Store, block *domain.Event) (domain.BlockResult, map[string]any, error) {
	removed := removedFeatures(block)

	var affected []domain.AffectedUser
	for _, id := range block.MetadataIDs(metaUsers) {
		features := removed[id.String()]
		if len(features) == 0 {
			continue
		}
		a, err := s.Users.GrantFeatures(ctx, id, features)
		if err != nil {
			return domain.BlockResult{}, nil, err
		}
		affected = append(affected, *a)
	}
	return domain.BlockResult{Users: affected}, map[string]any{metaUsers: userIDs(affected)}, nil
}

// Confirm ничего не меняет в строках: features уже сняты, событие фиксирует решение модератора.
func (u *UserSideEffect) Confirm(ctx context.Context, s *postgres.Store, block *domain.Event) (domain.BlockResult, map[string]any, error) {
	var affected []domain.AffectedUser
	for _, id := range block.MetadataIDs(metaUsers) {
		user, err := s.Users.Get(ctx, id)
		if err != nil {
			return domain.BlockResult{}, nil, err
		}
		affected = append(affected, domain.AffectedUser{
			ID:               user.ID,
			Username:         user.Username,
			Email:            user.Email,
			PreviousFeatures: user.Features,
			Features:         user.Features,
		})
	}
	return domain.BlockResult{Users: affected}, map[string]any{metaUsers: userIDs(affected)}, nil
}

func (u *UserSideEffect) Notifications(res *domain.BlockResult, phase Phase, skip uuid.UUID) []notify.Notification {
	kind := notify.KindUserDisabled
	switch phase {
	case PhaseUnblock:
		kind = notify.KindUserRestored
	case PhaseConfirm:
		kind = notify.KindUserBlocked
	}

	var out []notify.Notification
	for _, a := range res.Users {
		if skip != uuid.Nil && a.ID == skip {
			continue
		}
		out = append(out, notify.Notification{
			Kind:        kind,
			EventID:     res.Event.ID,
			SubjectID:   a.ID,
			RecipientID: a.ID,
			Username:    a.Username,
			Email:       a.Email,
			Payload:     map[string]any{"features": a.Features},
		})
	}
	return out
}

func intersect(have, want []string) []string {
	set := make(map[string]bool, len(want))
	for _, f := range want {
		set[f] = true
	}
	out := []string{}
	for _, f := range have {
		if set[f] {
			out = append(out, f)
		}
	}
	return out
}

// removedFeatures читает removed_features из события блокировки. После JSON это
// map[string]any со списками []any.
func removedFeatures(block *domain.Event) map[string][]string {
	out := map[string][]string{}
	switch v := block.Metadata[metaRemovedFeatures].(type) {
	case map[string][]string:
		return v
	case map[string]any:
		for id, raw := range v {
			list, ok := raw.([]any)
			if !ok {
				continue
			}
			for _, f := range list {
				if s, ok := f.(string); ok {
					out[id] = append(out[id], s)
				}
			}
		}
	}
	return out
}
