package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/policy"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/repository/postgres"
)

type SponsorInput struct {
	Title     string
	Body      string
	Slug      string
	SourceURL string
	TabCash   int64         // 0 = стоимость по умолчанию
	Duration  time.Duration // 0 = длительность по умолчанию
}

type SponsorResult struct {
	Event        *domain.Event            `json:"event"`
	Content      *domain.Content          `json:"content"`
	Sponsored    *domain.SponsoredContent `json:"sponsored_content"`
	OwnerTabCash int64                    `json:"owner_tabcash"`
}

func (e *Engine) normalizeSponsor(in SponsorInput) (SponsorInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	if in.Title == "" {
		return in, &domain.ValidationError{Key: "title", Message: "Sponsored content needs a title."}
	}
	if in.Body == "" {
		return in, &domain.ValidationError{Key: "body", Message: "Sponsored content needs a body."}
	}
	if in.Slug == "" {
		in.Slug = slugify(in.Title)
	}
	if in.TabCash == 0 {
		in.TabCash = e.cfg.Sponsorship.Cost
	}
	if in.TabCash < e.cfg.Sponsorship.Cost {
		return in, &domain.ValidationError{
			Key:     "tabcash",
			Message: "The offered TabCash is below the sponsorship cost.",
			Action:  "Offer at least the minimum sponsorship cost.",
		}
	}
	if in.Duration <= 0 {
		in.Duration = e.cfg.Sponsorship.DefaultDuration
	}
	return in, nil
}

// Sponsor публикует рекламный контент за TabCash. Лимиты активных спонсорских публикаций
// проверяются до вставки внутри той же SERIALIZABLE транзакции, поэтому параллельные
// запросы не могут вместе превысить лимит.
func (e *Engine) Sponsor(ctx context.Context, actor domain.Actor, origin domain.Origin, in SponsorInput) (res *SponsorResult, err error) {
	ctx, end := e.startSpan(ctx, "sponsor", attribute.String("owner_id", actor.ID.String()))
	defer func() {
		e.metrics.Sponsorships.WithLabelValues(outcome(err)).Inc()
		end(err)
	}()

	if err := policy.Require(e.authz, actor, domain.FeatureCreateSponsored, nil); err != nil {
		return nil, err
	}
	in, err = e.normalizeSponsor(in)
	if err != nil {
		return nil, err
	}

	err = e.serializable(ctx, "sponsor", func(s *postgres.Store) error {
		global, err := s.Sponsored.CountActive(ctx, uuid.NullUUID{})
		if err != nil {
			return err
		}
		if global+1 > e.cfg.Sponsorship.MaxActiveGlobal {
			return &domain.CapacityError{Scope: "global", Limit: e.cfg.Sponsorship.MaxActiveGlobal}
		}
		own, err := s.Sponsored.CountActive(ctx, uuid.NullUUID{UUID: actor.ID, Valid: true})
		if err != nil {
			return err
		}
		if own+1 > e.cfg.Sponsorship.MaxActivePerOwner {
			return &domain.CapacityError{Scope: "owner", Limit: e.cfg.Sponsorship.MaxActivePerOwner}
		}

		available, err := s.Operations.CurrentBalance(ctx, domain.KindUserTabCash, actor.ID)
		if err != nil {
			return err
		}
		if available < in.TabCash {
			return &domain.InsufficientBalanceError{
				Kind:      domain.KindUserTabCash,
				Required:  in.TabCash,
				Available: available,
			}
		}

		ev, err := s.Events.Record(ctx, domain.EventInput{
			Type:     domain.EventCreateSponsoredContent,
			Origin:   origin,
			Metadata: map[string]any{"tabcash": in.TabCash},
		})
		if err != nil {
			return err
		}

		content, err := s.Contents.Create(ctx, domain.ContentInput{
			OwnerID:   actor.ID,
			Slug:      in.Slug,
			Title:     in.Title,
			Body:      in.Body,
			SourceURL: in.SourceURL,
			Status:    domain.ContentPublished,
			Type:      domain.ContentTypeAd,
		})
		if err != nil {
			return err
		}

		deactivateAt := e.now().Add(in.Duration)
		sponsored, err := s.Sponsored.Create(ctx, content.ID, actor.ID, in.TabCash, &deactivateAt)
		if err != nil {
			return err
		}
		if err := s.Events.BackfillMetadata(ctx, ev.ID, "id", sponsored.ID.String()); err != nil {
			return err
		}
		ev.Metadata["id"] = sponsored.ID.String()

		for _, op := range []domain.OperationInput{
			{Kind: domain.KindUserTabCash, RecipientID: actor.ID, Amount: -in.TabCash},
			{Kind: domain.KindSponsoredContentTabCash, RecipientID: sponsored.ID, Amount: in.TabCash},
		} {
			op.OriginatorKind = domain.OriginatorEvent
			op.OriginatorID = ev.ID
			if _, err := s.Operations.Append(ctx, op); err != nil {
				return err
			}
		}

		remaining, err := s.Operations.CurrentBalance(ctx, domain.KindUserTabCash, actor.ID)
		if err != nil {
			return err
		}
		res = &SponsorResult{Event: ev, Content: content, Sponsored: sponsored, OwnerTabCash: remaining}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("sponsored content created",
		zap.String("sponsored_id", res.Sponsored.ID.String()),
		zap.String("owner_id", actor.ID.String()),
		zap.Int64("tabcash", in.TabCash))
	return res, nil
}

// slugify минимальный slug из заголовка: латиница, цифры и дефисы.
func slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = uuid.NewString()[:8]
	}
	return slug
}
