package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/domain"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/policy"
	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/repository/postgres"
)

// FirewallChecker проверка правила перед защищаемым действием.
type FirewallChecker interface {
	Check(ctx context.Context, ruleID domain.RuleID, origin domain.Origin) error
}

type CreateContentInput struct {
	ParentID  uuid.NullUUID
	Title     string
	Body      string
	Slug      string
	SourceURL string
	Status    domain.ContentStatus
}

// ContentService создает публикации и комментарии. Каждое создание пишет событие
// create:content:*, по которому файрвол считает окно.
type ContentService struct {
	db     *postgres.DB
	guard  FirewallChecker
	authz  policy.Authorizer
	logger *zap.Logger
}

func NewContentService(db *postgres.DB, guard FirewallChecker, authz policy.Authorizer, logger *zap.Logger) *ContentService {
	return &ContentService{db: db, guard: guard, authz: authz, logger: logger.Named("content-service")}
}

func (in *CreateContentInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	if in.Body == "" {
		return &domain.ValidationError{Key: "body", Message: `"body" is required.`}
	}
	if !in.ParentID.Valid && in.Title == "" {
		return &domain.ValidationError{Key: "title", Message: "A root publication needs a title."}
	}
	if in.Status == "" {
		in.Status = domain.ContentPublished
	}
	if in.Status != domain.ContentPublished && in.Status != domain.ContentDraft {
		return &domain.ValidationError{Key: "status", Message: `"status" must be "draft" or "published".`}
	}
	if in.Slug == "" {
		in.Slug = uuid.NewString()
	}
	return nil
}

func (s *ContentService) Create(ctx context.Context, actor domain.Actor, origin domain.Origin, in CreateContentInput) (*domain.Content, error) {
	if err := policy.Require(s.authz, actor, domain.FeatureCreateContent, nil); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	rule, evType := domain.RuleCreateContentTextRoot, domain.EventCreateContentTextRoot
	if in.ParentID.Valid {
		rule, evType = domain.RuleCreateContentTextChild, domain.EventCreateContentTextChild
	}
	// Сначала файрвол: при срабатывании новая строка не создается
	if err := s.guard.Check(ctx, rule, origin); err != nil {
		return nil, err
	}

	var content *domain.Content
	err := s.db.WithStore(ctx, postgres.ReadCommitted, func(st *postgres.Store) error {
		ev, err := st.Events.Record(ctx, domain.EventInput{Type: evType, Origin: origin})
		if err != nil {
			return err
		}
		if in.ParentID.Valid {
			if _, err := st.Contents.Get(ctx, in.ParentID.UUID); err != nil {
				return err
			}
		}
		content, err = st.Contents.Create(ctx, domain.ContentInput{
			OwnerID:   actor.ID,
			ParentID:  in.ParentID,
			Slug:      in.Slug,
			Title:     in.Title,
			Body:      in.Body,
			SourceURL: in.SourceURL,
			Status:    in.Status,
			Type:      domain.ContentTypeContent,
		})
		if err != nil {
			return err
		}
		return st.Events.BackfillMetadata(ctx, ev.ID, "id", content.ID.String())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("content created",
		zap.String("content_id", content.ID.String()),
		zap.String("owner_id", actor.ID.String()),
		zap.Bool("root", content.IsRoot()))
	return content, nil
}

func (s *ContentService) Get(ctx context.Context, id uuid.UUID) (*domain.Content, error) {
	return s.db.Store().Contents.Get(ctx, id)
}
