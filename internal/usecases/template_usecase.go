package usecases

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"notify-hub.backend/internal/domain/entities"
	domainerrors "notify-hub.backend/internal/domain/errors"
	"notify-hub.backend/internal/domain/repositories"
	"notify-hub.backend/pkg/cache"
	"notify-hub.backend/pkg/utils"
)

var templateNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,99}$`)

// TemplateCacheKey is the cache key under which a template is stored.
func TemplateCacheKey(name string) string {
	return "template:" + name
}

// TemplateUsecase serves email templates through the tiered cache
type TemplateUsecase struct {
	templateRepo repositories.TemplateRepository
	cache        *cache.TieredCache
}

// NewTemplateUsecase creates a new template usecase. A nil cache reads through to the repository.
func NewTemplateUsecase(templateRepo repositories.TemplateRepository, c *cache.TieredCache) *TemplateUsecase {
	return &TemplateUsecase{
		templateRepo: templateRepo,
		cache:        c,
	}
}

// ValidTemplateName reports whether name is an acceptable template identifier.
func ValidTemplateName(name string) bool {
	return templateNamePattern.MatchString(name)
}

// GetByName returns the named template, active or not. A missing template is ErrTemplateNotFound.
func (u *TemplateUsecase) GetByName(ctx context.Context, name string) (*entities.EmailTemplate, error) {
	if !ValidTemplateName(name) {
		return nil, domainerrors.BadRequest("invalid template name")
	}

	load := func(ctx context.Context) (entities.EmailTemplate, error) {
		t, err := u.templateRepo.GetByName(ctx, name)
		if err != nil {
			if errors.Is(err, domainerrors.ErrNotFound) {
				return entities.EmailTemplate{}, domainerrors.ErrTemplateNotFound
			}
			return entities.EmailTemplate{}, err
		}
		return *t, nil
	}

	if u.cache == nil {
		t, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}

	t, err := cache.GetCached(ctx, u.cache, TemplateCacheKey(name), 0, load)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Upsert stores the template and drops both cache tiers before returning.
// Variables default to the placeholders found in the content.
func (u *TemplateUsecase) Upsert(ctx context.Context, t *entities.EmailTemplate) (*entities.EmailTemplate, error) {
	t.Name = strings.TrimSpace(t.Name)
	if !ValidTemplateName(t.Name) {
		return nil, domainerrors.BadRequest("invalid template name")
	}
	if strings.TrimSpace(t.Subject) == "" {
		return nil, domainerrors.BadRequest("subject is required")
	}
	if strings.TrimSpace(t.HTMLContent) == "" && strings.TrimSpace(t.TextContent) == "" {
		return nil, domainerrors.BadRequest("html or text content is required")
	}
	if t.ID == uuid.Nil {
		t.ID = utils.NewID()
	}
	if t.Variables == nil {
		t.Variables = TemplateVariables(t)
	}

	if err := u.templateRepo.Upsert(ctx, t); err != nil {
		return nil, err
	}
	if u.cache != nil {
		u.cache.Delete(ctx, TemplateCacheKey(t.Name))
	}

	stored, err := u.templateRepo.GetByName(ctx, t.Name)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// TemplateVariables lists the non-reserved placeholders used by t, sorted.
func TemplateVariables(t *entities.EmailTemplate) []string {
	seen := map[string]bool{}
	for _, s := range []string{t.Subject, t.HTMLContent, t.TextContent} {
		for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
			if _, reserved := reservedVariant(m[1], ""); !reserved {
				seen[m[1]] = true
			}
		}
	}
	vars := make([]string, 0, len(seen))
	for name := range seen {
		vars = append(vars, name)
	}
	sort.Strings(vars)
	return vars
}
