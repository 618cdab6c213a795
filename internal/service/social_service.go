package service

import (
	"context"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

type SocialService struct {
	content *ContentService
}

func NewSocialService(content *ContentService) *SocialService {
	return &SocialService{content: content}
}

// GetSocialLinks returns links ordered by display order, optionally only the active ones.
func (s *SocialService) GetSocialLinks(ctx context.Context, activeOnly bool) (*model.Envelope[[]model.SocialLink], error) {
	env, err := listContent[model.SocialLink](ctx, s.content, model.KeySocialLinks)
	if err != nil {
		return nil, err
	}
	links := env.Data
	if activeOnly {
		links = make([]model.SocialLink, 0, len(env.Data))
		for _, l := range env.Data {
			if l.IsActive {
				links = append(links, l)
			}
		}
	}
	sortByDisplayOrder(links, func(l model.SocialLink) int { return l.DisplayOrder })
	return withData(env, links), nil
}
