package service

import (
	"context"
	"strings"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

// MediaQuery narrows the media library. Zero values mean "no constraint".
type MediaQuery struct {
	CategoryID string
	// MediaType is one of video, audio, image or document.
	MediaType string
	Featured  *bool
	Limit     int
}

type MediaService struct {
	content *ContentService
}

func NewMediaService(content *ContentService) *MediaService {
	return &MediaService{content: content}
}

func (s *MediaService) GetMediaCategories(ctx context.Context) (*model.Envelope[[]model.MediaCategory], error) {
	return listContent[model.MediaCategory](ctx, s.content, model.KeyMediaCategories)
}

// GetMediaItems returns the library items matching q in stored order.
func (s *MediaService) GetMediaItems(ctx context.Context, q MediaQuery) (*model.Envelope[[]model.MediaItem], error) {
	env, err := listContent[model.MediaItem](ctx, s.content, model.KeyMediaItems)
	if err != nil {
		return nil, err
	}
	items := make([]model.MediaItem, 0, len(env.Data))
	for _, m := range env.Data {
		if q.CategoryID != "" && m.CategoryID != q.CategoryID {
			continue
		}
		if q.MediaType != "" && !strings.EqualFold(m.MediaType, q.MediaType) {
			continue
		}
		if q.Featured != nil && m.IsFeatured != *q.Featured {
			continue
		}
		items = append(items, m)
	}
	return withData(env, limitItems(items, q.Limit)), nil
}
