package service

import (
	"context"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
)

type ProjectService struct {
	content *ContentService
}

func NewProjectService(content *ContentService) *ProjectService {
	return &ProjectService{content: content}
}

// GetProjectProgress returns the building-project snapshot, or nil data when none is stored.
func (s *ProjectService) GetProjectProgress(ctx context.Context) (*model.Envelope[*model.ProjectProgress], error) {
	env, err := GetContent[model.ProjectProgress](ctx, s.content, model.KeyProjectProgress, nil)
	if err != nil {
		return nil, err
	}
	var progress *model.ProjectProgress
	if v, ok := FirstValue(env); ok {
		progress = &v
	}
	return withData(env, progress), nil
}
