package profile

import (
	"context"

	"go-deskmigrate/internal/config"
	"go-deskmigrate/internal/features/source"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type ProfileService interface {
	Create(ctx context.Context, p *ImportProfile) error
	Get(ctx context.Context, id string) (*ImportProfile, error)
	List(ctx context.Context) ([]ImportProfile, error)
	Update(ctx context.Context, id string, p *ImportProfile) error
	Delete(ctx context.Context, id string) error
	TestConnection(ctx context.Context, id string) (*source.ServerInfo, error)
}

type ProfileServiceImpl struct {
	repo   ProfileRepository
	cfg    *config.Config
	logger *zap.Logger
}

func NewProfileService(repo ProfileRepository, cfg *config.Config, logger *zap.Logger) ProfileService {
	return &ProfileServiceImpl{repo: repo, cfg: cfg, logger: logger}
}

func (s *ProfileServiceImpl) Create(ctx context.Context, p *ImportProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	s.logger.Info("import profile created",
		zap.String("profile_id", p.ID.Hex()),
		zap.String("source_type", p.SourceType))
	return nil
}

func (s *ProfileServiceImpl) Get(ctx context.Context, id string) (*ImportProfile, error) {
	return s.repo.GetByHex(ctx, id)
}

func (s *ProfileServiceImpl) List(ctx context.Context) ([]ImportProfile, error) {
	return s.repo.List(ctx)
}

func (s *ProfileServiceImpl) Update(ctx context.Context, id string, p *ImportProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, objID, p)
}

func (s *ProfileServiceImpl) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, objID)
}

// TestConnection opens the profile's source and probes it
func (s *ProfileServiceImpl) TestConnection(ctx context.Context, id string) (*source.ServerInfo, error) {
	p, err := s.repo.GetByHex(ctx, id)
	if err != nil {
		return nil, err
	}

	cfg := p.SourceConfig(int(s.cfg.ConnectTimeout.Seconds()), int(s.cfg.FetchTimeout.Seconds()))
	reader, err := source.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	info, err := reader.TestConnection(ctx)
	if err != nil {
		s.logger.Warn("connection test failed",
			zap.String("profile_id", id),
			zap.Error(err))
		return nil, err
	}
	return info, nil
}
