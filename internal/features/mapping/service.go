package mapping

import (
	"context"
	"fmt"

	"go-deskmigrate/internal/config"
	"go-deskmigrate/internal/features/profile"
	"go-deskmigrate/internal/features/source"

	"go.uber.org/zap"
)

type MappingService interface {
	Create(ctx context.Context, m *Mapping) error
	Get(ctx context.Context, id string) (*Mapping, error)
	ListByProfile(ctx context.Context, profileID string) ([]Mapping, error)
	Update(ctx context.Context, id string, m *Mapping) error
	Delete(ctx context.Context, id string) error
	Validate(ctx context.Context, m *Mapping) ValidationResult
	Preview(ctx context.Context, id string, limit int) ([]map[string]interface{}, string, error)
	SuggestJoins(ctx context.Context, profileID, baseTable string) ([]JoinSuggestion, error)
}

type MappingServiceImpl struct {
	repo        MappingRepository
	profileRepo profile.ProfileRepository
	builder     *Builder
	cfg         *config.Config
	logger      *zap.Logger
}

func NewMappingService(repo MappingRepository, profileRepo profile.ProfileRepository, cfg *config.Config, logger *zap.Logger) MappingService {
	return &MappingServiceImpl{
		repo:        repo,
		profileRepo: profileRepo,
		builder:     NewBuilder(),
		cfg:         cfg,
		logger:      logger,
	}
}

func (s *MappingServiceImpl) Create(ctx context.Context, m *Mapping) error {
	if result := s.builder.Validate(m); !result.Valid {
		return fmt.Errorf("invalid mapping: %v", result.Errors)
	}
	return s.repo.Create(ctx, m)
}

func (s *MappingServiceImpl) Get(ctx context.Context, id string) (*Mapping, error) {
	return s.repo.Get(ctx, id)
}

func (s *MappingServiceImpl) ListByProfile(ctx context.Context, profileID string) ([]Mapping, error) {
	return s.repo.ListByProfile(ctx, profileID, false)
}

func (s *MappingServiceImpl) Update(ctx context.Context, id string, m *Mapping) error {
	if result := s.builder.Validate(m); !result.Valid {
		return fmt.Errorf("invalid mapping: %v", result.Errors)
	}
	return s.repo.Update(ctx, id, m)
}

func (s *MappingServiceImpl) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *MappingServiceImpl) Validate(ctx context.Context, m *Mapping) ValidationResult {
	return s.builder.Validate(m)
}

// Preview runs the mapping's query against the live source with a small
// limit and returns the raw rows plus the generated SQL
func (s *MappingServiceImpl) Preview(ctx context.Context, id string, limit int) ([]map[string]interface{}, string, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	p, err := s.profileRepo.Get(ctx, m.ProfileID)
	if err != nil {
		return nil, "", err
	}

	if limit <= 0 || limit > 50 {
		limit = 10
	}
	preview := *m
	preview.Limit = limit
	query := s.builder.Build(&preview)

	reader, err := source.Open(ctx, p.SourceConfig(int(s.cfg.ConnectTimeout.Seconds()), int(s.cfg.FetchTimeout.Seconds())))
	if err != nil {
		return nil, query, err
	}
	defer reader.Close()

	sqlReader, ok := reader.(*source.SQLConnector)
	if !ok {
		return nil, query, fmt.Errorf("preview is only supported for relational sources")
	}

	stream, err := sqlReader.StreamQuery(ctx, query, nil, limit)
	if err != nil {
		return nil, query, err
	}
	defer stream.Close()

	var rows []map[string]interface{}
	for stream.Next() {
		rows = append(rows, stream.Row())
	}
	return rows, query, stream.Err()
}

// SuggestJoins introspects the profile's source schema and ranks join
// candidates for the given base table
func (s *MappingServiceImpl) SuggestJoins(ctx context.Context, profileID, baseTable string) ([]JoinSuggestion, error) {
	p, err := s.profileRepo.GetByHex(ctx, profileID)
	if err != nil {
		return nil, err
	}

	reader, err := source.Open(ctx, p.SourceConfig(int(s.cfg.ConnectTimeout.Seconds()), int(s.cfg.FetchTimeout.Seconds())))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	sqlReader, ok := reader.(*source.SQLConnector)
	if !ok {
		return nil, fmt.Errorf("join suggestions are only supported for relational sources")
	}

	schema, err := sqlReader.IntrospectSchema(ctx)
	if err != nil {
		return nil, err
	}
	return s.builder.SuggestJoins(schema, baseTable), nil
}
