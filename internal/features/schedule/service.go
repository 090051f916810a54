package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-deskmigrate/internal/features/importer"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type ScheduleService interface {
	Create(ctx context.Context, s *Schedule) error
	Get(ctx context.Context, id string) (*Schedule, error)
	List(ctx context.Context) ([]Schedule, error)
	Update(ctx context.Context, id string, s *Schedule) error
	Delete(ctx context.Context, id string) error
	InitializeScheduler(ctx context.Context) error
	StopScheduler() error
}

type ScheduleServiceImpl struct {
	repo          ScheduleRepository
	importService importer.ImportService
	logger        *zap.Logger

	scheduler *cron.Cron
	entries   map[string]cron.EntryID
	mu        sync.Mutex
}

func NewScheduleService(repo ScheduleRepository, importService importer.ImportService, logger *zap.Logger) ScheduleService {
	return &ScheduleServiceImpl{
		repo:          repo,
		importService: importService,
		logger:        logger,
		entries:       make(map[string]cron.EntryID),
	}
}

func (s *ScheduleServiceImpl) Create(ctx context.Context, sched *Schedule) error {
	expr, err := cron.ParseStandard(sched.Cron)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	next := expr.Next(time.Now())
	sched.NextRun = &next

	if err := s.repo.Create(ctx, sched); err != nil {
		return err
	}
	if sched.Active {
		s.register(sched)
	}
	return nil
}

func (s *ScheduleServiceImpl) Get(ctx context.Context, id string) (*Schedule, error) {
	return s.repo.Get(ctx, id)
}

func (s *ScheduleServiceImpl) List(ctx context.Context) ([]Schedule, error) {
	return s.repo.List(ctx, false)
}

func (s *ScheduleServiceImpl) Update(ctx context.Context, id string, sched *Schedule) error {
	expr, err := cron.ParseStandard(sched.Cron)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	next := expr.Next(time.Now())
	sched.NextRun = &next

	if err := s.repo.Update(ctx, id, sched); err != nil {
		return err
	}

	s.unregister(id)
	if sched.Active {
		s.register(sched)
	}
	return nil
}

func (s *ScheduleServiceImpl) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.unregister(id)
	return nil
}

// InitializeScheduler loads every active schedule and starts the cron
// runner. Called once on application start.
func (s *ScheduleServiceImpl) InitializeScheduler(ctx context.Context) error {
	s.mu.Lock()
	s.scheduler = cron.New()
	s.mu.Unlock()

	schedules, err := s.repo.List(ctx, true)
	if err != nil {
		return err
	}
	for i := range schedules {
		s.register(&schedules[i])
	}

	s.scheduler.Start()
	s.logger.Info("import scheduler started", zap.Int("schedules", len(schedules)))
	return nil
}

func (s *ScheduleServiceImpl) StopScheduler() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	return nil
}

func (s *ScheduleServiceImpl) register(sched *Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		return
	}

	id := sched.ID
	profileID := sched.ProfileID.Hex()
	cronExpr := sched.Cron

	entryID, err := s.scheduler.AddFunc(cronExpr, func() {
		ctx := context.Background()
		j, err := s.importService.StartImport(ctx, profileID)
		if err != nil {
			s.logger.Error("scheduled import failed to start",
				zap.String("schedule_id", id.Hex()),
				zap.String("profile_id", profileID),
				zap.Error(err))
			return
		}

		var next *time.Time
		if expr, perr := cron.ParseStandard(cronExpr); perr == nil {
			n := expr.Next(time.Now())
			next = &n
		}
		if err := s.repo.RecordRun(ctx, id, j.ID.Hex(), next); err != nil {
			s.logger.Warn("failed to record schedule run", zap.String("schedule_id", id.Hex()), zap.Error(err))
		}
	})
	if err != nil {
		s.logger.Error("failed to register schedule", zap.String("schedule_id", id.Hex()), zap.Error(err))
		return
	}
	s.entries[id.Hex()] = entryID
}

func (s *ScheduleServiceImpl) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[id]; ok && s.scheduler != nil {
		s.scheduler.Remove(entryID)
		delete(s.entries, id)
	}
}
