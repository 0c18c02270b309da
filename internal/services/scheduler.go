package services

import (
	"context"
	"errors"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
	"auction-core/pkg/utils"

	"github.com/robfig/cron/v3"
)

// CronLotScheduler persists open/close jobs and pumps due ones on a cron
// tick. Extensions reschedule the close job: pending close jobs for the lot
// are cancelled and a new one written, so the lot never closes off its old
// end time.
type CronLotScheduler struct {
	cron   *cron.Cron
	repo   domain.SchedulerRepository
	lotMgr *LotManager
	log    logger.Logger
}

func NewCronLotScheduler(repo domain.SchedulerRepository, lotMgr *LotManager,
	log logger.Logger) *CronLotScheduler {
	return &CronLotScheduler{
		cron:   cron.New(cron.WithSeconds()),
		repo:   repo,
		lotMgr: lotMgr,
		log:    log,
	}
}

func (s *CronLotScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting lot scheduler")

	// Pump due jobs and re-evaluate lot timers every 5 seconds
	_, err := s.cron.AddFunc("@every 5s", func() {
		s.processPendingJobs(ctx)
		s.lotMgr.Tick(ctx)
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CronLotScheduler) Stop() error {
	s.log.Info("Stopping lot scheduler")
	s.cron.Stop()
	return nil
}

func (s *CronLotScheduler) ScheduleLotOpen(ctx context.Context, lotID string, openTime time.Time) error {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		LotID:     lotID,
		JobType:   domain.JobOpenLot,
		RunAt:     openTime,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	}

	return s.repo.CreateJob(ctx, job)
}

func (s *CronLotScheduler) ScheduleLotClose(ctx context.Context, lotID string, closeTime time.Time) error {
	job := &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		LotID:     lotID,
		JobType:   domain.JobCloseLot,
		RunAt:     closeTime,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	}

	return s.repo.CreateJob(ctx, job)
}

func (s *CronLotScheduler) RescheduleLotClose(ctx context.Context, lotID string, newCloseTime time.Time) error {
	// Cancel existing close jobs
	if err := s.repo.CancelCloseJobsForLot(ctx, lotID); err != nil {
		return err
	}

	// Create new close job
	return s.ScheduleLotClose(ctx, lotID, newCloseTime)
}

func (s *CronLotScheduler) CancelSchedule(ctx context.Context, lotID string) error {
	return s.repo.CancelCloseJobsForLot(ctx, lotID)
}

func (s *CronLotScheduler) processPendingJobs(ctx context.Context) {
	jobs, err := s.repo.GetPendingJobs(ctx, time.Now())
	if err != nil {
		s.log.Error("Failed to get pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		s.log.Info("Processing job", "job_id", job.ID, "type", job.JobType, "lot_id", job.LotID)

		var err error
		switch job.JobType {
		case domain.JobOpenLot:
			err = s.lotMgr.OpenLot(ctx, job.LotID)
		case domain.JobCloseLot:
			err = s.lotMgr.CloseLot(ctx, job.LotID)
		}

		if err != nil {
			if errors.Is(err, domain.ErrNotLeader) {
				// The leader's pump will execute it
				continue
			}
			s.log.Error("Failed to execute job", "job_id", job.ID, "error", err)
			// Leave pending, will retry next tick
			continue
		}

		if err := s.repo.UpdateJobStatus(ctx, job.ID, domain.JobExecuted); err != nil {
			s.log.Error("Failed to update job status", "job_id", job.ID, "error", err)
		}
	}
}
