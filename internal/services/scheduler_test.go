package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auction-core/internal/bidding"
	"auction-core/internal/clock"
	"auction-core/internal/domain"
	"auction-core/internal/store"
	"auction-core/pkg/logger"
)

type fakeLeader struct {
	mu     sync.Mutex
	leader bool
}

func (f *fakeLeader) setLeader(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leader = v
}

func (f *fakeLeader) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leader, nil
}

func (f *fakeLeader) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leader, nil
}

func (f *fakeLeader) ReleaseLeadership(ctx context.Context, instanceID string) error {
	return nil
}

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.ScheduledJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*domain.ScheduledJob)}
}

func (r *fakeJobRepo) CreateJob(ctx context.Context, job *domain.ScheduledJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *fakeJobRepo) GetPendingJobs(ctx context.Context, before time.Time) ([]*domain.ScheduledJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*domain.ScheduledJob
	for _, job := range r.jobs {
		if job.Status == domain.JobPending && !job.RunAt.After(before) {
			cp := *job
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (r *fakeJobRepo) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok {
		job.Status = status
	}
	return nil
}

func (r *fakeJobRepo) CancelCloseJobsForLot(ctx context.Context, lotID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.LotID == lotID && job.JobType == domain.JobCloseLot && job.Status == domain.JobPending {
			job.Status = domain.JobCancelled
		}
	}
	return nil
}

func (r *fakeJobRepo) status(jobID string) domain.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[jobID].Status
}

func newSchedulerFixture(t *testing.T, leader *fakeLeader) (*CronLotScheduler, *fakeJobRepo, *store.LotStore) {
	t.Helper()

	clk := clock.System()
	lotStore := store.NewLotStore()
	engine := bidding.NewTimerEngine(bidding.TimerConfig{
		ExtensionWindow:  30 * time.Second,
		ClosingThreshold: 60 * time.Second,
	}, clk)
	coordinator := bidding.NewCoordinator(lotStore, engine, clk, nil, time.Second, "test-instance", logger.Nop())

	mgr := NewLotManager(lotStore, coordinator, nil, nil, nil, leader, clk,
		LifecycleConfig{LotDuration: 10 * time.Minute, LotStagger: 2 * time.Minute},
		"test-instance", logger.Nop())

	repo := newFakeJobRepo()
	scheduler := NewCronLotScheduler(repo, mgr, logger.Nop())
	mgr.SetScheduler(scheduler)
	return scheduler, repo, lotStore
}

func seedPendingLot(lotStore *store.LotStore) {
	lotStore.PutAuction(&domain.Auction{ID: "auction-1", Status: domain.AuctionPending})
	lotStore.PutLot(&domain.Lot{
		ID: "lot-1", AuctionID: "auction-1", Status: domain.LotPending,
		StartingPrice: 100, Increment: 10, CurrentBid: 100,
		EndTime: time.Now().Add(time.Hour),
	})
}

func TestNonLeaderLeavesJobsPending(t *testing.T) {
	leader := &fakeLeader{leader: false}
	scheduler, repo, lotStore := newSchedulerFixture(t, leader)
	seedPendingLot(lotStore)

	ctx := context.Background()
	repo.CreateJob(ctx, &domain.ScheduledJob{
		ID: "job-1", LotID: "lot-1", JobType: domain.JobOpenLot,
		RunAt: time.Now().Add(-time.Minute), Status: domain.JobPending,
	})

	scheduler.processPendingJobs(ctx)

	if got := repo.status("job-1"); got != domain.JobPending {
		t.Fatalf("non-leader job status = %s, want pending", got)
	}
	snap, _ := lotStore.Snapshot("lot-1")
	if snap.Status != domain.LotPending {
		t.Fatalf("non-leader opened the lot: %s", snap.Status)
	}

	// Once leadership arrives the same job executes
	leader.setLeader(true)
	scheduler.processPendingJobs(ctx)

	if got := repo.status("job-1"); got != domain.JobExecuted {
		t.Errorf("leader job status = %s, want executed", got)
	}
	snap, _ = lotStore.Snapshot("lot-1")
	if snap.Status != domain.LotOpen {
		t.Errorf("lot status = %s, want open", snap.Status)
	}
}

func TestOpenLotRequiresLeadership(t *testing.T) {
	leader := &fakeLeader{leader: false}
	clk := clock.System()
	lotStore := store.NewLotStore()
	engine := bidding.NewTimerEngine(bidding.TimerConfig{}, clk)
	coordinator := bidding.NewCoordinator(lotStore, engine, clk, nil, time.Second, "test-instance", logger.Nop())
	mgr := NewLotManager(lotStore, coordinator, nil, nil, nil, leader, clk,
		LifecycleConfig{}, "test-instance", logger.Nop())
	seedPendingLot(lotStore)

	ctx := context.Background()
	if err := mgr.OpenLot(ctx, "lot-1"); !errors.Is(err, domain.ErrNotLeader) {
		t.Errorf("OpenLot by non-leader: got %v, want ErrNotLeader", err)
	}
	if err := mgr.CloseLot(ctx, "lot-1"); !errors.Is(err, domain.ErrNotLeader) {
		t.Errorf("CloseLot by non-leader: got %v, want ErrNotLeader", err)
	}

	// Admin operations are not leader-gated
	if err := mgr.AdminOpenLot(ctx, "lot-1"); err != nil {
		t.Errorf("AdminOpenLot: %v", err)
	}
}
