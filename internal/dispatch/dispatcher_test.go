package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/propease/announce/internal/models"
)

// fakeAnnouncementStore holds one announcement and its targets.
type fakeAnnouncementStore struct {
	announcement *models.Announcement
	targets      []models.Target

	statusCalls []statusCall
}

type statusCall struct {
	status    string
	issueDate *time.Time
}

func (f *fakeAnnouncementStore) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	if f.announcement == nil || f.announcement.ID != id {
		return nil, nil
	}
	return f.announcement, nil
}

func (f *fakeAnnouncementStore) GetTargets(ctx context.Context, announcementID string) ([]models.Target, error) {
	return f.targets, nil
}

func (f *fakeAnnouncementStore) SetStatus(ctx context.Context, id, status string, issueDate *time.Time) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, issueDate: issueDate})
	f.announcement.Status = status
	return nil
}

// fakeJobStore records bookkeeping calls in memory.
type fakeJobStore struct {
	job           *models.Job
	task          *models.BackgroundTask
	jobCompleted  bool
	taskStatus    string
	batchRecords  []batchRecord
	createJobErr  error
	createTaskErr error
}

type batchRecord struct {
	processed, success, failure int
	lastID                      string
}

func (f *fakeJobStore) CreateJob(ctx context.Context, job *models.Job) error {
	if f.createJobErr != nil {
		return f.createJobErr
	}
	job.ID = "job-1"
	f.job = job
	return nil
}

func (f *fakeJobStore) RecordBatch(ctx context.Context, jobID string, processed, success, failure int, lastID string) error {
	f.batchRecords = append(f.batchRecords, batchRecord{processed, success, failure, lastID})
	return nil
}

func (f *fakeJobStore) CompleteJob(ctx context.Context, jobID string) error {
	f.jobCompleted = true
	return nil
}

func (f *fakeJobStore) CreateTask(ctx context.Context, task *models.BackgroundTask) error {
	if f.createTaskErr != nil {
		return f.createTaskErr
	}
	task.ID = "task-1"
	f.task = task
	return nil
}

func (f *fakeJobStore) UpdateTaskProgress(ctx context.Context, taskID string, remaining, nextIndex int) error {
	if f.task != nil {
		f.task.RemainingCount = remaining
		f.task.NextBatchIndex = nextIndex
	}
	return nil
}

func (f *fakeJobStore) FinishTask(ctx context.Context, taskID, status string) error {
	f.taskStatus = status
	return nil
}

func newTestDispatcher(audience *fakeAudienceStore, announcements *fakeAnnouncementStore, jobs *fakeJobStore, batchSize int) *Dispatcher {
	logger := testLogger()
	resolver := NewResolver(audience, logger)
	batch := NewBatchProcessor(NewChannelDispatcher(newFakeSenders()), 4, logger)
	return NewDispatcher(announcements, jobs, resolver, batch, batchSize, logger)
}

// seedAudience wires n tenants with email addresses into one property.
func seedAudience(store *fakeAudienceStore, n int) {
	store.units["p-1"] = []string{"u-1"}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("t-%03d", i)
		store.leases["u-1"] = append(store.leases["u-1"], id)
		store.tenants[id] = models.TenantContact{ID: id, Email: id + "@example.com"}
	}
}

func TestDispatchSingleBatchCompletes(t *testing.T) {
	audience := newFakeAudienceStore()
	seedAudience(audience, 3)

	a := testAnnouncement()
	a.Methods = []string{models.ChannelEmail}
	announcements := &fakeAnnouncementStore{
		announcement: a,
		targets:      []models.Target{propertyTarget("p-1", "Oak Court")},
	}
	jobs := &fakeJobStore{}

	d := newTestDispatcher(audience, announcements, jobs, 50)
	out, err := d.Dispatch(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if out.TotalTenants != 3 || out.Processed != 3 || out.Sent != 3 || out.Remaining != 0 {
		t.Errorf("outcome = %+v, want total=3 processed=3 sent=3 remaining=0", out)
	}
	if !jobs.jobCompleted {
		t.Error("job not completed for a single-batch run")
	}
	if jobs.task != nil {
		t.Error("background task created for a single-batch run")
	}

	last := announcements.statusCalls[len(announcements.statusCalls)-1]
	if last.status != models.AnnouncementSent {
		t.Errorf("final status = %q, want sent", last.status)
	}
	if last.issueDate == nil {
		t.Error("issue date not set on completion")
	}
}

func TestDispatchLargeAudienceCreatesTask(t *testing.T) {
	audience := newFakeAudienceStore()
	seedAudience(audience, 120)

	a := testAnnouncement()
	a.Methods = []string{models.ChannelEmail}
	announcements := &fakeAnnouncementStore{
		announcement: a,
		targets:      []models.Target{propertyTarget("p-1", "Oak Court")},
	}
	jobs := &fakeJobStore{}

	d := newTestDispatcher(audience, announcements, jobs, 50)
	out, err := d.Dispatch(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if out.Processed != 50 {
		t.Errorf("Processed = %d, want 50", out.Processed)
	}
	if out.Remaining != 70 {
		t.Errorf("Remaining = %d, want 70", out.Remaining)
	}
	if jobs.jobCompleted {
		t.Error("job completed while a continuation remains")
	}
	if jobs.task == nil {
		t.Fatal("no background task created")
	}
	if jobs.task.NextBatchIndex != 50 || jobs.task.RemainingCount != 70 {
		t.Errorf("task cursor = index %d remaining %d, want 50/70", jobs.task.NextBatchIndex, jobs.task.RemainingCount)
	}

	last := announcements.statusCalls[len(announcements.statusCalls)-1]
	if last.status != models.AnnouncementSending {
		t.Errorf("status = %q, want sending", last.status)
	}
	if last.issueDate != nil {
		t.Error("issue date set before the run finished")
	}
}

func TestDispatchErrors(t *testing.T) {
	audience := newFakeAudienceStore()

	tests := []struct {
		name    string
		setup   func(*fakeAnnouncementStore)
		wantErr error
	}{
		{
			"missing announcement",
			func(s *fakeAnnouncementStore) { s.announcement = nil },
			ErrNotFound,
		},
		{
			"already sent",
			func(s *fakeAnnouncementStore) { s.announcement.Status = models.AnnouncementSent },
			ErrAlreadySent,
		},
		{
			"cancelled",
			func(s *fakeAnnouncementStore) { s.announcement.Status = models.AnnouncementCancelled },
			ErrCancelled,
		},
		{
			"no targets",
			func(s *fakeAnnouncementStore) { s.targets = nil },
			ErrNoTargets,
		},
		{
			"no recipients",
			func(s *fakeAnnouncementStore) {
				s.targets = []models.Target{propertyTarget("p-empty", "Vacant")}
			},
			ErrNoRecipients,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			announcements := &fakeAnnouncementStore{
				announcement: testAnnouncement(),
				targets:      []models.Target{propertyTarget("p-1", "Oak Court")},
			}
			tt.setup(announcements)

			d := newTestDispatcher(audience, announcements, &fakeJobStore{}, 50)
			_, err := d.Dispatch(context.Background(), "a-1")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Dispatch() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDispatchJobCreationFailureIsFatal(t *testing.T) {
	audience := newFakeAudienceStore()
	seedAudience(audience, 2)

	announcements := &fakeAnnouncementStore{
		announcement: testAnnouncement(),
		targets:      []models.Target{propertyTarget("p-1", "Oak Court")},
	}
	jobs := &fakeJobStore{createJobErr: errors.New("insert failed")}

	d := newTestDispatcher(audience, announcements, jobs, 50)
	_, err := d.Dispatch(context.Background(), "a-1")
	if err == nil {
		t.Fatal("Dispatch() error = nil, want bookkeeping failure")
	}
	if len(announcements.statusCalls) != 0 {
		t.Error("status changed despite a failed job insert")
	}
}

func TestDrainFinishesRun(t *testing.T) {
	audience := newFakeAudienceStore()
	seedAudience(audience, 120)

	a := testAnnouncement()
	a.Methods = []string{models.ChannelEmail}
	a.Status = models.AnnouncementSending
	announcements := &fakeAnnouncementStore{
		announcement: a,
		targets:      []models.Target{propertyTarget("p-1", "Oak Court")},
	}
	jobs := &fakeJobStore{}

	d := newTestDispatcher(audience, announcements, jobs, 50)

	task := &models.BackgroundTask{
		ID:             "task-1",
		JobID:          "job-1",
		AnnouncementID: "a-1",
		RemainingCount: 70,
		NextBatchIndex: 50,
	}
	if err := d.Drain(context.Background(), task); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	// 70 remaining at batch size 50: one full batch and one of 20.
	if len(jobs.batchRecords) != 2 {
		t.Fatalf("batch records = %d, want 2", len(jobs.batchRecords))
	}
	if jobs.batchRecords[0].processed != 50 || jobs.batchRecords[1].processed != 20 {
		t.Errorf("batch sizes = %d,%d, want 50,20", jobs.batchRecords[0].processed, jobs.batchRecords[1].processed)
	}
	if jobs.taskStatus != models.TaskCompleted {
		t.Errorf("task status = %q, want completed", jobs.taskStatus)
	}
	if !jobs.jobCompleted {
		t.Error("job not completed after drain")
	}

	last := announcements.statusCalls[len(announcements.statusCalls)-1]
	if last.status != models.AnnouncementSent || last.issueDate == nil {
		t.Errorf("final status = %q issueDate=%v, want sent with issue date", last.status, last.issueDate)
	}
}

func TestDrainCancelledAnnouncement(t *testing.T) {
	audience := newFakeAudienceStore()

	a := testAnnouncement()
	a.Status = models.AnnouncementCancelled
	announcements := &fakeAnnouncementStore{announcement: a}
	jobs := &fakeJobStore{}

	d := newTestDispatcher(audience, announcements, jobs, 50)
	task := &models.BackgroundTask{ID: "task-1", JobID: "job-1", AnnouncementID: "a-1"}
	if err := d.Drain(context.Background(), task); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if jobs.taskStatus != models.TaskCancelled {
		t.Errorf("task status = %q, want cancelled", jobs.taskStatus)
	}
	if !jobs.jobCompleted {
		t.Error("job left open for a cancelled announcement")
	}
	if len(announcements.statusCalls) != 0 {
		t.Error("announcement status changed on a cancelled drain")
	}
}

func TestDrainResolutionFailureRetries(t *testing.T) {
	audience := newFakeAudienceStore()
	seedAudience(audience, 120)
	// The audience's only source target fails transiently, so the
	// re-resolved set collapses below the cursor.
	audience.failUnits["p-1"] = errors.New("db unavailable")

	a := testAnnouncement()
	a.Methods = []string{models.ChannelEmail}
	a.Status = models.AnnouncementSending
	announcements := &fakeAnnouncementStore{
		announcement: a,
		targets:      []models.Target{propertyTarget("p-1", "Oak Court")},
	}
	jobs := &fakeJobStore{}

	d := newTestDispatcher(audience, announcements, jobs, 50)

	task := &models.BackgroundTask{ID: "task-1", JobID: "job-1", AnnouncementID: "a-1", RemainingCount: 70, NextBatchIndex: 50}
	if err := d.Drain(context.Background(), task); err == nil {
		t.Fatal("Drain() error = nil, want re-resolution failure")
	}

	if jobs.taskStatus != "" {
		t.Errorf("task finished with status %q, want left in progress for the lease", jobs.taskStatus)
	}
	if jobs.jobCompleted {
		t.Error("job completed although the tail was never attempted")
	}
	if len(announcements.statusCalls) != 0 {
		t.Error("announcement status changed although the tail was never attempted")
	}
}

func TestDrainShrunkAudience(t *testing.T) {
	audience := newFakeAudienceStore()
	seedAudience(audience, 30)

	a := testAnnouncement()
	a.Methods = []string{models.ChannelEmail}
	a.Status = models.AnnouncementSending
	announcements := &fakeAnnouncementStore{
		announcement: a,
		targets:      []models.Target{propertyTarget("p-1", "Oak Court")},
	}
	jobs := &fakeJobStore{}

	d := newTestDispatcher(audience, announcements, jobs, 50)

	// The cursor points past the end of the re-resolved audience.
	task := &models.BackgroundTask{ID: "task-1", JobID: "job-1", AnnouncementID: "a-1", NextBatchIndex: 50}
	if err := d.Drain(context.Background(), task); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if len(jobs.batchRecords) != 0 {
		t.Errorf("batch records = %d, want 0 for an exhausted cursor", len(jobs.batchRecords))
	}
	if jobs.taskStatus != models.TaskCompleted {
		t.Errorf("task status = %q, want completed", jobs.taskStatus)
	}
}

func TestDrainContextCancelled(t *testing.T) {
	audience := newFakeAudienceStore()
	seedAudience(audience, 120)

	a := testAnnouncement()
	a.Status = models.AnnouncementSending
	announcements := &fakeAnnouncementStore{
		announcement: a,
		targets:      []models.Target{propertyTarget("p-1", "Oak Court")},
	}
	jobs := &fakeJobStore{}

	d := newTestDispatcher(audience, announcements, jobs, 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := &models.BackgroundTask{ID: "task-1", JobID: "job-1", AnnouncementID: "a-1", NextBatchIndex: 50}
	err := d.Drain(ctx, task)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Drain() error = %v, want context.Canceled", err)
	}
	if jobs.taskStatus != "" {
		t.Errorf("task finished with status %q, want left in progress", jobs.taskStatus)
	}
}
