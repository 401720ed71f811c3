package app

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"taskflow/domain"
	"taskflow/store"
	"taskflow/storetest"
)

type fakeStore struct {
	mu       sync.Mutex
	tasks    []domain.Task
	nextID   int64
	listErr  error
	writeErr error
	calls    map[string]int
	patches  []domain.Patch
	inputs   []domain.TaskInput
}

func newFakeStore(tasks ...domain.Task) *fakeStore {
	next := int64(1)
	for _, t := range tasks {
		if t.ID >= next {
			next = t.ID + 1
		}
	}
	return &fakeStore{tasks: tasks, nextID: next, calls: map[string]int{}}
}

func (f *fakeStore) List(context.Context) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list"]++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Task(nil), f.tasks...), nil
}

func (f *fakeStore) Create(_ context.Context, in domain.TaskInput) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create"]++
	f.inputs = append(f.inputs, in)
	if f.writeErr != nil {
		return domain.Task{}, f.writeErr
	}
	t := domain.Task{ID: f.nextID, Title: in.Title, Description: in.Description, Priority: in.Priority, Status: in.Status, DueDate: in.DueDate, Category: in.Category}
	f.nextID++
	f.tasks = append(f.tasks, t)
	return t, nil
}

func (f *fakeStore) Patch(_ context.Context, id int64, p domain.Patch) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["patch"]++
	f.patches = append(f.patches, p)
	if f.writeErr != nil {
		return domain.Task{}, f.writeErr
	}
	return domain.Task{ID: id}, nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["delete"]++
	return f.writeErr
}

func (f *fakeStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func newTestController(t *testing.T, st Store) (*Controller, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	return NewController(st, logger), hook
}

func TestLoadOrdersNewestFirst(t *testing.T) {
	st := newFakeStore(domain.Task{ID: 1}, domain.Task{ID: 3}, domain.Task{ID: 2})
	c, _ := newTestController(t, st)

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := ids(c.Snapshot().Tasks); !reflect.DeepEqual(got, []int64{3, 2, 1}) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestLoadFailureKeepsState(t *testing.T) {
	st := newFakeStore(domain.Task{ID: 1})
	c, hook := newTestController(t, st)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	st.listErr = errors.New("offline")

	if err := c.Load(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(c.Snapshot().Tasks) != 1 {
		t.Fatalf("failed load must not clear tasks")
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != log.ErrorLevel {
		t.Fatalf("expected error log, got %#v", entry)
	}
}

func TestCreateEmptyTitleMakesNoRequest(t *testing.T) {
	st := newFakeStore(domain.Task{ID: 1})
	c, _ := newTestController(t, st)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := c.Snapshot()

	for _, title := range []string{"", "   "} {
		if err := c.SetDraftField(domain.FieldTitle, title); err != nil {
			t.Fatalf("set title: %v", err)
		}
		if _, err := c.Create(context.Background()); !errors.Is(err, ErrTitleRequired) {
			t.Fatalf("expected ErrTitleRequired, got %v", err)
		}
	}
	if st.count("create") != 0 || st.count("list") != 1 {
		t.Fatalf("expected no network calls, got %v", st.calls)
	}
	if !reflect.DeepEqual(c.Snapshot().Tasks, before.Tasks) {
		t.Fatalf("list changed")
	}
}

func TestCreateSuccessResetsDraftAndReloads(t *testing.T) {
	st := newFakeStore(domain.Task{ID: 1, Title: "old"})
	c, _ := newTestController(t, st)
	ctx := context.Background()

	mustSetDraft(t, c, domain.FieldTitle, "Ship release")
	mustSetDraft(t, c, domain.FieldPriority, "High")
	mustSetDraft(t, c, domain.FieldDueDate, "")

	created, err := c.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 2 || created.Title != "Ship release" {
		t.Fatalf("unexpected created task %#v", created)
	}
	if st.inputs[0].DueDate != nil {
		t.Fatalf("blank due date must be sent as null")
	}
	if st.inputs[0].Priority != domain.PriorityHigh {
		t.Fatalf("unexpected priority %q", st.inputs[0].Priority)
	}

	s := c.Snapshot()
	if s.Draft != domain.NewDraft() {
		t.Fatalf("draft not reset: %#v", s.Draft)
	}
	if got := ids(s.Tasks); !reflect.DeepEqual(got, []int64{2, 1}) {
		t.Fatalf("expected reload with new task first, got %v", got)
	}
	if st.count("list") != 1 {
		t.Fatalf("expected one reload, got %d", st.count("list"))
	}
}

func TestCreateFailureKeepsDraft(t *testing.T) {
	st := newFakeStore()
	st.writeErr = errors.New("server down")
	c, hook := newTestController(t, st)

	mustSetDraft(t, c, domain.FieldTitle, "Keep me")
	mustSetDraft(t, c, domain.FieldDescription, "details")

	if _, err := c.Create(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	d := c.Snapshot().Draft
	if d.Title != "Keep me" || d.Description != "details" {
		t.Fatalf("draft must be kept: %#v", d)
	}
	if st.count("list") != 0 {
		t.Fatalf("no reload after failed create")
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Message != "task.create.failed" {
		t.Fatalf("expected create failure log, got %#v", entry)
	}
}

func TestCreateSucceedsWhenReloadFails(t *testing.T) {
	st := newFakeStore(domain.Task{ID: 1, Title: "old"})
	c, hook := newTestController(t, st)
	mustSetDraft(t, c, domain.FieldTitle, "Stored anyway")
	st.listErr = errors.New("list down")

	created, err := c.Create(context.Background())
	if err != nil {
		t.Fatalf("create must succeed once the store accepted the task: %v", err)
	}
	if created.ID != 2 {
		t.Fatalf("unexpected created task %#v", created)
	}
	s := c.Snapshot()
	if s.Draft != domain.NewDraft() {
		t.Fatalf("draft not reset: %#v", s.Draft)
	}
	if got := ids(s.Tasks); !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("created task must be listed locally, got %v", got)
	}
	if st.count("create") != 1 {
		t.Fatalf("expected one create, got %d", st.count("create"))
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Message != "task.create.reload_failed" || entry.Level != log.WarnLevel {
		t.Fatalf("expected reload warning, got %#v", entry)
	}
}

func TestCreateReturnsStoredTaskNotNewestListed(t *testing.T) {
	st := newFakeStore(domain.Task{ID: 50, Title: "from another session"})
	st.nextID = 7
	c, _ := newTestController(t, st)
	mustSetDraft(t, c, domain.FieldTitle, "Mine")

	created, err := c.Create(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 7 || created.Title != "Mine" {
		t.Fatalf("expected the stored task, got %#v", created)
	}
	if first := c.Snapshot().Tasks[0]; first.ID != 50 {
		t.Fatalf("expected newest listed task to be 50, got %d", first.ID)
	}
}

func TestRemoveIsOptimistic(t *testing.T) {
	srv := storetest.New()
	t.Cleanup(srv.Close)
	srv.Seed(seedTask(1), seedTask(2), seedTask(3))
	c := newStoreController(t, srv)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	drainChanges(c)
	release := srv.Hold(http.MethodDelete)
	done := make(chan error, 1)
	go func() { done <- c.Remove(ctx, 2) }()

	<-c.Changes()
	if got := ids(c.Snapshot().Tasks); !reflect.DeepEqual(got, []int64{3, 1}) {
		release()
		t.Fatalf("expected task removed before the store answered, got %v", got)
	}
	release()
	if err := <-done; err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := srv.Task(2); ok {
		t.Fatalf("task still stored remotely")
	}
}

func TestRemoveRollsBackOnFailure(t *testing.T) {
	st := newFakeStore(domain.Task{ID: 1}, domain.Task{ID: 2}, domain.Task{ID: 3})
	c, _ := newTestController(t, st)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	st.writeErr = errors.New("boom")

	if err := c.Remove(ctx, 2); err == nil {
		t.Fatalf("expected error")
	}
	if got := ids(c.Snapshot().Tasks); !reflect.DeepEqual(got, []int64{3, 2, 1}) {
		t.Fatalf("expected task restored at its index, got %v", got)
	}
}

func TestRemoveAlreadyDeletedRemotely(t *testing.T) {
	srv := storetest.New()
	t.Cleanup(srv.Close)
	srv.Seed(seedTask(1), seedTask(2))
	c := newStoreController(t, srv)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	srv.FailNext(http.MethodDelete, http.StatusNotFound)

	if err := c.Remove(ctx, 2); err != nil {
		t.Fatalf("404 on delete should count as removed: %v", err)
	}
	if got := ids(c.Snapshot().Tasks); !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("unexpected tasks %v", got)
	}
}

func TestRemoveUnknownID(t *testing.T) {
	st := newFakeStore()
	c, _ := newTestController(t, st)
	if err := c.Remove(context.Background(), 5); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if st.count("delete") != 0 {
		t.Fatalf("no request expected")
	}
}

func TestPatchUpdatesOnlyThatTask(t *testing.T) {
	srv := storetest.New()
	t.Cleanup(srv.Close)
	srv.Seed(seedTask(1), seedTask(2))
	c := newStoreController(t, srv)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := c.Snapshot()

	if err := c.Patch(ctx, 2, domain.FieldStatus, "Completed"); err != nil {
		t.Fatalf("patch: %v", err)
	}
	after := c.Snapshot()
	got, _ := after.Task(2)
	want, _ := before.Task(2)
	want.Status = domain.StatusCompleted
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want %#v, got %#v", want, got)
	}
	other, _ := after.Task(1)
	orig, _ := before.Task(1)
	if !reflect.DeepEqual(other, orig) {
		t.Fatalf("other task changed")
	}
	if stored, _ := srv.Task(2); stored.Status != domain.StatusCompleted {
		t.Fatalf("store not updated")
	}
	if got := ids(after.Tasks); !reflect.DeepEqual(got, []int64{2, 1}) {
		t.Fatalf("patch must not reorder: %v", got)
	}
}

func TestPatchBlankDueDateSendsNull(t *testing.T) {
	due := "2025-06-01"
	st := newFakeStore(domain.Task{ID: 1, DueDate: &due})
	c, _ := newTestController(t, st)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := c.Patch(ctx, 1, domain.FieldDueDate, ""); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if v, ok := st.patches[0]["due_date"]; !ok || v != nil {
		t.Fatalf("expected due_date null, got %#v", st.patches[0])
	}
	if task, _ := c.Snapshot().Task(1); task.DueString() != "" {
		t.Fatalf("expected due date cleared locally")
	}
}

func TestPatchRollsBackOnFailure(t *testing.T) {
	st := newFakeStore(domain.Task{ID: 1, Priority: domain.PriorityLow})
	c, _ := newTestController(t, st)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	st.writeErr = errors.New("boom")

	if err := c.Patch(ctx, 1, domain.FieldPriority, "High"); err == nil {
		t.Fatalf("expected error")
	}
	if task, _ := c.Snapshot().Task(1); task.Priority != domain.PriorityLow {
		t.Fatalf("expected rollback, got %q", task.Priority)
	}
}

func TestPatchRollbackSkipsNewerEdit(t *testing.T) {
	srv := storetest.New()
	t.Cleanup(srv.Close)
	srv.Seed(seedTask(1))
	c := newStoreController(t, srv)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	drainChanges(c)
	srv.FailNext(http.MethodPatch, http.StatusInternalServerError)
	release := srv.Hold(http.MethodPatch)
	first := make(chan error, 1)
	go func() { first <- c.Patch(ctx, 1, domain.FieldPriority, "High") }()
	<-c.Changes()

	// A later edit lands locally while the first request is still in flight.
	c.update(func(s State) State {
		next, _ := s.WithField(1, domain.FieldPriority, "Low")
		return next
	})
	release()

	if err := <-first; err == nil {
		t.Fatalf("expected first patch to fail")
	}
	if task, _ := c.Snapshot().Task(1); task.Priority != domain.PriorityLow {
		t.Fatalf("rollback must not clobber the newer value, got %q", task.Priority)
	}
}

// gatedStore holds every Patch until the test sends its result.
type gatedStore struct {
	*fakeStore
	entered chan int
	results []chan error

	mu sync.Mutex
	n  int
}

func newGatedStore(fs *fakeStore, calls int) *gatedStore {
	g := &gatedStore{fakeStore: fs, entered: make(chan int, calls)}
	for i := 0; i < calls; i++ {
		g.results = append(g.results, make(chan error, 1))
	}
	return g
}

func (g *gatedStore) Patch(ctx context.Context, id int64, p domain.Patch) (domain.Task, error) {
	g.mu.Lock()
	i := g.n
	g.n++
	g.mu.Unlock()

	g.entered <- i
	if err := <-g.results[i]; err != nil {
		return domain.Task{}, err
	}
	return g.fakeStore.Patch(ctx, id, p)
}

func TestPatchRollbackSkipsNewerPatchOfSameValue(t *testing.T) {
	fs := newFakeStore(domain.Task{ID: 1, Title: "t", Priority: domain.PriorityMedium})
	st := newGatedStore(fs, 2)
	c, _ := newTestController(t, st)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	first := make(chan error, 1)
	go func() { first <- c.Patch(ctx, 1, domain.FieldPriority, "High") }()
	<-st.entered
	second := make(chan error, 1)
	go func() { second <- c.Patch(ctx, 1, domain.FieldPriority, "High") }()
	<-st.entered

	st.results[1] <- nil
	if err := <-second; err != nil {
		t.Fatalf("second patch: %v", err)
	}
	st.results[0] <- errors.New("timeout")
	if err := <-first; err == nil {
		t.Fatalf("expected first patch to fail")
	}

	if task, _ := c.Snapshot().Task(1); task.Priority != domain.PriorityHigh {
		t.Fatalf("stale failure must not undo the confirmed value, got %q", task.Priority)
	}
}

func TestPatchValidatesInput(t *testing.T) {
	st := newFakeStore(domain.Task{ID: 1})
	c, _ := newTestController(t, st)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := c.Patch(context.Background(), 1, domain.Field("owner"), "x"); !errors.Is(err, domain.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if err := c.Patch(context.Background(), 9, domain.FieldTitle, "x"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if st.count("patch") != 0 {
		t.Fatalf("no request expected")
	}
}

func TestToggleComplete(t *testing.T) {
	st := newFakeStore(
		domain.Task{ID: 1, Status: domain.StatusInProgress},
		domain.Task{ID: 2, Status: domain.StatusCompleted},
	)
	c, _ := newTestController(t, st)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := c.ToggleComplete(ctx, 1); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := c.ToggleComplete(ctx, 2); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	s := c.Snapshot()
	if t1, _ := s.Task(1); t1.Status != domain.StatusCompleted {
		t.Fatalf("expected Completed, got %q", t1.Status)
	}
	if t2, _ := s.Task(2); t2.Status != domain.StatusPending {
		t.Fatalf("expected Pending, got %q", t2.Status)
	}
	if err := c.ToggleComplete(ctx, 1); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if t1, _ := c.Snapshot().Task(1); t1.Status != domain.StatusPending {
		t.Fatalf("uncompleting goes to Pending, not the prior status: %q", t1.Status)
	}
}

func TestReorderIsDiscardedByLoad(t *testing.T) {
	st := newFakeStore(domain.Task{ID: 1}, domain.Task{ID: 2}, domain.Task{ID: 3})
	c, _ := newTestController(t, st)
	ctx := context.Background()
	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	c.Reorder(1, 3)
	if got := ids(c.Snapshot().Tasks); !reflect.DeepEqual(got, []int64{1, 3, 2}) {
		t.Fatalf("unexpected reorder %v", got)
	}
	if st.count("patch") != 0 {
		t.Fatalf("reorder must not be persisted")
	}
	if err := c.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := ids(c.Snapshot().Tasks); !reflect.DeepEqual(got, []int64{3, 2, 1}) {
		t.Fatalf("load must restore id order, got %v", got)
	}
}

func TestFiltersThemeAndDraft(t *testing.T) {
	st := newFakeStore(
		domain.Task{ID: 1, Title: "Buy milk", Priority: domain.PriorityLow, Status: domain.StatusPending, Category: domain.CategoryHome},
		domain.Task{ID: 2, Title: "Team meeting", Priority: domain.PriorityHigh, Status: domain.StatusPending, Category: domain.CategoryWork},
	)
	c, _ := newTestController(t, st)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	c.SetSearch("MEET")
	if got := ids(c.Visible()); !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("unexpected visible %v", got)
	}
	c.SetSearch("")
	c.SetCategoryFilter("Home")
	if got := ids(c.Visible()); !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("unexpected visible %v", got)
	}
	c.SetCategoryFilter(domain.All)
	c.SetPriorityFilter("High")
	c.SetStatusFilter("Pending")
	if got := ids(c.Visible()); !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("unexpected visible %v", got)
	}
	if c.Stats().Total != 2 {
		t.Fatalf("stats must count the full list")
	}

	c.ToggleTheme()
	if !c.Snapshot().Dark {
		t.Fatalf("expected dark theme")
	}

	mustSetDraft(t, c, domain.FieldCategory, "Work")
	if err := c.SetDraftField(domain.Field("bogus"), "x"); !errors.Is(err, domain.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if c.Snapshot().Draft.Category != domain.CategoryWork {
		t.Fatalf("draft field not set")
	}
	c.ResetDraft()
	if c.Snapshot().Draft != domain.NewDraft() {
		t.Fatalf("draft not reset")
	}
}

func TestEndToEndCreateAgainstStore(t *testing.T) {
	srv := storetest.New()
	t.Cleanup(srv.Close)
	c := newStoreController(t, srv)
	ctx := context.Background()

	mustSetDraft(t, c, domain.FieldTitle, "Team meeting")
	mustSetDraft(t, c, domain.FieldDueDate, "2025-09-01")
	if _, err := c.Create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	mustSetDraft(t, c, domain.FieldTitle, "Buy milk")
	if _, err := c.Create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}

	s := c.Snapshot()
	if len(s.Tasks) != 2 || s.Tasks[0].Title != "Buy milk" || s.Tasks[1].DueString() != "2025-09-01" {
		t.Fatalf("unexpected tasks %#v", s.Tasks)
	}
	if srv.CountRequests(http.MethodGet) != 2 {
		t.Fatalf("expected a reload after each create")
	}
}

func mustSetDraft(t *testing.T, c *Controller, f domain.Field, v string) {
	t.Helper()
	if err := c.SetDraftField(f, v); err != nil {
		t.Fatalf("set draft %s: %v", f, err)
	}
}

func seedTask(id int64) domain.Task {
	return domain.Task{ID: id, Title: "task", Priority: domain.PriorityMedium, Status: domain.StatusPending, Category: domain.CategoryGeneral}
}

func newStoreController(t *testing.T, srv *storetest.Server) *Controller {
	t.Helper()
	logger, _ := test.NewNullLogger()
	client, err := store.New(srv.URL(), store.WithLogger(logger))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return NewController(client, logger)
}

func drainChanges(c *Controller) {
	select {
	case <-c.Changes():
	default:
	}
}
