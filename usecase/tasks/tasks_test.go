package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/orgdesk/backend/domain"
	"github.com/orgdesk/backend/repository"
)

type fakeTaskRepo struct {
	tasks  map[string]*domain.Task
	nextID int
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]*domain.Task)}
}

func (f *fakeTaskRepo) GetByID(_ context.Context, id string) (*domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTaskRepo) List(_ context.Context, _ repository.TaskFilter) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range f.tasks {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTaskRepo) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	f.nextID++
	task.ID = fmt.Sprintf("t%d", f.nextID)
	task.CreatedAt = time.Now()
	task.UpdatedAt = task.CreatedAt
	cp := *task
	f.tasks[task.ID] = &cp
	return task, nil
}

func (f *fakeTaskRepo) Patch(_ context.Context, id string, patch repository.TaskPatch) (*domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	t.UpdatedAt = time.Now()
	cp := *t
	return &cp, nil
}

func (f *fakeTaskRepo) SetStatus(_ context.Context, task *domain.Task) error {
	stored, ok := f.tasks[task.ID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	stored.Status = task.Status
	stored.SubmittedAt = task.SubmittedAt
	stored.VerifiedBy = task.VerifiedBy
	stored.VerifiedByName = task.VerifiedByName
	stored.VerifiedAt = task.VerifiedAt
	stored.UpdatedAt = time.Now()
	return nil
}

func (f *fakeTaskRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(f.tasks, id)
	return nil
}

type fakeGroupRepo struct {
	groups  map[string]*domain.Group
	members map[string][]domain.Member
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{
		groups:  make(map[string]*domain.Group),
		members: make(map[string][]domain.Member),
	}
}

func (f *fakeGroupRepo) GetByID(_ context.Context, id string) (*domain.Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	return g, nil
}

func (f *fakeGroupRepo) List(_ context.Context, _ bool) ([]domain.Group, error) { return nil, nil }

func (f *fakeGroupRepo) Create(_ context.Context, g *domain.Group) (*domain.Group, error) {
	f.groups[g.ID] = g
	return g, nil
}

func (f *fakeGroupRepo) ListActiveMembers(_ context.Context, groupID string) ([]domain.Member, error) {
	return f.members[groupID], nil
}

func (f *fakeGroupRepo) GetMember(_ context.Context, groupID, userID string) (*domain.Member, error) {
	for _, m := range f.members[groupID] {
		if m.UserID == userID {
			cp := m
			return &cp, nil
		}
	}
	return nil, domain.ErrGroupNotFound
}

func (f *fakeGroupRepo) GroupsOf(_ context.Context, _ string) ([]string, error) { return nil, nil }

func (f *fakeGroupRepo) AddMember(_ context.Context, m *domain.Member) error {
	f.members[m.GroupID] = append(f.members[m.GroupID], *m)
	return nil
}

func (f *fakeGroupRepo) RemoveMember(_ context.Context, _, _ string) error { return nil }

func (f *fakeGroupRepo) SetLead(_ context.Context, _, _ string, _ bool) error { return nil }

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) Upsert(_ context.Context, u *domain.User) error {
	f.users[u.ID] = u
	return nil
}

// recordingDispatcher captures dispatch calls and can fail selected ones.
type recordingDispatcher struct {
	sent    []*domain.Notification
	failFor map[string]bool
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n *domain.Notification) error {
	if d.failFor[n.UserID] {
		return errors.New("dispatch refused")
	}
	d.sent = append(d.sent, n)
	return nil
}

type fixture struct {
	engine     *Engine
	tasks      *fakeTaskRepo
	groups     *fakeGroupRepo
	users      *fakeUserRepo
	dispatcher *recordingDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	taskRepo := newFakeTaskRepo()
	groupRepo := newFakeGroupRepo()
	userRepo := &fakeUserRepo{users: map[string]*domain.User{
		"u1": {ID: "u1", DisplayName: "Uma", Status: "active"},
		"u2": {ID: "u2", DisplayName: "Manager", Status: "active"},
		"u3": {ID: "u3", DisplayName: "Uri", Status: "active"},
	}}
	groupRepo.groups["g1"] = &domain.Group{ID: "g1", Name: "Backend", Active: true, MemberIDs: []string{"u1", "u2", "u3"}}
	groupRepo.members["g1"] = []domain.Member{
		{GroupID: "g1", UserID: "u1", DisplayName: "Uma"},
		{GroupID: "g1", UserID: "u2", DisplayName: "Manager", Lead: true},
		{GroupID: "g1", UserID: "u3", DisplayName: "Uri"},
	}

	dispatcher := &recordingDispatcher{failFor: map[string]bool{}}
	engine := New(taskRepo, groupRepo, userRepo, dispatcher, NewRosterAuthorizer(groupRepo), nil, nil)

	return &fixture{
		engine:     engine,
		tasks:      taskRepo,
		groups:     groupRepo,
		users:      userRepo,
		dispatcher: dispatcher,
	}
}

func validIndividualInput() CreateInput {
	return CreateInput{
		Title:       "Write report",
		Description: "Quarterly report",
		Mode:        domain.AssignIndividual,
		Assignee:    &domain.UserRef{ID: "u1"},
		AssignedBy:  "u2",
		Priority:    domain.PriorityMedium,
		Deadline:    time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreate_Defaults(t *testing.T) {
	fx := newFixture(t)

	task, err := fx.engine.Create(context.Background(), validIndividualInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.ID == "" {
		t.Error("Create returned empty ID")
	}
	if task.Status != domain.StatusPending {
		t.Errorf("Status = %q, want pending", task.Status)
	}
	if task.Subtasks == nil || len(task.Subtasks) != 0 {
		t.Errorf("Subtasks = %v, want empty slice", task.Subtasks)
	}
	if task.Blockers == nil || len(task.Blockers) != 0 {
		t.Errorf("Blockers = %v, want empty slice", task.Blockers)
	}
	if task.Assignee.Name != "Uma" {
		t.Errorf("assignee name = %q, want denormalized display name", task.Assignee.Name)
	}

	second, err := fx.engine.Create(context.Background(), validIndividualInput())
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if second.ID == task.ID {
		t.Error("task ids must be distinct")
	}
}

func TestCreate_Validation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing title", func(in *CreateInput) { in.Title = "" }},
		{"missing description", func(in *CreateInput) { in.Description = "" }},
		{"missing deadline", func(in *CreateInput) { in.Deadline = time.Time{} }},
		{"missing assignee", func(in *CreateInput) { in.Assignee = nil }},
		{"negative hours", func(in *CreateInput) { in.EstimatedHours = -1 }},
		{"bad priority", func(in *CreateInput) { in.Priority = "urgent" }},
		{"bad mode", func(in *CreateInput) { in.Mode = "team" }},
	}

	for _, c := range cases {
		input := validIndividualInput()
		c.mutate(&input)
		if _, err := fx.engine.Create(ctx, input); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
			t.Errorf("%s: err = %v, want INVALID", c.name, err)
		}
	}

	if len(fx.tasks.tasks) != 0 {
		t.Errorf("validation failures must not write; stored %d tasks", len(fx.tasks.tasks))
	}

	input := validIndividualInput()
	input.Assignee = &domain.UserRef{ID: "ghost"}
	if _, err := fx.engine.Create(ctx, input); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Errorf("unresolvable assignee: err = %v, want NOT_FOUND", err)
	}
}

func TestCreate_InactiveGroupRejected(t *testing.T) {
	fx := newFixture(t)
	fx.groups.groups["g2"] = &domain.Group{ID: "g2", Name: "Dormant", Active: false}

	input := validIndividualInput()
	input.Mode = domain.AssignGroup
	input.Assignee = nil
	input.Group = &domain.GroupRef{ID: "g2"}

	if _, err := fx.engine.Create(context.Background(), input); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Errorf("err = %v, want INVALID for inactive group", err)
	}
}

func TestCreate_IndividualNotification(t *testing.T) {
	fx := newFixture(t)

	if _, err := fx.engine.Create(context.Background(), validIndividualInput()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(fx.dispatcher.sent) != 1 {
		t.Fatalf("dispatched %d notifications, want 1", len(fx.dispatcher.sent))
	}
	if got := fx.dispatcher.sent[0].UserID; got != "u1" {
		t.Errorf("recipient = %q, want u1", got)
	}
	if got := fx.dispatcher.sent[0].Kind; got != domain.NotifyTaskAssigned {
		t.Errorf("kind = %q, want task_assigned", got)
	}
}

func TestCreate_SelfAssignmentSkipsNotification(t *testing.T) {
	fx := newFixture(t)

	input := validIndividualInput()
	input.Assignee = &domain.UserRef{ID: "u2"}
	if _, err := fx.engine.Create(context.Background(), input); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(fx.dispatcher.sent) != 0 {
		t.Errorf("dispatched %d notifications, want 0 for self-assignment", len(fx.dispatcher.sent))
	}
}

func TestCreate_GroupFanOutExcludesCreator(t *testing.T) {
	fx := newFixture(t)

	input := validIndividualInput()
	input.Mode = domain.AssignGroup
	input.Assignee = nil
	input.Group = &domain.GroupRef{ID: "g1"}

	if _, err := fx.engine.Create(context.Background(), input); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if len(fx.dispatcher.sent) != 2 {
		t.Fatalf("dispatched %d notifications, want 2", len(fx.dispatcher.sent))
	}
	recipients := map[string]bool{}
	for _, n := range fx.dispatcher.sent {
		recipients[n.UserID] = true
	}
	if !recipients["u1"] || !recipients["u3"] || recipients["u2"] {
		t.Errorf("recipients = %v, want u1 and u3 only", recipients)
	}
}

func TestCreate_FanOutFailureIsolated(t *testing.T) {
	fx := newFixture(t)
	fx.dispatcher.failFor["u1"] = true

	input := validIndividualInput()
	input.Mode = domain.AssignGroup
	input.Assignee = nil
	input.Group = &domain.GroupRef{ID: "g1"}

	task, err := fx.engine.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("Create must succeed despite dispatch failure: %v", err)
	}
	if task.ID == "" {
		t.Fatal("task not created")
	}
	// u1 fails, u2 is the creator; u3 must still receive its notification.
	if len(fx.dispatcher.sent) != 1 || fx.dispatcher.sent[0].UserID != "u3" {
		t.Errorf("sent = %v, want exactly the u3 dispatch", fx.dispatcher.sent)
	}
}

func TestLifecycle_IndividualHappyPath(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	task, err := fx.engine.Create(ctx, validIndividualInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	task, err = fx.engine.ChangeStatus(ctx, task.ID, domain.StatusInProgress)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if task.Status != domain.StatusInProgress {
		t.Errorf("Status = %q, want in_progress", task.Status)
	}
	if task.SubmittedAt != nil {
		t.Error("start must not stamp submitted_at")
	}

	task, err = fx.engine.ChangeStatus(ctx, task.ID, domain.StatusReview)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if task.Status != domain.StatusReview {
		t.Errorf("Status = %q, want review", task.Status)
	}
	if task.SubmittedAt == nil {
		t.Error("submit must stamp submitted_at")
	}

	task, err = fx.engine.Verify(ctx, task.ID, "u2", "Manager")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if task.Status != domain.StatusCompleted {
		t.Errorf("Status = %q, want completed", task.Status)
	}
	if task.VerifiedBy != "u2" || task.VerifiedByName != "Manager" || task.VerifiedAt == nil {
		t.Errorf("verifier fields not stamped: %+v", task)
	}
}

func TestChangeStatus_DirectSubmitFromPending(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	task, err := fx.engine.Create(ctx, validIndividualInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	task, err = fx.engine.ChangeStatus(ctx, task.ID, domain.StatusReview)
	if err != nil {
		t.Fatalf("direct submit: %v", err)
	}
	if task.SubmittedAt == nil {
		t.Error("direct submit must stamp submitted_at")
	}
}

func TestChangeStatus_IllegalTransitionsRejected(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	task, err := fx.engine.Create(ctx, validIndividualInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := fx.engine.ChangeStatus(ctx, task.ID, domain.StatusCompleted); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Errorf("pending -> completed: err = %v, want INVALID", err)
	}
	if _, err := fx.engine.ChangeStatus(ctx, task.ID, domain.StatusPending); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Errorf("pending -> pending: err = %v, want INVALID", err)
	}
	if _, err := fx.engine.ChangeStatus(ctx, task.ID, "archived"); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Errorf("unknown status: err = %v, want INVALID", err)
	}

	if _, err := fx.engine.Verify(ctx, task.ID, "u2", "Manager"); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Errorf("verify outside review: err = %v, want INVALID", err)
	}

	stored, _ := fx.engine.Get(ctx, task.ID)
	if stored.Status != domain.StatusPending {
		t.Errorf("rejected transitions must not write; status = %q", stored.Status)
	}
}

func TestVerify_Authorization(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	input := validIndividualInput()
	input.Group = &domain.GroupRef{ID: "g1"}
	task, err := fx.engine.Create(ctx, input)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := fx.engine.ChangeStatus(ctx, task.ID, domain.StatusReview); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// u3 is a plain member: neither the creator nor a lead.
	if _, err := fx.engine.Verify(ctx, task.ID, "u3", "Uri"); !domain.IsDomainError(err, domain.ErrCodeForbidden) {
		t.Errorf("non-lead verify: err = %v, want FORBIDDEN", err)
	}

	// u2 is lead of g1 and also the creator; either authority suffices.
	if _, err := fx.engine.Verify(ctx, task.ID, "u2", "Manager"); err != nil {
		t.Errorf("lead verify: %v", err)
	}
}

func TestVerify_NotifiesAssignee(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	task, err := fx.engine.Create(ctx, validIndividualInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fx.dispatcher.sent = nil

	if _, err := fx.engine.ChangeStatus(ctx, task.ID, domain.StatusReview); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(fx.dispatcher.sent) != 0 {
		t.Errorf("status change dispatched %d notifications, want 0", len(fx.dispatcher.sent))
	}

	if _, err := fx.engine.Verify(ctx, task.ID, "u2", "Manager"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(fx.dispatcher.sent) != 1 || fx.dispatcher.sent[0].Kind != domain.NotifyTaskVerified {
		t.Errorf("sent = %v, want one task_verified to the assignee", fx.dispatcher.sent)
	}
}

func TestDelete_Unconditional(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	task, err := fx.engine.Create(ctx, validIndividualInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := fx.engine.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := fx.engine.Get(ctx, task.ID); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Errorf("Get after delete: err = %v, want NOT_FOUND", err)
	}
}

func TestBlockersSatisfied(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	blocker, err := fx.engine.Create(ctx, validIndividualInput())
	if err != nil {
		t.Fatalf("Create blocker: %v", err)
	}

	input := validIndividualInput()
	input.Blockers = []string{blocker.ID, "deleted-task"}
	task, err := fx.engine.Create(ctx, input)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := fx.engine.BlockersSatisfied(ctx, task)
	if err != nil {
		t.Fatalf("BlockersSatisfied: %v", err)
	}
	if ok {
		t.Error("incomplete blocker should not be satisfied")
	}

	// Blockers stay advisory: submit succeeds regardless.
	if _, err := fx.engine.ChangeStatus(ctx, task.ID, domain.StatusReview); err != nil {
		t.Errorf("submit with open blockers: %v", err)
	}

	fx.tasks.tasks[blocker.ID].Status = domain.StatusCompleted
	ok, err = fx.engine.BlockersSatisfied(ctx, task)
	if err != nil {
		t.Fatalf("BlockersSatisfied: %v", err)
	}
	if !ok {
		t.Error("completed blockers (dangling ids ignored) should be satisfied")
	}
}
