package jobpost_test

import (
	"context"
	"errors"
	"testing"

	dbfs "github.com/garnizeh/recruiter/db"
	"github.com/garnizeh/recruiter/internal/apperr"
	dbpkg "github.com/garnizeh/recruiter/internal/db"
	"github.com/garnizeh/recruiter/internal/jobpost"
	"github.com/garnizeh/recruiter/internal/repository/sqlite"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/repository"
)

type recorded struct {
	entityType string
	entityID   string
	deleted    bool
}

type fakeRecorder struct{ changes []recorded }

func (f *fakeRecorder) Record(ctx context.Context, entityType, entityID, tableName string, deleted bool) {
	f.changes = append(f.changes, recorded{entityType, entityID, deleted})
}

type fixture struct {
	repo        *repository.Repository
	rec         *fakeRecorder
	posts       *jobpost.Service
	steps       *jobpost.StepService
	assignments *jobpost.AssignmentService
	orch        *jobpost.Orchestrator
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	d, err := dbpkg.New(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := sqlite.New(d, nil).Repository()
	rec := &fakeRecorder{}
	f := &fixture{repo: repo, rec: rec}
	f.posts = jobpost.NewService(repo, rec, nil)
	f.steps = jobpost.NewStepService(repo, rec, nil)
	f.assignments = jobpost.NewAssignmentService(repo, rec, nil)
	f.orch = jobpost.NewOrchestrator(repo, f.posts, f.steps, f.assignments, nil)
	return f
}

func intp(v int) *int { return &v }

func strp(s string) *string { return &s }

func newPost(name string) *models.JobPost {
	return &models.JobPost{
		Name:                name,
		MinimumRequirements: []string{"go"},
		ExperienceLevel:     "Senior",
		JobTitle:            "Backend Engineer",
		JobType:             "Full-time",
		JobDescription:      "build services",
	}
}

func newStep(name string) *models.JobPostStep {
	return &models.JobPostStep{
		Name:                 name,
		StepType:             models.StepTypeInformation,
		Participant:          models.ParticipantRecruiter,
		ShowStepForCandidate: true,
		DisplayTitle:         name,
	}
}

func (f *fixture) mustStep(t *testing.T, name string) *models.JobPostStep {
	t.Helper()
	s, err := f.steps.Create(context.Background(), newStep(name))
	if err != nil {
		t.Fatalf("create step %s: %v", name, err)
	}
	return s
}

func (f *fixture) addApplication(t *testing.T, post string, version int) {
	t.Helper()
	err := f.repo.Application.CreateApplication(context.Background(), &models.JobApplication{
		ID:             "app-" + post,
		JobPostName:    post,
		JobPostVersion: version,
		CandidateID:    "cand-1",
		Status:         models.ApplicationStatusInProgress,
	})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
}

func stepNames(d *jobpost.Detail) []string {
	out := make([]string, 0, len(d.Steps))
	for _, s := range d.Steps {
		out = append(out, s.StepName)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNormalizeOriginCountryCode(t *testing.T) {
	tests := []struct {
		in   *string
		want *string
	}{
		{nil, nil},
		{strp(""), nil},
		{strp("   "), nil},
		{strp(" br "), strp("BR")},
		{strp("US"), strp("US")},
	}
	for _, tt := range tests {
		got := jobpost.NormalizeOriginCountryCode(tt.in)
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Fatalf("NormalizeOriginCountryCode(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCreateAndVersionJobPost(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p := newPost("backend")
	p.OriginCountryCode = strp(" pt ")
	created, err := f.posts.Create(ctx, p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Version != 1 || created.Status != models.JobPostStatusDraft || *created.OriginCountryCode != "PT" {
		t.Fatalf("unexpected post: %#v", created)
	}

	if _, err := f.posts.Create(ctx, newPost("backend")); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict for identical content, got %v", err)
	}
	other := newPost("backend")
	other.JobTitle = "Platform Engineer"
	if _, err := f.posts.Create(ctx, other); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict for existing name, got %v", err)
	}

	bad := newPost("")
	if _, err := f.posts.Create(ctx, bad); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected validation error, got %v", err)
	}

	v2 := newPost("backend")
	v2.JobTitle = "Senior Backend Engineer"
	got, err := f.posts.Update(ctx, v2, true)
	if err != nil || got.Version != 2 {
		t.Fatalf("Update new version: %#v, %v", got, err)
	}

	inPlace := newPost("backend")
	inPlace.Version = 1
	inPlace.JobDescription = "edited"
	if _, err := f.posts.Update(ctx, inPlace, false); err != nil {
		t.Fatalf("Update in place: %v", err)
	}
	v1, err := f.posts.Get(ctx, "backend", 1)
	if err != nil || v1.JobDescription != "edited" {
		t.Fatalf("expected edited v1, got %#v, %v", v1, err)
	}

	latest, err := f.posts.GetLatest(ctx, "backend")
	if err != nil || latest.Version != 2 {
		t.Fatalf("GetLatest: %#v, %v", latest, err)
	}
	versions, err := f.posts.ListVersions(ctx, "backend")
	if err != nil || len(versions) != 2 {
		t.Fatalf("ListVersions: %d, %v", len(versions), err)
	}

	if _, err := f.posts.Get(ctx, "missing", 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(f.rec.changes) != 3 || f.rec.changes[0].entityID != "backend:1" {
		t.Fatalf("unexpected recorded changes: %#v", f.rec.changes)
	}
}

func TestNormalizeStep(t *testing.T) {
	tests := []struct {
		name  string
		in    models.JobPostStep
		check func(s models.JobPostStep) bool
	}{
		{
			name: "legacy multiple choice becomes questionnaire",
			in:   models.JobPostStep{StepType: "Multiple Choice", Participant: models.ParticipantCandidate},
			check: func(s models.JobPostStep) bool {
				return s.StepType == models.StepTypeQuestionnaire
			},
		},
		{
			name: "legacy assessment becomes questionnaire",
			in:   models.JobPostStep{StepType: "Assessment", Participant: models.ParticipantCandidate},
			check: func(s models.JobPostStep) bool {
				return s.StepType == models.StepTypeQuestionnaire
			},
		},
		{
			name: "candidate interview is an interview",
			in:   models.JobPostStep{StepType: models.StepTypeInterview, Participant: models.ParticipantCandidate, ShowSpinner: true},
			check: func(s models.JobPostStep) bool {
				return s.IsInterview && s.ShowStepForCandidate && !s.ShowSpinner
			},
		},
		{
			name: "recruiter interview is not an interview",
			in: models.JobPostStep{StepType: models.StepTypeInterview, Participant: models.ParticipantRecruiter,
				InterviewConfigurationName: "cfg", InterviewConfigurationVersion: intp(1)},
			check: func(s models.JobPostStep) bool {
				return !s.IsInterview && s.InterviewConfigurationName == "" && s.InterviewConfigurationVersion == nil
			},
		},
		{
			name: "template cleared on non questionnaire",
			in:   models.JobPostStep{StepType: models.StepTypeOther, Participant: models.ParticipantCandidate, QuestionnaireTemplateName: "tpl"},
			check: func(s models.JobPostStep) bool {
				return s.QuestionnaireTemplateName == ""
			},
		},
		{
			name: "hidden step drops display fields",
			in: models.JobPostStep{StepType: models.StepTypeOther, Participant: models.ParticipantRecruiter,
				DisplayTitle: "t", DisplayContent: "c", ShowSpinner: true},
			check: func(s models.JobPostStep) bool {
				return s.DisplayTitle == "" && s.DisplayContent == "" && !s.ShowSpinner
			},
		},
		{
			name: "visible recruiter step keeps spinner",
			in: models.JobPostStep{StepType: models.StepTypeOther, Participant: models.ParticipantRecruiter,
				ShowStepForCandidate: true, ShowSpinner: true},
			check: func(s models.JobPostStep) bool {
				return s.ShowSpinner
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.in
			jobpost.NormalizeStep(&s)
			if !tt.check(s) {
				t.Fatalf("unexpected result: %#v", s)
			}
		})
	}
}

func TestInterviewStepRequiresConfiguration(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	step := &models.JobPostStep{
		Name:                       "ai-interview",
		StepType:                   models.StepTypeInterview,
		Participant:                models.ParticipantCandidate,
		InterviewConfigurationName: "default-interview",
	}
	if _, err := f.steps.Create(ctx, step); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected invalid without configuration, got %v", err)
	}

	err := f.repo.InterviewConfiguration.CreateInterviewConfiguration(ctx, &models.InterviewConfiguration{
		Name: "default-interview", Version: 1, Modality: "voice",
		InstructionPromptName: "i", PersonalityPromptName: "p", QuestionsPromptName: "q",
	})
	if err != nil {
		t.Fatalf("create configuration: %v", err)
	}
	got, err := f.steps.Create(ctx, step)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !got.IsInterview || !got.ShowStepForCandidate || got.Version != 1 {
		t.Fatalf("unexpected step: %#v", got)
	}

	q := &models.JobPostStep{Name: "quiz", StepType: "Assessment", Participant: models.ParticipantCandidate}
	if _, err := f.steps.Create(ctx, q); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected invalid questionnaire without template, got %v", err)
	}
}

func TestStepInUseAndDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.mustStep(t, "screening")
	if _, err := f.steps.Create(ctx, newStep("screening")); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict for identical step, got %v", err)
	}
	if _, err := f.posts.Create(ctx, newPost("backend")); err != nil {
		t.Fatalf("create post: %v", err)
	}
	if _, err := f.assignments.Assign(ctx, "backend", 1, "screening", nil, 1, ""); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	edit := newStep("screening")
	edit.Version = 1
	edit.DisplayContent = "new text"
	if _, err := f.steps.Update(ctx, edit, false); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected in-use conflict, got %v", err)
	}

	v2, err := f.steps.Update(ctx, edit, true)
	if err != nil || v2.Version != 2 {
		t.Fatalf("Update new version: %#v, %v", v2, err)
	}

	// the dynamic assignment now follows v2, so v1 is free
	inUse, err := f.steps.InUse(ctx, "screening", 1)
	if err != nil || inUse {
		t.Fatalf("expected v1 free, got %v, %v", inUse, err)
	}
	soft, err := f.steps.Delete(ctx, "screening", 1)
	if err != nil || soft {
		t.Fatalf("expected hard delete of v1, got soft=%v err=%v", soft, err)
	}

	soft, err = f.steps.Delete(ctx, "screening", 2)
	if err != nil || !soft {
		t.Fatalf("expected soft delete of v2, got soft=%v err=%v", soft, err)
	}
	if _, err := f.steps.Get(ctx, "screening", 2); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("soft deleted step must be hidden, got %v", err)
	}
	if err := f.steps.Restore(ctx, "screening", 2); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := f.steps.Get(ctx, "screening", 2); err != nil {
		t.Fatalf("restored step: %v", err)
	}

	if _, err := f.steps.Delete(ctx, "screening", 9); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStepInUseByApplicationStep(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.mustStep(t, "docs")
	err := f.repo.Application.CreateApplicationStep(ctx, &models.JobApplicationStep{
		ID: "as-1", JobApplicationID: "app-1", JobPostStepName: "docs", JobPostStepVersion: 1,
		StepNumber: 1, Status: models.StepStatusCompleted,
	})
	if err != nil {
		t.Fatalf("create application step: %v", err)
	}
	inUse, err := f.steps.InUse(ctx, "docs", 1)
	if err != nil || !inUse {
		t.Fatalf("expected in use, got %v, %v", inUse, err)
	}
}

func TestDuplicateStep(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.mustStep(t, "screening")
	f.mustStep(t, "taken")

	if _, err := f.steps.Duplicate(ctx, "screening", 1, " ", ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
	if _, err := f.steps.Duplicate(ctx, "screening", 1, "taken", ""); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	cp, err := f.steps.Duplicate(ctx, "screening", 1, "screening-copy", "Copy")
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if cp.Version != 1 || cp.DisplayTitle != "Copy" || cp.StepType != models.StepTypeInformation {
		t.Fatalf("unexpected copy: %#v", cp)
	}
}

func TestAssignments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.mustStep(t, "screening")
	if _, err := f.posts.Create(ctx, newPost("backend")); err != nil {
		t.Fatalf("create post: %v", err)
	}

	if _, err := f.assignments.Assign(ctx, "nope", 1, "screening", nil, 1, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected missing post, got %v", err)
	}
	if _, err := f.assignments.Assign(ctx, "backend", 1, "ghost", nil, 1, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected missing step, got %v", err)
	}
	if _, err := f.assignments.Assign(ctx, "backend", 1, "screening", intp(3), 1, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected missing step version, got %v", err)
	}

	a, err := f.assignments.Assign(ctx, "backend", 1, "screening", nil, 1, "")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if a.Status != models.AssignmentStatusPending || a.Step == nil || a.Step.Version != 1 {
		t.Fatalf("unexpected assignment: %#v", a)
	}
	if _, err := f.assignments.Assign(ctx, "backend", 1, "screening", nil, 2, ""); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}
	// a pinned version is a different assignment
	if _, err := f.assignments.Assign(ctx, "backend", 1, "screening", intp(1), 2, ""); err != nil {
		t.Fatalf("Assign pinned: %v", err)
	}

	if err := f.assignments.UpdateStatus(ctx, a.ID, models.AssignmentStatusActive); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := f.assignments.UpdateStatus(ctx, "missing", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	list, err := f.assignments.ListByJobPost(ctx, "backend", 1)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListByJobPost: %d, %v", len(list), err)
	}
	if list[0].Status != models.AssignmentStatusActive || list[1].StepNumber != 2 {
		t.Fatalf("unexpected list: %#v", list)
	}

	if err := f.assignments.Unassign(ctx, "backend", 1, "screening", intp(1)); err != nil {
		t.Fatalf("Unassign: %v", err)
	}
	if err := f.assignments.Unassign(ctx, "backend", 1, "screening", intp(1)); err != nil {
		t.Fatalf("Unassign twice: %v", err)
	}
	list, _ = f.assignments.ListByJobPost(ctx, "backend", 1)
	if len(list) != 1 {
		t.Fatalf("expected one assignment left, got %d", len(list))
	}
}

func TestCreateWithStepsSkipsUnknownSteps(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.mustStep(t, "screening")
	req := &jobpost.WithStepsRequest{
		JobPost: *newPost("backend"),
		Steps: []jobpost.StepItem{
			{ExistingStepName: "screening", StepNumber: 1},
			{ExistingStepName: "ghost", StepNumber: 2},
			{NewStep: newStep("offer"), StepNumber: 3},
		},
	}
	d, err := f.orch.CreateWithSteps(ctx, req)
	if err != nil {
		t.Fatalf("CreateWithSteps: %v", err)
	}
	if got := stepNames(d); !equalStrings(got, []string{"screening", "offer"}) {
		t.Fatalf("unexpected steps: %v", got)
	}
	if _, err := f.orch.CreateWithSteps(ctx, req); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict on existing name, got %v", err)
	}
}

func TestUpdateWithStepsSyncsAssignments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, n := range []string{"a", "b", "c"} {
		f.mustStep(t, n)
	}
	d, err := f.orch.CreateWithSteps(ctx, &jobpost.WithStepsRequest{
		JobPost: *newPost("backend"),
		Steps: []jobpost.StepItem{
			{ExistingStepName: "a", StepNumber: 1},
			{ExistingStepName: "b", StepNumber: 2},
			{ExistingStepName: "c", StepNumber: 3},
		},
	})
	if err != nil {
		t.Fatalf("CreateWithSteps: %v", err)
	}
	if err := f.assignments.UpdateStatus(ctx, d.Steps[0].ID, models.AssignmentStatusActive); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	post := d.JobPost
	post.JobDescription = "reordered"
	got, err := f.orch.UpdateWithSteps(ctx, &jobpost.WithStepsRequest{
		JobPost: post,
		Steps: []jobpost.StepItem{
			{ExistingStepName: "b", StepNumber: 1},
			{ExistingStepName: "a", StepNumber: 2},
			{NewStep: newStep("d"), StepNumber: 3},
		},
	})
	if err != nil {
		t.Fatalf("UpdateWithSteps: %v", err)
	}
	if names := stepNames(got); !equalStrings(names, []string{"b", "a", "d"}) {
		t.Fatalf("unexpected order: %v", names)
	}
	if got.Steps[1].Status != models.AssignmentStatusActive {
		t.Fatalf("re-numbered assignment must keep its status, got %q", got.Steps[1].Status)
	}
	if got.Steps[2].Status != models.AssignmentStatusPending || got.JobDescription != "reordered" {
		t.Fatalf("unexpected detail: %#v", got)
	}

	// nil steps leaves assignments alone
	post = got.JobPost
	got, err = f.orch.UpdateWithSteps(ctx, &jobpost.WithStepsRequest{JobPost: post})
	if err != nil || len(got.Steps) != 3 {
		t.Fatalf("UpdateWithSteps without steps: %d, %v", len(got.Steps), err)
	}
}

func TestUpdateWithStepsBlockedByApplications(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.mustStep(t, "screening")
	d, err := f.orch.CreateWithSteps(ctx, &jobpost.WithStepsRequest{
		JobPost: *newPost("backend"),
		Steps:   []jobpost.StepItem{{ExistingStepName: "screening", StepNumber: 1}},
	})
	if err != nil {
		t.Fatalf("CreateWithSteps: %v", err)
	}
	f.addApplication(t, "backend", 1)

	_, err = f.orch.UpdateWithSteps(ctx, &jobpost.WithStepsRequest{JobPost: d.JobPost, Steps: []jobpost.StepItem{}})
	if !errors.Is(err, jobpost.ErrHasApplications) || !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected applications conflict, got %v", err)
	}

	got, err := f.orch.UpdateWithSteps(ctx, &jobpost.WithStepsRequest{
		JobPost:             d.JobPost,
		ShouldUpdateVersion: true,
		Steps:               []jobpost.StepItem{{ExistingStepName: "screening", ExistingStepVersion: intp(1), StepNumber: 1}},
	})
	if err != nil {
		t.Fatalf("UpdateWithSteps new version: %v", err)
	}
	if got.Version != 2 || len(got.Steps) != 1 || got.Steps[0].StepVersion == nil {
		t.Fatalf("unexpected new version: %#v", got)
	}
}

func TestDuplicateJobPost(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.mustStep(t, "screening")
	f.mustStep(t, "offer")
	src := newPost("backend")
	src.Status = models.JobPostStatusPublished
	d, err := f.orch.CreateWithSteps(ctx, &jobpost.WithStepsRequest{
		JobPost: *src,
		Steps: []jobpost.StepItem{
			{ExistingStepName: "screening", StepNumber: 1},
			{ExistingStepName: "offer", ExistingStepVersion: intp(1), StepNumber: 2},
		},
	})
	if err != nil {
		t.Fatalf("CreateWithSteps: %v", err)
	}
	for _, s := range d.Steps {
		if err := f.assignments.UpdateStatus(ctx, s.ID, models.AssignmentStatusActive); err != nil {
			t.Fatalf("UpdateStatus: %v", err)
		}
	}

	if _, err := f.orch.Duplicate(ctx, "backend", 1, "copy", ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
	if _, err := f.orch.Duplicate(ctx, "backend", 1, "backend", "x"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := f.orch.Duplicate(ctx, "ghost", 1, "copy", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	cp, err := f.orch.Duplicate(ctx, "backend", 1, "backend-eu", "Backend Engineer (EU)")
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if cp.Version != 1 || cp.JobTitle != "Backend Engineer (EU)" || cp.Status != models.JobPostStatusPublished {
		t.Fatalf("unexpected copy: %#v", cp.JobPost)
	}
	if len(cp.Steps) != 2 {
		t.Fatalf("expected two copied steps, got %d", len(cp.Steps))
	}
	for _, s := range cp.Steps {
		if s.Status != models.AssignmentStatusPending {
			t.Fatalf("copied assignment must be pending, got %q", s.Status)
		}
	}
	if cp.Steps[1].StepVersion == nil || *cp.Steps[1].StepVersion != 1 {
		t.Fatalf("pinned version must be copied: %#v", cp.Steps[1])
	}
}

func TestDeleteJobPost(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.mustStep(t, "screening")
	for _, name := range []string{"with-apps", "without-apps"} {
		if _, err := f.orch.CreateWithSteps(ctx, &jobpost.WithStepsRequest{
			JobPost: *newPost(name),
			Steps:   []jobpost.StepItem{{ExistingStepName: "screening", StepNumber: 1}},
		}); err != nil {
			t.Fatalf("CreateWithSteps %s: %v", name, err)
		}
	}
	f.addApplication(t, "with-apps", 1)

	soft, err := f.orch.Delete(ctx, "with-apps", 1)
	if err != nil || !soft {
		t.Fatalf("expected soft delete, got soft=%v err=%v", soft, err)
	}
	p, err := f.repo.JobPost.GetJobPost(ctx, "with-apps", 1)
	if err != nil || p == nil || !p.IsDeleted {
		t.Fatalf("expected soft deleted row, got %#v, %v", p, err)
	}

	soft, err = f.orch.Delete(ctx, "without-apps", 1)
	if err != nil || soft {
		t.Fatalf("expected hard delete, got soft=%v err=%v", soft, err)
	}
	p, _ = f.repo.JobPost.GetJobPost(ctx, "without-apps", 1)
	if p != nil {
		t.Fatalf("expected row removed, got %#v", p)
	}
	left, _ := f.repo.Assignment.ListAssignmentsByJobPost(ctx, "without-apps", 1)
	if len(left) != 0 {
		t.Fatalf("assignments must cascade, got %d", len(left))
	}

	if _, err := f.orch.Delete(ctx, "ghost", 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPublishedGates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.posts.Create(ctx, newPost("draft")); err != nil {
		t.Fatalf("create: %v", err)
	}
	pub := newPost("live")
	pub.Status = models.JobPostStatusPublished
	if _, err := f.posts.Create(ctx, pub); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.orch.GetPublished(ctx, "draft", 1); !errors.Is(err, apperr.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := f.orch.GetLatestPublished(ctx, "draft"); !errors.Is(err, apperr.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, err := f.orch.GetPublished(ctx, "ghost", 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if d, err := f.orch.GetLatestPublished(ctx, "live"); err != nil || d.Name != "live" {
		t.Fatalf("GetLatestPublished: %#v, %v", d, err)
	}

	items, total, err := f.orch.ListPublished(ctx, models.JobPostFilter{Status: models.JobPostStatusDraft}, models.Page{Limit: 10})
	if err != nil || total != 1 || len(items) != 1 || items[0].Name != "live" {
		t.Fatalf("ListPublished: %v, %d, %v", items, total, err)
	}
}
