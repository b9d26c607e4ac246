package jobpost

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/repository"
)

// StepItem is one step of a post in a with-steps request. It either names an
// existing step (nil version tracks the latest) or carries a new step definition.
type StepItem struct {
	ExistingStepName    string              `json:"existing_step_name,omitempty"`
	ExistingStepVersion *int                `json:"existing_step_version,omitempty"`
	NewStep             *models.JobPostStep `json:"new_step,omitempty"`
	StepNumber          int                 `json:"step_number"`
}

// WithStepsRequest creates or updates a post together with its steps. A nil
// Steps leaves assignments untouched on update.
type WithStepsRequest struct {
	models.JobPost
	ShouldUpdateVersion bool       `json:"should_update_version"`
	Steps               []StepItem `json:"steps"`
}

// Detail is a post with its resolved steps.
type Detail struct {
	models.JobPost
	Steps []models.AssignmentWithStep `json:"steps"`
}

// ErrHasApplications is returned when an in-place update targets a post with applications.
var ErrHasApplications = apperr.E(apperr.ErrConflict, "This job post has existing applications. Create a new version to make changes.")

// Orchestrator coordinates posts, steps and assignments.
type Orchestrator struct {
	repo        *repository.Repository
	posts       *Service
	steps       *StepService
	assignments *AssignmentService
	logger      *slog.Logger
}

func NewOrchestrator(repo *repository.Repository, posts *Service, steps *StepService, assignments *AssignmentService, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{repo: repo, posts: posts, steps: steps, assignments: assignments, logger: logger}
}

// CreateWithSteps creates version 1 of a new post and assigns its steps.
// Steps that cannot be resolved or assigned are logged and skipped.
func (o *Orchestrator) CreateWithSteps(ctx context.Context, req *WithStepsRequest) (*Detail, error) {
	name := strings.TrimSpace(req.Name)
	last, err := o.repo.JobPost.MaxJobPostVersion(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("max job post version: %w", err)
	}
	if last > 0 {
		return nil, apperr.E(apperr.ErrConflict, fmt.Sprintf("job post %q already exists", name))
	}

	post := req.JobPost
	created, err := o.posts.Create(ctx, &post)
	if err != nil {
		return nil, err
	}
	o.assignAll(ctx, created, req.Steps)
	return o.GetWithSteps(ctx, created.Name, created.Version)
}

// UpdateWithSteps updates a post and, when Steps is set, syncs its assignments.
func (o *Orchestrator) UpdateWithSteps(ctx context.Context, req *WithStepsRequest) (*Detail, error) {
	if _, err := o.posts.Get(ctx, req.Name, req.Version); err != nil {
		return nil, err
	}
	if !req.ShouldUpdateVersion {
		n, err := o.repo.Application.CountApplicationsByJobPost(ctx, req.Name, req.Version)
		if err != nil {
			return nil, fmt.Errorf("count applications: %w", err)
		}
		if n > 0 {
			return nil, ErrHasApplications
		}
	}

	post := req.JobPost
	updated, err := o.posts.Update(ctx, &post, req.ShouldUpdateVersion)
	if err != nil {
		return nil, err
	}

	if req.ShouldUpdateVersion {
		o.assignAll(ctx, updated, req.Steps)
	} else if req.Steps != nil {
		if err := o.syncAssignments(ctx, updated, req.Steps); err != nil {
			return nil, err
		}
	}
	return o.GetWithSteps(ctx, updated.Name, updated.Version)
}

type desiredStep struct {
	name    string
	version *int
	number  int
}

func assignmentKey(name string, version *int) string {
	return name + "@" + versionLabel(version)
}

// resolveItem creates a new step when the item carries one. ok is false when
// the item should be skipped.
func (o *Orchestrator) resolveItem(ctx context.Context, item StepItem) (desiredStep, bool) {
	if item.NewStep != nil {
		step := *item.NewStep
		created, err := o.steps.Create(ctx, &step)
		if err != nil {
			o.logger.Warn("skip new step", slog.String("step", item.NewStep.Name), slog.Any("err", err))
			return desiredStep{}, false
		}
		return desiredStep{name: created.Name, number: item.StepNumber}, true
	}

	name := strings.TrimSpace(item.ExistingStepName)
	if name == "" {
		o.logger.Warn("skip step item without a name", slog.Int("step_number", item.StepNumber))
		return desiredStep{}, false
	}
	var step *models.JobPostStep
	var err error
	if item.ExistingStepVersion != nil {
		step, err = o.repo.Step.GetStep(ctx, name, *item.ExistingStepVersion)
	} else {
		step, err = o.repo.Step.GetLatestStep(ctx, name)
	}
	if err != nil || step == nil {
		o.logger.Warn("skip unknown step", slog.String("step", name), slog.Any("err", err))
		return desiredStep{}, false
	}
	return desiredStep{name: name, version: item.ExistingStepVersion, number: item.StepNumber}, true
}

func (o *Orchestrator) assignAll(ctx context.Context, post *models.JobPost, items []StepItem) {
	for _, item := range items {
		d, ok := o.resolveItem(ctx, item)
		if !ok {
			continue
		}
		if _, err := o.assignments.Assign(ctx, post.Name, post.Version, d.name, d.version, d.number, models.AssignmentStatusPending); err != nil {
			o.logger.Warn("skip step assignment",
				slog.String("job_post", post.Name),
				slog.String("step", d.name),
				slog.Any("err", err),
			)
		}
	}
}

// syncAssignments removes stale assignments first, then re-numbers moved ones
// and finally adds the missing ones.
func (o *Orchestrator) syncAssignments(ctx context.Context, post *models.JobPost, items []StepItem) error {
	desired := map[string]desiredStep{}
	var order []string
	for _, item := range items {
		d, ok := o.resolveItem(ctx, item)
		if !ok {
			continue
		}
		k := assignmentKey(d.name, d.version)
		if _, seen := desired[k]; !seen {
			order = append(order, k)
		}
		desired[k] = d
	}

	current, err := o.repo.Assignment.ListAssignmentsByJobPost(ctx, post.Name, post.Version)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}
	existing := map[string]bool{}

	for _, a := range current {
		k := assignmentKey(a.StepName, a.StepVersion)
		if _, keep := desired[k]; keep {
			existing[k] = true
			continue
		}
		if err := o.assignments.Unassign(ctx, post.Name, post.Version, a.StepName, a.StepVersion); err != nil {
			return err
		}
	}

	for _, a := range current {
		k := assignmentKey(a.StepName, a.StepVersion)
		d, keep := desired[k]
		if !keep || d.number == a.StepNumber {
			continue
		}
		if err := o.assignments.Unassign(ctx, post.Name, post.Version, a.StepName, a.StepVersion); err != nil {
			return err
		}
		if _, err := o.assignments.Assign(ctx, post.Name, post.Version, d.name, d.version, d.number, a.Status); err != nil {
			return err
		}
	}

	for _, k := range order {
		if existing[k] {
			continue
		}
		d := desired[k]
		if _, err := o.assignments.Assign(ctx, post.Name, post.Version, d.name, d.version, d.number, models.AssignmentStatusPending); err != nil {
			return err
		}
	}
	return nil
}

// Duplicate copies a post version under newName as version 1, with its
// assignments reset to pending.
func (o *Orchestrator) Duplicate(ctx context.Context, name string, version int, newName, newJobTitle string) (*Detail, error) {
	newName = strings.TrimSpace(newName)
	newJobTitle = strings.TrimSpace(newJobTitle)
	if newName == "" || newJobTitle == "" {
		return nil, apperr.E(apperr.ErrInvalid, "new name and new job title are required")
	}

	src, err := o.posts.Get(ctx, name, version)
	if err != nil {
		return nil, err
	}
	last, err := o.repo.JobPost.MaxJobPostVersion(ctx, newName)
	if err != nil {
		return nil, fmt.Errorf("max job post version: %w", err)
	}
	if last > 0 {
		return nil, apperr.E(apperr.ErrConflict, fmt.Sprintf("job post %q already exists", newName))
	}

	assigned, err := o.repo.Assignment.ListAssignmentsByJobPost(ctx, src.Name, src.Version)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	cp := *src
	cp.Name = newName
	cp.JobTitle = newJobTitle
	cp.MinimumRequirements = append([]string(nil), src.MinimumRequirements...)
	created, err := o.posts.Create(ctx, &cp)
	if err != nil {
		return nil, err
	}

	for _, a := range assigned {
		if _, err := o.assignments.Assign(ctx, created.Name, created.Version, a.StepName, a.StepVersion, a.StepNumber, models.AssignmentStatusPending); err != nil {
			o.logger.Warn("skip duplicated assignment", slog.String("step", a.StepName), slog.Any("err", err))
		}
	}
	return o.GetWithSteps(ctx, created.Name, created.Version)
}

// Delete soft-deletes a post that has applications and removes it otherwise.
func (o *Orchestrator) Delete(ctx context.Context, name string, version int) (soft bool, err error) {
	if _, err := o.posts.Get(ctx, name, version); err != nil {
		return false, err
	}
	n, err := o.repo.Application.CountApplicationsByJobPost(ctx, name, version)
	if err != nil {
		return false, fmt.Errorf("count applications: %w", err)
	}
	if n > 0 {
		return true, o.posts.SoftDelete(ctx, name, version)
	}
	return false, o.posts.Delete(ctx, name, version)
}

func (o *Orchestrator) GetWithSteps(ctx context.Context, name string, version int) (*Detail, error) {
	post, err := o.posts.Get(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return o.detail(ctx, post)
}

func (o *Orchestrator) GetLatestWithSteps(ctx context.Context, name string) (*Detail, error) {
	post, err := o.posts.GetLatest(ctx, name)
	if err != nil {
		return nil, err
	}
	return o.detail(ctx, post)
}

func (o *Orchestrator) detail(ctx context.Context, post *models.JobPost) (*Detail, error) {
	steps, err := o.assignments.ListByJobPost(ctx, post.Name, post.Version)
	if err != nil {
		return nil, err
	}
	return &Detail{JobPost: *post, Steps: steps}, nil
}

func notAvailable(name string) error {
	return apperr.E(apperr.ErrUnavailable, fmt.Sprintf("job post %q is not available", name))
}

// GetPublished returns the version only when it is published.
func (o *Orchestrator) GetPublished(ctx context.Context, name string, version int) (*Detail, error) {
	d, err := o.GetWithSteps(ctx, name, version)
	if err != nil {
		return nil, err
	}
	if d.Status != models.JobPostStatusPublished {
		return nil, notAvailable(name)
	}
	return d, nil
}

func (o *Orchestrator) GetLatestPublished(ctx context.Context, name string) (*Detail, error) {
	d, err := o.GetLatestWithSteps(ctx, name)
	if err != nil {
		return nil, err
	}
	if d.Status != models.JobPostStatusPublished {
		return nil, notAvailable(name)
	}
	return d, nil
}

// ListPublished backs the public job board.
func (o *Orchestrator) ListPublished(ctx context.Context, f models.JobPostFilter, page models.Page) ([]models.JobPost, int64, error) {
	f.Status = models.JobPostStatusPublished
	f.IncludeDeleted = false
	return o.posts.ListLatest(ctx, f, page)
}
