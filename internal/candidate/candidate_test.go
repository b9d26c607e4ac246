package candidate_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	dbfs "github.com/garnizeh/recruiter/db"
	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/internal/candidate"
	dbpkg "github.com/garnizeh/recruiter/internal/db"
	"github.com/garnizeh/recruiter/internal/repository/sqlite"
	"github.com/garnizeh/recruiter/pkg/models"
)

type fakeRecorder struct {
	tables []string
}

func (f *fakeRecorder) Record(_ context.Context, _, _, table string, _ bool) {
	f.tables = append(f.tables, table)
}

func setup(t *testing.T) (*candidate.Service, *fakeRecorder) {
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
	rec := &fakeRecorder{}
	return candidate.NewService(sqlite.New(d, nil).Repository(), rec, nil), rec
}

func strp(s string) *string { return &s }
func intp(v int) *int       { return &v }

func TestProfileLifecycle(t *testing.T) {
	svc, rec := setup(t)
	ctx := context.Background()

	p, err := svc.GetOrCreateProfile(ctx, "user-1", "", "Ana@Example.com", []string{models.RoleCandidate})
	if err != nil {
		t.Fatalf("GetOrCreateProfile: %v", err)
	}
	if p.Name != "Ana" || p.Email != "ana@example.com" {
		t.Fatalf("unexpected profile: %#v", p)
	}
	again, err := svc.GetOrCreateProfile(ctx, "user-1", "Other", "other@example.com", nil)
	if err != nil || again.ID != p.ID {
		t.Fatalf("second call must return the same profile: %#v, %v", again, err)
	}

	c1, err := svc.EnsureCandidate(ctx, p.ID)
	if err != nil {
		t.Fatalf("EnsureCandidate: %v", err)
	}
	if !strings.HasPrefix(c1.CandidateCode, "CAND-") || len(c1.CandidateCode) != 13 {
		t.Fatalf("unexpected candidate code %q", c1.CandidateCode)
	}
	c2, _ := svc.EnsureCandidate(ctx, p.ID)
	if c2.ID != c1.ID {
		t.Fatalf("EnsureCandidate must be idempotent")
	}
	byUser, err := svc.CandidateForUser(ctx, "user-1")
	if err != nil || byUser.ID != c1.ID {
		t.Fatalf("CandidateForUser: %#v, %v", byUser, err)
	}
	if _, err := svc.CandidateForUser(ctx, "nobody"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := svc.SetResumeURL(ctx, p.ID, "https://files/cv.pdf"); err != nil {
		t.Fatalf("SetResumeURL: %v", err)
	}
	updated, err := svc.UpdateProfile(ctx, "user-1", &models.UserProfile{
		UserID: "hijack",
		Name:   "Ana Lima",
		Email:  "ana@example.com",
		Roles:  []string{models.RoleAdmin},
		Age:    intp(30),
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.UserID != "user-1" || updated.ResumeURL != "https://files/cv.pdf" || len(updated.Roles) != 1 || updated.Roles[0] != models.RoleCandidate {
		t.Fatalf("protected fields changed: %#v", updated)
	}
	if _, err := svc.UpdateProfile(ctx, "user-1", &models.UserProfile{Name: "x", Email: "x@example.com", Age: intp(3)}); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected invalid age, got %v", err)
	}

	if len(rec.tables) == 0 || rec.tables[0] != "user_profiles" {
		t.Fatalf("changes not recorded: %v", rec.tables)
	}
}

func TestSectionOwnership(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	ana, _ := svc.GetOrCreateProfile(ctx, "u1", "Ana", "ana@example.com", nil)
	bob, _ := svc.GetOrCreateProfile(ctx, "u2", "Bob", "bob@example.com", nil)

	skill, err := svc.Skills.Add(ctx, ana.ID, &models.Skill{SkillName: "Go", YearsExperience: intp(5)})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := svc.Skills.Add(ctx, ana.ID, &models.Skill{}); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected invalid skill, got %v", err)
	}
	if _, err := svc.Education.Add(ctx, ana.ID, &models.Education{Institution: "USP", StartDate: strp("2010")}); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected invalid date, got %v", err)
	}

	if _, err := svc.Skills.Update(ctx, bob.ID, skill.ID, &models.Skill{SkillName: "Rust"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	got, err := svc.Skills.Update(ctx, ana.ID, skill.ID, &models.Skill{SkillName: "Go", Proficiency: "Expert"})
	if err != nil || got.Proficiency != "Expert" || got.UserProfileID != ana.ID {
		t.Fatalf("Update: %#v, %v", got, err)
	}

	if err := svc.Skills.Delete(ctx, bob.ID, skill.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden delete, got %v", err)
	}
	if err := svc.Skills.Delete(ctx, ana.ID, skill.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Skills.Get(ctx, ana.ID, skill.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("deleted skill must be not found, got %v", err)
	}
	items, err := svc.Skills.List(ctx, ana.ID)
	if err != nil || len(items) != 0 {
		t.Fatalf("List after delete: %v, %v", items, err)
	}
}

func TestApplyExtractedCV(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	p, _ := svc.GetOrCreateProfile(ctx, "u1", "Ana", "ana@example.com", nil)
	p.Nationality = "Brazilian"
	if _, err := svc.UpdateProfile(ctx, "u1", p); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if _, err := svc.Skills.Add(ctx, p.ID, &models.Skill{SkillName: "Go"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	cv := &models.CVExtraction{
		Name:        "Ana Lima",
		PhoneNumber: "+55 11 99999-0000",
		Nationality: "Portuguese",
		Bio:         "Backend engineer",
		Skills: []models.Skill{
			{SkillName: " go "},
			{SkillName: "PostgreSQL"},
			{SkillName: ""},
		},
		Experience: []models.Experience{
			{Title: "Engineer", Organization: "Acme", StartDate: strp("2019-03-01"), EndDate: strp("Present")},
			{Title: "engineer", Organization: "ACME"},
		},
		Education: []models.Education{{Institution: "USP", Degree: "BSc", StartDate: strp("2012")}},
		Awards:    []models.AwardAchievement{{Title: "Hackathon", Year: intp(1800)}},
	}

	res, err := svc.ApplyExtractedCV(ctx, p.ID, cv)
	if err != nil {
		t.Fatalf("ApplyExtractedCV: %v", err)
	}
	if res.Skills != 1 || res.Experience != 1 || res.Education != 1 || res.Awards != 1 || !res.ProfileUpdated {
		t.Fatalf("unexpected merge result: %#v", res)
	}

	full, err := svc.GetFullProfile(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetFullProfile: %v", err)
	}
	if full.Profile.Nationality != "Brazilian" || full.Profile.Bio != "Backend engineer" || full.Profile.Name != "Ana" {
		t.Fatalf("scalar merge wrong: %#v", full.Profile)
	}
	if len(full.Skills) != 2 || len(full.Experience) != 1 {
		t.Fatalf("sections wrong: %d skills, %d experience", len(full.Skills), len(full.Experience))
	}
	exp := full.Experience[0]
	if exp.StartDate == nil || *exp.StartDate != "2019-03-01" || exp.EndDate != nil {
		t.Fatalf("dates not cleaned: %#v", exp)
	}
	if full.Education[0].StartDate != nil || full.Awards[0].Year != nil {
		t.Fatalf("invalid values kept: %#v %#v", full.Education[0], full.Awards[0])
	}

	res, err = svc.ApplyExtractedCV(ctx, p.ID, cv)
	if err != nil || res.Skills+res.Experience+res.Education+res.Awards != 0 || res.ProfileUpdated {
		t.Fatalf("second apply must be a no-op: %#v, %v", res, err)
	}

	if _, err := svc.ApplyExtractedCV(ctx, "missing", cv); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
