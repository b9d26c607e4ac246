package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	dbfs "github.com/garnizeh/recruiter/db"
	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/internal/catalog"
	dbpkg "github.com/garnizeh/recruiter/internal/db"
	"github.com/garnizeh/recruiter/internal/repository/sqlite"
	"github.com/garnizeh/recruiter/pkg/models"
)

func setup(t *testing.T) *catalog.Service {
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
	return catalog.NewService(sqlite.New(d, nil).Repository(), nil, nil)
}

func intp(v int) *int { return &v }

func prompt(name, content string) *models.Prompt {
	return &models.Prompt{Name: name, Category: "interview", Content: content, Tags: []string{"voice"}}
}

func TestPromptVersions(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	p1, err := svc.CreatePrompt(ctx, prompt("greeting", "hello"))
	if err != nil || p1.Version != 1 {
		t.Fatalf("CreatePrompt: %#v, %v", p1, err)
	}
	p2, err := svc.CreatePrompt(ctx, prompt("greeting", "hi there"))
	if err != nil || p2.Version != 2 {
		t.Fatalf("CreatePrompt v2: %#v, %v", p2, err)
	}

	latest, err := svc.GetPrompt(ctx, "greeting", nil)
	if err != nil || latest.Content != "hi there" {
		t.Fatalf("GetPrompt latest: %#v, %v", latest, err)
	}
	if err := svc.DeletePrompt(ctx, "greeting", 2); err != nil {
		t.Fatalf("DeletePrompt: %v", err)
	}
	latest, err = svc.GetPrompt(ctx, "greeting", nil)
	if err != nil || latest.Version != 1 {
		t.Fatalf("expected v1 after delete, got %#v, %v", latest, err)
	}
	if _, err := svc.GetPrompt(ctx, "greeting", intp(2)); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("deleted version must be hidden, got %v", err)
	}

	if _, err := svc.CreatePrompt(ctx, &models.Prompt{Name: "empty", Category: "x"}); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected invalid prompt, got %v", err)
	}

	items, total, err := svc.ListPrompts(ctx, "cv", models.Page{Limit: 10})
	if err != nil || total != 1 || items[0].Name != "cv-extraction" {
		t.Fatalf("ListPrompts: %v, %d, %v", items, total, err)
	}
}

func TestInterviewConfigurationResolvesPrompts(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	cfg := &models.InterviewConfiguration{
		Name:                  "default",
		Modality:              "voice",
		Duration:              intp(900),
		InstructionPromptName: "instruction",
		PersonalityPromptName: "personality",
		QuestionsPromptName:   "questions",
	}
	if _, err := svc.CreateInterviewConfiguration(ctx, cfg); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected invalid with missing prompts, got %v", err)
	}

	for _, n := range []string{"instruction", "personality", "questions"} {
		if _, err := svc.CreatePrompt(ctx, prompt(n, n+" v1")); err != nil {
			t.Fatalf("CreatePrompt %s: %v", n, err)
		}
	}
	if _, err := svc.CreatePrompt(ctx, prompt("questions", "questions v2")); err != nil {
		t.Fatalf("CreatePrompt: %v", err)
	}

	bad := *cfg
	bad.InstructionPromptVersion = intp(0)
	if _, err := svc.CreateInterviewConfiguration(ctx, &bad); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected invalid for version 0, got %v", err)
	}
	pinned := *cfg
	pinned.PersonalityPromptVersion = intp(7)
	if _, err := svc.CreateInterviewConfiguration(ctx, &pinned); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("expected invalid for missing version, got %v", err)
	}

	created, err := svc.CreateInterviewConfiguration(ctx, cfg)
	if err != nil || created.Version != 1 {
		t.Fatalf("CreateInterviewConfiguration: %#v, %v", created, err)
	}

	resolved, err := svc.ResolvePrompts(ctx, created)
	if err != nil {
		t.Fatalf("ResolvePrompts: %v", err)
	}
	if resolved.Questions.Version != 2 || resolved.Instruction.Version != 1 || resolved.Personality.Content != "personality v1" {
		t.Fatalf("unexpected resolution: %#v", resolved)
	}

	again := *cfg
	again.QuestionsPromptVersion = intp(1)
	v2, err := svc.CreateInterviewConfiguration(ctx, &again)
	if err != nil || v2.Version != 2 {
		t.Fatalf("second configuration version: %#v, %v", v2, err)
	}
	resolved, _ = svc.ResolvePrompts(ctx, v2)
	if resolved.Questions.Version != 1 {
		t.Fatalf("pinned prompt version ignored: %#v", resolved.Questions)
	}

	got, err := svc.GetInterviewConfiguration(ctx, "default", nil)
	if err != nil || got.Version != 2 {
		t.Fatalf("GetInterviewConfiguration latest: %#v, %v", got, err)
	}
	if err := svc.DeleteInterviewConfiguration(ctx, "default", 2); err != nil {
		t.Fatalf("DeleteInterviewConfiguration: %v", err)
	}
	items, total, err := svc.ListInterviewConfigurations(ctx, models.Page{})
	if err != nil || total != 1 || items[0].Version != 1 {
		t.Fatalf("ListInterviewConfigurations: %v, %d, %v", items, total, err)
	}
}

func TestQuestionnaireTemplates(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		tpl     models.QuestionnaireTemplate
		wantErr error
	}{
		{
			name:    "bad type",
			tpl:     models.QuestionnaireTemplate{Name: "q", Title: "Q", TemplateType: "Quiz"},
			wantErr: apperr.ErrInvalid,
		},
		{
			name:    "bad json",
			tpl:     models.QuestionnaireTemplate{Name: "q", Title: "Q", TemplateType: "Assessment", Questions: json.RawMessage(`[{`)},
			wantErr: apperr.ErrInvalid,
		},
		{
			name: "valid",
			tpl: models.QuestionnaireTemplate{Name: "q", Title: "Q", TemplateType: "Assessment",
				Questions: json.RawMessage(`[{"text":"2+2?","options":["3","4"],"answer":1}]`)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := tt.tpl
			_, err := svc.CreateQuestionnaireTemplate(ctx, &tpl)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateQuestionnaireTemplate: %v", err)
			}
		})
	}

	got, err := svc.GetQuestionnaireTemplate(ctx, "q", intp(1))
	if err != nil || got.Title != "Q" {
		t.Fatalf("GetQuestionnaireTemplate: %#v, %v", got, err)
	}
	if err := svc.DeleteQuestionnaireTemplate(ctx, "q", 1); err != nil {
		t.Fatalf("DeleteQuestionnaireTemplate: %v", err)
	}
	if _, err := svc.GetQuestionnaireTemplate(ctx, "q", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
