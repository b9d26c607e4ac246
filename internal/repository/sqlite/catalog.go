package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/garnizeh/recruiter/pkg/models"
)

// prompts, interview configurations and questionnaire templates share the
// name+version layout; latestClause selects the newest live row per name.
const latestClause = `t.is_deleted = 0 AND t.version = (SELECT MAX(version) FROM %s WHERE name = t.name AND is_deleted = 0)`

func (r *SQLiteRepo) maxVersion(ctx context.Context, table, name string) (int, error) {
	var v sql.NullInt64
	if err := r.conn.QueryRow(ctx, `SELECT MAX(version) FROM `+table+` WHERE name = ?`, name).Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

func (r *SQLiteRepo) softDelete(ctx context.Context, table, name string, version int) error {
	_, err := r.conn.Exec(ctx, `UPDATE `+table+` SET is_deleted = 1, updated_at = ? WHERE name = ? AND version = ?`, ms(now()), name, version)
	return err
}

// Prompts

const promptColumns = `name, version, category, content, locale, tags, is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreatePrompt(ctx context.Context, p *models.Prompt) error {
	if p == nil {
		return fmt.Errorf("prompt is nil")
	}

	t := now()
	p.CreatedAt, p.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO prompts (`+promptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Version, p.Category, p.Content, nullString(p.Locale), joinList(p.Tags), boolInt(p.IsDeleted), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetPrompt(ctx context.Context, name string, version int) (*models.Prompt, error) {
	return scanPrompt(r.conn.QueryRow(ctx, `SELECT `+promptColumns+` FROM prompts WHERE name = ? AND version = ?`, name, version))
}

func (r *SQLiteRepo) GetLatestPrompt(ctx context.Context, name string) (*models.Prompt, error) {
	return scanPrompt(r.conn.QueryRow(ctx, `SELECT `+promptColumns+` FROM prompts WHERE name = ? AND is_deleted = 0 ORDER BY version DESC LIMIT 1`, name))
}

func (r *SQLiteRepo) MaxPromptVersion(ctx context.Context, name string) (int, error) {
	return r.maxVersion(ctx, "prompts", name)
}

func (r *SQLiteRepo) ListLatestPrompts(ctx context.Context, category string, p models.Page) ([]models.Prompt, int64, error) {
	clause := fmt.Sprintf(latestClause, "prompts")
	var args []any
	if category != "" {
		clause += ` AND t.category = ?`
		args = append(args, category)
	}

	var total int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM prompts t WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageArgs(p.Limit, p.Offset)
	rows, err := r.conn.QueryRows(ctx, `SELECT `+promptColumns+` FROM prompts t WHERE `+clause+` ORDER BY t.name LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.Prompt{}
	for rows.Next() {
		pr, err := scanPrompt(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *pr)
	}
	return out, total, rows.Err()
}

func (r *SQLiteRepo) SoftDeletePrompt(ctx context.Context, name string, version int) error {
	return r.softDelete(ctx, "prompts", name, version)
}

func scanPrompt(row scanner) (*models.Prompt, error) {
	var p models.Prompt
	var locale sql.NullString
	var tags string
	var deleted int
	var created, updated int64
	if err := row.Scan(&p.Name, &p.Version, &p.Category, &p.Content, &locale, &tags, &deleted, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Locale = locale.String
	p.Tags = splitList(tags)
	p.IsDeleted = deleted != 0
	p.CreatedAt, p.UpdatedAt = fromMs(created), fromMs(updated)
	return &p, nil
}

// Interview configurations

const interviewConfigColumns = `name, version, modality, tone, probing_depth, focus_area, language, duration,
	instruction_prompt_name, instruction_prompt_version, personality_prompt_name, personality_prompt_version,
	questions_prompt_name, questions_prompt_version, is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreateInterviewConfiguration(ctx context.Context, c *models.InterviewConfiguration) error {
	if c == nil {
		return fmt.Errorf("interview configuration is nil")
	}

	t := now()
	c.CreatedAt, c.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO interview_configurations (`+interviewConfigColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Version, c.Modality, nullString(c.Tone), nullString(c.ProbingDepth), nullString(c.FocusArea),
		nullString(c.Language), nullInt(c.Duration), c.InstructionPromptName, nullInt(c.InstructionPromptVersion),
		c.PersonalityPromptName, nullInt(c.PersonalityPromptVersion), c.QuestionsPromptName, nullInt(c.QuestionsPromptVersion),
		boolInt(c.IsDeleted), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetInterviewConfiguration(ctx context.Context, name string, version int) (*models.InterviewConfiguration, error) {
	return scanInterviewConfig(r.conn.QueryRow(ctx, `SELECT `+interviewConfigColumns+` FROM interview_configurations WHERE name = ? AND version = ?`, name, version))
}

func (r *SQLiteRepo) GetLatestInterviewConfiguration(ctx context.Context, name string) (*models.InterviewConfiguration, error) {
	return scanInterviewConfig(r.conn.QueryRow(ctx, `SELECT `+interviewConfigColumns+` FROM interview_configurations WHERE name = ? AND is_deleted = 0 ORDER BY version DESC LIMIT 1`, name))
}

func (r *SQLiteRepo) MaxInterviewConfigurationVersion(ctx context.Context, name string) (int, error) {
	return r.maxVersion(ctx, "interview_configurations", name)
}

func (r *SQLiteRepo) ListLatestInterviewConfigurations(ctx context.Context, p models.Page) ([]models.InterviewConfiguration, int64, error) {
	clause := fmt.Sprintf(latestClause, "interview_configurations")

	var total int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM interview_configurations t WHERE `+clause).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageArgs(p.Limit, p.Offset)
	rows, err := r.conn.QueryRows(ctx, `SELECT `+interviewConfigColumns+` FROM interview_configurations t WHERE `+clause+` ORDER BY t.name LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.InterviewConfiguration{}
	for rows.Next() {
		c, err := scanInterviewConfig(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *SQLiteRepo) SoftDeleteInterviewConfiguration(ctx context.Context, name string, version int) error {
	return r.softDelete(ctx, "interview_configurations", name, version)
}

func scanInterviewConfig(row scanner) (*models.InterviewConfiguration, error) {
	var c models.InterviewConfiguration
	var tone, depth, focus, language sql.NullString
	var duration, instrV, persV, questV sql.NullInt64
	var deleted int
	var created, updated int64
	err := row.Scan(&c.Name, &c.Version, &c.Modality, &tone, &depth, &focus, &language, &duration,
		&c.InstructionPromptName, &instrV, &c.PersonalityPromptName, &persV, &c.QuestionsPromptName, &questV,
		&deleted, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Tone, c.ProbingDepth, c.FocusArea, c.Language = tone.String, depth.String, focus.String, language.String
	c.Duration = intPtr(duration)
	c.InstructionPromptVersion, c.PersonalityPromptVersion, c.QuestionsPromptVersion = intPtr(instrV), intPtr(persV), intPtr(questV)
	c.IsDeleted = deleted != 0
	c.CreatedAt, c.UpdatedAt = fromMs(created), fromMs(updated)
	return &c, nil
}

// Questionnaire templates

const questionnaireColumns = `name, version, title, description, template_type, questions, is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreateQuestionnaireTemplate(ctx context.Context, q *models.QuestionnaireTemplate) error {
	if q == nil {
		return fmt.Errorf("questionnaire template is nil")
	}

	questions := string(q.Questions)
	if questions == "" {
		questions = "[]"
	}
	t := now()
	q.CreatedAt, q.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO questionnaire_templates (`+questionnaireColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Name, q.Version, q.Title, nullString(q.Description), q.TemplateType, questions, boolInt(q.IsDeleted), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetQuestionnaireTemplate(ctx context.Context, name string, version int) (*models.QuestionnaireTemplate, error) {
	return scanQuestionnaire(r.conn.QueryRow(ctx, `SELECT `+questionnaireColumns+` FROM questionnaire_templates WHERE name = ? AND version = ?`, name, version))
}

func (r *SQLiteRepo) GetLatestQuestionnaireTemplate(ctx context.Context, name string) (*models.QuestionnaireTemplate, error) {
	return scanQuestionnaire(r.conn.QueryRow(ctx, `SELECT `+questionnaireColumns+` FROM questionnaire_templates WHERE name = ? AND is_deleted = 0 ORDER BY version DESC LIMIT 1`, name))
}

func (r *SQLiteRepo) MaxQuestionnaireTemplateVersion(ctx context.Context, name string) (int, error) {
	return r.maxVersion(ctx, "questionnaire_templates", name)
}

func (r *SQLiteRepo) ListLatestQuestionnaireTemplates(ctx context.Context, p models.Page) ([]models.QuestionnaireTemplate, int64, error) {
	clause := fmt.Sprintf(latestClause, "questionnaire_templates")

	var total int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM questionnaire_templates t WHERE `+clause).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageArgs(p.Limit, p.Offset)
	rows, err := r.conn.QueryRows(ctx, `SELECT `+questionnaireColumns+` FROM questionnaire_templates t WHERE `+clause+` ORDER BY t.name LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.QuestionnaireTemplate{}
	for rows.Next() {
		q, err := scanQuestionnaire(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *q)
	}
	return out, total, rows.Err()
}

func (r *SQLiteRepo) SoftDeleteQuestionnaireTemplate(ctx context.Context, name string, version int) error {
	return r.softDelete(ctx, "questionnaire_templates", name, version)
}

func scanQuestionnaire(row scanner) (*models.QuestionnaireTemplate, error) {
	var q models.QuestionnaireTemplate
	var description sql.NullString
	var questions string
	var deleted int
	var created, updated int64
	if err := row.Scan(&q.Name, &q.Version, &q.Title, &description, &q.TemplateType, &questions, &deleted, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	q.Description = description.String
	q.Questions = json.RawMessage(questions)
	q.IsDeleted = deleted != 0
	q.CreatedAt, q.UpdatedAt = fromMs(created), fromMs(updated)
	return &q, nil
}
