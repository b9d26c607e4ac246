package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garnizeh/recruiter/pkg/models"
)

const interviewColumns = `id, job_application_step_id, conversation_id, interview_configuration_name, interview_configuration_version,
	instruction_prompt_name, instruction_prompt_version, personality_prompt_name, personality_prompt_version,
	questions_prompt_name, questions_prompt_version, transcript_url, audio_url, started_at, completed_at, duration,
	is_deleted, created_at, updated_at`

func (r *SQLiteRepo) CreateInterview(ctx context.Context, i *models.Interview) error {
	if i == nil {
		return fmt.Errorf("interview is nil")
	}

	t := now()
	i.CreatedAt, i.UpdatedAt = t, t
	_, err := r.conn.Exec(ctx, `INSERT INTO interviews (`+interviewColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.JobApplicationStepID, nullString(i.ConversationID), i.InterviewConfigurationName, i.InterviewConfigurationVersion,
		i.InstructionPromptName, i.InstructionPromptVersion, i.PersonalityPromptName, i.PersonalityPromptVersion,
		i.QuestionsPromptName, i.QuestionsPromptVersion, nullString(i.TranscriptURL), nullString(i.AudioURL),
		nullTime(i.StartedAt), nullTime(i.CompletedAt), nullFloat(i.Duration), boolInt(i.IsDeleted), ms(t), ms(t))
	return err
}

func (r *SQLiteRepo) GetInterview(ctx context.Context, id string) (*models.Interview, error) {
	return scanInterview(r.conn.QueryRow(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = ?`, id))
}

func (r *SQLiteRepo) GetInterviewByConversationID(ctx context.Context, conversationID string) (*models.Interview, error) {
	return scanInterview(r.conn.QueryRow(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE conversation_id = ? AND is_deleted = 0 ORDER BY created_at DESC LIMIT 1`, conversationID))
}

func (r *SQLiteRepo) GetInterviewByApplicationStep(ctx context.Context, applicationStepID string) (*models.Interview, error) {
	return scanInterview(r.conn.QueryRow(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE job_application_step_id = ? AND is_deleted = 0 ORDER BY created_at DESC LIMIT 1`, applicationStepID))
}

func (r *SQLiteRepo) UpdateInterview(ctx context.Context, i *models.Interview) error {
	if i == nil {
		return fmt.Errorf("interview is nil")
	}

	i.UpdatedAt = now()
	_, err := r.conn.Exec(ctx, `UPDATE interviews SET conversation_id = ?, transcript_url = ?, audio_url = ?, started_at = ?,
		completed_at = ?, duration = ?, is_deleted = ?, updated_at = ? WHERE id = ?`,
		nullString(i.ConversationID), nullString(i.TranscriptURL), nullString(i.AudioURL), nullTime(i.StartedAt),
		nullTime(i.CompletedAt), nullFloat(i.Duration), boolInt(i.IsDeleted), ms(i.UpdatedAt), i.ID)
	return err
}

func scanInterview(row scanner) (*models.Interview, error) {
	var i models.Interview
	var conversation, transcript, audio sql.NullString
	var started, completed sql.NullInt64
	var duration sql.NullFloat64
	var deleted int
	var created, updated int64
	err := row.Scan(&i.ID, &i.JobApplicationStepID, &conversation, &i.InterviewConfigurationName, &i.InterviewConfigurationVersion,
		&i.InstructionPromptName, &i.InstructionPromptVersion, &i.PersonalityPromptName, &i.PersonalityPromptVersion,
		&i.QuestionsPromptName, &i.QuestionsPromptVersion, &transcript, &audio, &started, &completed, &duration,
		&deleted, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	i.ConversationID, i.TranscriptURL, i.AudioURL = conversation.String, transcript.String, audio.String
	i.StartedAt, i.CompletedAt = timePtr(started), timePtr(completed)
	if duration.Valid {
		d := duration.Float64
		i.Duration = &d
	}
	i.IsDeleted = deleted != 0
	i.CreatedAt, i.UpdatedAt = fromMs(created), fromMs(updated)
	return &i, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
