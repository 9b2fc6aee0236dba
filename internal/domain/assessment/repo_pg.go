package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

const responseCols = `id, child_id, section_id, status, total_score, max_possible_score,
	completed_at, unanswered_questions, assessment_language, last_conversation_id,
	created_at, updated_at`

func scanResponse(row pgx.Row) (*Response, error) {
	var r Response
	var unanswered []byte
	err := row.Scan(&r.ID, &r.ChildID, &r.SectionID, &r.Status, &r.TotalScore,
		&r.MaxPossibleScore, &r.CompletedAt, &unanswered, &r.AssessmentLanguage,
		&r.LastConversationID, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(unanswered) > 0 {
		if err := json.Unmarshal(unanswered, &r.UnansweredQuestions); err != nil {
			return nil, fmt.Errorf("decode unanswered questions: %w", err)
		}
	}
	return &r, nil
}

type responseRepoPG struct {
	pool *pgxpool.Pool
}

// NewResponseRepoPG returns a pgx-backed ResponseRepository.
func NewResponseRepoPG(pool *pgxpool.Pool) ResponseRepository {
	return &responseRepoPG{pool: pool}
}

func (r *responseRepoPG) Create(ctx context.Context, resp *Response) error {
	unanswered, err := json.Marshal(resp.UnansweredQuestions)
	if err != nil {
		return fmt.Errorf("encode unanswered questions: %w", err)
	}
	_, err = conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO responses (id, child_id, section_id, status, unanswered_questions,
			assessment_language, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		resp.ID, resp.ChildID, resp.SectionID, resp.Status, unanswered,
		resp.AssessmentLanguage, resp.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateSession
	}
	return err
}

func (r *responseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Response, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+responseCols+` FROM responses WHERE id = $1`, id)
	return scanResponse(row)
}

func (r *responseRepoPG) GetByChildSection(ctx context.Context, childID, sectionID uuid.UUID) (*Response, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+responseCols+` FROM responses WHERE child_id = $1 AND section_id = $2`,
		childID, sectionID)
	return scanResponse(row)
}

func (r *responseRepoPG) ListByChild(ctx context.Context, childID uuid.UUID) ([]*Response, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+responseCols+` FROM responses WHERE child_id = $1 ORDER BY created_at`,
		childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Response
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

func (r *responseRepoPG) Update(ctx context.Context, resp *Response) error {
	unanswered, err := json.Marshal(resp.UnansweredQuestions)
	if err != nil {
		return fmt.Errorf("encode unanswered questions: %w", err)
	}
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE responses SET status = $2, total_score = $3, max_possible_score = $4,
			completed_at = $5, unanswered_questions = $6, last_conversation_id = $7,
			updated_at = now()
		WHERE id = $1`,
		resp.ID, resp.Status, resp.TotalScore, resp.MaxPossibleScore,
		resp.CompletedAt, unanswered, resp.LastConversationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type answerRepoPG struct {
	pool *pgxpool.Pool
}

// NewAnswerRepoPG returns a pgx-backed AnswerRepository.
func NewAnswerRepoPG(pool *pgxpool.Pool) AnswerRepository {
	return &answerRepoPG{pool: pool}
}

func (r *answerRepoPG) Create(ctx context.Context, a *QuestionAnswer) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO question_answers (id, response_id, question_id, raw_answer,
			translated_answer, answer_bucket, score, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.ResponseID, a.QuestionID, a.RawAnswer, a.TranslatedAnswer,
		a.AnswerBucket, a.Score, a.AnsweredAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateAnswer
	}
	return err
}

func (r *answerRepoPG) ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*QuestionAnswer, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, response_id, question_id, raw_answer, translated_answer,
			answer_bucket, score, answered_at
		FROM question_answers WHERE response_id = $1 ORDER BY answered_at`, responseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*QuestionAnswer
	for rows.Next() {
		var a QuestionAnswer
		if err := rows.Scan(&a.ID, &a.ResponseID, &a.QuestionID, &a.RawAnswer,
			&a.TranslatedAnswer, &a.AnswerBucket, &a.Score, &a.AnsweredAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *answerRepoPG) ListDetailsByResponse(ctx context.Context, responseID uuid.UUID) ([]*AnswerDetail, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT a.id, a.response_id, a.question_id, a.raw_answer, a.translated_answer,
			a.answer_bucket, a.score, a.answered_at,
			q.text, q.question_key, q.max_score
		FROM question_answers a
		JOIN questions q ON q.id = a.question_id
		WHERE a.response_id = $1
		ORDER BY a.answered_at`, responseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*AnswerDetail
	for rows.Next() {
		var d AnswerDetail
		if err := rows.Scan(&d.Answer.ID, &d.Answer.ResponseID, &d.Answer.QuestionID,
			&d.Answer.RawAnswer, &d.Answer.TranslatedAnswer, &d.Answer.AnswerBucket,
			&d.Answer.Score, &d.Answer.AnsweredAt,
			&d.QuestionText, &d.QuestionKey, &d.QuestionMaxScore); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

type conversationLogRepoPG struct {
	pool *pgxpool.Pool
}

// NewConversationLogRepoPG returns a pgx-backed ConversationLogRepository.
func NewConversationLogRepoPG(pool *pgxpool.Pool) ConversationLogRepository {
	return &conversationLogRepoPG{pool: pool}
}

func (r *conversationLogRepoPG) Create(ctx context.Context, l *ConversationLog) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO conversation_logs (id, response_id, conversation, created_at)
		VALUES ($1, $2, $3, $4)`,
		l.ID, l.ResponseID, l.Conversation, l.CreatedAt)
	return err
}

func (r *conversationLogRepoPG) ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*ConversationLog, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, response_id, conversation, created_at
		FROM conversation_logs WHERE response_id = $1 ORDER BY created_at`, responseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ConversationLog
	for rows.Next() {
		var l ConversationLog
		if err := rows.Scan(&l.ID, &l.ResponseID, &l.Conversation, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
