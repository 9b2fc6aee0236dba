package assessment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the response state machine. COMPLETED is terminal; PROCESSING is
// the parked state after a failed AI mapping pass, resumed by the next
// submission.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusProcessing Status = "PROCESSING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Answer buckets normalize free-text answers into scoring categories.
const (
	BucketYes         = "YES"
	BucketSometimes   = "SOMETIMES"
	BucketNo          = "NO"
	BucketNotObserved = "NOT_OBSERVED"
)

var validBuckets = map[string]bool{
	BucketYes: true, BucketSometimes: true, BucketNo: true, BucketNotObserved: true,
}

// QuestionRef is the snapshot of a question taken when a response starts, so
// the intake flow can keep presenting the question set the session opened
// with. Completion is still judged against current applicability.
type QuestionRef struct {
	ID       uuid.UUID `json:"id"`
	Key      string    `json:"key"`
	Text     string    `json:"text"`
	MaxScore int       `json:"max_score"`
}

// Response maps to the responses table: one assessment session per
// (child, section), enforced unique.
type Response struct {
	ID                  uuid.UUID     `db:"id" json:"id"`
	ChildID             uuid.UUID     `db:"child_id" json:"child_id"`
	SectionID           uuid.UUID     `db:"section_id" json:"section_id"`
	Status              Status        `db:"status" json:"status"`
	TotalScore          *int          `db:"total_score" json:"total_score,omitempty"`
	MaxPossibleScore    *int          `db:"max_possible_score" json:"max_possible_score,omitempty"`
	CompletedAt         *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	UnansweredQuestions []QuestionRef `db:"unanswered_questions" json:"unanswered_questions"`
	AssessmentLanguage  string        `db:"assessment_language" json:"assessment_language"`
	LastConversationID  *uuid.UUID    `db:"last_conversation_id" json:"last_conversation_id,omitempty"`
	CreatedAt           time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time     `db:"updated_at" json:"updated_at"`
}

// QuestionAnswer maps to the question_answers table. Rows are immutable once
// written; at most one answer exists per (response, question).
type QuestionAnswer struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ResponseID       uuid.UUID `db:"response_id" json:"response_id"`
	QuestionID       uuid.UUID `db:"question_id" json:"question_id"`
	RawAnswer        string    `db:"raw_answer" json:"raw_answer"`
	TranslatedAnswer *string   `db:"translated_answer" json:"translated_answer,omitempty"`
	AnswerBucket     string    `db:"answer_bucket" json:"answer_bucket"`
	Score            int       `db:"score" json:"score"`
	AnsweredAt       time.Time `db:"answered_at" json:"answered_at"`
}

// AnswerDetail joins an answer with its question for scoring and for the
// report context gather.
type AnswerDetail struct {
	Answer           QuestionAnswer `json:"answer"`
	QuestionText     string         `json:"question_text"`
	QuestionKey      string         `json:"question_key"`
	QuestionMaxScore int            `json:"question_max_score"`
}

// ConversationLog stores the raw conversation from a submission. Logs are
// never updated, only created.
type ConversationLog struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	ResponseID   uuid.UUID       `db:"response_id" json:"response_id"`
	Conversation json.RawMessage `db:"conversation" json:"conversation"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
