package assessment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("assessment: not found")
	ErrDuplicateAnswer  = errors.New("assessment: question already answered")
	ErrDuplicateSession = errors.New("assessment: response already exists for child and section")
)

// ResponseRepository persists assessment sessions.
type ResponseRepository interface {
	Create(ctx context.Context, r *Response) error
	GetByID(ctx context.Context, id uuid.UUID) (*Response, error)
	GetByChildSection(ctx context.Context, childID, sectionID uuid.UUID) (*Response, error)
	ListByChild(ctx context.Context, childID uuid.UUID) ([]*Response, error)
	Update(ctx context.Context, r *Response) error
}

// AnswerRepository persists individual scored answers.
type AnswerRepository interface {
	Create(ctx context.Context, a *QuestionAnswer) error
	ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*QuestionAnswer, error)
	ListDetailsByResponse(ctx context.Context, responseID uuid.UUID) ([]*AnswerDetail, error)
}

// ConversationLogRepository appends raw intake conversations.
type ConversationLogRepository interface {
	Create(ctx context.Context, l *ConversationLog) error
	ListByResponse(ctx context.Context, responseID uuid.UUID) ([]*ConversationLog, error)
}
