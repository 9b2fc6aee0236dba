package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/platform/genai"
)

// MappedAnswer is one scored answer extracted from a conversation.
type MappedAnswer struct {
	QuestionID       uuid.UUID
	RawAnswer        string
	TranslatedAnswer *string
	AnswerBucket     string
	Score            int
}

// MappingResult is the outcome of one extraction pass over a conversation.
// Questions absent from Answers stay pending for the next submission.
type MappingResult struct {
	Answers []MappedAnswer
}

// AnswerMapper turns a raw parent conversation into scored answers for the
// pending questions of a response, using the injected generator.
type AnswerMapper struct {
	gen    genai.Generator
	logger zerolog.Logger
}

func NewAnswerMapper(gen genai.Generator, logger zerolog.Logger) *AnswerMapper {
	return &AnswerMapper{gen: gen, logger: logger.With().Str("component", "answer_mapper").Logger()}
}

const mappingSchemaHint = `{
  "answers": [
    {
      "question_id": "<uuid of the question being answered>",
      "raw_answer": "<parent's answer in the original language>",
      "translated_answer": "<answer translated to English, or null if already English>",
      "answer_bucket": "YES | SOMETIMES | NO | NOT_OBSERVED",
      "score": "<integer, 0 up to the question's max score>"
    }
  ]
}`

type mappedPayload struct {
	Answers []struct {
		QuestionID       string  `json:"question_id"`
		RawAnswer        string  `json:"raw_answer"`
		TranslatedAnswer *string `json:"translated_answer"`
		AnswerBucket     string  `json:"answer_bucket"`
		Score            int     `json:"score"`
	} `json:"answers"`
}

// Map asks the generator to extract answers for the pending questions from
// the conversation. Entries referencing unknown questions or carrying an
// unknown bucket are dropped, not failed; scores are clamped to the
// question's range. An empty result is a valid outcome.
func (m *AnswerMapper) Map(ctx context.Context, language string, pending []QuestionRef, conversation json.RawMessage) (*MappingResult, error) {
	prompt := m.buildPrompt(language, pending, conversation)

	raw, err := m.gen.Generate(ctx, prompt, mappingSchemaHint)
	if err != nil {
		return nil, fmt.Errorf("map conversation: %w", err)
	}

	parsed, err := genai.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("map conversation: %w", err)
	}
	// Round-trip through JSON to get the typed payload out of the generic
	// object the parser hands back.
	buf, err := json.Marshal(parsed)
	if err != nil {
		return nil, fmt.Errorf("map conversation: %w", err)
	}
	var payload mappedPayload
	if err := json.Unmarshal(buf, &payload); err != nil {
		return nil, fmt.Errorf("map conversation: %w", genai.ErrMalformedOutput)
	}

	byID := make(map[uuid.UUID]QuestionRef, len(pending))
	for _, q := range pending {
		byID[q.ID] = q
	}

	result := &MappingResult{}
	for _, a := range payload.Answers {
		qid, err := uuid.Parse(a.QuestionID)
		if err != nil {
			m.logger.Warn().Str("question_id", a.QuestionID).Msg("dropping answer with unparseable question id")
			continue
		}
		q, ok := byID[qid]
		if !ok {
			m.logger.Warn().Str("question_id", a.QuestionID).Msg("dropping answer for question not pending on this response")
			continue
		}
		bucket := strings.ToUpper(strings.TrimSpace(a.AnswerBucket))
		if !validBuckets[bucket] {
			m.logger.Warn().Str("question_id", a.QuestionID).Str("bucket", a.AnswerBucket).Msg("dropping answer with unknown bucket")
			continue
		}
		score := a.Score
		if score < 0 {
			score = 0
		}
		if score > q.MaxScore {
			score = q.MaxScore
		}
		result.Answers = append(result.Answers, MappedAnswer{
			QuestionID:       qid,
			RawAnswer:        a.RawAnswer,
			TranslatedAnswer: a.TranslatedAnswer,
			AnswerBucket:     bucket,
			Score:            score,
		})
	}

	m.logger.Info().
		Int("pending", len(pending)).
		Int("mapped", len(result.Answers)).
		Msg("conversation mapped")
	return result, nil
}

func (m *AnswerMapper) buildPrompt(language string, pending []QuestionRef, conversation json.RawMessage) string {
	var b strings.Builder
	b.WriteString("You are scoring a developmental screening conversation between an assistant and a parent.\n")
	fmt.Fprintf(&b, "The conversation language is %q.\n\n", language)
	b.WriteString("Pending questions:\n")
	for _, q := range pending {
		fmt.Fprintf(&b, "- id=%s max_score=%d text=%q\n", q.ID, q.MaxScore, q.Text)
	}
	b.WriteString("\nConversation transcript (JSON):\n")
	b.Write(conversation)
	b.WriteString("\n\nFor every pending question the conversation clearly answers, produce one entry. ")
	b.WriteString("Skip questions the conversation does not address; never invent answers. ")
	b.WriteString("Higher scores mean the behaviour is observed more consistently.")
	return b.String()
}
