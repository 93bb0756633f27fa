package notes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	contextx "github.com/blueplan/noteshare-go/internal/noteshare/context"
	"github.com/blueplan/noteshare-go/internal/noteshare/llm"
	logx "github.com/blueplan/noteshare-go/internal/noteshare/log"
	"github.com/blueplan/noteshare-go/internal/noteshare/secrets"
)

// DefaultSummaryTimeout bounds one summarizer call.
const DefaultSummaryTimeout = 30 * time.Second

// SecretGenerator produces the one-time password shown to the creator.
type SecretGenerator interface {
	Generate() (string, error)
}

// Options 服务依赖；零值字段使用默认实现
type Options struct {
	Store          Store
	Generator      SecretGenerator
	Hasher         secrets.Hasher
	Summarizer     llm.Summarizer
	Logger         *logx.Logger
	Now            func() time.Time
	SummaryTimeout time.Duration
}

// Service 笔记生命周期：创建、解锁、摘要
type Service struct {
	store          Store
	generator      SecretGenerator
	hasher         secrets.Hasher
	summarizer     llm.Summarizer
	logger         *logx.Logger
	now            func() time.Time
	summaryTimeout time.Duration
}

// CreateResult is the only place the plaintext secret ever appears.
type CreateResult struct {
	ID     string
	URL    string
	Secret string
}

type UnlockResult struct {
	Text      string
	CreatedAt time.Time
}

func NewService(opts Options) *Service {
	s := &Service{
		store:          opts.Store,
		generator:      opts.Generator,
		hasher:         opts.Hasher,
		summarizer:     opts.Summarizer,
		logger:         opts.Logger,
		now:            opts.Now,
		summaryTimeout: opts.SummaryTimeout,
	}
	if s.generator == nil {
		s.generator = secrets.NewGenerator(secrets.DefaultSecretBytes)
	}
	if s.hasher == nil {
		s.hasher = secrets.NewBcryptHasher(secrets.DefaultCost)
	}
	if s.summarizer == nil {
		s.summarizer = llm.NewDisabled("no summarizer configured")
	}
	if s.logger == nil {
		s.logger = logx.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.summaryTimeout <= 0 {
		s.summaryTimeout = DefaultSummaryTimeout
	}
	return s
}

// Create validates text, stores it with a fresh hashed secret and returns
// the secret once.
func (s *Service) Create(ctx context.Context, rawText string) (*CreateResult, error) {
	const op = "create"
	text, err := ValidateText(rawText)
	if err != nil {
		return nil, err
	}

	secret, err := s.generator.Generate()
	if err != nil {
		s.logger.Error(ctx, "generate note secret", logx.KV("error", err))
		return nil, storageError(op, "", err)
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		s.logger.Error(ctx, "hash note secret", logx.KV("error", err))
		return nil, storageError(op, "", err)
	}

	id, err := s.store.Create(ctx, &Note{
		Text:         text,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		s.logger.Error(ctx, "store note", logx.KV("error", err))
		return nil, storageError(op, "", err)
	}

	ctx = contextx.WithNoteID(ctx, id)
	s.logger.Info(ctx, "note created", logx.KV("length", len([]rune(text))))
	return &CreateResult{ID: id, URL: ShareURL(id), Secret: secret}, nil
}

// Unlock returns the note text when candidate matches its secret.
func (s *Service) Unlock(ctx context.Context, id, candidate string) (*UnlockResult, error) {
	note, err := s.authorize(ctx, "unlock", id, candidate)
	if err != nil {
		return nil, err
	}
	return &UnlockResult{Text: note.Text, CreatedAt: note.CreatedAt}, nil
}

// Summarize authorizes like Unlock, then asks the summarizer for bullet points.
func (s *Service) Summarize(ctx context.Context, id, candidate string) (string, error) {
	const op = "summarize"
	note, err := s.authorize(ctx, op, id, candidate)
	if err != nil {
		return "", err
	}
	ctx = contextx.WithNoteID(ctx, note.ID)

	sctx, cancel := context.WithTimeout(ctx, s.summaryTimeout)
	defer cancel()

	start := s.now()
	out, err := s.summarizer.Summarize(sctx, note.Text)
	if err != nil {
		return "", s.summaryError(ctx, op, note.ID, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", s.summaryError(ctx, op, note.ID, &llm.Error{Kind: llm.FailureEmptyResult, Message: "empty summary"})
	}
	s.logger.Info(ctx, "note summarized", logx.KV("duration", s.now().Sub(start)))
	return out, nil
}

// StreamSummary behaves like Summarize but forwards partial text to onChunk
// as it arrives. It returns the full trimmed summary.
func (s *Service) StreamSummary(ctx context.Context, id, candidate string, onChunk llm.StreamChunkHandler) (string, error) {
	const op = "summarize_stream"
	note, err := s.authorize(ctx, op, id, candidate)
	if err != nil {
		return "", err
	}
	ctx = contextx.WithNoteID(ctx, note.ID)

	sctx, cancel := context.WithTimeout(ctx, s.summaryTimeout)
	defer cancel()

	var sb strings.Builder
	streamer, ok := s.summarizer.(llm.StreamSummarizer)
	if ok {
		err = streamer.SummarizeStream(sctx, note.Text, func(c context.Context, chunk string) error {
			sb.WriteString(chunk)
			return onChunk(c, chunk)
		})
	} else {
		var out string
		if out, err = s.summarizer.Summarize(sctx, note.Text); err == nil {
			out = strings.TrimSpace(out)
			sb.WriteString(out)
			if out != "" {
				err = onChunk(sctx, out)
			}
		}
	}
	if err != nil {
		return "", s.summaryError(ctx, op, note.ID, err)
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", s.summaryError(ctx, op, note.ID, &llm.Error{Kind: llm.FailureEmptyResult, Message: "empty summary"})
	}
	s.logger.Info(ctx, "note summary streamed")
	return out, nil
}

// authorize fetches the note and checks candidate. Order matters: a missing
// password is rejected before lookup, and lookup happens before verification.
func (s *Service) authorize(ctx context.Context, op, id, candidate string) (*Note, error) {
	if err := ValidatePassword(op, candidate); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFoundError(op, id, ErrNotFound)
	}
	ctx = contextx.WithNoteID(ctx, id)

	note, err := s.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, notFoundError(op, id, err)
	}
	if err != nil {
		s.logger.Error(ctx, "load note", logx.KV("op", op), logx.KV("error", err))
		return nil, storageError(op, id, err)
	}

	ok, err := s.hasher.Verify(candidate, note.PasswordHash)
	if err != nil {
		s.logger.Error(ctx, "verify note secret", logx.KV("op", op), logx.KV("error", err))
		return nil, storageError(op, id, err)
	}
	if !ok {
		s.logger.Warn(ctx, "note secret rejected", logx.KV("op", op))
		return nil, &Error{Kind: KindAuthentication, Op: op, NoteID: id}
	}
	return note, nil
}

func (s *Service) summaryError(ctx context.Context, op, id string, err error) error {
	kind := llm.KindOf(err)
	s.logger.Error(ctx, "summarize note",
		logx.KV("op", op),
		logx.KV("failure", string(kind)),
		logx.KV("timeout", llm.IsTimeout(err)),
		logx.KV("error", err))
	return &Error{Kind: KindSummarization, Failure: kind, Op: op, NoteID: id, Err: err}
}

// Ping checks that the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
