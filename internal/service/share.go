package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"healthvault/internal/model"
	"healthvault/internal/repository"
	"healthvault/internal/sharetoken"
)

// DefaultShareTTL is how long a share session stays redeemable.
const DefaultShareTTL = 10 * time.Minute

// Redemption outcomes reported to the Recorder.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// ShareGrant is the result of generating a share session.
type ShareGrant struct {
	Token       string    `json:"token"`
	SessionID   string    `json:"-"`
	ExpiresAt   time.Time `json:"expiresAt"`
	DocumentIDs []string  `json:"documentIds,omitempty"`
}

// SharePreview is what a share token holder may see.
type SharePreview struct {
	Profile   model.Profile
	Documents []model.Document
	ExpiresAt time.Time
}

// ShareService is the Share Session Manager: at most one active session per owner.
type ShareService interface {
	// Generate supersedes the owner's active session and issues a new token.
	// An empty documentIDs shares every document of the owner.
	Generate(ctx context.Context, ownerID string, documentIDs []string) (*ShareGrant, error)

	// Redeem verifies token against its session and returns the bounded profile view.
	Redeem(ctx context.Context, token string) (*SharePreview, error)

	// OpenDocument streams one document covered by token.
	OpenDocument(ctx context.Context, token, documentID string) (*model.Document, io.ReadCloser, error)

	// ExpireStale marks every active session past its expiry as expired.
	ExpireStale(ctx context.Context) (int64, error)
}

type shareService struct {
	codec     *sharetoken.Codec
	sessions  repository.ShareSessionRepository
	profiles  repository.ProfileRepository
	docs      DocumentService
	logger    *slog.Logger
	recorder  Recorder
	ttl       time.Duration
	singleUse bool
	now       func() time.Time
	owners    *keyedMutex
}

// ShareOption configures the share service.
type ShareOption func(*shareService)

func WithShareLogger(l *slog.Logger) ShareOption {
	return func(s *shareService) { s.logger = l }
}

func WithShareRecorder(r Recorder) ShareOption {
	return func(s *shareService) { s.recorder = r }
}

// WithTTL overrides DefaultShareTTL.
func WithTTL(d time.Duration) ShareOption {
	return func(s *shareService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithSingleUse consumes a session on its first successful Redeem. Document
// reads under that session keep working until it expires or is superseded.
func WithSingleUse(on bool) ShareOption {
	return func(s *shareService) { s.singleUse = on }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ShareOption {
	return func(s *shareService) { s.now = now }
}

// NewShareService wires the session manager.
func NewShareService(
	codec *sharetoken.Codec,
	sessions repository.ShareSessionRepository,
	profiles repository.ProfileRepository,
	docs DocumentService,
	opts ...ShareOption,
) ShareService {
	s := &shareService{
		codec:    codec,
		sessions: sessions,
		profiles: profiles,
		docs:     docs,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		ttl:      DefaultShareTTL,
		now:      time.Now,
		owners:   newKeyedMutex(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *shareService) Generate(ctx context.Context, ownerID string, documentIDs []string) (grant *ShareGrant, err error) {
	ctx, span := tracer.Start(ctx, "ShareService.Generate", trace.WithAttributes(attribute.String("owner.id", ownerID)))
	defer func() { endSpan(span, err) }()

	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	ids, err := s.ownedDocuments(ctx, ownerID, documentIDs)
	if err != nil {
		return nil, err
	}

	// The in-process lock orders callers here; the repository makes the
	// expire-then-insert atomic across processes.
	unlock := s.owners.Lock(ownerID)
	defer unlock()

	now := s.now().UTC()
	sess := &model.ShareSession{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	token, err := s.codec.Issue(ownerID, sess.ID, ids, now, sess.ExpiresAt)
	if err != nil {
		return nil, err
	}
	sess.TokenFingerprint = sharetoken.Fingerprint(token)

	superseded, err := s.sessions.Rotate(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("rotate share session: %w", err)
	}
	s.logger.InfoContext(ctx, "share_session_rotated",
		"owner_id", ownerID,
		"session_id", sess.ID,
		"superseded", superseded,
		"expires_at", sess.ExpiresAt,
	)
	s.recorder.ShareGenerated(superseded)

	return &ShareGrant{Token: token, SessionID: sess.ID, ExpiresAt: sess.ExpiresAt, DocumentIDs: ids}, nil
}

// ownedDocuments dedupes ids and checks each belongs to ownerID.
func (s *shareService) ownedDocuments(ctx context.Context, ownerID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err := uuid.Parse(id); err != nil {
			return nil, validationError("malformed document id %q", id)
		}
		if _, err := s.docs.Get(ctx, ownerID, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, validationError("unknown document %q", id)
			}
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *shareService) Redeem(ctx context.Context, token string) (preview *SharePreview, err error) {
	ctx, span := tracer.Start(ctx, "ShareService.Redeem")
	defer func() {
		s.recordOutcome(err)
		endSpan(span, err)
	}()

	claims, sess, err := s.authorize(ctx, token, false)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.FindByID(ctx, claims.OwnerID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	all, err := s.docs.List(ctx, claims.OwnerID(), "")
	if err != nil {
		return nil, err
	}
	docs := make([]model.Document, 0, len(all))
	for _, d := range all {
		if claims.Allows(d.ID) {
			docs = append(docs, d)
		}
	}

	if err := s.consume(ctx, sess); err != nil {
		return nil, err
	}
	return &SharePreview{Profile: *profile, Documents: docs, ExpiresAt: sess.ExpiresAt}, nil
}

func (s *shareService) OpenDocument(ctx context.Context, token, documentID string) (doc *model.Document, rc io.ReadCloser, err error) {
	ctx, span := tracer.Start(ctx, "ShareService.OpenDocument", trace.WithAttributes(attribute.String("document.id", documentID)))
	defer func() {
		s.recordOutcome(err)
		endSpan(span, err)
	}()

	claims, _, err := s.authorize(ctx, token, s.singleUse)
	if err != nil {
		return nil, nil, err
	}
	if !claims.Allows(documentID) {
		return nil, nil, ErrNotFound
	}
	return s.docs.Open(ctx, claims.OwnerID(), documentID)
}

// authorize fails closed: every rejection is ErrInvalidToken unless the
// session store itself errored. With allowConsumed, a single-use session that
// was already redeemed still grants document reads until it expires or a
// newer session supersedes it.
func (s *shareService) authorize(ctx context.Context, token string, allowConsumed bool) (*sharetoken.Claims, *model.ShareSession, error) {
	now := s.now()
	claims, err := s.codec.Verify(token, now)
	if err != nil {
		if sharetoken.IsExpired(err) {
			s.expireLapsed(ctx, token)
		}
		return nil, nil, ErrInvalidToken
	}

	sess, err := s.sessions.FindByFingerprint(ctx, sharetoken.Fingerprint(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("load share session: %w", err)
	}
	if sess.ID != claims.ID || sess.OwnerID != claims.OwnerID() {
		return nil, nil, ErrInvalidToken
	}
	if allowConsumed && sess.Consumed(now) {
		if err := s.checkLatest(ctx, sess); err != nil {
			return nil, nil, err
		}
		return claims, sess, nil
	}
	if !sess.Redeemable(now) {
		s.expire(ctx, sess)
		return nil, nil, ErrInvalidToken
	}
	return claims, sess, nil
}

// checkLatest rejects a used session once the owner has generated a newer one.
func (s *shareService) checkLatest(ctx context.Context, sess *model.ShareSession) error {
	latest, err := s.sessions.Latest(ctx, sess.OwnerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("load latest share session: %w", err)
	}
	if latest.ID != sess.ID {
		return ErrInvalidToken
	}
	return nil
}

// expireLapsed marks the session behind an expired token, if it is still active.
func (s *shareService) expireLapsed(ctx context.Context, token string) {
	sess, err := s.sessions.FindByFingerprint(ctx, sharetoken.Fingerprint(token))
	if err != nil {
		return
	}
	s.expire(ctx, sess)
}

func (s *shareService) expire(ctx context.Context, sess *model.ShareSession) {
	if sess.Status != model.ShareStatusActive {
		return
	}
	if err := s.sessions.Expire(ctx, sess.ID); err != nil {
		s.logger.WarnContext(ctx, "share_session_expire_failed", "session_id", sess.ID, "error", err)
	}
}

// consume applies the single-use policy after a successful redemption.
func (s *shareService) consume(ctx context.Context, sess *model.ShareSession) error {
	if !s.singleUse {
		return nil
	}
	ok, err := s.sessions.MarkUsed(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("mark share session used: %w", err)
	}
	if !ok {
		return ErrInvalidToken
	}
	return nil
}

func (s *shareService) recordOutcome(err error) {
	switch {
	case err == nil:
		s.recorder.ShareRedeemed(OutcomeOK)
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrNotFound):
		s.recorder.ShareRedeemed(OutcomeInvalid)
	default:
		s.recorder.ShareRedeemed(OutcomeError)
	}
}

func (s *shareService) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.sessions.ExpireBefore(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire share sessions: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "share_sessions_swept", "expired", n)
	}
	s.recorder.SharesSwept(n)
	return n, nil
}
