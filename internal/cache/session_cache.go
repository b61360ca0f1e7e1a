package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hqanh/qbank/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	sessionKeyPrefix = "qbank:session:"
	sessionTTL       = 24 * time.Hour
)

// SessionState is the client-resident mirror of an active attempt. It is
// write-through only and never authoritative: scored fields (Answers,
// Flags) are written only after the durable store confirms, UI fields
// (CurrentIndex, ElapsedSeconds, PerQuestionSeconds) are mirrored
// optimistically and resynchronized from the attempt on load/resume.
type SessionState struct {
	CurrentIndex       int                `json:"current_index"`
	ElapsedSeconds     int                `json:"elapsed_seconds"`
	PerQuestionSeconds map[string]int     `json:"per_question_seconds"`
	Answers            map[string]*string `json:"answers"`
	Flags              map[string]bool    `json:"flags"`
	LockedAnswers      []string           `json:"locked_answers"`
	SyncedAt           time.Time          `json:"synced_at"`
}

// SessionMirror is the session-cache seam the attempt service writes
// through. The redis implementation below is the production one; tests
// substitute an in-memory fake.
type SessionMirror interface {
	// MirrorProgress updates the UI-convenience fields optimistically.
	MirrorProgress(ctx context.Context, attemptID string, currentIndex, elapsedSeconds int, perQuestionSeconds map[string]int) error
	// ConfirmAnswer records a selection in the mirror. Call only after
	// the durable write succeeded, never before.
	ConfirmAnswer(ctx context.Context, attemptID, questionID string, selected *string, locked bool) error
	// ConfirmFlag records a flag toggle after the durable write succeeded.
	ConfirmFlag(ctx context.Context, attemptID, questionID string, flagged bool) error
	// Resync replaces the whole mirror with authoritative attempt state.
	Resync(ctx context.Context, attemptID string, state SessionState) error
	Load(ctx context.Context, attemptID string) (*SessionState, error)
	Invalidate(ctx context.Context, attemptID string) error
}

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")
	return rdb, nil
}

type redisSessionMirror struct {
	rdb *redis.Client
}

func NewRedisSessionMirror(rdb *redis.Client) SessionMirror {
	return &redisSessionMirror{rdb: rdb}
}

func sessionKey(attemptID string) string {
	return sessionKeyPrefix + attemptID
}

func (m *redisSessionMirror) load(ctx context.Context, attemptID string) (*SessionState, error) {
	raw, err := m.rdb.Get(ctx, sessionKey(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session mirror: %w", err)
	}
	var state SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		// A corrupt mirror is disposable; drop it and resync later.
		log.Warn().Err(err).Str("attemptID", attemptID).Msg("Corrupt session mirror, discarding")
		_ = m.rdb.Del(ctx, sessionKey(attemptID)).Err()
		return nil, nil
	}
	return &state, nil
}

func (m *redisSessionMirror) store(ctx context.Context, attemptID string, state *SessionState) error {
	state.SyncedAt = time.Now().UTC()
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session mirror: %w", err)
	}
	if err := m.rdb.Set(ctx, sessionKey(attemptID), raw, sessionTTL).Err(); err != nil {
		return fmt.Errorf("store session mirror: %w", err)
	}
	return nil
}

// Read-modify-write without WATCH: exactly one active session mutates a
// given open attempt at a time (single-writer model), so lost updates on
// the mirror cannot occur in practice and the mirror is disposable anyway.
func (m *redisSessionMirror) mutate(ctx context.Context, attemptID string, fn func(*SessionState)) error {
	state, err := m.load(ctx, attemptID)
	if err != nil {
		return err
	}
	if state == nil {
		state = emptyState()
	}
	fn(state)
	return m.store(ctx, attemptID, state)
}

func emptyState() *SessionState {
	return &SessionState{
		PerQuestionSeconds: map[string]int{},
		Answers:            map[string]*string{},
		Flags:              map[string]bool{},
		LockedAnswers:      []string{},
	}
}

func (m *redisSessionMirror) MirrorProgress(ctx context.Context, attemptID string, currentIndex, elapsedSeconds int, perQuestionSeconds map[string]int) error {
	return m.mutate(ctx, attemptID, func(s *SessionState) {
		s.CurrentIndex = currentIndex
		s.ElapsedSeconds = elapsedSeconds
		for qid, sec := range perQuestionSeconds {
			s.PerQuestionSeconds[qid] = sec
		}
	})
}

func (m *redisSessionMirror) ConfirmAnswer(ctx context.Context, attemptID, questionID string, selected *string, locked bool) error {
	return m.mutate(ctx, attemptID, func(s *SessionState) {
		s.Answers[questionID] = selected
		if locked && !containsString(s.LockedAnswers, questionID) {
			s.LockedAnswers = append(s.LockedAnswers, questionID)
		}
	})
}

func (m *redisSessionMirror) ConfirmFlag(ctx context.Context, attemptID, questionID string, flagged bool) error {
	return m.mutate(ctx, attemptID, func(s *SessionState) {
		s.Flags[questionID] = flagged
	})
}

func (m *redisSessionMirror) Resync(ctx context.Context, attemptID string, state SessionState) error {
	if state.PerQuestionSeconds == nil {
		state.PerQuestionSeconds = map[string]int{}
	}
	if state.Answers == nil {
		state.Answers = map[string]*string{}
	}
	if state.Flags == nil {
		state.Flags = map[string]bool{}
	}
	if state.LockedAnswers == nil {
		state.LockedAnswers = []string{}
	}
	return m.store(ctx, attemptID, &state)
}

func (m *redisSessionMirror) Load(ctx context.Context, attemptID string) (*SessionState, error) {
	return m.load(ctx, attemptID)
}

func (m *redisSessionMirror) Invalidate(ctx context.Context, attemptID string) error {
	if err := m.rdb.Del(ctx, sessionKey(attemptID)).Err(); err != nil {
		return fmt.Errorf("invalidate session mirror: %w", err)
	}
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
