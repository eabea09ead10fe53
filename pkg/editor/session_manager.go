package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowbaker/weave/pkg/domain"
	"github.com/flowbaker/weave/pkg/domain/executor"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

var ErrSessionNotFound = errors.New("session not found")

const (
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultEvictSchedule = "@every 5m"
)

type SessionManagerDependencies struct {
	JobRunner      domain.JobRunner
	Cropper        domain.ImageCropper
	Uploader       domain.MediaUploader
	EventPublisher domain.EventPublisher
	Workflows      domain.WorkflowRepository

	PollConfig        executor.PollConfig
	MaxConcurrentRuns int64
	HistoryDepth      int

	IdleTimeout   time.Duration
	EvictSchedule string
}

// SessionManager keeps the open editor sessions of the service and closes
// the ones nobody touched for IdleTimeout.
type SessionManager struct {
	deps SessionManagerDependencies

	mu       sync.RWMutex
	sessions map[string]*Session

	scheduler *cron.Cron
}

func NewSessionManager(deps SessionManagerDependencies) *SessionManager {
	if deps.IdleTimeout <= 0 {
		deps.IdleTimeout = DefaultIdleTimeout
	}

	if deps.EvictSchedule == "" {
		deps.EvictSchedule = DefaultEvictSchedule
	}

	return &SessionManager{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

type CreateSessionParams struct {
	UserID     string
	WorkflowID string
}

// Create opens a session for the user, loading the workflow's snapshot when
// a workflow id is given.
func (m *SessionManager) Create(ctx context.Context, params CreateSessionParams) (*Session, error) {
	if params.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}

	session := NewSession(SessionDependencies{
		UserID:            params.UserID,
		WorkflowID:        params.WorkflowID,
		JobRunner:         m.deps.JobRunner,
		Cropper:           m.deps.Cropper,
		Uploader:          m.deps.Uploader,
		EventPublisher:    m.deps.EventPublisher,
		PollConfig:        m.deps.PollConfig,
		MaxConcurrentRuns: m.deps.MaxConcurrentRuns,
		HistoryDepth:      m.deps.HistoryDepth,
	})

	if params.WorkflowID != "" {
		if m.deps.Workflows == nil {
			return nil, fmt.Errorf("no workflow repository configured")
		}

		workflow, err := m.deps.Workflows.GetByID(ctx, params.UserID, params.WorkflowID)
		if err != nil {
			return nil, err
		}

		if err := session.Load(workflow.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", params.WorkflowID, err)
		}
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	log.Info().
		Str("session_id", session.ID).
		Str("user_id", params.UserID).
		Str("workflow_id", params.WorkflowID).
		Msg("Editor session opened")

	return session, nil
}

// Get returns the session if it belongs to userID.
func (m *SessionManager) Get(userID, sessionID string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok || session.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	return session, nil
}

func (m *SessionManager) Close(userID, sessionID string) error {
	session, err := m.Get(userID, sessionID)
	if err != nil {
		return err
	}

	m.remove(session)

	return nil
}

func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// EvictIdle closes sessions idle since before now minus IdleTimeout that have
// no running nodes. It returns the number of sessions closed.
func (m *SessionManager) EvictIdle(now time.Time) int {
	cutoff := now.Add(-m.deps.IdleTimeout)

	m.mu.RLock()
	var idle []*Session
	for _, session := range m.sessions {
		if session.LastActiveAt().Before(cutoff) && !session.HasRunningNodes() {
			idle = append(idle, session)
		}
	}
	m.mu.RUnlock()

	for _, session := range idle {
		m.remove(session)
	}

	if len(idle) > 0 {
		log.Info().Int("count", len(idle)).Msg("Evicted idle editor sessions")
	}

	return len(idle)
}

func (m *SessionManager) remove(session *Session) {
	m.mu.Lock()
	delete(m.sessions, session.ID)
	m.mu.Unlock()

	session.Close()

	log.Debug().Str("session_id", session.ID).Msg("Editor session closed")
}

// Start schedules idle eviction.
func (m *SessionManager) Start() error {
	scheduler := cron.New()

	_, err := scheduler.AddFunc(m.deps.EvictSchedule, func() {
		m.EvictIdle(time.Now())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule session eviction: %w", err)
	}

	scheduler.Start()
	m.scheduler = scheduler

	return nil
}

// Stop halts eviction and closes every session.
func (m *SessionManager) Stop() {
	if m.scheduler != nil {
		<-m.scheduler.Stop().Done()
	}

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
