package application

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
	"github.com/google/uuid"
)

const DefaultSupersedeGrace = 5 * time.Second

// ChallengeSession is one in-flight challenge. It owns the browser session
// that displayed the challenge until its watcher loop exits.
type ChallengeSession struct {
	ID              string
	Platform        domain.PlatformID
	IssuedAt        time.Time
	Deadline        time.Time
	InitialLocation string

	page      ports.BrowserSession
	cancel    context.CancelCauseFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	doneOnce  sync.Once
}

func newChallengeSession(platform domain.PlatformID, page ports.BrowserSession, issuedAt, deadline time.Time) *ChallengeSession {
	return &ChallengeSession{
		ID:              uuid.NewString(),
		Platform:        platform,
		IssuedAt:        issuedAt,
		Deadline:        deadline,
		InitialLocation: page.URL(),
		page:            page,
		done:            make(chan struct{}),
	}
}

// Done is closed once the watcher loop has exited and the browser session is
// closed.
func (s *ChallengeSession) Done() <-chan struct{} {
	return s.done
}

func (s *ChallengeSession) Cancel(cause error) {
	if s.cancel != nil {
		s.cancel(cause)
	}
}

func (s *ChallengeSession) close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.page.Close()
	})
	return s.closeErr
}

func (s *ChallengeSession) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// ChallengeRegistry maps each platform to its single in-flight challenge.
type ChallengeRegistry struct {
	mu       sync.Mutex
	sessions map[domain.PlatformID]*ChallengeSession
	issuing  map[domain.PlatformID]*sync.Mutex
	grace    time.Duration
}

func NewChallengeRegistry(grace time.Duration) *ChallengeRegistry {
	if grace <= 0 {
		grace = DefaultSupersedeGrace
	}

	return &ChallengeRegistry{
		sessions: map[domain.PlatformID]*ChallengeSession{},
		issuing:  map[domain.PlatformID]*sync.Mutex{},
		grace:    grace,
	}
}

// lockPlatform serializes challenge issuance for one platform.
func (r *ChallengeRegistry) lockPlatform(id domain.PlatformID) func() {
	r.mu.Lock()
	mu, ok := r.issuing[id]
	if !ok {
		mu = &sync.Mutex{}
		r.issuing[id] = mu
	}
	r.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (r *ChallengeRegistry) Active(id domain.PlatformID) (*ChallengeSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	return session, ok
}

// Busy reports whether a challenge currently owns the platform's browser.
func (r *ChallengeRegistry) Busy(id domain.PlatformID) bool {
	_, ok := r.Active(id)
	return ok
}

func (r *ChallengeRegistry) register(session *ChallengeSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.Platform] = session
}

func (r *ChallengeRegistry) remove(session *ChallengeSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[session.Platform]; ok && current == session {
		delete(r.sessions, session.Platform)
	}
}

// Supersede stops the platform's in-flight challenge, if any. The watcher
// gets the grace period to exit on its own before its browser session is
// closed underneath it.
func (r *ChallengeRegistry) Supersede(ctx context.Context, id domain.PlatformID) *ChallengeSession {
	session, ok := r.Active(id)
	if !ok {
		return nil
	}

	session.Cancel(ErrChallengeSuperseded)
	r.await(ctx, session)
	r.remove(session)

	return session
}

// Cancel stops the platform's in-flight challenge at the caller's request.
func (r *ChallengeRegistry) Cancel(ctx context.Context, id domain.PlatformID) error {
	session, ok := r.Active(id)
	if !ok {
		return ErrChallengeNotActive
	}

	session.Cancel(context.Canceled)
	r.await(ctx, session)
	r.remove(session)

	return nil
}

// Shutdown cancels every in-flight challenge and waits for each to exit.
func (r *ChallengeRegistry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	sessions := make([]*ChallengeSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.mu.Unlock()

	for _, session := range sessions {
		session.Cancel(context.Canceled)
	}
	for _, session := range sessions {
		r.await(ctx, session)
		r.remove(session)
	}
}

func (r *ChallengeRegistry) await(ctx context.Context, session *ChallengeSession) {
	timer := time.NewTimer(r.grace)
	defer timer.Stop()

	select {
	case <-session.Done():
		return
	case <-timer.C:
	case <-ctx.Done():
	}

	// Closing the page fails the watcher's next browser call.
	_ = session.close()

	timer.Reset(r.grace)
	select {
	case <-session.Done():
	case <-timer.C:
	case <-ctx.Done():
	}
}
