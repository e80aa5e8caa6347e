package studio

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const DefaultSessionTTL = 2 * time.Hour

// Registry holds sessions in memory and drops the ones idle longer than the TTL.
type Registry struct {
	sessions *cache.Cache
	ttl      time.Duration
	opts     Options
}

func NewRegistry(ttl time.Duration, opts Options) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	r := &Registry{
		sessions: cache.New(ttl, ttl/2),
		ttl:      ttl,
		opts:     opts,
	}
	r.sessions.OnEvicted(func(id string, _ interface{}) {
		r.opts.Metrics.SetActiveSessions(r.sessions.ItemCount())
		if r.opts.Logger != nil {
			r.opts.Logger.Debug("session expired", "session", id)
		}
	})
	return r
}

func (r *Registry) Create() *Session {
	sess := NewSession(uuid.NewString(), r.opts)
	r.sessions.Set(sess.ID(), sess, cache.DefaultExpiration)
	r.opts.Metrics.SetActiveSessions(r.sessions.ItemCount())
	return sess
}

// Get returns the session and extends its idle lifetime.
func (r *Registry) Get(id string) (*Session, bool) {
	v, ok := r.sessions.Get(id)
	if !ok {
		return nil, false
	}
	sess := v.(*Session)
	if !r.touch(id, sess) {
		return nil, false
	}
	return sess, true
}

// touch restarts the idle timer. Replace fails for a key deleted since the
// lookup, so a concurrent Delete is never undone.
func (r *Registry) touch(id string, sess *Session) bool {
	return r.sessions.Replace(id, sess, cache.DefaultExpiration) == nil
}

// TTL is how long a session may stay idle.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

func (r *Registry) GetOrCreate(id string) *Session {
	if sess, ok := r.Get(id); ok {
		return sess
	}
	sess := NewSession(id, r.opts)
	if err := r.sessions.Add(id, sess, cache.DefaultExpiration); err != nil {
		// lost a race with another creator
		if existing, ok := r.Get(id); ok {
			return existing
		}
	}
	r.opts.Metrics.SetActiveSessions(r.sessions.ItemCount())
	return sess
}

func (r *Registry) Delete(id string) {
	r.sessions.Delete(id)
	r.opts.Metrics.SetActiveSessions(r.sessions.ItemCount())
}

func (r *Registry) Len() int {
	return r.sessions.ItemCount()
}
