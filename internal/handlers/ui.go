package handlers

import (
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"camera-angle-studio/internal/studio"
)

const (
	menuMain     = "main"
	menuPresets  = "presets"
	menuSettings = "settings"
	menuHistory  = "history"
)

// chatUI is the keyboard state of one chat. The studio session owns the
// camera and settings; this only tracks which message and menu are shown.
type chatUI struct {
	MessageID       int
	Menu            string
	AwaitingContext bool
	UpdatedAt       time.Time
}

// uiStore expires chat state on the same idle TTL as studio sessions, so a
// chat whose session is gone starts over from the main menu.
type uiStore struct {
	mu sync.Mutex
	m  *cache.Cache
}

func newUIStore(ttl time.Duration) *uiStore {
	if ttl <= 0 {
		ttl = studio.DefaultSessionTTL
	}
	return &uiStore{m: cache.New(ttl, ttl/2)}
}

func (s *uiStore) Get(chatID int64) chatUI {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.getOrCreateLocked(chatID)
}

func (s *uiStore) Update(chatID int64, fn func(*chatUI)) chatUI {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(chatID)
	if fn != nil {
		fn(st)
	}
	if st.Menu == "" {
		st.Menu = menuMain
	}
	st.UpdatedAt = time.Now()
	return *st
}

func (s *uiStore) Len() int {
	return s.m.ItemCount()
}

func (s *uiStore) getOrCreateLocked(chatID int64) *chatUI {
	key := strconv.FormatInt(chatID, 10)
	st, ok := s.m.Get(key)
	if !ok {
		st = &chatUI{Menu: menuMain}
	}
	s.m.Set(key, st, cache.DefaultExpiration)
	return st.(*chatUI)
}
