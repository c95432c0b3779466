// Package session holds the in-memory trees keyed by (tree name, workbook name).
package session

import (
	"assettree/internal/core/errors"
	"assettree/internal/engine/tree"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type Key struct {
	TreeName     string `json:"tree_name"`
	WorkbookName string `json:"workbook_name"`
}

func NewKey(treeName, workbookName string) (Key, error) {
	k := Key{TreeName: strings.TrimSpace(treeName), WorkbookName: strings.TrimSpace(workbookName)}
	if k.TreeName == "" {
		return Key{}, errors.New(errors.CodeValidationError, "tree_name is required")
	}
	if k.WorkbookName == "" {
		return Key{}, errors.New(errors.CodeValidationError, "workbook_name is required")
	}
	return k, nil
}

func (k Key) String() string {
	return k.TreeName + "::" + k.WorkbookName
}

// Session is one session's state. A stored Tree is never modified in place:
// writers build a clone and swap it in with Put. Nodes is the size of Tree,
// recorded under the store lock so List never walks a tree.
type Session struct {
	Key       Key
	Tree      *tree.Tree
	Nodes     int
	Revision  uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Info struct {
	Key       Key       `json:"key"`
	Nodes     int       `json:"nodes"`
	Revision  uint64    `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store maps session keys to trees. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[Key]*Session
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{sessions: make(map[Key]*Session), now: time.Now}
}

// Create returns the existing session for key, or registers t under it.
// created reports whether t was stored.
func (s *Store) Create(key Key, t *tree.Tree) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[key]; ok {
		return existing, false
	}
	now := s.now().UTC()
	sess := &Session{Key: key, Tree: t, Nodes: t.Len(), Revision: 1, CreatedAt: now, UpdatedAt: now}
	s.sessions[key] = sess
	return sess, true
}

func (s *Store) Get(key Key) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, errors.SessionNotFound(key.String())
	}
	return sess, nil
}

// Put swaps in t and bumps the revision, creating the session when needed.
// t must not be modified after it is stored.
func (s *Store) Put(key Key, t *tree.Tree) *Session {
	nodes := t.Len()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	sess, ok := s.sessions[key]
	if !ok {
		sess = &Session{Key: key, CreatedAt: now}
		s.sessions[key] = sess
	}
	sess.Tree = t
	sess.Nodes = nodes
	sess.Revision++
	sess.UpdatedAt = now
	return sess
}

func (s *Store) Delete(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[key]; !ok {
		return false
	}
	delete(s.sessions, key)
	return true
}

// List returns session summaries sorted by key.
func (s *Store) List() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Info, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, Info{
			Key:       sess.Key,
			Nodes:     sess.Nodes,
			Revision:  sess.Revision,
			CreatedAt: sess.CreatedAt,
			UpdatedAt: sess.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RenderKey identifies one cached rendering.
type RenderKey struct {
	Session  Key
	Revision uint64
	Format   string
}

func (k RenderKey) String() string {
	return fmt.Sprintf("%s@%d/%s", k.Session, k.Revision, k.Format)
}

// RenderCache caches rendered trees. A new revision changes the key, so stale
// renderings age out without explicit invalidation.
type RenderCache struct {
	lru *LRUCache[RenderKey, string]
}

func NewRenderCache(capacity int) *RenderCache {
	return &RenderCache{lru: NewLRUCache[RenderKey, string](capacity)}
}

func (c *RenderCache) Get(key RenderKey) (string, bool) {
	if c == nil {
		return "", false
	}
	return c.lru.Get(key)
}

func (c *RenderCache) Put(key RenderKey, rendered string) {
	if c == nil {
		return
	}
	c.lru.Put(key, rendered)
}

// Forget drops every rendering of a session.
func (c *RenderCache) Forget(session Key) int {
	if c == nil {
		return 0
	}
	return c.lru.EvictWhere(func(k RenderKey) bool { return k.Session == session })
}

func (c *RenderCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
