// Package store holds the canonical in-memory schema and notifies observers
// after every mutation.
//
// Operations that reference a missing table, column or relation are no-ops:
// they neither fail nor notify. Observers run synchronously, in subscription
// order, before the mutating call returns.
package store

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tordrt/schemasync/internal/schema"
)

const (
	defaultTableName  = "new_table"
	defaultColumnType = "VARCHAR(255)"
)

// Listener receives the full post-mutation schema. It must treat it as read-only.
type Listener func(schema.Schema)

// VersionedListener also receives the version of the snapshot. Versions grow
// by one per mutation, so a listener racing concurrent mutations can drop
// snapshots older than one it already handled.
type VersionedListener func(version uint64, sc schema.Schema)

type subscription struct {
	id uint64
	fn VersionedListener
}

// Store owns the canonical schema
type Store struct {
	mu        sync.Mutex
	state     schema.Schema
	version   uint64
	listeners []subscription
	nextSub   uint64

	newID  func() string
	logger *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithIDGenerator overrides how stable ids are minted
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithLogger sets the logger used for tracing mutations
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithState seeds the store with an initial schema
func WithState(sc schema.Schema) Option {
	return func(s *Store) { s.state = sc.Clone() }
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		state:  schema.Schema{Tables: []schema.Table{}, Relations: []schema.Relation{}},
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the current schema
func (s *Store) State() schema.Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// StateOption replaces one part of the schema in SetState
type StateOption func(*schema.Schema)

// WithTables replaces the table list wholesale
func WithTables(tables []schema.Table) StateOption {
	return func(sc *schema.Schema) {
		sc.Tables = schema.Schema{Tables: tables}.Clone().Tables
	}
}

// WithRelations replaces the relation list wholesale
func WithRelations(relations []schema.Relation) StateOption {
	return func(sc *schema.Schema) {
		sc.Relations = schema.Schema{Relations: relations}.Clone().Relations
	}
}

// SetState merges the given parts into the current schema and notifies
func (s *Store) SetState(opts ...StateOption) {
	s.mutate("set state", func(sc *schema.Schema) bool {
		for _, opt := range opts {
			opt(sc)
		}
		return true
	})
}

// Replace swaps the whole schema
func (s *Store) Replace(sc schema.Schema) {
	s.SetState(WithTables(sc.Tables), WithRelations(sc.Relations))
}

// Version returns the number of mutations applied so far
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Subscribe registers a listener. The returned function removes it and may be
// called more than once.
func (s *Store) Subscribe(fn Listener) func() {
	return s.SubscribeVersioned(func(_ uint64, sc schema.Schema) { fn(sc) })
}

// SubscribeVersioned registers a listener that is told each snapshot's version
func (s *Store) SubscribeVersioned(fn VersionedListener) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// mutate applies fn under the lock. When fn reports a change, every listener
// registered at that moment is called with a snapshot after the lock is released,
// so listeners may call back into the store.
func (s *Store) mutate(op string, fn func(sc *schema.Schema) bool) {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		s.logger.Debug("mutation skipped", zap.String("op", op))
		return
	}
	s.version++
	version := s.version
	snapshot := s.state.Clone()
	listeners := make([]subscription, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	s.logger.Debug("schema mutated",
		zap.String("op", op),
		zap.Uint64("version", version),
		zap.Int("tables", len(snapshot.Tables)),
		zap.Int("relations", len(snapshot.Relations)),
		zap.Int("listeners", len(listeners)))

	for _, sub := range listeners {
		sub.fn(version, snapshot)
	}
}
