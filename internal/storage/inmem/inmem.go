// Package inmem provides a LocalStorage that holds everything in memory. It
// is used for tests and for consoles started with non-persistent sessions.
package inmem

import (
	"context"
	"sync"

	"github.com/dekarrin/campman/internal/storage"
)

type Store struct {
	mtx  sync.Mutex
	data map[string]string
}

func New() *Store {
	return &Store{data: map[string]string{}}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	v, ok := s.data[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.data[key] = value
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	delete(s.data, key)
	return nil
}

func (s *Store) Close() error {
	return nil
}
