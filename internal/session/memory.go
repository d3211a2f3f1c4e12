package session

import (
	"context"
	"sync"

	"github.com/aymanebs/emr-api/internal/model"
)

type memoryStore struct {
	mu         sync.RWMutex
	patients   map[string]*model.ActivePatient
	selections map[string]*model.LastSelection
}

// NewMemoryStore returns a process-local session store for tests and
// single-node development.
func NewMemoryStore() Store {
	return &memoryStore{
		patients:   make(map[string]*model.ActivePatient),
		selections: make(map[string]*model.LastSelection),
	}
}

func (s *memoryStore) SetActivePatient(_ context.Context, sessionID string, patient *model.ActivePatient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *patient
	s.patients[sessionID] = &cp
	return nil
}

func (s *memoryStore) GetActivePatient(_ context.Context, sessionID string) (*model.ActivePatient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patient, ok := s.patients[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *patient
	return &cp, nil
}

func (s *memoryStore) ClearActivePatient(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.patients, sessionID)
	return nil
}

func (s *memoryStore) SetLastSelection(_ context.Context, sessionID string, selection *model.LastSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *selection
	s.selections[sessionID] = &cp
	return nil
}

func (s *memoryStore) GetLastSelection(_ context.Context, sessionID string) (*model.LastSelection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	selection, ok := s.selections[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *selection
	return &cp, nil
}

func (s *memoryStore) ClearLastSelection(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selections, sessionID)
	return nil
}
