package storage

import (
	"context"
	"sync"

	"logguard/internal/model"

	"github.com/sirupsen/logrus"
)

// MemoryStore keeps the most recent anomalies in process memory.
type MemoryStore struct {
	mu           sync.RWMutex
	anomalies    []model.Anomaly
	maxAnomalies int
	logger       *logrus.Logger
}

func NewMemoryStore(maxAnomalies int, logger *logrus.Logger) *MemoryStore {
	if maxAnomalies <= 0 {
		maxAnomalies = 10000
	}
	return &MemoryStore{
		anomalies:    make([]model.Anomaly, 0),
		maxAnomalies: maxAnomalies,
		logger:       logger,
	}
}

func (s *MemoryStore) Put(_ context.Context, anomaly model.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.anomalies = append(s.anomalies, anomaly)

	// Keep only last maxAnomalies
	if len(s.anomalies) > s.maxAnomalies {
		s.anomalies = s.anomalies[len(s.anomalies)-s.maxAnomalies:]
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Anomaly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.anomalies) - 1; i >= 0; i-- {
		if s.anomalies[i].AnomalyID == id {
			anomaly := s.anomalies[i]
			return &anomaly, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, filter AnomalyFilter) ([]model.Anomaly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := normalizeLimit(filter.Limit)
	result := make([]model.Anomaly, 0)

	// Iterate in reverse to get latest first
	for i := len(s.anomalies) - 1; i >= 0 && len(result) < limit; i-- {
		anomaly := s.anomalies[i]

		if filter.Severity != "" && string(anomaly.Severity) != filter.Severity {
			continue
		}
		if filter.Type != "" && string(anomaly.Type) != filter.Type {
			continue
		}
		if filter.Source != "" && anomaly.Source != filter.Source {
			continue
		}

		result = append(result, anomaly)
	}

	return result, nil
}

func (s *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := newStats()
	for _, anomaly := range s.anomalies {
		stats.Total++
		stats.ByType[string(anomaly.Type)]++
		stats.BySeverity[string(anomaly.Severity)]++
	}
	return stats, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
