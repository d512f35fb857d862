// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// MockService is a suture.Service that can fail a set number of times
// before running until canceled.
type MockService struct {
	name       string
	startCount atomic.Int32
	stopCount  atomic.Int32
	failCount  atomic.Int32
	maxFails   atomic.Int32
}

func NewMockService(name string) *MockService {
	return &MockService{name: name}
}

func (m *MockService) Serve(ctx context.Context) error {
	m.startCount.Add(1)
	defer m.stopCount.Add(1)

	if m.failCount.Add(1) <= m.maxFails.Load() {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

// SetFailCount makes the next n Serve calls fail immediately.
func (m *MockService) SetFailCount(n int) {
	m.maxFails.Store(int32(n))
}

func (m *MockService) StartCount() int32 { return m.startCount.Load() }

func (m *MockService) StopCount() int32 { return m.stopCount.Load() }

func (m *MockService) String() string { return m.name }
