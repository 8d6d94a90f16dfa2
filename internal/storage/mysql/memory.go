package mysql

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ActionKit-Chain/internal/action"
)

const memoryRetention = 512

// MemoryInvocationRepository appends invocations to a JSON lines file and
// keeps the newest in memory.
type MemoryInvocationRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []action.Invocation
	seen     map[string]bool
}

// NewMemoryInvocationRepository restores history from dataDir/invocations.log.
func NewMemoryInvocationRepository(dataDir string) (*MemoryInvocationRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	repo := &MemoryInvocationRepository{
		dataFile: filepath.Join(dataDir, "invocations.log"),
		seen:     make(map[string]bool),
	}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save appends inv unless its ID was already saved.
func (m *MemoryInvocationRepository) Save(_ context.Context, inv action.Invocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv.ID != "" && m.seen[inv.ID] {
		return nil
	}

	encoded, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encode invocation: %w", err)
	}
	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open invocation log: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("write invocation log: %w", err)
	}

	m.remember(inv)
	return nil
}

func (m *MemoryInvocationRepository) remember(inv action.Invocation) {
	m.records = append([]action.Invocation{inv}, m.records...)
	if inv.ID != "" {
		m.seen[inv.ID] = true
	}
	if len(m.records) > memoryRetention {
		for _, dropped := range m.records[memoryRetention:] {
			delete(m.seen, dropped.ID)
		}
		m.records = m.records[:memoryRetention]
	}
}

// ListLatest returns up to limit invocations, newest first.
func (m *MemoryInvocationRepository) ListLatest(_ context.Context, limit int) ([]action.Invocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit = clampLimit(limit)
	if limit > len(m.records) {
		limit = len(m.records)
	}
	out := make([]action.Invocation, limit)
	copy(out, m.records[:limit])
	return out, nil
}

// Close is a no-op.
func (m *MemoryInvocationRepository) Close() error { return nil }

func (m *MemoryInvocationRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("read invocation log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		var inv action.Invocation
		if err := json.Unmarshal(scanner.Bytes(), &inv); err != nil {
			continue
		}
		m.remember(inv)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("parse invocation log: %w", err)
	}
	return nil
}
