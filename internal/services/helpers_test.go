package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"cloudvps-backend/internal/models"
	"cloudvps-backend/internal/services"
)

type memStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

func (m *memStore) Load(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return append([]byte(nil), m.data...), nil
}

func (m *memStore) Save(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *memStore) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

func (m *memStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func setupTestEngine(t *testing.T, opts ...services.EngineOption) (*services.Engine, *fakeClock, *memStore) {
	t.Helper()

	clock := newFakeClock()
	store := &memStore{}
	all := append([]services.EngineOption{
		services.WithClock(clock.Now),
		services.WithSimulatedDelay(0, 0),
		services.WithDebounce(10 * time.Millisecond),
	}, opts...)

	engine, err := services.NewEngine(context.Background(), store, all...)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(func() {
		engine.Close(context.Background())
	})
	return engine, clock, store
}

func registerTestUser(t *testing.T, engine *services.Engine) string {
	t.Helper()

	user, err := engine.Register("alice@example.com", "secret1", "Alice")
	if err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	return user.ID
}

func fund(t *testing.T, engine *services.Engine, userID string, points int64) {
	t.Helper()

	if _, err := engine.AddPoints(userID, points, "Test funding"); err != nil {
		t.Fatalf("Failed to add points: %v", err)
	}
}

// waitForStatus polls until the instance reaches the wanted status.
func waitForStatus(t *testing.T, engine *services.Engine, userID, instID string, want models.InstanceStatus) models.VpsInstance {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := engine.Instances(userID)
		if err != nil {
			t.Fatalf("Failed to list instances: %v", err)
		}
		for _, inst := range resp.Instances {
			if inst.ID == instID && inst.Status == want {
				return inst
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("Instance %s never reached status %s", instID, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
