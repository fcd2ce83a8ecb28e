package session_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/aretw0/concierge/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data  map[string]*domain.Session
	mu    sync.Mutex
	saves int
}

func (s *SlowStore) Save(ctx context.Context, key string, session *domain.Session) error {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.Session)
	}
	s.data[key] = session.Clone()
	s.saves++
	return nil
}

func (s *SlowStore) Load(ctx context.Context, key string) (*domain.Session, error) {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.data[key]; ok {
		return session.Clone(), nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *SlowStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// incrementName treats CustomerName as a counter so lost updates are visible.
func incrementName(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	n, _ := strconv.Atoi(s.CustomerName)
	s.CustomerName = strconv.Itoa(n + 1)
	return s, nil
}

func TestManager_Update_SerializesPerKey(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	key := "whatsapp:+15550001111"

	var wg sync.WaitGroup
	const writers = 20
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Update(ctx, key, incrementName)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := manager.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(writers), got.CustomerName, "no read-modify-write cycle may be lost")
}

func TestManager_Update_DifferentKeysRunInParallel(t *testing.T) {
	manager := session.NewManager(&SlowStore{})
	ctx := context.Background()

	var inFlight, peak int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, err := manager.Update(ctx, key, func(ctx context.Context, s *domain.Session) (*domain.Session, error) {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				<-release
				atomic.AddInt32(&inFlight, -1)
				return s, nil
			})
			assert.NoError(t, err)
		}("key-" + strconv.Itoa(i))
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&peak) == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()
}

func TestManager_Update_NewSession(t *testing.T) {
	now := time.Date(2030, time.March, 1, 9, 0, 0, 0, time.UTC)
	store := &SlowStore{}
	manager := session.NewManager(store, session.WithClock(func() time.Time { return now }))

	got, err := manager.Update(context.Background(), "k", func(ctx context.Context, s *domain.Session) (*domain.Session, error) {
		assert.Equal(t, domain.StageNew, s.Stage)
		assert.Equal(t, "k", s.Key)
		s.Stage = domain.StageAwaitingService
		return s, nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StageAwaitingService, got.Stage)
	assert.Equal(t, now, got.CreatedAt)
	assert.Equal(t, now, got.UpdatedAt)
}

func TestManager_Update_FailurePersistsNothing(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	key := "k"

	seed := domain.NewSession(key, time.Now())
	seed.Stage = domain.StageAwaitingService
	require.NoError(t, manager.Save(ctx, key, seed))

	boom := errors.New("gateway down")
	_, err := manager.Update(ctx, key, func(ctx context.Context, s *domain.Session) (*domain.Session, error) {
		s.Stage = domain.StageAwaitingLocation
		s.SelectedService = "service_1"
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := manager.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.StageAwaitingService, got.Stage)
	assert.Empty(t, got.SelectedService)
}

func TestManager_Update_NilResultSkipsSave(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)

	got, err := manager.Update(context.Background(), "k", func(ctx context.Context, s *domain.Session) (*domain.Session, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StageNew, got.Stage)
	assert.Zero(t, store.saveCount())
}

type recordingLocker struct {
	mu    sync.Mutex
	keys  []string
	ttl   time.Duration
	fail  error
	freed int
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	l.keys = append(l.keys, key)
	l.ttl = ttl
	return func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.freed++
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &recordingLocker{}
	manager := session.NewManager(&SlowStore{}, session.WithLocker(locker), session.WithLockTTL(5*time.Second))

	_, err := manager.Update(context.Background(), "k", incrementName)
	require.NoError(t, err)

	assert.Equal(t, []string{"k"}, locker.keys)
	assert.Equal(t, 5*time.Second, locker.ttl)
	assert.Equal(t, 1, locker.freed)
}

func TestManager_DistributedLocker_Failure(t *testing.T) {
	locker := &recordingLocker{fail: errors.New("lock timeout")}
	store := &SlowStore{}
	manager := session.NewManager(store, session.WithLocker(locker))

	called := false
	_, err := manager.Update(context.Background(), "k", func(ctx context.Context, s *domain.Session) (*domain.Session, error) {
		called = true
		return s, nil
	})
	assert.ErrorContains(t, err, "failed to acquire distributed lock")
	assert.False(t, called)
	assert.Zero(t, store.saveCount())
}
