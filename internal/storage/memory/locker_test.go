package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
)

func TestOrderLocker_MutualExclusion(t *testing.T) {
	locker := memory.NewOrderLocker()

	const workers = 16
	const iterations = 50

	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				err := locker.WithLock(context.Background(), "order-1", func(ctx context.Context) error {
					counter++
					return nil
				})
				if err != nil {
					t.Errorf("with lock failed: %v", err)
					return
				}
			}
		}()
	}

	wg.Wait()

	if counter != workers*iterations {
		t.Fatalf("expected %d increments, got %d", workers*iterations, counter)
	}
}

func TestOrderLocker_IndependentOrders(t *testing.T) {
	locker := memory.NewOrderLocker()

	blocked := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = locker.WithLock(context.Background(), "order-1", func(ctx context.Context) error {
			close(blocked)
			<-release
			return nil
		})
	}()

	<-blocked

	// Другой заказ не должен ждать чужую блокировку.
	done := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), "order-2", func(ctx context.Context) error {
			return nil
		})
		close(done)
	}()

	<-done
	close(release)
}

func TestOrderLocker_CanceledContext(t *testing.T) {
	locker := memory.NewOrderLocker()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := locker.WithLock(ctx, "order-1", func(ctx context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected context error")
	}
	if called {
		t.Fatal("callback must not run with canceled context")
	}
}
