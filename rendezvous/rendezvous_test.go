// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rendezvous_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gottingen/abel/rendezvous"
)

func TestBarrierReleasesExactlyOneWinner(t *testing.T) {
	const n = 8
	b := rendezvous.NewBarrier(n)

	var wg sync.WaitGroup
	var winners int32
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if b.Block() {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("winners: got %d, want 1", winners)
	}
}

func TestBarrierReleasesAllParticipants(t *testing.T) {
	const n = 16
	b := rendezvous.NewBarrier(n)

	var wg sync.WaitGroup
	var returned int32
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			b.Block()
			atomic.AddInt32(&returned, 1)
		}()
	}
	wg.Wait()

	if returned != n {
		t.Fatalf("returned: got %d, want %d", returned, n)
	}
}

func TestBlockingCounterUnblocksWaitAfterNDecrements(t *testing.T) {
	const n = 5
	c := rendezvous.NewBlockingCounter(n)

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()

	for i := 0; i < n-1; i++ {
		c.Decrement()
	}
	select {
	case <-done:
		t.Fatal("Wait returned before all decrements landed")
	default:
	}

	c.Decrement()
	<-done
}
