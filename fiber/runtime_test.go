// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/gottingen/abel/fiber"
	"github.com/gottingen/abel/fiberstack"
	"github.com/gottingen/abel/sched"
)

func newTestRuntime(t *testing.T, concurrency int) *fiber.Runtime {
	t.Helper()
	r := fiber.NewRuntime(fiber.RuntimeConfig{
		Profile:     sched.Neutral,
		NUMADomains: 1,
		Processors:  4,
		Concurrency: concurrency,
		StackConfig: fiberstack.Config{UserStackSize: 32 * 1024, SystemStackSize: 16 * 1024},
	})
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(r.Stop)
	return r
}

func TestSpawnRunsFunction(t *testing.T) {
	r := newTestRuntime(t, 4)

	var ran atomic.Bool
	rec := r.Spawn(func() { ran.Store(true) }, false)
	rec.Wait()

	if !ran.Load() {
		t.Fatal("spawned function did not run")
	}
}

func TestSpawnManyAllComplete(t *testing.T) {
	r := newTestRuntime(t, 8)

	const n = 200
	var count atomic.Int64
	recs := make([]*fiber.Record, n)
	for i := 0; i < n; i++ {
		recs[i] = r.Spawn(func() { count.Add(1) }, i%2 == 0)
	}
	for _, rec := range recs {
		rec.Wait()
	}

	if count.Load() != n {
		t.Fatalf("count: got %d, want %d", count.Load(), n)
	}
}

func TestSecondStartErrors(t *testing.T) {
	r := fiber.NewRuntime(fiber.RuntimeConfig{
		Profile:     sched.ComputeHeavy,
		NUMADomains: 1,
		Processors:  2,
		Concurrency: 2,
	})
	if err := r.Start(); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer r.Stop()

	if err := r.Start(); err == nil {
		t.Fatal("second Start should error")
	}
}

func TestRecordDoneReflectsCompletion(t *testing.T) {
	r := newTestRuntime(t, 2)

	release := make(chan struct{})
	rec := r.Spawn(func() { <-release }, false)

	if rec.Done() {
		t.Fatal("Done reported true before the function returned")
	}
	close(release)
	rec.Wait()

	if !rec.Done() {
		t.Fatal("Done reported false after Wait returned")
	}
}

func TestStopWaitsForWorkersToExit(t *testing.T) {
	r := fiber.NewRuntime(fiber.RuntimeConfig{
		Profile:     sched.ComputeHeavy,
		NUMADomains: 1,
		Processors:  2,
		Concurrency: 2,
	})
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return within 2s")
	}
}
