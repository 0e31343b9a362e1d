// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rate_test

import (
	"testing"
	"time"

	"github.com/gottingen/abel/rate"
)

func TestEveryNPassesFirstAndEveryNth(t *testing.T) {
	g := rate.NewEveryN(3)
	got := make([]bool, 7)
	for i := range got {
		got[i] = g.Feed()
	}
	want := []bool{true, false, false, true, false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFirstNPassesOnlyFirstN(t *testing.T) {
	g := rate.NewFirstN(2)
	if !g.Feed() || !g.Feed() {
		t.Fatal("first two calls should pass")
	}
	if g.Feed() || g.Feed() {
		t.Fatal("calls beyond n should not pass")
	}
}

func TestEverySecondPassesOncePerSecond(t *testing.T) {
	g := rate.NewEverySecond()
	if !g.Feed() {
		t.Fatal("first call should pass")
	}
	if g.Feed() {
		t.Fatal("immediate second call within the same second should not pass")
	}
	time.Sleep(1100 * time.Millisecond)
	if !g.Feed() {
		t.Fatal("call after a full second should pass")
	}
}
