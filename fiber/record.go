// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"github.com/gottingen/abel/fiberstack"
	"github.com/gottingen/abel/objpool"
)

// Record is a fiber: opaque to callers and identified only by its
// address, per spec.md §3. It carries the function to run, the user
// stack reserved for it (an accounting/safety-net resource — the
// function actually executes on the goroutine of the worker that
// popped or stole it, see DESIGN.md), and a channel closed when the function
// returns.
type Record struct {
	fn         func()
	unstealable bool
	stack      *objpool.Pooled[fiberstack.UserStack]
	group      *Group
	done       chan struct{}
}

// Wait blocks until the fiber's function has returned.
func (r *Record) Wait() {
	<-r.done
}

// Done reports whether the fiber's function has returned, without
// blocking.
func (r *Record) Done() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
