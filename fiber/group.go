// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import "github.com/gottingen/abel/runqueue"

// groupQueueCapacity bounds each group's shared run queue. Rounded up to
// the next power of two by runqueue.New.
const groupQueueCapacity = 4096

// Group owns a scheduling group's workers and the single run queue they
// share: every worker in the group pushes/pops against the same
// runqueue.Queue, and workers in other groups steal from it when their
// own queue runs dry (spec.md's data-flow description, §2).
type Group struct {
	id      int
	queue   *runqueue.Queue
	workers int
}

func newGroup(id, workers int) *Group {
	return &Group{id: id, queue: runqueue.New(groupQueueCapacity), workers: workers}
}
