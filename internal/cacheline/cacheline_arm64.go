// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build arm64

package cacheline

// Size is the conservative L1 cache line size for arm64, covering Apple
// Silicon's 128-byte lines as well as the more common 64-byte lines.
const Size = 128
