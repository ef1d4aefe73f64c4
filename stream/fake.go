// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stream

import "sync"

// Fake 是一个内存实现的 ByteStream 用于单元测试 不依赖真实 socket
//
// 写入的数据进入 Out 供测试断言 读取的数据来自预先填充的 In
type Fake struct {
	mut    sync.Mutex
	mode   Mode
	in     []byte
	inPos  int
	Out    []byte
	closed bool
}

// NewFake 创建一个携带预置入站数据的 Fake 流
func NewFake(in []byte) *Fake {
	return &Fake{in: in, mode: ModeBlocking}
}

func (f *Fake) SetMode(m Mode) { f.mode = m }

func (f *Fake) Mode() Mode { return f.mode }

// Feed 向入站缓冲区追加数据 模拟管道另一端继续发送
func (f *Fake) Feed(p []byte) {
	f.mut.Lock()
	defer f.mut.Unlock()
	f.in = append(f.in, p...)
}

func (f *Fake) Read(p []byte) (int, Status, error) {
	f.mut.Lock()
	defer f.mut.Unlock()

	if f.closed {
		return 0, StatusClosed, nil
	}
	if f.inPos >= len(f.in) {
		return 0, StatusClosed, nil
	}
	n := copy(p, f.in[f.inPos:])
	f.inPos += n
	return n, StatusOK, nil
}

func (f *Fake) Write(p []byte) (int, Status, error) {
	f.mut.Lock()
	defer f.mut.Unlock()

	if f.closed {
		return 0, StatusClosed, nil
	}
	f.Out = append(f.Out, p...)
	return len(p), StatusOK, nil
}

func (f *Fake) Close() error {
	f.mut.Lock()
	defer f.mut.Unlock()
	f.closed = true
	return nil
}
