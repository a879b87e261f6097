// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package task

// wakeup 容量为 1 的唤醒信号：入队、重试、取消、完成时通知调度循环，多次通知合并为一次
type wakeup struct {
	ch chan struct{}
}

func newWakeup() *wakeup {
	return &wakeup{ch: make(chan struct{}, 1)}
}

// notify 非阻塞发送，已有未消费信号时丢弃
func (w *wakeup) notify() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// C 接收端
func (w *wakeup) C() <-chan struct{} {
	return w.ch
}
