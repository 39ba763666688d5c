// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package flv

import "sync"

// BufferProvider tag body内存块的来源
type BufferProvider interface {
	// Get 返回长度为`size`的内存块，内容未初始化
	Get(size int) []byte

	Put(b []byte)
}

// PoolBufferProvider 基于sync.Pool复用内存块
type PoolBufferProvider struct {
	pool sync.Pool
}

func NewPoolBufferProvider() *PoolBufferProvider {
	return &PoolBufferProvider{}
}

func (p *PoolBufferProvider) Get(size int) []byte {
	if v := p.pool.Get(); v != nil {
		b := *(v.(*[]byte))
		if cap(b) >= size {
			return b[:size]
		}
		// 太小的直接丢弃，让GC回收
	}
	return make([]byte, size)
}

func (p *PoolBufferProvider) Put(b []byte) {
	b = b[:0]
	p.pool.Put(&b)
}

var defaultBufferProvider = NewPoolBufferProvider()

// DefaultBufferProvider 进程内共享的 PoolBufferProvider
func DefaultBufferProvider() BufferProvider {
	return defaultBufferProvider
}
