// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package flv

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

var errMemoryFileClosed = errors.New("flvfix.flv: memory file already closed")

// MemoryFile 可seek的内存文件
type MemoryFile struct {
	buf    []byte
	pos    int64
	closed bool
}

func (f *MemoryFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, errMemoryFileClosed
	}
	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		f.buf = append(f.buf, make([]byte, end-int64(len(f.buf)))...)
	}
	copy(f.buf[f.pos:], p)
	f.pos = end
	return len(p), nil
}

func (f *MemoryFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.pos + offset
	case io.SeekEnd:
		abs = int64(len(f.buf)) + offset
	default:
		return 0, errors.New("flvfix.flv: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("flvfix.flv: negative position")
	}
	f.pos = abs
	return abs, nil
}

func (f *MemoryFile) Close() error {
	f.closed = true
	return nil
}

func (f *MemoryFile) Bytes() []byte {
	return f.buf
}

func (f *MemoryFile) IsClosed() bool {
	return f.closed
}

// MemoryTargetProvider 所有输出保存在内存中，用于测试以及对修复结果做二次处理
type MemoryTargetProvider struct {
	mu         sync.Mutex
	files      []*MemoryFile
	altHeaders bytes.Buffer
}

func NewMemoryTargetProvider() *MemoryTargetProvider {
	return &MemoryTargetProvider{}
}

// CreateOutputStream state为文件的序号，从0开始
func (p *MemoryTargetProvider) CreateOutputStream() (OutputStream, interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := &MemoryFile{}
	p.files = append(p.files, f)
	return f, len(p.files) - 1, nil
}

func (p *MemoryTargetProvider) CreateAlternativeHeaderStream() (io.WriteCloser, error) {
	return nopWriteCloser{w: &lockedWriter{mu: &p.mu, w: &p.altHeaders}}, nil
}

func (p *MemoryTargetProvider) Files() []*MemoryFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*MemoryFile(nil), p.files...)
}

func (p *MemoryTargetProvider) AlternativeHeaders() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.altHeaders.String()
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(b)
}

type nopWriteCloser struct {
	w io.Writer
}

func (n nopWriteCloser) Write(b []byte) (int, error) {
	return n.w.Write(b)
}

func (n nopWriteCloser) Close() error {
	return nil
}
