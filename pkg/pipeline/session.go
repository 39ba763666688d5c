// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pipeline

import (
	"bytes"

	"github.com/q191201771/flvfix/pkg/flv"
)

// Session 一路输入流的跨group状态，每个rule族使用自己的子结构
type Session struct {
	Script    ScriptState
	Header    HeaderState
	Timestamp TimestampState
	Filler    FillerState
}

func NewSession() *Session {
	return &Session{}
}

type ScriptState struct {
	// Seen 已经登记过script tag，包括补全的
	Seen bool
}

type HeaderState struct {
	Video *flv.Tag
	Audio *flv.Tag

	MissingVideoReported bool
	MissingAudioReported bool
}

// TimestampState 输出时间戳 = 输入时间戳 + Offset
type TimestampState struct {
	HasLast bool
	Offset  int64

	LastOutput int64 // 已输出的最大时间戳

	HasLastVideo    bool
	LastVideoOutput int64
	HasLastAudio    bool
	LastAudioOutput int64
}

func (s *TimestampState) Reset() {
	*s = TimestampState{}
}

type fillerKey struct {
	typ       flv.TagType
	timestamp int64
	size      int
	hash      uint64
}

type fillerEntry struct {
	key  fillerKey
	data []byte // payload的拷贝，tag的内存块在写入后会被归还
}

// FillerState 最近写出的data tag，环形。每个输出文件独立
type FillerState struct {
	entries []fillerEntry
	next    int
}

// contains 指纹相同时再逐字节比较
func (s *FillerState) contains(k fillerKey, data []byte) bool {
	for i := range s.entries {
		if s.entries[i].key == k && bytes.Equal(s.entries[i].data, data) {
			return true
		}
	}
	return false
}

func (s *FillerState) add(k fillerKey, data []byte, window int) {
	if window <= 0 {
		return
	}
	var e *fillerEntry
	if len(s.entries) < window {
		if len(s.entries) < cap(s.entries) {
			s.entries = s.entries[:len(s.entries)+1]
		} else {
			s.entries = append(s.entries, fillerEntry{})
		}
		e = &s.entries[len(s.entries)-1]
	} else {
		e = &s.entries[s.next%len(s.entries)]
		s.next = (s.next + 1) % len(s.entries)
	}
	e.key = k
	e.data = append(e.data[:0], data...)
}

// Reset 保留已申请的内存块
func (s *FillerState) Reset() {
	s.entries = s.entries[:0]
	s.next = 0
}

func (s *FillerState) Len() int {
	return len(s.entries)
}
