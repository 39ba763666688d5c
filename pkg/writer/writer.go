// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package writer 执行 pipeline.Context 中的 Actions ，把修复后的tag写入 flv.TagWriter
package writer

import (
	"fmt"
	"sync"

	"github.com/q191201771/flvfix/pkg/amf0"
	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/flvfix/pkg/flv"
	"github.com/q191201771/flvfix/pkg/pipeline"
)

type State uint8

const (
	// StateInvalid 终态，之后的所有调用都返回 base.ErrWriterInvalidState
	StateInvalid State = iota

	StateEmptyFileOrNotOpen
	StateWriting
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "Invalid"
	case StateEmptyFileOrNotOpen:
		return "EmptyFileOrNotOpen"
	case StateWriting:
		return "Writing"
	}
	return "Unknown"
}

// FileClosedEvent 一个输出文件关闭时的信息
type FileClosedEvent struct {
	FileSize int64
	Duration float64     // 秒
	State    interface{} // flv.TagWriter.State
}

type Option struct {
	// AllowMissingHeader 为true时，缺少音频或视频header也可以打开新文件，比如纯音频的流
	AllowMissingHeader bool

	// DisableKeyframes 为true时不在metadata中写入keyframes索引
	DisableKeyframes bool

	// KeyframesCapacity keyframes索引的最大条数，决定了script tag预留的大小
	KeyframesCapacity int

	OnFileClosed func(event FileClosedEvent)

	// BeforeScriptTagWrite 新文件写入script tag之前回调，可以修改metadata
	BeforeScriptTagWrite func(body *amf0.ScriptTagBody)

	// BeforeScriptTagRewrite 原地覆盖script tag之前回调，修改后序列化的大小必须不变
	BeforeScriptTagRewrite func(body *amf0.ScriptTagBody)
}

var defaultOption = Option{
	AllowMissingHeader: false,
	DisableKeyframes:   false,
	KeyframesCapacity:  amf0.DefaultKeyframesCapacity,
}

type ModOption func(option *Option)

// ContextWriter
//
// script和header只是登记，在第一个data或end到来时才打开文件并写入，
// 登记跨文件保留，轮转后的新文件可以沿用。
type ContextWriter struct {
	uniqueKey string
	option    Option
	target    flv.TagWriter

	mu       sync.Mutex
	state    State
	disposed bool

	pendingScript      *flv.Tag
	pendingVideoHeader *flv.Tag
	pendingAudioHeader *flv.Tag

	// 当前文件
	script              *amf0.ScriptTagBody
	keyframes           *amf0.Keyframes
	keyframesFullWarned bool
	duration            float64
}

func NewContextWriter(target flv.TagWriter, modOptions ...ModOption) *ContextWriter {
	option := defaultOption
	for _, fn := range modOptions {
		fn(&option)
	}
	if option.KeyframesCapacity <= 0 {
		option.KeyframesCapacity = amf0.DefaultKeyframesCapacity
	}
	uk := base.GenUkContextWriter()
	base.Log.Debugf("[%s] lifecycle new context writer. target=%T", uk, target)
	return &ContextWriter{
		uniqueKey: uk,
		option:    option,
		target:    target,
		state:     StateEmptyFileOrNotOpen,
	}
}

// Write 按顺序执行`ctx`中的所有action
//
// 任何错误都会使writer进入 StateInvalid 。
func (w *ContextWriter) Write(ctx *pipeline.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disposed {
		return base.ErrWriterDisposed
	}
	if w.state == StateInvalid {
		return base.ErrWriterInvalidState
	}

	for _, action := range ctx.Actions {
		if err := w.writeAction(action); err != nil {
			base.Log.Errorf("[%s] write action failed, writer is invalid now. action=%s, err=%+v", w.uniqueKey, action, err)
			w.state = StateInvalid
			return err
		}
	}
	return nil
}

func (w *ContextWriter) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *ContextWriter) UniqueKey() string {
	return w.uniqueKey
}

// Dispose 尽力关闭当前文件，失败只打日志，然后释放 flv.TagWriter ，只执行一次
func (w *ContextWriter) Dispose() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disposed {
		return nil
	}
	w.disposed = true

	if err := w.closeCurrentFile(); err != nil {
		base.Log.Warnf("[%s] close current file failed while disposing. err=%+v", w.uniqueKey, err)
	}
	base.Log.Debugf("[%s] lifecycle dispose context writer.", w.uniqueKey)
	return w.target.Dispose()
}

func (w *ContextWriter) writeAction(action pipeline.Action) error {
	switch a := action.(type) {
	case *pipeline.NewFileAction:
		if err := w.closeCurrentFile(); err != nil {
			return err
		}
		w.state = StateEmptyFileOrNotOpen
	case *pipeline.ScriptAction:
		w.pendingScript = a.Tag
	case *pipeline.HeaderAction:
		if a.VideoHeader != nil {
			w.pendingVideoHeader = a.VideoHeader
		}
		if a.AudioHeader != nil {
			w.pendingAudioHeader = a.AudioHeader
		}
	case *pipeline.DataAction:
		return w.writeData(a.Tags)
	case *pipeline.EndAction:
		if err := w.ensureOpen(); err != nil {
			return err
		}
		if err := w.target.WriteTag(a.Tag); err != nil {
			return err
		}
		w.duration = float64(a.Tag.Timestamp) / 1000
	case *pipeline.LogAlternativeHeaderAction:
		return w.target.WriteAlternativeHeaders(a.Tags)
	default:
		return base.NewErrUnknownAction(action)
	}
	return nil
}

func (w *ContextWriter) writeData(tags []*flv.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	if err := w.ensureOpen(); err != nil {
		return err
	}

	pos := w.target.FileSize()
	for _, tag := range tags {
		if err := w.target.WriteTag(tag); err != nil {
			return err
		}
	}
	w.duration = float64(tags[len(tags)-1].Timestamp) / 1000

	if !tags[0].IsKeyframeData() {
		return nil
	}
	if w.keyframes != nil && !w.keyframes.AddData(tags[0].Timestamp, pos) && !w.keyframesFullWarned {
		w.keyframesFullWarned = true
		base.Log.Warnf("[%s] keyframes index is full, following keyframes are not indexed. capacity=%d, state=%v",
			w.uniqueKey, w.keyframes.Capacity(), w.target.State())
	}
	return w.rewriteScript()
}

// ensureOpen 没有打开文件时，创建文件并写入script和header
func (w *ContextWriter) ensureOpen() error {
	if w.state == StateWriting {
		return nil
	}

	// 保证文件已关闭
	if err := w.closeCurrentFile(); err != nil {
		return err
	}

	if w.pendingScript == nil {
		return base.ErrNoScriptTag
	}
	if w.pendingScript.ScriptData == nil || w.pendingScript.ScriptData.GetMetadataValue() == nil {
		return base.ErrNoScriptData
	}
	if !w.option.AllowMissingHeader {
		if w.pendingVideoHeader == nil {
			return base.ErrNoVideoHeader
		}
		if w.pendingAudioHeader == nil {
			return base.ErrNoAudioHeader
		}
	}

	if err := w.target.CreateNewFile(); err != nil {
		return err
	}

	script := w.pendingScript.ScriptData.Clone()
	meta := script.GetMetadataValue()
	meta.Set(amf0.MetadataKeyDuration, float64(0))
	w.keyframes = nil
	w.keyframesFullWarned = false
	if !w.option.DisableKeyframes {
		w.keyframes = amf0.NewKeyframes(w.option.KeyframesCapacity)
		meta.Set(amf0.MetadataKeyKeyframes, w.keyframes)
	} else {
		meta.Delete(amf0.MetadataKeyKeyframes)
	}
	if w.option.BeforeScriptTagWrite != nil {
		w.option.BeforeScriptTagWrite(script)
	}
	w.script = script
	w.duration = 0

	if err := w.target.WriteTag(flv.NewScriptTag(script)); err != nil {
		return err
	}
	for _, h := range []*flv.Tag{w.pendingVideoHeader, w.pendingAudioHeader} {
		if h == nil {
			continue
		}
		// header的时间戳固定为0
		header := *h
		header.Timestamp = 0
		if err := w.target.WriteTag(&header); err != nil {
			return err
		}
	}

	base.Log.Infof("[%s] open new file. state=%v, video header=%v, audio header=%v",
		w.uniqueKey, w.target.State(), w.pendingVideoHeader != nil, w.pendingAudioHeader != nil)
	w.state = StateWriting
	return nil
}

func (w *ContextWriter) rewriteScript() error {
	if w.script == nil {
		return nil
	}
	w.script.GetMetadataValue().Set(amf0.MetadataKeyDuration, w.duration)
	if w.option.BeforeScriptTagRewrite != nil {
		w.option.BeforeScriptTagRewrite(w.script)
	}
	if err := w.target.OverwriteMetadata(w.script); err != nil {
		return fmt.Errorf("rewrite script tag failed. %w", err)
	}
	return nil
}

// closeCurrentFile 覆盖最终的duration后关闭文件，没有打开的文件时什么也不做
func (w *ContextWriter) closeCurrentFile() error {
	if w.state == StateWriting {
		if err := w.rewriteScript(); err != nil {
			return err
		}
	}

	fileSize := w.target.FileSize()
	state := w.target.State()
	closed, err := w.target.CloseCurrentFile()
	if err != nil {
		return err
	}
	duration := w.duration
	w.script = nil
	w.keyframes = nil
	w.duration = 0
	if w.state == StateWriting {
		w.state = StateEmptyFileOrNotOpen
	}
	if !closed {
		return nil
	}

	base.Log.Infof("[%s] file closed. state=%v, size=%d, duration=%.3f", w.uniqueKey, state, fileSize, duration)
	if w.option.OnFileClosed != nil {
		w.option.OnFileClosed(FileClosedEvent{
			FileSize: fileSize,
			Duration: duration,
			State:    state,
		})
	}
	return nil
}
