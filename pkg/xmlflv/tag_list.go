// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package xmlflv

import (
	"context"
	"fmt"
	"io"

	"github.com/q191201771/flvfix/pkg/amf0"
	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/flvfix/pkg/flv"
)

// TagListReader 从内存中的tag列表读取，实现 grouping.TagSource
type TagListReader struct {
	tags  []*flv.Tag
	index int
}

func NewTagListReader(tags []*flv.Tag) *TagListReader {
	return &TagListReader{tags: tags}
}

func (r *TagListReader) PeekTag(ctx context.Context) (*flv.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.index >= len(r.tags) {
		return nil, io.EOF
	}
	return r.tags[r.index], nil
}

func (r *TagListReader) ReadTag(ctx context.Context) (*flv.Tag, error) {
	tag, err := r.PeekTag(ctx)
	if err != nil {
		return nil, err
	}
	r.index++
	return tag, nil
}

// Offset 已经读取的tag个数
func (r *TagListReader) Offset() int64 {
	return int64(r.index)
}

func (r *TagListReader) Len() int {
	return len(r.tags)
}

// ---------------------------------------------------------------------------------------------------------------------

// TagListWriter 把输出保存在内存中的tag列表里，实现 flv.TagWriter
//
// 写入的tag都是深拷贝，调用方可以在写入后归还内存块。
type TagListWriter struct {
	files   [][]*flv.Tag
	current []*flv.Tag
	isOpen  bool

	fileSize         int64
	scriptIndex      int
	scriptPayloadLen int

	alternativeHeaders []*flv.Tag
}

func NewTagListWriter() *TagListWriter {
	return &TagListWriter{scriptIndex: -1}
}

func (w *TagListWriter) CreateNewFile() error {
	if w.isOpen {
		return base.ErrFileAlreadyOpen
	}
	w.isOpen = true
	w.current = nil
	w.fileSize = flv.FlvHeaderSize
	w.scriptIndex = -1
	return nil
}

func (w *TagListWriter) CloseCurrentFile() (bool, error) {
	if !w.isOpen {
		return false, nil
	}
	w.files = append(w.files, w.current)
	w.current = nil
	w.isOpen = false
	return true, nil
}

func (w *TagListWriter) WriteTag(tag *flv.Tag) error {
	if !w.isOpen {
		return base.ErrFileNotOpen
	}
	payload, err := tag.Payload()
	if err != nil {
		return err
	}
	if tag.Type == flv.TagTypeScript {
		w.scriptIndex = len(w.current)
		w.scriptPayloadLen = len(payload)
	}
	w.current = append(w.current, tag.Clone())
	w.fileSize += flv.TagSizeOnDisk(len(payload))
	return nil
}

func (w *TagListWriter) OverwriteMetadata(body *amf0.ScriptTagBody) error {
	if !w.isOpen {
		return base.ErrFileNotOpen
	}
	if w.scriptIndex < 0 {
		return base.ErrNoScriptTagWritten
	}
	payload, err := body.Marshal()
	if err != nil {
		return err
	}
	if len(payload) != w.scriptPayloadLen {
		return fmt.Errorf("%w. expected=%d, actual=%d", base.ErrMetadataSizeChanged, w.scriptPayloadLen, len(payload))
	}
	script := w.current[w.scriptIndex]
	script.ScriptData = body.Clone()
	script.Data = payload
	return nil
}

func (w *TagListWriter) WriteAlternativeHeaders(tags []*flv.Tag) error {
	for _, tag := range tags {
		w.alternativeHeaders = append(w.alternativeHeaders, tag.Clone())
	}
	return nil
}

func (w *TagListWriter) FileSize() int64 {
	return w.fileSize
}

// State 当前文件的序号，从0开始
func (w *TagListWriter) State() interface{} {
	return len(w.files)
}

func (w *TagListWriter) Dispose() error {
	_, err := w.CloseCurrentFile()
	return err
}

// Files 已经关闭的文件
func (w *TagListWriter) Files() [][]*flv.Tag {
	return w.files
}

func (w *TagListWriter) AlternativeHeaders() []*flv.Tag {
	return w.alternativeHeaders
}
