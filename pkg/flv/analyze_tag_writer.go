// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package flv

import (
	"fmt"

	"github.com/q191201771/flvfix/pkg/amf0"
	"github.com/q191201771/flvfix/pkg/base"
)

// AnalyzeTagWriter 不产生任何输出，只统计会产生的文件个数和大小
type AnalyzeTagWriter struct {
	fileCount int
	isOpen    bool
	fileSize  int64

	hasScript        bool
	scriptPayloadLen int

	alternativeHeaderCount int
}

func NewAnalyzeTagWriter() *AnalyzeTagWriter {
	return &AnalyzeTagWriter{}
}

func (w *AnalyzeTagWriter) CreateNewFile() error {
	if w.isOpen {
		return base.ErrFileAlreadyOpen
	}
	w.isOpen = true
	w.fileCount++
	w.fileSize = FlvHeaderSize
	w.hasScript = false
	return nil
}

func (w *AnalyzeTagWriter) CloseCurrentFile() (bool, error) {
	if !w.isOpen {
		return false, nil
	}
	w.isOpen = false
	return true, nil
}

func (w *AnalyzeTagWriter) WriteTag(tag *Tag) error {
	if !w.isOpen {
		return base.ErrFileNotOpen
	}
	payload, err := tag.Payload()
	if err != nil {
		return err
	}
	if tag.Type == TagTypeScript {
		w.hasScript = true
		w.scriptPayloadLen = len(payload)
	}
	w.fileSize += TagSizeOnDisk(len(payload))
	return nil
}

func (w *AnalyzeTagWriter) OverwriteMetadata(body *amf0.ScriptTagBody) error {
	if !w.isOpen {
		return base.ErrFileNotOpen
	}
	if !w.hasScript {
		return base.ErrNoScriptTagWritten
	}
	payload, err := body.Marshal()
	if err != nil {
		return err
	}
	if len(payload) != w.scriptPayloadLen {
		return fmt.Errorf("%w. expected=%d, actual=%d", base.ErrMetadataSizeChanged, w.scriptPayloadLen, len(payload))
	}
	return nil
}

func (w *AnalyzeTagWriter) WriteAlternativeHeaders(tags []*Tag) error {
	w.alternativeHeaderCount++
	return nil
}

func (w *AnalyzeTagWriter) FileSize() int64 {
	return w.fileSize
}

// State 当前文件的序号，从1开始
func (w *AnalyzeTagWriter) State() interface{} {
	return w.fileCount
}

func (w *AnalyzeTagWriter) Dispose() error {
	w.isOpen = false
	return nil
}

func (w *AnalyzeTagWriter) FileCount() int {
	return w.fileCount
}

func (w *AnalyzeTagWriter) AlternativeHeaderCount() int {
	return w.alternativeHeaderCount
}
