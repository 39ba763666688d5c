// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package flv

import (
	"io"

	"github.com/q191201771/flvfix/pkg/amf0"
)

// TagWriter 物理写入目标，由 writer.ContextWriter 驱动
type TagWriter interface {
	// CreateNewFile 创建新文件并写入flv文件头，已经有打开的文件时返回错误
	CreateNewFile() error

	// CloseCurrentFile 没有打开的文件时返回false
	CloseCurrentFile() (bool, error)

	WriteTag(tag *Tag) error

	// OverwriteMetadata 原地覆盖当前文件中已经写入的script tag的body，序列化后的大小必须与原来一致
	OverwriteMetadata(body *amf0.ScriptTagBody) error

	// WriteAlternativeHeaders 将变化的header写入旁路的诊断输出，和当前文件的状态无关
	WriteAlternativeHeaders(tags []*Tag) error

	// FileSize 当前文件已经写入的字节数
	FileSize() int64

	// State 当前文件的状态，由 TargetProvider 提供，比如文件路径
	State() interface{}

	Dispose() error
}

type OutputStream interface {
	io.Writer
	io.Seeker
	io.Closer
}

// TargetProvider 提供输出文件，决定命名和切分策略
type TargetProvider interface {
	// CreateOutputStream
	//
	// @return state: 透传给 TagWriter.State
	CreateOutputStream() (stream OutputStream, state interface{}, err error)

	CreateAlternativeHeaderStream() (io.WriteCloser, error)
}
