// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pipeline

import (
	"fmt"

	"github.com/q191201771/flvfix/pkg/flv"
)

// Action 修复逻辑的输出，交给 writer.ContextWriter 执行
//
// 只有本package中的类型实现了该接口:
// *NewFileAction, *ScriptAction, *HeaderAction, *DataAction, *EndAction, *LogAlternativeHeaderAction
type Action interface {
	isAction()
	String() string
}

// NewFileAction 关闭当前文件，之后的数据写入新文件
type NewFileAction struct{}

// ScriptAction 登记script tag，打开新文件时写入
type ScriptAction struct {
	Tag *flv.Tag
}

// HeaderAction 登记音视频header，打开新文件时写入，为nil的不改变已有的登记
type HeaderAction struct {
	AudioHeader *flv.Tag
	VideoHeader *flv.Tag
}

// DataAction 非空，按顺序写入
type DataAction struct {
	Tags []*flv.Tag
}

type EndAction struct {
	Tag *flv.Tag
}

// LogAlternativeHeaderAction 变化了的header，写入旁路的诊断输出
type LogAlternativeHeaderAction struct {
	Tags []*flv.Tag
}

func (*NewFileAction) isAction()              {}
func (*ScriptAction) isAction()               {}
func (*HeaderAction) isAction()               {}
func (*DataAction) isAction()                 {}
func (*EndAction) isAction()                  {}
func (*LogAlternativeHeaderAction) isAction() {}

func (a *NewFileAction) String() string {
	return "NewFile"
}

func (a *ScriptAction) String() string {
	return fmt.Sprintf("Script(%s)", a.Tag)
}

func (a *HeaderAction) String() string {
	return fmt.Sprintf("Header(audio=%v, video=%v)", a.AudioHeader != nil, a.VideoHeader != nil)
}

func (a *DataAction) String() string {
	if len(a.Tags) == 0 {
		return "Data(0)"
	}
	return fmt.Sprintf("Data(%d, ts=[%d, %d])", len(a.Tags), a.Tags[0].Timestamp, a.Tags[len(a.Tags)-1].Timestamp)
}

func (a *EndAction) String() string {
	return fmt.Sprintf("End(%s)", a.Tag)
}

func (a *LogAlternativeHeaderAction) String() string {
	return fmt.Sprintf("LogAlternativeHeader(%d)", len(a.Tags))
}

// Headers 非nil的header
func (a *HeaderAction) Headers() []*flv.Tag {
	var ret []*flv.Tag
	if a.VideoHeader != nil {
		ret = append(ret, a.VideoHeader)
	}
	if a.AudioHeader != nil {
		ret = append(ret, a.AudioHeader)
	}
	return ret
}
