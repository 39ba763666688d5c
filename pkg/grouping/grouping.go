// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package grouping 将tag流组装成tag group，group是修复逻辑处理的最小单元
package grouping

import (
	"context"
	"fmt"

	"github.com/q191201771/flvfix/pkg/flv"
)

type GroupKind uint8

const (
	GroupKindScript GroupKind = iota + 1
	GroupKindHeader
	GroupKindData
	GroupKindEnd
)

func (k GroupKind) String() string {
	switch k {
	case GroupKindScript:
		return "script"
	case GroupKindHeader:
		return "header"
	case GroupKindData:
		return "data"
	case GroupKindEnd:
		return "end"
	}
	return "unknown"
}

// TagGroup 非空
type TagGroup struct {
	Kind GroupKind
	Tags []*flv.Tag
}

func (g *TagGroup) String() string {
	if len(g.Tags) == 0 {
		return fmt.Sprintf("TagGroup{kind=%s, count=0}", g.Kind)
	}
	return fmt.Sprintf("TagGroup{kind=%s, count=%d, ts=[%d, %d]}",
		g.Kind, len(g.Tags), g.Tags[0].Timestamp, g.Tags[len(g.Tags)-1].Timestamp)
}

// TagSource tag的来源，flv.TagReader 实现了该接口
//
// 出错后，后续的调用需要返回同样的错误
type TagSource interface {
	PeekTag(ctx context.Context) (*flv.Tag, error)
	ReadTag(ctx context.Context) (*flv.Tag, error)
}
