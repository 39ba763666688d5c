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

	"github.com/cespare/xxhash/v2"
)

const ruleNameRemoveFillerData = "RemoveFillerDataRule"

// RemoveFillerDataRule 删除与最近的data tag类型、时间戳、内容完全相同的重复tag
//
// 需要放在时间戳相关的rule之后。被删除的tag的内存块依然由驱动循环归还。
// 新文件的时间戳重新从0开始，所以遇到 NewFileAction 时清空窗口。
type RemoveFillerDataRule struct {
	option Option
}

func NewRemoveFillerDataRule(option Option) *RemoveFillerDataRule {
	return &RemoveFillerDataRule{option: option}
}

func (r *RemoveFillerDataRule) Run(ctx *Context) {
	s := &ctx.Session.Filler
	removed := 0
	for i := 0; i < len(ctx.Actions); i++ {
		var a *DataAction
		switch action := ctx.Actions[i].(type) {
		case *NewFileAction:
			s.Reset()
			continue
		case *DataAction:
			a = action
		default:
			continue
		}

		kept := a.Tags[:0]
		for _, tag := range a.Tags {
			k := fillerKey{
				typ:       tag.Type,
				timestamp: tag.Timestamp,
				size:      len(tag.Data),
				hash:      xxhash.Sum64(tag.Data),
			}
			if s.contains(k, tag.Data) {
				removed++
				continue
			}
			s.add(k, tag.Data, r.option.RepeatingDataWindow)
			kept = append(kept, tag)
		}
		for j := len(kept); j < len(a.Tags); j++ {
			a.Tags[j] = nil
		}
		a.Tags = kept

		if len(a.Tags) == 0 {
			ctx.RemoveAction(i)
			i--
		}
	}

	if removed > 0 {
		ctx.AddComment(Comment{
			Type:    CommentTypeRepeatingData,
			Message: fmt.Sprintf("%d repeating data tag(s) removed", removed),
			Context: ruleNameRemoveFillerData,
			Count:   removed,
		})
	}
}
