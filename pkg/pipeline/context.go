// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pipeline

import (
	"github.com/q191201771/flvfix/pkg/flv"
	"github.com/q191201771/flvfix/pkg/grouping"
)

// Context 处理一个group时的工作区，每个group调用 Reset 复用
//
// writer 必须在下一次 Reset 之前消费完 Actions 。
type Context struct {
	OriginalGroup *grouping.TagGroup
	Session       *Session
	Actions       []Action
	Comments      []Comment
}

func NewContext() *Context {
	return &Context{}
}

// Reset 清空 Actions 和 Comments ，并根据`group`生成初始的action
func (c *Context) Reset(group *grouping.TagGroup, session *Session) {
	c.OriginalGroup = group
	c.Session = session
	for i := range c.Actions {
		c.Actions[i] = nil
	}
	c.Actions = c.Actions[:0]
	c.Comments = c.Comments[:0]

	if group == nil || len(group.Tags) == 0 {
		return
	}

	switch group.Kind {
	case grouping.GroupKindScript:
		c.Actions = append(c.Actions, &ScriptAction{Tag: group.Tags[0]})
	case grouping.GroupKindHeader:
		a := &HeaderAction{}
		for _, tag := range group.Tags {
			switch tag.Type {
			case flv.TagTypeAudio:
				a.AudioHeader = tag
			case flv.TagTypeVideo:
				a.VideoHeader = tag
			}
		}
		c.Actions = append(c.Actions, a)
	case grouping.GroupKindData:
		c.Actions = append(c.Actions, &DataAction{Tags: append([]*flv.Tag(nil), group.Tags...)})
	case grouping.GroupKindEnd:
		c.Actions = append(c.Actions, &EndAction{Tag: group.Tags[0]})
	}
}

func (c *Context) AddComment(comment Comment) {
	if comment.Count < 1 {
		comment.Count = 1
	}
	c.Comments = append(c.Comments, comment)
}

func (c *Context) AddNewFileAtStart() {
	c.InsertAction(0, &NewFileAction{})
}

func (c *Context) AddNewFileAtEnd() {
	c.Actions = append(c.Actions, &NewFileAction{})
}

// InsertAction 在`index`的位置插入
func (c *Context) InsertAction(index int, action Action) {
	c.Actions = append(c.Actions, nil)
	copy(c.Actions[index+1:], c.Actions[index:])
	c.Actions[index] = action
}

// RemoveAction 删除`index`位置的action
func (c *Context) RemoveAction(index int) {
	copy(c.Actions[index:], c.Actions[index+1:])
	c.Actions[len(c.Actions)-1] = nil
	c.Actions = c.Actions[:len(c.Actions)-1]
}

// HasCountableComment 是否有计入问题数的comment
func (c *Context) HasCountableComment() bool {
	for i := range c.Comments {
		if c.Comments[i].Type.IsCountable() {
			return true
		}
	}
	return false
}

// ReleaseData 归还原始group中data tag和end tag的内存块
//
// script和header tag会被writer登记并在之后的文件中复用，不归还。
// 由驱动循环在writer消费完 Actions 之后调用。
func (c *Context) ReleaseData() {
	if c.OriginalGroup == nil {
		return
	}
	switch c.OriginalGroup.Kind {
	case grouping.GroupKindData, grouping.GroupKindEnd:
		for _, tag := range c.OriginalGroup.Tags {
			tag.Release()
		}
	}
}
