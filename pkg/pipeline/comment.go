// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pipeline

import "fmt"

type CommentType uint8

const (
	CommentTypeOther CommentType = iota + 1
	CommentTypeUnrepairable
	CommentTypeTimestampJump
	CommentTypeTimestampOffset
	CommentTypeDecodingHeader
	CommentTypeRepeatingData

	// CommentTypeLogging 只是提示信息，不计入问题数
	CommentTypeLogging
)

// CountableCommentTypes 计入问题数的类型
var CountableCommentTypes = []CommentType{
	CommentTypeOther,
	CommentTypeUnrepairable,
	CommentTypeTimestampJump,
	CommentTypeTimestampOffset,
	CommentTypeDecodingHeader,
	CommentTypeRepeatingData,
}

func (t CommentType) String() string {
	switch t {
	case CommentTypeOther:
		return "Other"
	case CommentTypeUnrepairable:
		return "Unrepairable"
	case CommentTypeTimestampJump:
		return "TimestampJump"
	case CommentTypeTimestampOffset:
		return "TimestampOffset"
	case CommentTypeDecodingHeader:
		return "DecodingHeader"
	case CommentTypeRepeatingData:
		return "RepeatingData"
	case CommentTypeLogging:
		return "Logging"
	}
	return "Unknown"
}

func (t CommentType) IsCountable() bool {
	return t != CommentTypeLogging
}

type Comment struct {
	Type    CommentType
	Message string
	Context string // 产生comment的rule
	Count   int    // 同一个group内同类问题的次数，至少为1
}

func (c Comment) String() string {
	return fmt.Sprintf("[%s] %s (%s, count=%d)", c.Type, c.Message, c.Context, c.Count)
}
