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
	"math"

	"github.com/q191201771/flvfix/pkg/flv"
)

const ruleNameUpdateTimestampOffset = "UpdateTimestampOffsetRule"

// UpdateTimestampOffsetRule 修复group内音视频之间的时间戳偏移
//
// group内整体时间戳不单调，但是音频和视频各自单调时，平移其中一种媒体类型的时间戳使整体单调，
// 先尝试平移音频，再尝试平移视频。
// 单一媒体类型内部就不单调的，记录 Unrepairable ，原样输出。
type UpdateTimestampOffsetRule struct{}

func NewUpdateTimestampOffsetRule() *UpdateTimestampOffsetRule {
	return &UpdateTimestampOffsetRule{}
}

func (r *UpdateTimestampOffsetRule) Run(ctx *Context) {
	for _, action := range ctx.Actions {
		a, ok := action.(*DataAction)
		if !ok || isNonDecreasing(a.Tags) {
			continue
		}

		if !isTypeNonDecreasing(a.Tags, flv.TagTypeAudio) || !isTypeNonDecreasing(a.Tags, flv.TagTypeVideo) {
			ctx.AddComment(Comment{
				Type:    CommentTypeUnrepairable,
				Message: fmt.Sprintf("timestamps go backwards inside one media type, can not repair. %s", a.String()),
				Context: ruleNameUpdateTimestampOffset,
			})
			continue
		}

		fixed := false
		for _, t := range []flv.TagType{flv.TagTypeAudio, flv.TagTypeVideo} {
			offset, ok := calcTypeOffset(a.Tags, t)
			if !ok {
				continue
			}
			for _, tag := range a.Tags {
				if tag.Type == t {
					tag.Timestamp += offset
				}
			}
			ctx.AddComment(Comment{
				Type:    CommentTypeTimestampOffset,
				Message: fmt.Sprintf("%s timestamps shifted by %dms to keep timestamps in order", t, offset),
				Context: ruleNameUpdateTimestampOffset,
			})
			fixed = true
			break
		}
		if !fixed {
			ctx.AddComment(Comment{
				Type:    CommentTypeUnrepairable,
				Message: fmt.Sprintf("audio and video timestamps out of order, can not repair. %s", a.String()),
				Context: ruleNameUpdateTimestampOffset,
			})
		}
	}
}

// calcTypeOffset 计算媒体类型`t`的时间戳需要平移的值
//
// 整体单调等价于相邻两个tag单调，对于相邻的不同类型的两个tag:
//   other -> t: other.ts <= t.ts + d，即 d >= other.ts - t.ts
//   t -> other: t.ts + d <= other.ts，即 d <= other.ts - t.ts
// 在[dMin, dMax]中取绝对值最小的d
func calcTypeOffset(tags []*flv.Tag, t flv.TagType) (int64, bool) {
	dMin := int64(math.MinInt64)
	dMax := int64(math.MaxInt64)
	for i := 1; i < len(tags); i++ {
		prev, curr := tags[i-1], tags[i]
		if prev.Type == curr.Type {
			continue
		}
		if curr.Type == t {
			if d := prev.Timestamp - curr.Timestamp; d > dMin {
				dMin = d
			}
		} else if prev.Type == t {
			if d := curr.Timestamp - prev.Timestamp; d < dMax {
				dMax = d
			}
		}
	}
	if dMin > dMax {
		return 0, false
	}
	switch {
	case dMin > 0:
		return dMin, true
	case dMax < 0:
		return dMax, true
	}
	return 0, false
}

func isNonDecreasing(tags []*flv.Tag) bool {
	for i := 1; i < len(tags); i++ {
		if tags[i].Timestamp < tags[i-1].Timestamp {
			return false
		}
	}
	return true
}

func isTypeNonDecreasing(tags []*flv.Tag, t flv.TagType) bool {
	last := int64(math.MinInt64)
	for _, tag := range tags {
		if tag.Type != t {
			continue
		}
		if tag.Timestamp < last {
			return false
		}
		last = tag.Timestamp
	}
	return true
}
