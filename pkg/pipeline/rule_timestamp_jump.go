// Copyright 2021, Chef.  All rights reserved.
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

const ruleNameUpdateTimestampJump = "UpdateTimestampJumpRule"

// UpdateTimestampJumpRule 修复group之间的时间戳跳变
//
// 每个文件的第一个group从0开始。
// 之后的group与上一个group按媒体类型分别比较:
//   - 任意一种媒体类型时间戳回退，认为是跳变，新group紧接上一个group
//   - 所有有历史的媒体类型都向前跳了超过阈值，认为是跳变，新group接在上一个group之后 FallbackFrameDurationMs 处
// 只有一种媒体类型间隔过大的不处理，比如音频断流而视频正常。
type UpdateTimestampJumpRule struct {
	option Option
}

func NewUpdateTimestampJumpRule(option Option) *UpdateTimestampJumpRule {
	return &UpdateTimestampJumpRule{option: option}
}

func (r *UpdateTimestampJumpRule) Run(ctx *Context) {
	s := &ctx.Session.Timestamp
	for _, action := range ctx.Actions {
		switch a := action.(type) {
		case *NewFileAction:
			s.Reset()
		case *DataAction:
			if len(a.Tags) == 0 {
				continue
			}
			r.handleData(ctx, s, a.Tags)
		case *EndAction:
			if !s.HasLast {
				s.HasLast = true
				s.Offset = -a.Tag.Timestamp
			}
			a.Tag.Timestamp += s.Offset
			if a.Tag.Timestamp < s.LastOutput {
				a.Tag.Timestamp = s.LastOutput
			}
		}
	}
}

func (r *UpdateTimestampJumpRule) handleData(ctx *Context, s *TimestampState, tags []*flv.Tag) {
	minTs := tags[0].Timestamp
	var firstVideo, firstAudio *flv.Tag
	for _, tag := range tags {
		if tag.Timestamp < minTs {
			minTs = tag.Timestamp
		}
		if tag.Type == flv.TagTypeVideo && firstVideo == nil {
			firstVideo = tag
		}
		if tag.Type == flv.TagTypeAudio && firstAudio == nil {
			firstAudio = tag
		}
	}

	if !s.HasLast {
		s.HasLast = true
		s.Offset = -minTs
	} else {
		backward := false
		forwardCount, historyCount := 0, 0
		var delta int64
		check := func(first *flv.Tag, has bool, last int64) {
			if first == nil || !has {
				return
			}
			historyCount++
			d := first.Timestamp + s.Offset - last
			if d < 0 {
				backward = true
				delta = d
			} else if d > r.option.TimestampJumpThresholdMs {
				forwardCount++
				if !backward {
					delta = d
				}
			}
		}
		check(firstVideo, s.HasLastVideo, s.LastVideoOutput)
		check(firstAudio, s.HasLastAudio, s.LastAudioOutput)
		if historyCount == 0 {
			// 该媒体类型第一次出现，和整体比较
			historyCount = 1
			d := minTs + s.Offset - s.LastOutput
			if d < 0 {
				backward = true
				delta = d
			} else if d > r.option.TimestampJumpThresholdMs {
				forwardCount = 1
				delta = d
			}
		}

		switch {
		case backward:
			s.Offset = s.LastOutput - minTs
		case forwardCount == historyCount:
			s.Offset = s.LastOutput + r.option.FallbackFrameDurationMs - minTs
		}
		if backward || forwardCount == historyCount {
			ctx.AddComment(Comment{
				Type:    CommentTypeTimestampJump,
				Message: fmt.Sprintf("timestamp jumped by %dms, rebased to %dms", delta, minTs+s.Offset),
				Context: ruleNameUpdateTimestampJump,
			})
		}
	}

	for _, tag := range tags {
		tag.Timestamp += s.Offset
		if tag.Timestamp > s.LastOutput {
			s.LastOutput = tag.Timestamp
		}
		switch tag.Type {
		case flv.TagTypeVideo:
			if !s.HasLastVideo || tag.Timestamp > s.LastVideoOutput {
				s.LastVideoOutput = tag.Timestamp
			}
			s.HasLastVideo = true
		case flv.TagTypeAudio:
			if !s.HasLastAudio || tag.Timestamp > s.LastAudioOutput {
				s.LastAudioOutput = tag.Timestamp
			}
			s.HasLastAudio = true
		}
	}
}
