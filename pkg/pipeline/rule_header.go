// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pipeline

import (
	"bytes"
	"fmt"

	"github.com/q191201771/flvfix/pkg/aac"
	"github.com/q191201771/flvfix/pkg/avc"
	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/flvfix/pkg/flv"
)

const ruleNameHandleNewHeader = "HandleNewHeaderRule"

// hevc seq header: 5字节flv头 + 23字节 HEVCDecoderConfigurationRecord 固定部分
const minHevcSeqHeaderSize = 5 + 23

// HandleNewHeaderRule
//
// - 校验header，无法解析的记录 DecodingHeader
// - 与当前header相同的重复header直接丢弃
// - header发生变化时，记录新旧header并切分文件
// - 收到需要header的数据但是没有收到过header时，每种媒体类型记录一次 DecodingHeader
type HandleNewHeaderRule struct{}

func NewHandleNewHeaderRule() *HandleNewHeaderRule {
	return &HandleNewHeaderRule{}
}

func (r *HandleNewHeaderRule) Run(ctx *Context) {
	for i := 0; i < len(ctx.Actions); i++ {
		switch a := ctx.Actions[i].(type) {
		case *HeaderAction:
			var changed []*flv.Tag
			if a.VideoHeader != nil {
				a.VideoHeader, changed = r.handleHeader(ctx, a.VideoHeader, &ctx.Session.Header.Video, changed)
			}
			if a.AudioHeader != nil {
				a.AudioHeader, changed = r.handleHeader(ctx, a.AudioHeader, &ctx.Session.Header.Audio, changed)
			}

			if a.VideoHeader == nil && a.AudioHeader == nil {
				ctx.RemoveAction(i)
				i--
				continue
			}
			if len(changed) > 0 {
				ctx.AddComment(Comment{
					Type:    CommentTypeDecodingHeader,
					Message: "header changed, start a new file",
					Context: ruleNameHandleNewHeader,
				})
				ctx.InsertAction(i, &LogAlternativeHeaderAction{Tags: changed})
				ctx.InsertAction(i+1, &NewFileAction{})
				i += 2
			}

		case *DataAction:
			r.checkMissing(ctx, a.Tags)
		}
	}
}

// handleHeader 返回需要登记的header，重复时返回nil
func (r *HandleNewHeaderRule) handleHeader(ctx *Context, tag *flv.Tag, current **flv.Tag, changed []*flv.Tag) (*flv.Tag, []*flv.Tag) {
	if err := ValidateHeader(tag); err != nil {
		ctx.AddComment(Comment{
			Type:    CommentTypeDecodingHeader,
			Message: fmt.Sprintf("invalid %s header. err=%v", tag.Type, err),
			Context: ruleNameHandleNewHeader,
		})
	}

	old := *current
	switch {
	case old == nil:
		*current = tag
		return tag, changed
	case old.Type == tag.Type && bytes.Equal(old.Data, tag.Data):
		ctx.AddComment(Comment{
			Type:    CommentTypeLogging,
			Message: fmt.Sprintf("duplicate %s header dropped", tag.Type),
			Context: ruleNameHandleNewHeader,
		})
		return nil, changed
	}

	*current = tag
	return tag, append(changed, old, tag)
}

func (r *HandleNewHeaderRule) checkMissing(ctx *Context, tags []*flv.Tag) {
	h := &ctx.Session.Header
	for _, tag := range tags {
		if !NeedsHeader(tag) {
			continue
		}
		switch tag.Type {
		case flv.TagTypeVideo:
			if h.Video == nil && !h.MissingVideoReported {
				h.MissingVideoReported = true
				ctx.AddComment(Comment{
					Type:    CommentTypeDecodingHeader,
					Message: "video data without video header",
					Context: ruleNameHandleNewHeader,
				})
			}
		case flv.TagTypeAudio:
			if h.Audio == nil && !h.MissingAudioReported {
				h.MissingAudioReported = true
				ctx.AddComment(Comment{
					Type:    CommentTypeDecodingHeader,
					Message: "audio data without audio header",
					Context: ruleNameHandleNewHeader,
				})
			}
		}
	}
}

// NeedsHeader avc、hevc、aac的数据依赖header才能解码
func NeedsHeader(tag *flv.Tag) bool {
	if len(tag.Data) < 1 {
		return false
	}
	switch tag.Type {
	case flv.TagTypeVideo:
		codecId := tag.Data[0] & 0xF
		return codecId == flv.CodecIdAvc || codecId == flv.CodecIdHevc
	case flv.TagTypeAudio:
		return tag.Data[0]>>4 == flv.SoundFormatAac
	}
	return false
}

// ValidateHeader 检查header能否被解析
func ValidateHeader(tag *flv.Tag) error {
	if len(tag.Data) < 2 {
		return base.ErrShortBuffer
	}
	switch tag.Type {
	case flv.TagTypeVideo:
		switch tag.Data[0] & 0xF {
		case flv.CodecIdAvc:
			// 只检查结构，sps的内容由统计逻辑尽力解析
			_, _, _, err := avc.ParseSeqHeader(tag.Data)
			return err
		case flv.CodecIdHevc:
			if len(tag.Data) < minHevcSeqHeaderSize {
				return base.ErrShortBuffer
			}
		}
	case flv.TagTypeAudio:
		if tag.Data[0]>>4 == flv.SoundFormatAac {
			_, err := aac.NewAscContextFromSeqHeader(tag.Data)
			return err
		}
	}
	return nil
}
