// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package grouping

import (
	"context"
	"io"

	"github.com/q191201771/flvfix/pkg/flv"
)

type TagGroupReaderOption struct {
	// MaxTags 一个data group最多包含的tag个数
	MaxTags int

	// MaxTagGapMs data group中相邻两个tag的时间戳差值绝对值超过该值时，切分group
	MaxTagGapMs int64
}

var defaultTagGroupReaderOption = TagGroupReaderOption{
	MaxTags:     1000,
	MaxTagGapMs: 1000,
}

type ModTagGroupReaderOption func(option *TagGroupReaderOption)

// TagGroupReader
//
// 切分规则:
// - script tag单独成组
// - end tag单独成组
// - header tag，如果紧接着的是另一种媒体类型的时间戳相同的header tag，两个成组
// - data tag，持续追加后续的data tag，直到遇到非data tag、video关键帧、个数达到上限或者时间戳间隔过大
//
// 不申请新的内存块，直接使用 TagSource 返回的tag。
// 不保证group内时间戳单调，由修复逻辑处理。
type TagGroupReader struct {
	option TagGroupReaderOption
	source TagSource
}

func NewTagGroupReader(source TagSource, modOptions ...ModTagGroupReaderOption) *TagGroupReader {
	option := defaultTagGroupReaderOption
	for _, fn := range modOptions {
		fn(&option)
	}
	if option.MaxTags < 1 {
		option.MaxTags = 1
	}
	return &TagGroupReader{
		option: option,
		source: source,
	}
}

// ReadGroup 读取结束时返回io.EOF，其他错误原样透传
func (r *TagGroupReader) ReadGroup(ctx context.Context) (*TagGroup, error) {
	first, err := r.source.ReadTag(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case first.IsScript():
		return &TagGroup{Kind: GroupKindScript, Tags: []*flv.Tag{first}}, nil
	case first.IsEnd():
		return &TagGroup{Kind: GroupKindEnd, Tags: []*flv.Tag{first}}, nil
	case first.IsHeader():
		return r.readHeaderGroup(ctx, first)
	}
	return r.readDataGroup(ctx, first)
}

func (r *TagGroupReader) readHeaderGroup(ctx context.Context, first *flv.Tag) (*TagGroup, error) {
	group := &TagGroup{Kind: GroupKindHeader, Tags: []*flv.Tag{first}}

	next, err := r.peek(ctx)
	if err != nil || next == nil {
		// 错误由下一次 ReadGroup 返回
		return group, nil
	}
	if next.IsHeader() && next.Type != first.Type && next.Timestamp == first.Timestamp {
		if _, err = r.source.ReadTag(ctx); err != nil {
			return nil, err
		}
		group.Tags = append(group.Tags, next)
	}
	return group, nil
}

func (r *TagGroupReader) readDataGroup(ctx context.Context, first *flv.Tag) (*TagGroup, error) {
	group := &TagGroup{Kind: GroupKindData, Tags: []*flv.Tag{first}}
	prev := first
	for len(group.Tags) < r.option.MaxTags {
		next, err := r.peek(ctx)
		if err != nil {
			break
		}
		if next == nil || !next.IsData() || next.IsKeyframeData() {
			break
		}
		gap := next.Timestamp - prev.Timestamp
		if gap < 0 {
			gap = -gap
		}
		if gap > r.option.MaxTagGapMs {
			break
		}

		if _, err = r.source.ReadTag(ctx); err != nil {
			return nil, err
		}
		group.Tags = append(group.Tags, next)
		prev = next
	}
	return group, nil
}

// peek 输入结束时返回(nil, nil)，当前group正常结束
func (r *TagGroupReader) peek(ctx context.Context) (*flv.Tag, error) {
	tag, err := r.source.PeekTag(ctx)
	if err == io.EOF {
		return nil, nil
	}
	return tag, err
}
