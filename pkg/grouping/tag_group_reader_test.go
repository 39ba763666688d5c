// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package grouping_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/q191201771/flvfix/pkg/flv"
	"github.com/q191201771/flvfix/pkg/grouping"
	"github.com/q191201771/naza/pkg/assert"
)

var (
	videoHeader = []byte{0x17, 0x00, 0x00, 0x00, 0x00}
	videoKey    = []byte{0x17, 0x01, 0x00, 0x00, 0x00, 0x65}
	videoInter  = []byte{0x27, 0x01, 0x00, 0x00, 0x00, 0x41}
	videoEnd    = []byte{0x17, 0x02, 0x00, 0x00, 0x00}
	audioHeader = []byte{0xaf, 0x00, 0x12, 0x10}
	audioRaw    = []byte{0xaf, 0x01, 0x21}
)

func packFlv(tags ...*flv.Tag) []byte {
	var buf bytes.Buffer
	buf.Write(flv.FlvHeader)
	for _, tag := range tags {
		payload, _ := tag.Payload()
		buf.Write(flv.PackTag(tag.Type, tag.Timestamp, payload))
	}
	return buf.Bytes()
}

func readAllGroups(t *testing.T, r *grouping.TagGroupReader) []*grouping.TagGroup {
	var groups []*grouping.TagGroup
	for {
		g, err := r.ReadGroup(context.Background())
		if err == io.EOF {
			return groups
		}
		assert.Equal(t, nil, err)
		if err != nil {
			return groups
		}
		groups = append(groups, g)
	}
}

func TestTagGroupReader(t *testing.T) {
	b := packFlv(
		flv.NewScriptTag(nil),
		flv.NewTag(flv.TagTypeVideo, 0, videoHeader),
		flv.NewTag(flv.TagTypeAudio, 0, audioHeader),
		flv.NewTag(flv.TagTypeVideo, 0, videoKey),
		flv.NewTag(flv.TagTypeAudio, 10, audioRaw),
		flv.NewTag(flv.TagTypeVideo, 40, videoInter),
		flv.NewTag(flv.TagTypeVideo, 80, videoKey),
		flv.NewTag(flv.TagTypeAudio, 5000, audioRaw),
		flv.NewTag(flv.TagTypeVideo, 5040, videoEnd),
	)

	r := grouping.NewTagGroupReader(flv.NewTagReader(bytes.NewReader(b)))
	groups := readAllGroups(t, r)
	assert.Equal(t, 6, len(groups))

	assert.Equal(t, grouping.GroupKindScript, groups[0].Kind)
	assert.Equal(t, grouping.GroupKindHeader, groups[1].Kind)
	assert.Equal(t, 2, len(groups[1].Tags))
	assert.Equal(t, grouping.GroupKindData, groups[2].Kind)
	assert.Equal(t, 3, len(groups[2].Tags))
	// 关键帧开启新的group，时间戳间隔过大也切分
	assert.Equal(t, 1, len(groups[3].Tags))
	assert.Equal(t, true, groups[3].Tags[0].IsKeyframeData())
	assert.Equal(t, 1, len(groups[4].Tags))
	assert.Equal(t, int64(5000), groups[4].Tags[0].Timestamp)
	assert.Equal(t, grouping.GroupKindEnd, groups[5].Kind)
}

func TestTagGroupReader_HeaderNotPaired(t *testing.T) {
	b := packFlv(
		flv.NewTag(flv.TagTypeVideo, 0, videoHeader),
		flv.NewTag(flv.TagTypeAudio, 20, audioHeader),
		flv.NewTag(flv.TagTypeVideo, 20, videoHeader),
		flv.NewTag(flv.TagTypeVideo, 20, videoHeader),
	)
	groups := readAllGroups(t, grouping.NewTagGroupReader(flv.NewTagReader(bytes.NewReader(b))))
	assert.Equal(t, 3, len(groups))
	assert.Equal(t, 1, len(groups[0].Tags))
	assert.Equal(t, 2, len(groups[1].Tags))
	assert.Equal(t, 1, len(groups[2].Tags))
}

func TestTagGroupReader_MaxTags(t *testing.T) {
	tags := []*flv.Tag{flv.NewTag(flv.TagTypeVideo, 0, videoKey)}
	for i := 1; i < 10; i++ {
		tags = append(tags, flv.NewTag(flv.TagTypeVideo, int64(i*40), videoInter))
	}
	r := grouping.NewTagGroupReader(flv.NewTagReader(bytes.NewReader(packFlv(tags...))), func(option *grouping.TagGroupReaderOption) {
		option.MaxTags = 4
	})
	groups := readAllGroups(t, r)
	assert.Equal(t, 3, len(groups))
	assert.Equal(t, 4, len(groups[0].Tags))
	assert.Equal(t, 4, len(groups[1].Tags))
	assert.Equal(t, 2, len(groups[2].Tags))
}

func TestTagGroupReader_Error(t *testing.T) {
	r := grouping.NewTagGroupReader(flv.NewTagReader(bytes.NewReader([]byte("hello world"))))
	_, err := r.ReadGroup(context.Background())
	assert.IsNotNil(t, err)

	// 未读完的group先返回，错误在下一次返回
	b := packFlv(
		flv.NewTag(flv.TagTypeVideo, 0, videoKey),
		flv.NewTag(flv.TagTypeVideo, 40, videoInter),
	)
	b = append(b, 0x07, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0)
	r = grouping.NewTagGroupReader(flv.NewTagReader(bytes.NewReader(b)))
	g, err := r.ReadGroup(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(g.Tags))
	_, err = r.ReadGroup(context.Background())
	assert.IsNotNil(t, err)
	assert.Equal(t, false, err == io.EOF)
}
