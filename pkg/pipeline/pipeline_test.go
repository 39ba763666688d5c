// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pipeline_test

import (
	"testing"

	"github.com/q191201771/flvfix/pkg/amf0"
	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/flvfix/pkg/flv"
	"github.com/q191201771/flvfix/pkg/grouping"
	"github.com/q191201771/flvfix/pkg/pipeline"
	"github.com/q191201771/naza/pkg/assert"
)

var (
	avcHeader = []byte{
		0x17, 0x00, 0x00, 0x00, 0x00,
		0x01, 0x42, 0x00, 0x1e, 0xff,
		0xe1, 0x00, 0x02, 0x67, 0x42,
		0x01, 0x00, 0x02, 0x68, 0xce,
	}
	avcHeader2 = []byte{
		0x17, 0x00, 0x00, 0x00, 0x00,
		0x01, 0x4d, 0x00, 0x1f, 0xff,
		0xe1, 0x00, 0x02, 0x67, 0x4d,
		0x01, 0x00, 0x02, 0x68, 0xce,
	}
	aacHeader = []byte{0xaf, 0x00, 0x12, 0x10}

	videoKey   = []byte{0x17, 0x01, 0x00, 0x00, 0x00, 0x65}
	videoInter = []byte{0x27, 0x01, 0x00, 0x00, 0x00, 0x41}
	videoEnd   = []byte{0x17, 0x02, 0x00, 0x00, 0x00}
	audioRaw   = []byte{0xaf, 0x01, 0x21}
)

func v(ts int64, key bool) *flv.Tag {
	if key {
		return flv.NewTag(flv.TagTypeVideo, ts, videoKey)
	}
	return flv.NewTag(flv.TagTypeVideo, ts, videoInter)
}

func a(ts int64) *flv.Tag {
	return flv.NewTag(flv.TagTypeAudio, ts, audioRaw)
}

func scriptGroup() *grouping.TagGroup {
	return &grouping.TagGroup{Kind: grouping.GroupKindScript, Tags: []*flv.Tag{flv.NewScriptTag(nil)}}
}

func headerGroup(video, audio []byte) *grouping.TagGroup {
	g := &grouping.TagGroup{Kind: grouping.GroupKindHeader}
	if video != nil {
		g.Tags = append(g.Tags, flv.NewTag(flv.TagTypeVideo, 0, video))
	}
	if audio != nil {
		g.Tags = append(g.Tags, flv.NewTag(flv.TagTypeAudio, 0, audio))
	}
	return g
}

func dataGroup(tags ...*flv.Tag) *grouping.TagGroup {
	return &grouping.TagGroup{Kind: grouping.GroupKindData, Tags: tags}
}

// runner 模拟驱动循环，保存每个group处理后的actions和comments
type runner struct {
	p       *pipeline.Pipeline
	session *pipeline.Session
	ctx     *pipeline.Context
}

func newRunner(p *pipeline.Pipeline) *runner {
	return &runner{p: p, session: pipeline.NewSession(), ctx: pipeline.NewContext()}
}

func (r *runner) run(g *grouping.TagGroup) ([]pipeline.Action, []pipeline.Comment) {
	r.ctx.Reset(g, r.session)
	r.p.Run(r.ctx)
	return append([]pipeline.Action(nil), r.ctx.Actions...), append([]pipeline.Comment(nil), r.ctx.Comments...)
}

func newDefaultRunner() *runner {
	return newRunner(pipeline.NewBuilder().AddDefault().AddRemoveFillerData().Build())
}

func countComments(comments []pipeline.Comment, t pipeline.CommentType) int {
	n := 0
	for _, c := range comments {
		if c.Type == t {
			n++
		}
	}
	return n
}

func timestamps(action pipeline.Action) []int64 {
	var ret []int64
	for _, tag := range action.(*pipeline.DataAction).Tags {
		ret = append(ret, tag.Timestamp)
	}
	return ret
}

func TestBuilder(t *testing.T) {
	p := pipeline.NewBuilder().AddDefault().Build()
	assert.Equal(t, 5, p.RuleCount())
	assert.Equal(t, true, len(p.UniqueKey()) > 0)

	p2 := pipeline.NewBuilder().AddDefault().AddRemoveFillerData().Build()
	assert.Equal(t, 6, p2.RuleCount())

	defer func() {
		assert.IsNotNil(t, recover())
	}()
	pipeline.NewBuilder().Add(nil)
}

func TestRuleFunc(t *testing.T) {
	called := 0
	p := pipeline.NewBuilder().Add(pipeline.RuleFunc(func(ctx *pipeline.Context) {
		called++
		ctx.AddComment(pipeline.Comment{Type: pipeline.CommentTypeLogging, Message: "hello"})
	})).Build()
	r := newRunner(p)
	actions, comments := r.run(dataGroup(v(0, true)))
	assert.Equal(t, 1, called)
	assert.Equal(t, 1, len(actions))
	assert.Equal(t, 1, len(comments))
	assert.Equal(t, 1, comments[0].Count)
	assert.Equal(t, false, r.ctx.HasCountableComment())
}

func TestContextActions(t *testing.T) {
	ctx := pipeline.NewContext()
	ctx.Reset(dataGroup(v(0, true), a(10)), pipeline.NewSession())
	assert.Equal(t, 1, len(ctx.Actions))
	ctx.AddNewFileAtStart()
	ctx.AddNewFileAtEnd()
	assert.Equal(t, 3, len(ctx.Actions))
	assert.Equal(t, "NewFile", ctx.Actions[0].String())
	_, ok := ctx.Actions[1].(*pipeline.DataAction)
	assert.Equal(t, true, ok)
	ctx.RemoveAction(0)
	assert.Equal(t, 2, len(ctx.Actions))
	_, ok = ctx.Actions[0].(*pipeline.DataAction)
	assert.Equal(t, true, ok)

	ctx.Reset(headerGroup(avcHeader, aacHeader), pipeline.NewSession())
	h := ctx.Actions[0].(*pipeline.HeaderAction)
	assert.IsNotNil(t, h.VideoHeader)
	assert.IsNotNil(t, h.AudioHeader)
	assert.Equal(t, 0, len(ctx.Comments))
}

func TestHandleNewScript(t *testing.T) {
	r := newDefaultRunner()

	// data在script之前
	actions, comments := r.run(dataGroup(v(0, true)))
	assert.Equal(t, 2, len(actions))
	sa, ok := actions[0].(*pipeline.ScriptAction)
	assert.Equal(t, true, ok)
	meta := sa.Tag.ScriptData.GetMetadataValue()
	creator, _ := meta.GetString(amf0.MetadataKeyMetadataCreator)
	assert.Equal(t, base.FlvfixMetadataCreator, creator)
	assert.Equal(t, 1, countComments(comments, pipeline.CommentTypeOther))

	// 新的script开启新文件，并清理旧的metadata
	body := amf0.NewOnMetaData()
	body.GetMetadataValue().Set(amf0.MetadataKeyFilesize, float64(1024))
	body.GetMetadataValue().Set(amf0.MetadataKeyWidth, float64(1280))
	actions, comments = r.run(&grouping.TagGroup{Kind: grouping.GroupKindScript, Tags: []*flv.Tag{flv.NewScriptTag(body)}})
	assert.Equal(t, 2, len(actions))
	assert.Equal(t, "NewFile", actions[0].String())
	meta = actions[1].(*pipeline.ScriptAction).Tag.ScriptData.GetMetadataValue()
	assert.Equal(t, false, meta.Has(amf0.MetadataKeyFilesize))
	width, _ := meta.GetNumber(amf0.MetadataKeyWidth)
	assert.Equal(t, float64(1280), width)
	duration, ok := meta.GetNumber(amf0.MetadataKeyDuration)
	assert.Equal(t, true, ok)
	assert.Equal(t, float64(0), duration)
	assert.Equal(t, 1, countComments(comments, pipeline.CommentTypeLogging))
	assert.Equal(t, 0, countComments(comments, pipeline.CommentTypeOther))
}

func TestHandleNewHeader(t *testing.T) {
	r := newDefaultRunner()
	r.run(scriptGroup())

	// 没有header的avc数据只报告一次
	_, comments := r.run(dataGroup(v(0, true)))
	assert.Equal(t, 1, countComments(comments, pipeline.CommentTypeDecodingHeader))
	_, comments = r.run(dataGroup(v(40, true)))
	assert.Equal(t, 0, countComments(comments, pipeline.CommentTypeDecodingHeader))

	actions, comments := r.run(headerGroup(avcHeader, aacHeader))
	assert.Equal(t, 1, len(actions))
	assert.Equal(t, 0, len(comments))

	// 重复的header丢弃
	actions, comments = r.run(headerGroup(avcHeader, nil))
	assert.Equal(t, 0, len(actions))
	assert.Equal(t, 1, countComments(comments, pipeline.CommentTypeLogging))
	assert.Equal(t, false, r.ctx.HasCountableComment())

	// header变化
	actions, comments = r.run(headerGroup(avcHeader2, aacHeader))
	assert.Equal(t, 3, len(actions))
	la, ok := actions[0].(*pipeline.LogAlternativeHeaderAction)
	assert.Equal(t, true, ok)
	assert.Equal(t, 2, len(la.Tags))
	assert.Equal(t, avcHeader, la.Tags[0].Data)
	assert.Equal(t, avcHeader2, la.Tags[1].Data)
	assert.Equal(t, "NewFile", actions[1].String())
	h := actions[2].(*pipeline.HeaderAction)
	assert.Equal(t, avcHeader2, h.VideoHeader.Data)
	assert.Equal(t, true, h.AudioHeader == nil)
	assert.Equal(t, 1, countComments(comments, pipeline.CommentTypeDecodingHeader))

	// 无效的header
	_, comments = r.run(headerGroup([]byte{0x17, 0x00, 0x00, 0x00, 0x00, 0x01}, nil))
	assert.Equal(t, true, countComments(comments, pipeline.CommentTypeDecodingHeader) >= 1)
}

func TestValidateHeader(t *testing.T) {
	assert.Equal(t, nil, pipeline.ValidateHeader(flv.NewTag(flv.TagTypeVideo, 0, avcHeader)))
	assert.Equal(t, nil, pipeline.ValidateHeader(flv.NewTag(flv.TagTypeAudio, 0, aacHeader)))
	assert.IsNotNil(t, pipeline.ValidateHeader(flv.NewTag(flv.TagTypeVideo, 0, avcHeader[:9])))
	assert.IsNotNil(t, pipeline.ValidateHeader(flv.NewTag(flv.TagTypeVideo, 0, []byte{0x1c, 0x00, 0x00})))

	assert.Equal(t, true, pipeline.NeedsHeader(v(0, true)))
	assert.Equal(t, true, pipeline.NeedsHeader(a(0)))
	assert.Equal(t, false, pipeline.NeedsHeader(flv.NewTag(flv.TagTypeAudio, 0, []byte{0x2f, 0xff})))
}

func TestHandleEndTag(t *testing.T) {
	r := newDefaultRunner()
	r.run(scriptGroup())
	r.run(headerGroup(avcHeader, aacHeader))
	r.run(dataGroup(v(1000, true), a(1010), v(1040, false)))

	actions, comments := r.run(&grouping.TagGroup{
		Kind: grouping.GroupKindEnd,
		Tags: []*flv.Tag{flv.NewTag(flv.TagTypeVideo, 1080, videoEnd)},
	})
	assert.Equal(t, 2, len(actions))
	ea := actions[0].(*pipeline.EndAction)
	assert.Equal(t, int64(80), ea.Tag.Timestamp)
	assert.Equal(t, "NewFile", actions[1].String())
	assert.Equal(t, 0, len(comments))

	// 新文件从0开始
	actions, _ = r.run(dataGroup(v(1200, true), a(1210)))
	assert.Equal(t, []int64{0, 10}, timestamps(actions[0]))
}

func TestTimestampJump(t *testing.T) {
	r := newDefaultRunner()
	r.run(scriptGroup())
	r.run(headerGroup(avcHeader, aacHeader))

	// 第一个group从0开始，不算问题
	actions, comments := r.run(dataGroup(v(3000, true), a(3010), v(3040, false)))
	assert.Equal(t, []int64{0, 10, 40}, timestamps(actions[0]))
	assert.Equal(t, 0, len(comments))

	actions, comments = r.run(dataGroup(v(3080, true), a(3090)))
	assert.Equal(t, []int64{80, 90}, timestamps(actions[0]))
	assert.Equal(t, 0, len(comments))

	// 向前跳变
	actions, comments = r.run(dataGroup(v(9000, true), a(9010)))
	assert.Equal(t, []int64{123, 133}, timestamps(actions[0]))
	assert.Equal(t, 1, countComments(comments, pipeline.CommentTypeTimestampJump))

	// 之后的group沿用新的偏移
	actions, comments = r.run(dataGroup(v(9040, false), a(9050)))
	assert.Equal(t, []int64{163, 173}, timestamps(actions[0]))
	assert.Equal(t, 0, len(comments))

	// 回退
	actions, comments = r.run(dataGroup(v(100, true), a(110)))
	assert.Equal(t, []int64{173, 183}, timestamps(actions[0]))
	assert.Equal(t, 1, countComments(comments, pipeline.CommentTypeTimestampJump))
	assert.Equal(t, true, r.ctx.HasCountableComment())
}

func TestTimestampSingleTypeGap(t *testing.T) {
	r := newDefaultRunner()
	r.run(scriptGroup())
	r.run(headerGroup(avcHeader, aacHeader))
	r.run(dataGroup(v(0, true), a(10), v(40, false)))

	// 只有音频间隔过大，不认为是跳变
	actions, comments := r.run(dataGroup(v(80, true), a(3000)))
	assert.Equal(t, []int64{80, 3000}, timestamps(actions[0]))
	assert.Equal(t, 0, len(comments))
}

func TestTimestampOffset(t *testing.T) {
	r := newDefaultRunner()
	r.run(scriptGroup())
	r.run(headerGroup(avcHeader, aacHeader))

	actions, comments := r.run(dataGroup(v(0, true), a(100), v(40, false), a(140), v(80, false)))
	assert.Equal(t, []int64{0, 40, 40, 80, 80}, timestamps(actions[0]))
	assert.Equal(t, 1, countComments(comments, pipeline.CommentTypeTimestampOffset))
	assert.Equal(t, 0, countComments(comments, pipeline.CommentTypeUnrepairable))
}

func TestTimestampUnrepairable(t *testing.T) {
	r := newDefaultRunner()
	r.run(scriptGroup())
	r.run(headerGroup(avcHeader, aacHeader))

	actions, comments := r.run(dataGroup(v(0, true), v(40, false), v(20, false)))
	assert.Equal(t, []int64{0, 40, 20}, timestamps(actions[0]))
	assert.Equal(t, 1, countComments(comments, pipeline.CommentTypeUnrepairable))
	assert.Equal(t, 0, countComments(comments, pipeline.CommentTypeTimestampOffset))
}

func TestRemoveFillerData(t *testing.T) {
	r := newDefaultRunner()
	r.run(scriptGroup())
	r.run(headerGroup(avcHeader, aacHeader))

	actions, comments := r.run(dataGroup(v(0, true), a(10), v(40, false)))
	assert.Equal(t, 1, len(actions))
	assert.Equal(t, 0, len(comments))

	actions, comments = r.run(dataGroup(v(80, true), a(90)))
	assert.Equal(t, 1, len(actions))
	assert.Equal(t, 0, len(comments))

	// 完全重复的tag被删除，group变空后action也删除
	actions, comments = r.run(dataGroup(a(90)))
	assert.Equal(t, 0, len(actions))
	assert.Equal(t, 1, len(comments))
	assert.Equal(t, pipeline.CommentTypeRepeatingData, comments[0].Type)
	assert.Equal(t, 1, comments[0].Count)

	// 时间戳不同的不算重复
	actions, comments = r.run(dataGroup(v(120, false), a(130)))
	assert.Equal(t, 1, len(actions))
	assert.Equal(t, 0, len(comments))

	// 类型、时间戳、大小相同，内容不同
	actions, comments = r.run(dataGroup(flv.NewTag(flv.TagTypeAudio, 130, []byte{0xaf, 0x01, 0x22})))
	assert.Equal(t, 1, len(actions))
	assert.Equal(t, 0, len(comments))
}

func TestRemoveFillerDataAfterNewFile(t *testing.T) {
	r := newDefaultRunner()
	r.run(scriptGroup())
	r.run(headerGroup(avcHeader, aacHeader))
	r.run(dataGroup(v(0, true), a(10), v(40, false), a(50)))
	assert.Equal(t, 4, r.session.Filler.Len())

	actions, _ := r.run(&grouping.TagGroup{
		Kind: grouping.GroupKindEnd,
		Tags: []*flv.Tag{flv.NewTag(flv.TagTypeVideo, 80, videoEnd)},
	})
	assert.Equal(t, "NewFile", actions[len(actions)-1].String())
	assert.Equal(t, 0, r.session.Filler.Len())

	// 新文件从0开始，和上一个文件的开头完全相同，但不是重复数据
	actions, comments := r.run(dataGroup(v(5000, true), a(5010), v(5040, false), a(5050)))
	assert.Equal(t, 1, len(actions))
	assert.Equal(t, []int64{0, 10, 40, 50}, timestamps(actions[0]))
	assert.Equal(t, 0, countComments(comments, pipeline.CommentTypeRepeatingData))

	// header变化同样开始新文件
	r.run(headerGroup(avcHeader2, nil))
	assert.Equal(t, 0, r.session.Filler.Len())
	actions, comments = r.run(dataGroup(v(5080, true), a(5090)))
	assert.Equal(t, []int64{0, 10}, timestamps(actions[0]))
	assert.Equal(t, 0, countComments(comments, pipeline.CommentTypeRepeatingData))
}

func TestStatsRule(t *testing.T) {
	stats := pipeline.NewStatsRule()
	r := newRunner(pipeline.NewBuilder().Add(stats).AddDefault().Build())
	r.run(scriptGroup())
	r.run(headerGroup(avcHeader, aacHeader))
	r.run(dataGroup(v(0, true), a(0), v(40, false), a(23)))
	r.run(dataGroup(v(80, true), a(46), v(120, false)))

	video, audio := stats.GetStats()
	assert.Equal(t, int64(4), video.TagCount)
	assert.Equal(t, int64(2), video.KeyframeCount)
	assert.Equal(t, "AVC", video.CodecName)
	assert.Equal(t, int(flv.CodecIdAvc), video.CodecId)
	assert.Equal(t, int64(120), video.DurationMs)
	assert.Equal(t, int64(3), video.FrameDurations[40])
	assert.Equal(t, float64(25), video.FramesPerSecond)
	assert.Equal(t, true, video.Bitrate > 0)

	assert.Equal(t, int64(3), audio.TagCount)
	assert.Equal(t, int64(9), audio.ByteCount)
	assert.Equal(t, 44100, audio.SampleRate)
	assert.Equal(t, 2, audio.Channels)
	assert.Equal(t, int64(46), audio.DurationMs)
}
