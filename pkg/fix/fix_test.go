// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package fix_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/q191201771/flvfix/pkg/amf0"
	"github.com/q191201771/flvfix/pkg/flv"
	"github.com/q191201771/flvfix/pkg/fix"
	"github.com/q191201771/flvfix/pkg/xmlflv"
	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazalog"
)

var (
	videoHeader = []byte{
		0x17, 0x00, 0x00, 0x00, 0x00,
		0x01, 0x42, 0x00, 0x1e, 0xff,
		0xe1, 0x00, 0x02, 0x67, 0x42,
		0x01, 0x00, 0x02, 0x68, 0xce,
	}
	audioHeader = []byte{0xaf, 0x00, 0x12, 0x10}
	videoKey    = []byte{0x17, 0x01, 0x00, 0x00, 0x00, 0x65, 0x88, 0x84}
	videoInter  = []byte{0x27, 0x01, 0x00, 0x00, 0x00, 0x41, 0x9a, 0x02}
	videoEnd    = []byte{0x17, 0x02, 0x00, 0x00, 0x00}
	audioRaw    = []byte{0xaf, 0x01, 0x21, 0x10, 0x04}
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

func v(ts int64, key bool) *flv.Tag {
	if key {
		return flv.NewTag(flv.TagTypeVideo, ts, videoKey)
	}
	return flv.NewTag(flv.TagTypeVideo, ts, videoInter)
}

func a(ts int64) *flv.Tag {
	return flv.NewTag(flv.TagTypeAudio, ts, audioRaw)
}

// brokenTags 一个重复的音频tag，一次时间戳跳变，最后是end tag
func brokenTags() []*flv.Tag {
	return []*flv.Tag{
		flv.NewScriptTag(nil),
		flv.NewTag(flv.TagTypeVideo, 0, videoHeader),
		flv.NewTag(flv.TagTypeAudio, 0, audioHeader),
		v(0, true), a(10), v(40, false), a(50),
		v(80, true), a(90), a(90), v(120, false), a(130),
		v(10000, true), a(10010), v(10040, false),
		flv.NewTag(flv.TagTypeVideo, 10080, videoEnd),
	}
}

func brokenInput() []byte {
	return packFlv(brokenTags()...)
}

func writeInput(t *testing.T, dir string, name string, b []byte) string {
	p := filepath.Join(dir, name)
	assert.Equal(t, nil, os.WriteFile(p, b, 0644))
	return p
}

func TestMain(m *testing.M) {
	_ = nazalog.Init(func(option *nazalog.Option) {
		option.Level = nazalog.LevelInfo
	})
	os.Exit(m.Run())
}

func TestFixAndIdempotence(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "record.flv", brokenInput())

	h := fix.NewHandler(nil)
	var progressCount int
	resp, err := h.Fix(context.Background(), fix.Request{
		Input:    input,
		Progress: func(p fix.Progress) { progressCount++ },
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, fix.StatusOk, resp.Status)
	assert.Equal(t, true, resp.NeedFix)
	assert.Equal(t, false, resp.Unrepairable)
	assert.Equal(t, 1, resp.IssueTypes.RepeatingData)
	assert.Equal(t, 1, resp.IssueTypes.TimestampJump)
	assert.Equal(t, 0, resp.IssueTypes.Unrepairable)
	assert.Equal(t, 1, resp.OutputFileCount)
	assert.Equal(t, []string{filepath.Join(dir, "record.fix_p001.flv")}, resp.OutputPaths)
	assert.Equal(t, 0, progressCount)
	assert.Equal(t, int64(6), resp.VideoStats.TagCount)
	assert.Equal(t, int64(3), resp.VideoStats.KeyframeCount)
	assert.Equal(t, int64(6), resp.AudioStats.TagCount)

	out, err := os.ReadFile(resp.OutputPaths[0])
	assert.Equal(t, nil, err)
	assert.Equal(t, int64(len(out)), resp.OutputFiles[0].Size)

	tags, err := flv.ReadAllTags(context.Background(), bytes.NewReader(out))
	assert.Equal(t, nil, err)
	// script, 2个header, 11个data（去掉了1个重复的）, end
	assert.Equal(t, 15, len(tags))
	assert.Equal(t, true, tags[len(tags)-1].IsEnd())

	meta := tags[0].ScriptData.GetMetadataValue()
	duration, _ := meta.GetNumber(amf0.MetadataKeyDuration)
	assert.Equal(t, float64(tags[len(tags)-1].Timestamp)/1000, duration)

	// 每个关键帧索引都指向一个视频关键帧tag
	kf := meta.Get(amf0.MetadataKeyKeyframes).(*amf0.Object)
	positions := kf.Get(amf0.KeyframesKeyFilepositions).([]interface{})
	assert.Equal(t, 3, len(positions))
	last := float64(0)
	for _, p := range positions {
		pos := int(p.(float64))
		assert.Equal(t, true, p.(float64) > last)
		last = p.(float64)
		assert.Equal(t, byte(flv.TagTypeVideo), out[pos])
		assert.Equal(t, byte(0x17), out[pos+flv.TagHeaderSize])
	}

	// 输出文件再分析一次，没有任何问题
	resp2, err := h.Analyze(context.Background(), fix.Request{Input: resp.OutputPaths[0]})
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, resp2.IssueTypes.Total())
	assert.Equal(t, false, resp2.NeedFix)
	assert.Equal(t, 1, resp2.OutputFileCount)
	assert.Equal(t, 0, len(resp2.OutputPaths))
}

func TestAnalyzeNoOutput(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "record.flv", brokenInput())

	resp, err := fix.NewHandler(nil).Analyze(context.Background(), fix.Request{Input: input})
	assert.Equal(t, nil, err)
	assert.Equal(t, true, resp.Analyze)
	assert.Equal(t, true, resp.NeedFix)

	entries, err := os.ReadDir(dir)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(entries))
}

func TestHeaderChangeSplitsFile(t *testing.T) {
	dir := t.TempDir()
	changed := append([]byte(nil), videoHeader...)
	changed[6] = 0x4d
	input := writeInput(t, dir, "record.flv", packFlv(
		flv.NewScriptTag(nil),
		flv.NewTag(flv.TagTypeVideo, 0, videoHeader),
		flv.NewTag(flv.TagTypeAudio, 0, audioHeader),
		v(0, true), a(10), v(40, false),
		flv.NewTag(flv.TagTypeVideo, 80, changed),
		v(80, true), a(90),
	))

	resp, err := fix.NewHandler(nil).Fix(context.Background(), fix.Request{
		Input:      input,
		OutputBase: filepath.Join(dir, "out", "fixed"),
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, resp.OutputFileCount)
	assert.Equal(t, 1, resp.IssueTypes.DecodingHeader)
	assert.Equal(t, filepath.Join(dir, "out", "fixed.fix_p002.flv"), resp.OutputPaths[1])

	header, err := os.ReadFile(filepath.Join(dir, "out", "fixed.header.txt"))
	assert.Equal(t, nil, err)
	assert.Equal(t, true, len(header) > 0)

	out, err := os.ReadFile(resp.OutputPaths[0])
	assert.Equal(t, nil, err)
	tags, err := flv.ReadAllTags(context.Background(), bytes.NewReader(out))
	assert.Equal(t, nil, err)
	assert.Equal(t, 6, len(tags))
	assert.Equal(t, videoHeader, tags[1].Data)

	// 第二个文件使用新的header，时间戳从0开始，和第一个文件开头相同的数据不能被当作重复数据
	assert.Equal(t, 0, resp.IssueTypes.RepeatingData)
	out, err = os.ReadFile(resp.OutputPaths[1])
	assert.Equal(t, nil, err)
	tags, err = flv.ReadAllTags(context.Background(), bytes.NewReader(out))
	assert.Equal(t, nil, err)
	assert.Equal(t, 5, len(tags))
	assert.Equal(t, true, tags[0].IsScript())
	assert.Equal(t, changed, tags[1].Data)
	assert.Equal(t, audioHeader, tags[2].Data)
	assert.Equal(t, videoKey, tags[3].Data)
	assert.Equal(t, int64(0), tags[3].Timestamp)
	assert.Equal(t, audioRaw, tags[4].Data)
	assert.Equal(t, int64(10), tags[4].Timestamp)
}

func TestEndTagSplitsFile(t *testing.T) {
	input := packFlv(
		flv.NewScriptTag(nil),
		flv.NewTag(flv.TagTypeVideo, 0, videoHeader),
		flv.NewTag(flv.TagTypeAudio, 0, audioHeader),
		v(0, true), a(10), v(40, false), a(50),
		flv.NewTag(flv.TagTypeVideo, 80, videoEnd),
		v(5000, true), a(5010), v(5040, false), a(5050),
	)
	provider := flv.NewMemoryTargetProvider()
	resp, err := fix.NewHandler(nil).FixStream(context.Background(), bytes.NewReader(input), flv.NewFileTagWriter(provider))
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, resp.OutputFileCount)
	assert.Equal(t, 0, resp.IssueTypes.RepeatingData)
	assert.Equal(t, 0, resp.IssueTypes.TimestampJump)
	assert.Equal(t, 2, len(provider.Files()))

	first, err := flv.ReadAllTags(context.Background(), bytes.NewReader(provider.Files()[0].Bytes()))
	assert.Equal(t, nil, err)
	assert.Equal(t, 8, len(first))
	assert.Equal(t, true, first[7].IsEnd())

	// 第二个文件: script、两个header、全部4个data tag
	second, err := flv.ReadAllTags(context.Background(), bytes.NewReader(provider.Files()[1].Bytes()))
	assert.Equal(t, nil, err)
	assert.Equal(t, 7, len(second))
	assert.Equal(t, true, second[0].IsScript())
	assert.Equal(t, videoHeader, second[1].Data)
	assert.Equal(t, audioHeader, second[2].Data)
	expected := []*flv.Tag{v(0, true), a(10), v(40, false), a(50)}
	for i, tag := range second[3:] {
		assert.Equal(t, expected[i].Type, tag.Type)
		assert.Equal(t, expected[i].Timestamp, tag.Timestamp)
		assert.Equal(t, expected[i].Data, tag.Data)
	}
}

func TestFixXml(t *testing.T) {
	dir := t.TempDir()
	f, err := xmlflv.NewFile(brokenTags())
	assert.Equal(t, nil, err)
	input := filepath.Join(dir, "record.xml.gz")
	assert.Equal(t, nil, xmlflv.WriteFile(input, f))

	h := fix.NewHandler(nil)
	resp, err := h.Fix(context.Background(), fix.Request{Input: input})
	assert.Equal(t, nil, err)
	assert.Equal(t, fix.StatusOk, resp.Status)
	assert.Equal(t, 1, resp.IssueTypes.RepeatingData)
	assert.Equal(t, 1, resp.IssueTypes.TimestampJump)
	assert.Equal(t, int64(len(f.Tags)), resp.InputSize)
	assert.Equal(t, []string{filepath.Join(dir, "record.fix_p001.brec.xml")}, resp.OutputPaths)
	assert.Equal(t, resp.OutputPaths[0], resp.OutputFiles[0].Path)

	out, err := xmlflv.ReadFile(resp.OutputPaths[0])
	assert.Equal(t, nil, err)
	tags, err := out.ToFlvTags()
	assert.Equal(t, nil, err)
	assert.Equal(t, 15, len(tags))
	assert.Equal(t, true, tags[0].ScriptData != nil)
	assert.Equal(t, true, tags[len(tags)-1].IsEnd())

	// 和flv输入的修复结果一致
	flvResp, err := h.FixStream(context.Background(), bytes.NewReader(brokenInput()), flv.NewAnalyzeTagWriter())
	assert.Equal(t, nil, err)
	assert.Equal(t, flvResp.OutputFiles[0].Size, resp.OutputFiles[0].Size)

	// 输出再分析一次，没有任何问题，也不产生文件
	resp2, err := h.Analyze(context.Background(), fix.Request{Input: resp.OutputPaths[0]})
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, resp2.IssueTypes.Total())
	assert.Equal(t, 1, resp2.OutputFileCount)
	entries, err := os.ReadDir(dir)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(entries))

	input = writeInput(t, dir, "bad.xml", []byte("<BililiveRecorderFlv><Tags><Tag Type=\"Unknown\" Size=\"0\" Timestamp=\"0\"/></Tags></BililiveRecorderFlv>"))
	resp, err = h.Analyze(context.Background(), fix.Request{Input: input})
	assert.IsNotNil(t, err)
	assert.Equal(t, fix.StatusUnknownFlvTagType, resp.Status)

	input = writeInput(t, dir, "broken.xml", []byte("<BililiveRecorderFlv><Tags>"))
	resp, err = h.Analyze(context.Background(), fix.Request{Input: input})
	assert.IsNotNil(t, err)
	assert.Equal(t, fix.StatusInputIoError, resp.Status)
}

func TestFixErrors(t *testing.T) {
	dir := t.TempDir()
	h := fix.NewHandler(nil)

	resp, err := h.Fix(context.Background(), fix.Request{Input: filepath.Join(dir, "notexist.flv")})
	assert.IsNotNil(t, err)
	assert.Equal(t, fix.StatusInputIoError, resp.Status)

	input := writeInput(t, dir, "bad.flv", []byte("this is not a flv file"))
	resp, err = h.Analyze(context.Background(), fix.Request{Input: input})
	assert.IsNotNil(t, err)
	assert.Equal(t, fix.StatusNotFlvFile, resp.Status)

	b := brokenInput()
	b = append(b, flv.PackTag(flv.TagType(7), 20000, []byte{0x01})...)
	input = writeInput(t, dir, "unknown.flv", b)
	resp, err = h.Analyze(context.Background(), fix.Request{Input: input})
	assert.IsNotNil(t, err)
	assert.Equal(t, fix.StatusUnknownFlvTagType, resp.Status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	input = writeInput(t, dir, "record.flv", brokenInput())
	resp, err = h.Analyze(ctx, fix.Request{Input: input})
	assert.IsNotNil(t, err)
	assert.Equal(t, fix.StatusCancelled, resp.Status)
}

func TestFixStream(t *testing.T) {
	provider := flv.NewMemoryTargetProvider()
	resp, err := fix.NewHandler(nil).FixStream(context.Background(), bytes.NewReader(brokenInput()), flv.NewFileTagWriter(provider))
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(provider.Files()))
	assert.Equal(t, 1, resp.OutputFileCount)
	assert.Equal(t, 2, resp.IssueTypes.Total())

	// 输入只经过一层bufio，大小由配置决定，为0时直接读取
	for _, size := range []int{0, 64} {
		config := fix.DefaultConfig()
		config.ReadBufSize = size
		provider2 := flv.NewMemoryTargetProvider()
		resp2, err := fix.NewHandler(config).FixStream(context.Background(), bytes.NewReader(brokenInput()), flv.NewFileTagWriter(provider2))
		assert.Equal(t, nil, err)
		assert.Equal(t, resp.IssueTypes, resp2.IssueTypes)
		assert.Equal(t, provider.Files()[0].Bytes(), provider2.Files()[0].Bytes())
	}
}

func TestParseConf(t *testing.T) {
	config, err := fix.ParseConf([]byte(`{"repair": {"remove_filler_data": false}, "group": {"max_tags": 10}}`))
	assert.Equal(t, nil, err)
	d := fix.DefaultConfig()
	assert.Equal(t, false, config.Repair.RemoveFillerData)
	assert.Equal(t, 10, config.Group.MaxTags)
	assert.Equal(t, d.Group.MaxTagGapMs, config.Group.MaxTagGapMs)
	assert.Equal(t, d.Repair.TimestampJumpThresholdMs, config.Repair.TimestampJumpThresholdMs)
	assert.Equal(t, d.Output.KeyframesCapacity, config.Output.KeyframesCapacity)
	assert.Equal(t, d.ReadBufSize, config.ReadBufSize)
	assert.Equal(t, d.Log.Level, config.Log.Level)

	_, err = fix.ParseConf([]byte(`{`))
	assert.IsNotNil(t, err)
}

func TestOutputBaseOf(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b", "c"), fix.OutputBaseOf(filepath.Join("a", "b", "c.flv"), ""))
	assert.Equal(t, filepath.Join("out", "c"), fix.OutputBaseOf(filepath.Join("a", "b", "c.flv"), "out"))
	assert.Equal(t, filepath.Join("a", "c"), fix.OutputBaseOf(filepath.Join("a", "c.xml.gz"), ""))
	assert.Equal(t, filepath.Join("a", "c"), fix.OutputBaseOf(filepath.Join("a", "c.brec.xml"), ""))
}
