// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package xmlflv_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/q191201771/flvfix/pkg/amf0"
	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/flvfix/pkg/flv"
	"github.com/q191201771/flvfix/pkg/xmlflv"
	"github.com/q191201771/naza/pkg/assert"
)

var (
	aacHeader = []byte{0xaf, 0x00, 0x12, 0x10}
	videoKey  = []byte{0x17, 0x01, 0x00, 0x00, 0x00, 0x65}
	audioRaw  = []byte{0xaf, 0x01, 0x21}
)

func sampleTags() []*flv.Tag {
	return []*flv.Tag{
		flv.NewScriptTag(nil),
		flv.NewTag(flv.TagTypeAudio, 0, aacHeader),
		flv.NewTag(flv.TagTypeVideo, 0, videoKey),
		flv.NewTag(flv.TagTypeAudio, 23, append([]byte(nil), audioRaw...)),
	}
}

func TestFile(t *testing.T) {
	f, err := xmlflv.NewFile(sampleTags())
	assert.Equal(t, nil, err)
	assert.Equal(t, 4, len(f.Tags))
	assert.Equal(t, xmlflv.TypeScript, f.Tags[0].Type)
	assert.Equal(t, int64(flv.FlvHeaderSize), f.Tags[0].Position)
	assert.Equal(t, "header", f.Tags[1].Flag)
	assert.Equal(t, "keyframe", f.Tags[2].Flag)
	assert.Equal(t, "", f.Tags[3].Flag)
	assert.Equal(t, "AF0121", f.Tags[3].BinaryData)
	assert.Equal(t, f.Tags[2].Position+flv.TagSizeOnDisk(len(videoKey)), f.Tags[3].Position)

	var buf bytes.Buffer
	assert.Equal(t, nil, xmlflv.Marshal(&buf, f))
	assert.Equal(t, true, strings.HasPrefix(buf.String(), "<?xml"))
	assert.Equal(t, true, strings.Contains(buf.String(), `<Tag Type="Video" Flag="keyframe" Size="6" Timestamp="0"`))

	f2, err := xmlflv.Unmarshal(&buf)
	assert.Equal(t, nil, err)
	tags, err := f2.ToFlvTags()
	assert.Equal(t, nil, err)
	assert.Equal(t, 4, len(tags))
	assert.Equal(t, true, tags[0].ScriptData != nil)
	_, ok := tags[0].ScriptData.GetMetadataValue().GetNumber(amf0.MetadataKeyDuration)
	assert.Equal(t, true, ok)
	assert.Equal(t, true, tags[1].IsHeader())
	assert.Equal(t, true, tags[2].IsKeyframeData())
	assert.Equal(t, int64(23), tags[3].Timestamp)
	assert.Equal(t, audioRaw, tags[3].Data)
}

func TestToFlvTags(t *testing.T) {
	// 没有BinaryData时根据Flag还原，类型可以是数字
	f := &xmlflv.File{Tags: []xmlflv.Tag{
		{Type: "9", Flag: "keyframe", Timestamp: 40},
		{Type: "video", Flag: "end", Timestamp: 80},
	}}
	tags, err := f.ToFlvTags()
	assert.Equal(t, nil, err)
	assert.Equal(t, flv.TagTypeVideo, tags[0].Type)
	assert.Equal(t, true, tags[0].IsKeyframeData())
	assert.Equal(t, true, tags[1].IsEnd())

	f = &xmlflv.File{Tags: []xmlflv.Tag{{Type: "Video"}, {Type: "Subtitle"}}}
	_, err = f.ToFlvTags()
	assert.Equal(t, true, errors.Is(err, base.ErrUnknownTagType))

	f = &xmlflv.File{Tags: []xmlflv.Tag{{Type: "Audio", BinaryData: "AFZZ"}}}
	_, err = f.ToFlvTags()
	assert.Equal(t, true, errors.Is(err, base.ErrXmlInvalidTag))
}

func TestReadWriteFile(t *testing.T) {
	dir := t.TempDir()
	f, err := xmlflv.NewFile(sampleTags())
	assert.Equal(t, nil, err)
	f.Meta = &xmlflv.Meta{Version: "v0.0.1", FileSize: 1024}

	for _, name := range []string{"a.xml", "b.xml.gz"} {
		filename := filepath.Join(dir, "sub", name)
		assert.Equal(t, nil, xmlflv.WriteFile(filename, f))
		f2, err := xmlflv.ReadFile(filename)
		assert.Equal(t, nil, err)
		assert.Equal(t, int64(1024), f2.Meta.FileSize)
		assert.Equal(t, f.Tags, f2.Tags)
	}

	// gz文件确实是压缩过的
	raw, err := os.ReadFile(filepath.Join(dir, "sub", "b.xml.gz"))
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2])

	assert.Equal(t, true, xmlflv.IsXmlPath("a.XML"))
	assert.Equal(t, true, xmlflv.IsXmlPath("a.brec.xml.gz"))
	assert.Equal(t, false, xmlflv.IsXmlPath("a.flv"))
}

func TestTagListReader(t *testing.T) {
	r := xmlflv.NewTagListReader(sampleTags())
	assert.Equal(t, 4, r.Len())
	ctx := context.Background()

	peek, err := r.PeekTag(ctx)
	assert.Equal(t, nil, err)
	tag, err := r.ReadTag(ctx)
	assert.Equal(t, nil, err)
	assert.Equal(t, peek, tag)
	assert.Equal(t, int64(1), r.Offset())

	for i := 0; i < 3; i++ {
		_, err = r.ReadTag(ctx)
		assert.Equal(t, nil, err)
	}
	_, err = r.ReadTag(ctx)
	assert.Equal(t, io.EOF, err)
	_, err = r.PeekTag(ctx)
	assert.Equal(t, io.EOF, err)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = xmlflv.NewTagListReader(sampleTags()).ReadTag(cctx)
	assert.Equal(t, context.Canceled, err)
}

func TestTagListWriter(t *testing.T) {
	w := xmlflv.NewTagListWriter()
	assert.Equal(t, base.ErrFileNotOpen, w.WriteTag(flv.NewTag(flv.TagTypeAudio, 0, audioRaw)))
	closed, err := w.CloseCurrentFile()
	assert.Equal(t, false, closed)
	assert.Equal(t, nil, err)

	assert.Equal(t, nil, w.CreateNewFile())
	assert.Equal(t, base.ErrFileAlreadyOpen, w.CreateNewFile())
	assert.Equal(t, base.ErrNoScriptTagWritten, w.OverwriteMetadata(amf0.NewOnMetaData()))

	tags := sampleTags()
	for _, tag := range tags {
		assert.Equal(t, nil, w.WriteTag(tag))
	}
	assert.Equal(t, 0, w.State())

	// 写入的是拷贝，归还内存块后不影响输出
	tags[3].Data[2] = 0x00

	body := amf0.NewOnMetaData()
	body.GetMetadataValue().Set(amf0.MetadataKeyDuration, float64(0.023))
	assert.Equal(t, nil, w.OverwriteMetadata(body))

	bigger := amf0.NewOnMetaData()
	bigger.GetMetadataValue().Set("width", float64(1920))
	assert.Equal(t, true, errors.Is(w.OverwriteMetadata(bigger), base.ErrMetadataSizeChanged))

	assert.Equal(t, nil, w.WriteAlternativeHeaders([]*flv.Tag{flv.NewTag(flv.TagTypeAudio, 0, aacHeader)}))
	assert.Equal(t, nil, w.Dispose())

	assert.Equal(t, 1, len(w.Files()))
	assert.Equal(t, 1, len(w.AlternativeHeaders()))
	file := w.Files()[0]
	assert.Equal(t, 4, len(file))
	assert.Equal(t, audioRaw, file[3].Data)
	duration, _ := file[0].ScriptData.GetMetadataValue().GetNumber(amf0.MetadataKeyDuration)
	assert.Equal(t, 0.023, duration)

	var expected int64 = flv.FlvHeaderSize
	for _, tag := range file {
		payload, _ := tag.Payload()
		expected += flv.TagSizeOnDisk(len(payload))
	}
	assert.Equal(t, expected, w.FileSize())
}
