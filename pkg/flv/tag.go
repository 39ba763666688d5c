// Copyright 2019, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package flv

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/q191201771/flvfix/pkg/amf0"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabytes"
)

type TagFlag uint8

const (
	TagFlagNone     TagFlag = 0
	TagFlagHeader   TagFlag = 1 << 0
	TagFlagKeyframe TagFlag = 1 << 1
	TagFlagEnd      TagFlag = 1 << 2
)

func (f TagFlag) String() string {
	if f == TagFlagNone {
		return "none"
	}
	var s []string
	if f&TagFlagHeader != 0 {
		s = append(s, "header")
	}
	if f&TagFlagKeyframe != 0 {
		s = append(s, "keyframe")
	}
	if f&TagFlagEnd != 0 {
		s = append(s, "end")
	}
	return strings.Join(s, "|")
}

// Tag
//
// Data 为tag body，不包含 tag header 和 prev tag size。
// Data 的内存块可能来自 BufferProvider，调用 Release 后归还，之后不可再访问。
type Tag struct {
	Type      TagType
	Flag      TagFlag
	Timestamp int64 // 单位毫秒
	Data      []byte

	// ScriptData 只有script tag有，解析失败时为nil。写入时优先使用 ScriptData 序列化后的内容
	ScriptData *amf0.ScriptTagBody

	provider BufferProvider
}

// NewTag 根据`data`的内容计算 Flag，`data`的所有权转移给tag
func NewTag(t TagType, timestamp int64, data []byte) *Tag {
	return &Tag{
		Type:      t,
		Flag:      ClassifyTagFlag(t, data),
		Timestamp: timestamp,
		Data:      data,
	}
}

// NewScriptTag 构造script tag，`body`为nil时使用只包含duration的onMetaData
func NewScriptTag(body *amf0.ScriptTagBody) *Tag {
	if body == nil {
		body = amf0.NewOnMetaData()
	}
	return &Tag{
		Type:       TagTypeScript,
		ScriptData: body,
	}
}

// ClassifyTagFlag
//
// video: avc/hevc的seq header为Header，end of sequence为End，frame type为1的nalu为Keyframe
// audio: aac的seq header为Header
func ClassifyTagFlag(t TagType, data []byte) TagFlag {
	switch t {
	case TagTypeVideo:
		if len(data) < 1 {
			return TagFlagNone
		}
		frameType := data[0] >> 4
		codecId := data[0] & 0xF
		if codecId == CodecIdAvc || codecId == CodecIdHevc {
			if len(data) < 2 {
				return TagFlagNone
			}
			switch data[1] {
			case AvcPacketTypeSeqHeader:
				return TagFlagHeader
			case AvcPacketTypeEndSequence:
				return TagFlagEnd
			}
		}
		if frameType == FrameTypeKey {
			return TagFlagKeyframe
		}
	case TagTypeAudio:
		if len(data) >= 2 && data[0]>>4 == SoundFormatAac && data[1] == AacPacketTypeSeqHeader {
			return TagFlagHeader
		}
	}
	return TagFlagNone
}

func (tag *Tag) IsScript() bool {
	return tag.Type == TagTypeScript
}

func (tag *Tag) IsHeader() bool {
	return tag.Flag&TagFlagHeader != 0
}

func (tag *Tag) IsEnd() bool {
	return tag.Flag&TagFlagEnd != 0
}

// IsData 音视频tag，且不是header和end
func (tag *Tag) IsData() bool {
	return tag.Type != TagTypeScript && tag.Flag&(TagFlagHeader|TagFlagEnd) == 0
}

func (tag *Tag) IsKeyframeData() bool {
	return tag.Type == TagTypeVideo && tag.Flag == TagFlagKeyframe
}

func (tag *Tag) IsNonKeyframeData() bool {
	return tag.Type == TagTypeVideo && tag.Flag == TagFlagNone
}

// Payload 需要写入文件的tag body
func (tag *Tag) Payload() ([]byte, error) {
	if tag.Type == TagTypeScript && tag.ScriptData != nil {
		return tag.ScriptData.Marshal()
	}
	return tag.Data, nil
}

// Release 归还 Data 的内存块，可重复调用
func (tag *Tag) Release() {
	if tag.Data == nil {
		return
	}
	if tag.provider != nil {
		tag.provider.Put(tag.Data)
	}
	tag.Data = nil
}

// Clone 深拷贝，新tag的内存块不属于任何 BufferProvider
func (tag *Tag) Clone() *Tag {
	out := &Tag{
		Type:      tag.Type,
		Flag:      tag.Flag,
		Timestamp: tag.Timestamp,
	}
	if tag.Data != nil {
		out.Data = append([]byte(nil), tag.Data...)
	}
	if tag.ScriptData != nil {
		out.ScriptData = tag.ScriptData.Clone()
	}
	return out
}

func (tag *Tag) String() string {
	return fmt.Sprintf("Tag{type=%s, flag=%s, ts=%d, size=%d}", tag.Type, tag.Flag, tag.Timestamp, len(tag.Data))
}

// DebugString 附带body前16字节的hex
func (tag *Tag) DebugString() string {
	return fmt.Sprintf("%s\n%s", tag.String(), hex.Dump(nazabytes.Prefix(tag.Data, 16)))
}

// PackTag 打包一个序列化后的 tag 二进制buffer，包含 tag header，body，prev tag size
func PackTag(t TagType, timestamp int64, in []byte) []byte {
	out := make([]byte, TagHeaderSize+len(in)+PrevTagSizeFieldSize)
	ts := uint32(timestamp)
	if timestamp < 0 {
		ts = 0
	}
	out[0] = uint8(t)
	bele.BePutUint24(out[1:], uint32(len(in)))
	bele.BePutUint24(out[4:], ts&0xFFFFFF)
	out[7] = uint8(ts >> 24)
	out[8] = 0
	out[9] = 0
	out[10] = 0
	copy(out[11:], in)
	bele.BePutUint32(out[TagHeaderSize+len(in):], uint32(TagHeaderSize+len(in)))
	return out
}

// TagSizeOnDisk 一个body大小为`payloadSize`的tag在文件中占用的字节数
func TagSizeOnDisk(payloadSize int) int64 {
	return int64(TagHeaderSize + payloadSize + PrevTagSizeFieldSize)
}
