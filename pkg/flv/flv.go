// Copyright 2019, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package flv 提供flv tag的模型、读取以及写入目标
package flv

type TagType uint8

const (
	TagTypeAudio  TagType = 8
	TagTypeVideo  TagType = 9
	TagTypeScript TagType = 18
)

func (t TagType) String() string {
	switch t {
	case TagTypeAudio:
		return "audio"
	case TagTypeVideo:
		return "video"
	case TagTypeScript:
		return "script"
	}
	return "unknown"
}

func (t TagType) IsValid() bool {
	return t == TagTypeAudio || t == TagTypeVideo || t == TagTypeScript
}

const (
	TagHeaderSize        = 11
	PrevTagSizeFieldSize = 4

	// FlvHeaderSize 包含 PreviousTagSize0
	FlvHeaderSize = 13
)

// FlvHeader 写入的文件头，audio和video的flag都置位
var FlvHeader = []byte{0x46, 0x4c, 0x56, 0x01, 0x05, 0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x00}

// video tag 的第一个字节: frame type(4bit) + codec id(4bit)
const (
	FrameTypeKey   uint8 = 1
	FrameTypeInter uint8 = 2

	CodecIdAvc  uint8 = 7
	CodecIdHevc uint8 = 12

	AvcPacketTypeSeqHeader   uint8 = 0
	AvcPacketTypeNalu        uint8 = 1
	AvcPacketTypeEndSequence uint8 = 2
)

// audio tag 的第一个字节: sound format(4bit) + rate(2bit) + size(1bit) + type(1bit)
const (
	SoundFormatMp3 uint8 = 2
	SoundFormatAac uint8 = 10

	AacPacketTypeSeqHeader uint8 = 0
	AacPacketTypeRaw       uint8 = 1
)
