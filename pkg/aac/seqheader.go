// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package aac

import "github.com/q191201771/naza/pkg/nazabits"

// <spec-video_file_format_spec_v10.pdf>, <Audio tags, AUDIODATA>, <page 10/48>
// ----------------------------------------------------------------------------
// soundFormat    [4b] 10=AAC
// soundRate      [2b] 3=44kHz. AAC always 3
// soundSize      [1b] 0=snd8Bit, 1=snd16Bit
// soundType      [1b] 0=sndMono, 1=sndStereo. AAC always 1
// aacPackageType [8b] 0=seq header, 1=AAC raw
type SequenceHeaderContext struct {
	SoundFormat   uint8 // [4b]
	SoundRate     uint8 // [2b]
	SoundSize     uint8 // [1b]
	SoundType     uint8 // [1b]
	AacPacketType uint8 // [8b]
}

// Unpack
//
// @param b: flv tag的payload的前2个字节
func (shCtx *SequenceHeaderContext) Unpack(b []byte) {
	br := nazabits.NewBitReader(b)
	shCtx.SoundFormat, _ = br.ReadBits8(4)
	shCtx.SoundRate, _ = br.ReadBits8(2)
	shCtx.SoundSize, _ = br.ReadBits8(1)
	shCtx.SoundType, _ = br.ReadBits8(1)
	shCtx.AacPacketType, _ = br.ReadBits8(8)
}

// SoundRateHz 非aac时flv头部标识的采样率
func (shCtx *SequenceHeaderContext) SoundRateHz() int {
	switch shCtx.SoundRate {
	case 0:
		return 5500
	case 1:
		return 11025
	case 2:
		return 22050
	}
	return 44100
}

func SoundFormatName(format uint8) string {
	switch format {
	case 0:
		return "LinearPCM"
	case 1:
		return "ADPCM"
	case 2:
		return "MP3"
	case 3:
		return "LinearPCM(LE)"
	case 7:
		return "G711A"
	case 8:
		return "G711U"
	case 10:
		return "AAC"
	case 11:
		return "Speex"
	case 14:
		return "MP3-8k"
	}
	return "unknown"
}
