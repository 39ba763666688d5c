// Copyright 2019, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package aac 从flv的aac seq header中获取编码信息
package aac

import (
	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/naza/pkg/nazabits"
)

// AudioSpecificConfig(asc)
// keywords: Seq Header,
// e.g.  rtmp, flv

const (
	AscSamplingFrequencyIndex48000 = 3
	AscSamplingFrequencyIndex44100 = 4
)

const minAscLength = 2

var samplingFrequencyTable = []int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

// <ISO_IEC_14496-3.pdf>
// <1.6.2.1 AudioSpecificConfig>, <page 33/110>
// <1.5.1.1 Audio Object type definition>, <page 23/110>
// <1.6.3.3 samplingFrequencyIndex>, <page 35/110>
// <1.6.3.4 channelConfiguration>
// --------------------------------------------------------
// audio object type      [5b] 1=AAC MAIN  2=AAC LC
// samplingFrequencyIndex [4b] 3=48000  4=44100  6=24000  5=32000  11=11025
// channelConfiguration   [4b] 1=center front speaker  2=left, right front speakers
type AscContext struct {
	AudioObjectType        uint8 // [5b]
	SamplingFrequencyIndex uint8 // [4b]
	ChannelConfiguration   uint8 // [4b]
}

func NewAscContext(asc []byte) (*AscContext, error) {
	var ascCtx AscContext
	if err := ascCtx.Unpack(asc); err != nil {
		return nil, err
	}
	return &ascCtx, nil
}

// NewAscContextFromSeqHeader
//
// @param payload: flv audio tag的payload，前2个字节为 SequenceHeaderContext
func NewAscContextFromSeqHeader(payload []byte) (*AscContext, error) {
	if len(payload) < 2+minAscLength {
		return nil, base.ErrAac
	}
	var shCtx SequenceHeaderContext
	shCtx.Unpack(payload)
	if shCtx.SoundFormat != 10 || shCtx.AacPacketType != 0 {
		return nil, base.ErrAac
	}
	return NewAscContext(payload[2:])
}

// Unpack
//
// @param asc: 2字节的AAC Audio Specifc Config
//             注意，如果是rtmp/flv的message/tag，应去除Seq Header头部的2个字节
func (ascCtx *AscContext) Unpack(asc []byte) error {
	if len(asc) < minAscLength {
		return base.ErrAac
	}

	br := nazabits.NewBitReader(asc)
	ascCtx.AudioObjectType, _ = br.ReadBits8(5)
	ascCtx.SamplingFrequencyIndex, _ = br.ReadBits8(4)
	ascCtx.ChannelConfiguration, _ = br.ReadBits8(4)
	if ascCtx.AudioObjectType == 0 {
		return base.ErrAac
	}
	return nil
}

func (ascCtx *AscContext) GetSamplingFrequency() (int, error) {
	if int(ascCtx.SamplingFrequencyIndex) < len(samplingFrequencyTable) {
		return samplingFrequencyTable[ascCtx.SamplingFrequencyIndex], nil
	}
	return -1, base.ErrAac
}

func (ascCtx *AscContext) ObjectTypeName() string {
	switch ascCtx.AudioObjectType {
	case 1:
		return "AAC Main"
	case 2:
		return "AAC LC"
	case 3:
		return "AAC SSR"
	case 4:
		return "AAC LTP"
	case 5:
		return "HE-AAC"
	case 29:
		return "HE-AACv2"
	}
	return "AAC"
}
