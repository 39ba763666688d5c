// Copyright 2019, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package avc 从flv的avc seq header中获取编码信息，只用于统计和header校验，不做解码
package avc

import (
	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
)

const (
	NaluUnitTypeSps uint8 = 7
	NaluUnitTypePps uint8 = 8
)

type Context struct {
	Profile uint8
	Level   uint8
	Width   uint32
	Height  uint32
}

// H.264-AVC-ISO_IEC_14496-15.pdf
// 5.2.4 Decoder configuration information
type DecoderConfigurationRecord struct {
	ConfigurationVersion uint8
	AvcProfileIndication uint8
	ProfileCompatibility uint8
	AvcLevelIndication   uint8
	LengthSizeMinusOne   uint8
	NumOfSps             uint8
	NumOfPps             uint8
}

// ParseSeqHeader 从 avc sequence header 中解析 sps 和 pps，多个时只取第一个
//
// @param payload: flv tag的payload部分，包含头部2字节类型以及3字节的cts
//
// @return sps, pps: 引用`payload`的内存块
func ParseSeqHeader(payload []byte) (dcr DecoderConfigurationRecord, sps, pps []byte, err error) {
	if len(payload) < 11 {
		err = base.ErrAvc
		return
	}
	if payload[0]&0xF != 7 || payload[1] != 0 {
		err = base.ErrAvc
		return
	}

	b := payload[5:]
	dcr.ConfigurationVersion = b[0]
	dcr.AvcProfileIndication = b[1]
	dcr.ProfileCompatibility = b[2]
	dcr.AvcLevelIndication = b[3]
	dcr.LengthSizeMinusOne = b[4] & 0x03
	dcr.NumOfSps = b[5] & 0x1F

	index := 6
	for i := 0; i < int(dcr.NumOfSps); i++ {
		var one []byte
		if one, index, err = readParameterSet(b, index); err != nil {
			return
		}
		if sps == nil {
			sps = one
		}
	}

	if index >= len(b) {
		err = base.ErrAvc
		return
	}
	dcr.NumOfPps = b[index] & 0x1F
	index++
	for i := 0; i < int(dcr.NumOfPps); i++ {
		var one []byte
		if one, index, err = readParameterSet(b, index); err != nil {
			return
		}
		if pps == nil {
			pps = one
		}
	}

	if sps == nil || pps == nil {
		err = base.ErrAvc
	}
	return
}

// ParseContextFromSeqHeader 从seq header中解析profile、level以及宽高
func ParseContextFromSeqHeader(payload []byte) (ctx Context, err error) {
	var sps []byte
	if _, sps, _, err = ParseSeqHeader(payload); err != nil {
		return
	}
	err = ParseSps(sps, &ctx)
	return
}

func readParameterSet(b []byte, index int) ([]byte, int, error) {
	if len(b)-index < 2 {
		return nil, index, base.ErrAvc
	}
	l := int(bele.BeUint16(b[index:]))
	index += 2
	if len(b)-index < l || l == 0 {
		return nil, index, base.ErrAvc
	}
	return b[index : index+l], index + l, nil
}
