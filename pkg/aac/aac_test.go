// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package aac_test

import (
	"testing"

	"github.com/q191201771/flvfix/pkg/aac"
	"github.com/q191201771/naza/pkg/assert"
)

func TestAscContext(t *testing.T) {
	// AAC LC, 44100, stereo
	ascCtx, err := aac.NewAscContextFromSeqHeader([]byte{0xaf, 0x00, 0x12, 0x10})
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(2), ascCtx.AudioObjectType)
	assert.Equal(t, uint8(aac.AscSamplingFrequencyIndex44100), ascCtx.SamplingFrequencyIndex)
	assert.Equal(t, uint8(2), ascCtx.ChannelConfiguration)
	sf, err := ascCtx.GetSamplingFrequency()
	assert.Equal(t, nil, err)
	assert.Equal(t, 44100, sf)
	assert.Equal(t, "AAC LC", ascCtx.ObjectTypeName())

	// 48000, mono
	ascCtx, err = aac.NewAscContext([]byte{0x11, 0x88})
	assert.Equal(t, nil, err)
	sf, _ = ascCtx.GetSamplingFrequency()
	assert.Equal(t, 48000, sf)
	assert.Equal(t, uint8(1), ascCtx.ChannelConfiguration)

	_, err = aac.NewAscContextFromSeqHeader([]byte{0xaf, 0x01, 0x12, 0x10})
	assert.IsNotNil(t, err)
	_, err = aac.NewAscContextFromSeqHeader([]byte{0xaf, 0x00})
	assert.IsNotNil(t, err)
}

func TestSequenceHeaderContext(t *testing.T) {
	var sh aac.SequenceHeaderContext
	sh.Unpack([]byte{0x2f, 0x01})
	assert.Equal(t, uint8(2), sh.SoundFormat)
	assert.Equal(t, "MP3", aac.SoundFormatName(sh.SoundFormat))
	assert.Equal(t, 44100, sh.SoundRateHz())
	assert.Equal(t, uint8(1), sh.SoundType)
}
