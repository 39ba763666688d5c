// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pipeline

import (
	"github.com/q191201771/flvfix/pkg/aac"
	"github.com/q191201771/flvfix/pkg/avc"
	"github.com/q191201771/flvfix/pkg/flv"
	"github.com/q191201771/naza/pkg/bitrate"
)

const peakBitrateWindowMs = 1000

// StatsRule 统计输入的音视频信息，不修改任何action
//
// 一般放在第一个，统计的是修复之前的数据。
type StatsRule struct {
	video mediaStats
	audio mediaStats
}

type mediaStats struct {
	stats FlvStats

	hasLast bool
	lastTs  int64

	br bitrate.Bitrate
}

func NewStatsRule() *StatsRule {
	r := &StatsRule{}
	r.video.init()
	r.audio.init()
	return r
}

func (r *StatsRule) Run(ctx *Context) {
	for _, action := range ctx.Actions {
		switch a := action.(type) {
		case *HeaderAction:
			if a.VideoHeader != nil {
				r.onVideoHeader(a.VideoHeader)
			}
			if a.AudioHeader != nil {
				r.onAudioHeader(a.AudioHeader)
			}
		case *DataAction:
			for _, tag := range a.Tags {
				switch tag.Type {
				case flv.TagTypeVideo:
					r.video.onData(tag)
					if tag.IsKeyframeData() {
						r.video.stats.KeyframeCount++
					}
					if r.video.stats.CodecName == "" && len(tag.Data) > 0 {
						r.video.stats.CodecId = int(tag.Data[0] & 0xF)
						r.video.stats.CodecName = videoCodecName(tag.Data[0] & 0xF)
					}
				case flv.TagTypeAudio:
					r.audio.onData(tag)
					if r.audio.stats.CodecName == "" && len(tag.Data) > 0 {
						r.audio.stats.CodecId = int(tag.Data[0] >> 4)
						r.audio.stats.CodecName = aac.SoundFormatName(tag.Data[0] >> 4)
						var sh aac.SequenceHeaderContext
						sh.Unpack(tag.Data)
						if r.audio.stats.SampleRate == 0 {
							r.audio.stats.SampleRate = sh.SoundRateHz()
							r.audio.stats.Channels = int(sh.SoundType) + 1
						}
					}
				}
			}
		}
	}
}

// GetStats 返回当前的统计结果的拷贝
func (r *StatsRule) GetStats() (video FlvStats, audio FlvStats) {
	return r.video.snapshot(), r.audio.snapshot()
}

func (r *StatsRule) onVideoHeader(tag *flv.Tag) {
	if len(tag.Data) < 1 {
		return
	}
	codecId := tag.Data[0] & 0xF
	r.video.stats.CodecId = int(codecId)
	r.video.stats.CodecName = videoCodecName(codecId)
	if codecId != flv.CodecIdAvc {
		return
	}
	ctx, err := avc.ParseContextFromSeqHeader(tag.Data)
	if err != nil {
		return
	}
	r.video.stats.Profile = ctx.Profile
	r.video.stats.Level = ctx.Level
	r.video.stats.Width = int(ctx.Width)
	r.video.stats.Height = int(ctx.Height)
}

func (r *StatsRule) onAudioHeader(tag *flv.Tag) {
	if len(tag.Data) < 1 {
		return
	}
	r.audio.stats.CodecId = int(tag.Data[0] >> 4)
	ascCtx, err := aac.NewAscContextFromSeqHeader(tag.Data)
	if err != nil {
		r.audio.stats.CodecName = aac.SoundFormatName(tag.Data[0] >> 4)
		return
	}
	r.audio.stats.CodecName = ascCtx.ObjectTypeName()
	if sf, err := ascCtx.GetSamplingFrequency(); err == nil {
		r.audio.stats.SampleRate = sf
	}
	r.audio.stats.Channels = int(ascCtx.ChannelConfiguration)
}

func (m *mediaStats) init() {
	m.stats.FrameDurations = make(map[int64]int64)
	m.br = bitrate.New(func(option *bitrate.Option) {
		option.WindowMs = peakBitrateWindowMs
	})
}

func (m *mediaStats) onData(tag *flv.Tag) {
	m.stats.TagCount++
	m.stats.ByteCount += int64(len(tag.Data))

	if !m.hasLast {
		m.hasLast = true
		m.stats.FirstTimestamp = tag.Timestamp
	} else {
		m.stats.FrameDurations[tag.Timestamp-m.lastTs]++
	}
	m.lastTs = tag.Timestamp
	m.stats.LastTimestamp = tag.Timestamp

	m.br.Add(len(tag.Data), tag.Timestamp)
	if rate := float64(m.br.Rate(tag.Timestamp)); rate > m.stats.PeakBitrate {
		m.stats.PeakBitrate = rate
	}
}

func (m *mediaStats) snapshot() FlvStats {
	s := m.stats
	s.FrameDurations = make(map[int64]int64, len(m.stats.FrameDurations))
	for k, v := range m.stats.FrameDurations {
		s.FrameDurations[k] = v
	}
	s.DurationMs = s.LastTimestamp - s.FirstTimestamp
	if s.DurationMs > 0 {
		s.Bitrate = float64(s.ByteCount*8) / float64(s.DurationMs)
		if s.TagCount > 1 {
			s.FramesPerSecond = float64(s.TagCount-1) * 1000 / float64(s.DurationMs)
		}
	}
	return s
}

func videoCodecName(codecId uint8) string {
	switch codecId {
	case 2:
		return "H.263"
	case 3:
		return "Screen video"
	case 4:
		return "VP6"
	case flv.CodecIdAvc:
		return "AVC"
	case flv.CodecIdHevc:
		return "HEVC"
	}
	return "unknown"
}
