// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pipeline

// FlvStats 一种媒体类型的统计，未知的字段为0或者空字符串
type FlvStats struct {
	TagCount  int64 `json:"tag_count"`
	ByteCount int64 `json:"byte_count"`

	CodecId   int    `json:"codec_id"`
	CodecName string `json:"codec_name"`

	// video
	Profile uint8 `json:"profile,omitempty"`
	Level   uint8 `json:"level,omitempty"`
	Width   int   `json:"width,omitempty"`
	Height  int   `json:"height,omitempty"`

	KeyframeCount int64 `json:"keyframe_count,omitempty"`

	// audio
	SampleRate int `json:"sample_rate,omitempty"`
	Channels   int `json:"channels,omitempty"`

	FirstTimestamp int64 `json:"first_timestamp"`
	LastTimestamp  int64 `json:"last_timestamp"`
	DurationMs     int64 `json:"duration_ms"`

	// Bitrate 平均码率，单位kbit/s
	Bitrate float64 `json:"bitrate"`

	// PeakBitrate 1秒窗口内的最大码率，单位kbit/s，按tag时间戳计算
	PeakBitrate float64 `json:"peak_bitrate"`

	FramesPerSecond float64 `json:"frames_per_second"`

	// FrameDurations 相邻两帧时间戳差值的分布，key为差值（毫秒），value为次数
	FrameDurations map[int64]int64 `json:"frame_durations,omitempty"`
}
