// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package fix

import (
	"encoding/json"
	"os"

	"github.com/q191201771/flvfix/pkg/amf0"
	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/naza/pkg/nazajson"
	"github.com/q191201771/naza/pkg/nazalog"
)

type Config struct {
	Log         nazalog.Option `json:"log"`
	Group       GroupConfig    `json:"group"`
	Repair      RepairConfig   `json:"repair"`
	Output      OutputConfig   `json:"output"`
	Report      ReportConfig   `json:"report"`
	ReadBufSize int            `json:"read_buf_size"`
}

type GroupConfig struct {
	MaxTags     int   `json:"max_tags"`
	MaxTagGapMs int64 `json:"max_tag_gap_ms"`
}

type RepairConfig struct {
	TimestampJumpThresholdMs int64 `json:"timestamp_jump_threshold_ms"`
	FallbackFrameDurationMs  int64 `json:"fallback_frame_duration_ms"`
	RemoveFillerData         bool  `json:"remove_filler_data"`
	RepeatingDataWindow      int   `json:"repeating_data_window"`
}

type OutputConfig struct {
	// Dir 为空时输出文件和输入文件在同一个目录
	Dir                string `json:"dir"`
	AllowMissingHeader bool   `json:"allow_missing_header"`
	DisableKeyframes   bool   `json:"disable_keyframes"`
	KeyframesCapacity  int    `json:"keyframes_capacity"`
}

type ReportConfig struct {
	// DebugDumpMaxNum 日志级别为debug时，最多打印多少次comment
	DebugDumpMaxNum int `json:"debug_dump_max_num"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: nazalog.Option{
			Level:         nazalog.LevelInfo,
			IsToStdout:    true,
			ShortFileFlag: true,
		},
		Group: GroupConfig{
			MaxTags:     1000,
			MaxTagGapMs: 1000,
		},
		Repair: RepairConfig{
			TimestampJumpThresholdMs: 1000,
			FallbackFrameDurationMs:  33,
			RemoveFillerData:         true,
			RepeatingDataWindow:      32,
		},
		Output: OutputConfig{
			KeyframesCapacity: amf0.DefaultKeyframesCapacity,
		},
		Report: ReportConfig{
			DebugDumpMaxNum: base.FixDebugDumpMaxNum,
		},
		ReadBufSize: base.FlvReadBufSize,
	}
}

// LoadConf 配置文件中没有出现的字段使用 DefaultConfig 中的值
func LoadConf(confFile string) (*Config, error) {
	rawContent, err := os.ReadFile(confFile)
	if err != nil {
		return nil, err
	}
	return ParseConf(rawContent)
}

func ParseConf(rawContent []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(rawContent, &config); err != nil {
		return nil, err
	}

	j, err := nazajson.New(rawContent)
	if err != nil {
		return nil, err
	}
	d := DefaultConfig()
	if !j.Exist("log.level") {
		config.Log.Level = d.Log.Level
	}
	if !j.Exist("log.is_to_stdout") {
		config.Log.IsToStdout = d.Log.IsToStdout
	}
	if !j.Exist("log.short_file_flag") {
		config.Log.ShortFileFlag = d.Log.ShortFileFlag
	}
	if !j.Exist("group.max_tags") {
		config.Group.MaxTags = d.Group.MaxTags
	}
	if !j.Exist("group.max_tag_gap_ms") {
		config.Group.MaxTagGapMs = d.Group.MaxTagGapMs
	}
	if !j.Exist("repair.timestamp_jump_threshold_ms") {
		config.Repair.TimestampJumpThresholdMs = d.Repair.TimestampJumpThresholdMs
	}
	if !j.Exist("repair.fallback_frame_duration_ms") {
		config.Repair.FallbackFrameDurationMs = d.Repair.FallbackFrameDurationMs
	}
	if !j.Exist("repair.remove_filler_data") {
		config.Repair.RemoveFillerData = d.Repair.RemoveFillerData
	}
	if !j.Exist("repair.repeating_data_window") {
		config.Repair.RepeatingDataWindow = d.Repair.RepeatingDataWindow
	}
	if !j.Exist("output.keyframes_capacity") {
		config.Output.KeyframesCapacity = d.Output.KeyframesCapacity
	}
	if !j.Exist("report.debug_dump_max_num") {
		config.Report.DebugDumpMaxNum = d.Report.DebugDumpMaxNum
	}
	if !j.Exist("read_buf_size") {
		config.ReadBufSize = d.ReadBufSize
	}
	return &config, nil
}
