// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package report 输出修复结果，包括文本、json、sqlite历史记录以及prometheus指标
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/q191201771/flvfix/pkg/fix"
	"github.com/q191201771/flvfix/pkg/pipeline"
)

// Print 人类可读的格式
func Print(w io.Writer, resp *fix.Response) error {
	var sb strings.Builder
	mode := "fix"
	if resp.Analyze {
		mode = "analyze"
	}
	fmt.Fprintf(&sb, "%s %s: %s", mode, resp.InputPath, resp.Status)
	if resp.Error != "" {
		fmt.Fprintf(&sb, " (%s)", resp.Error)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  need fix: %v, unrepairable: %v, groups: %d, cost: %dms\n",
		resp.NeedFix, resp.Unrepairable, resp.GroupCount, resp.ElapsedMs)

	it := resp.IssueTypes
	fmt.Fprintf(&sb, "  issues: %d (other=%d, unrepairable=%d, timestamp_jump=%d, timestamp_offset=%d, decoding_header=%d, repeating_data=%d)\n",
		it.Total(), it.Other, it.Unrepairable, it.TimestampJump, it.TimestampOffset, it.DecodingHeader, it.RepeatingData)

	printStats(&sb, "video", resp.VideoStats)
	printStats(&sb, "audio", resp.AudioStats)

	fmt.Fprintf(&sb, "  output files: %d\n", resp.OutputFileCount)
	for _, f := range resp.OutputFiles {
		name := f.Path
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&sb, "    %s size=%d duration=%.3fs\n", name, f.Size, f.Duration)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func printStats(sb *strings.Builder, name string, s pipeline.FlvStats) {
	if s.TagCount == 0 {
		fmt.Fprintf(sb, "  %s: none\n", name)
		return
	}
	fmt.Fprintf(sb, "  %s: %s tags=%d bytes=%d duration=%dms bitrate=%.1fkbit/s peak=%.1fkbit/s",
		name, s.CodecName, s.TagCount, s.ByteCount, s.DurationMs, s.Bitrate, s.PeakBitrate)
	if s.Width > 0 {
		fmt.Fprintf(sb, " %dx%d", s.Width, s.Height)
	}
	if s.SampleRate > 0 {
		fmt.Fprintf(sb, " %dHz ch=%d", s.SampleRate, s.Channels)
	}
	if s.FramesPerSecond > 0 {
		fmt.Fprintf(sb, " fps=%.2f", s.FramesPerSecond)
	}
	sb.WriteString("\n")

	// 出现最多的几个帧间隔
	if len(s.FrameDurations) > 0 {
		type kv struct {
			d, n int64
		}
		var kvs []kv
		for d, n := range s.FrameDurations {
			kvs = append(kvs, kv{d, n})
		}
		sort.Slice(kvs, func(i, j int) bool {
			if kvs[i].n != kvs[j].n {
				return kvs[i].n > kvs[j].n
			}
			return kvs[i].d < kvs[j].d
		})
		if len(kvs) > 5 {
			kvs = kvs[:5]
		}
		sb.WriteString("    frame durations:")
		for _, item := range kvs {
			fmt.Fprintf(sb, " %dms*%d", item.d, item.n)
		}
		sb.WriteString("\n")
	}
}

func WriteJson(w io.Writer, resp *fix.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
