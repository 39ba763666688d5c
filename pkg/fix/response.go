// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package fix

import (
	"context"
	"errors"

	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/flvfix/pkg/pipeline"
)

type Status string

const (
	StatusOk                Status = "ok"
	StatusCancelled         Status = "cancelled"
	StatusNotFlvFile        Status = "not_flv_file"
	StatusUnknownFlvTagType Status = "unknown_flv_tag_type"
	StatusInputIoError      Status = "input_io_error"
	StatusOutputIoError     Status = "output_io_error"
	StatusError             Status = "error"
)

func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOk
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	case errors.Is(err, base.ErrNotFlvFile):
		return StatusNotFlvFile
	case errors.Is(err, base.ErrUnknownTagType):
		return StatusUnknownFlvTagType
	case errors.Is(err, base.ErrInputIo):
		return StatusInputIoError
	case errors.Is(err, base.ErrOutputIo):
		return StatusOutputIoError
	}
	return StatusError
}

// IssueTypeCount 各类问题的次数，不包括 pipeline.CommentTypeLogging
type IssueTypeCount struct {
	Other           int `json:"other"`
	Unrepairable    int `json:"unrepairable"`
	TimestampJump   int `json:"timestamp_jump"`
	TimestampOffset int `json:"timestamp_offset"`
	DecodingHeader  int `json:"decoding_header"`
	RepeatingData   int `json:"repeating_data"`
}

func (c *IssueTypeCount) add(comment pipeline.Comment) {
	switch comment.Type {
	case pipeline.CommentTypeOther:
		c.Other += comment.Count
	case pipeline.CommentTypeUnrepairable:
		c.Unrepairable += comment.Count
	case pipeline.CommentTypeTimestampJump:
		c.TimestampJump += comment.Count
	case pipeline.CommentTypeTimestampOffset:
		c.TimestampOffset += comment.Count
	case pipeline.CommentTypeDecodingHeader:
		c.DecodingHeader += comment.Count
	case pipeline.CommentTypeRepeatingData:
		c.RepeatingData += comment.Count
	}
}

func (c IssueTypeCount) Total() int {
	return c.Other + c.Unrepairable + c.TimestampJump + c.TimestampOffset + c.DecodingHeader + c.RepeatingData
}

type OutputFile struct {
	Path     string  `json:"path,omitempty"`
	Size     int64   `json:"size"`
	Duration float64 `json:"duration"`
}

type Response struct {
	TaskKey   string `json:"task_key"`
	InputPath string `json:"input_path"`
	InputSize int64  `json:"input_size"`
	Analyze   bool   `json:"analyze"`

	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`

	OutputPaths     []string     `json:"output_paths,omitempty"`
	OutputFiles     []OutputFile `json:"output_files,omitempty"`
	OutputFileCount int          `json:"output_file_count"`

	// NeedFix 输出文件个数不为1，或者有需要计数的问题
	NeedFix      bool `json:"need_fix"`
	Unrepairable bool `json:"unrepairable"`

	IssueTypes IssueTypeCount    `json:"issue_types"`
	VideoStats pipeline.FlvStats `json:"video_stats"`
	AudioStats pipeline.FlvStats `json:"audio_stats"`

	GroupCount int   `json:"group_count"`
	ElapsedMs  int64 `json:"elapsed_ms"`
}
