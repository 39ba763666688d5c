// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"fmt"

	"github.com/q191201771/naza/pkg/nazalog"
)

// LogDump 限制debug级别下大量重复日志的打印次数，比如每个tag group的修复comment
type LogDump struct {
	log         nazalog.Logger
	debugMaxNum int

	debugCount int
	skipped    int
}

// NewLogDump
//
// @param debugMaxNum: 日志最小级别为debug时，使用debug打印日志次数的阈值
func NewLogDump(log nazalog.Logger, debugMaxNum int) LogDump {
	return LogDump{
		log:         log,
		debugMaxNum: debugMaxNum,
	}
}

func (ld *LogDump) ShouldDump() bool {
	switch ld.log.GetOption().Level {
	case nazalog.LevelTrace:
		return true
	case nazalog.LevelDebug:
		if ld.debugCount >= ld.debugMaxNum {
			ld.skipped++
			return false
		}
		ld.debugCount++
		return true
	}
	return false
}

// Skipped 因超过阈值而没有打印的次数
func (ld *LogDump) Skipped() int {
	return ld.skipped
}

// Outf
//
// 调用之前需调用 ShouldDump ，避免不需要打印时构造实参的开销
func (ld *LogDump) Outf(format string, v ...interface{}) {
	ld.log.Out(ld.log.GetOption().Level, 3, fmt.Sprintf(format, v...))
}
