// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

// ----- flv --------------------
var (
	// FlvReadBufSize 读取输入文件时bufio的大小
	FlvReadBufSize = 65536

	// FlvProgressReportGroupInterval 每处理多少个group回调一次进度
	FlvProgressReportGroupInterval = 10
)

// ----- fix --------------------
var (
	// FixDebugDumpMaxNum 日志级别为debug时，最多打印多少次修复逻辑输出的comment
	FixDebugDumpMaxNum = 128
)
