// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/unique"

const (
	UkPreFixTask       = "FIXTASK"
	UkPreContextWriter = "CTXWRITER"
	UkPrePipeline      = "PIPELINE"
)

func GenUkFixTask() string {
	return siUkFixTask.GenUniqueKey()
}

func GenUkContextWriter() string {
	return siUkContextWriter.GenUniqueKey()
}

func GenUkPipeline() string {
	return siUkPipeline.GenUniqueKey()
}

var (
	siUkFixTask       *unique.SingleGenerator
	siUkContextWriter *unique.SingleGenerator
	siUkPipeline      *unique.SingleGenerator
)

func init() {
	siUkFixTask = unique.NewSingleGenerator(UkPreFixTask)
	siUkContextWriter = unique.NewSingleGenerator(UkPreContextWriter)
	siUkPipeline = unique.NewSingleGenerator(UkPrePipeline)
}
