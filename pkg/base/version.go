// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "strings"

// 版本，该变量由外部脚本修改维护
const FlvfixVersion = "v0.3.0"

var (
	FlvfixLibraryName = "flvfix"
	FlvfixGithubRepo  = "github.com/q191201771/flvfix"
	FlvfixGithubSite  = "https://github.com/q191201771/flvfix"

	// e.g. flvfix v0.3.0 (github.com/q191201771/flvfix)
	FlvfixFullInfo = FlvfixLibraryName + " " + FlvfixVersion + " (" + FlvfixGithubRepo + ")"

	// e.g. 0.3.0
	FlvfixVersionDot string

	// 写入输出文件metadata中的 metadatacreator 字段
	// e.g. flvfix0.3.0
	FlvfixMetadataCreator string
)

func init() {
	FlvfixVersionDot = strings.TrimPrefix(FlvfixVersion, "v")
	FlvfixMetadataCreator = FlvfixLibraryName + FlvfixVersionDot
}
