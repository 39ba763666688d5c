// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pipeline

// HandleEndTagRule end tag之后的数据写入新文件
type HandleEndTagRule struct{}

func NewHandleEndTagRule() *HandleEndTagRule {
	return &HandleEndTagRule{}
}

func (r *HandleEndTagRule) Run(ctx *Context) {
	for i := 0; i < len(ctx.Actions); i++ {
		if _, ok := ctx.Actions[i].(*EndAction); ok {
			ctx.InsertAction(i+1, &NewFileAction{})
			i++
		}
	}
}
