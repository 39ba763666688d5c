// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package pipeline

import (
	"github.com/q191201771/flvfix/pkg/amf0"
	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/flvfix/pkg/flv"
)

const ruleNameHandleNewScript = "HandleNewScriptRule"

// 由写入方重新生成，输入中的值已经不可信
var staleMetadataKeys = []string{
	amf0.MetadataKeyKeyframes,
	amf0.MetadataKeyFilesize,
	amf0.MetadataKeyLastTimestamp,
	amf0.MetadataKeyLastKeyframeTimestamp,
	amf0.MetadataKeyLastKeyframeLocation,
}

// HandleNewScriptRule
//
// - 整理script tag的metadata，无法解析时替换为新的 onMetaData
// - 第二个script tag之前切分文件
// - 在没有script tag的情况下收到数据时，补一个script tag
type HandleNewScriptRule struct{}

func NewHandleNewScriptRule() *HandleNewScriptRule {
	return &HandleNewScriptRule{}
}

func (r *HandleNewScriptRule) Run(ctx *Context) {
	for i := 0; i < len(ctx.Actions); i++ {
		switch a := ctx.Actions[i].(type) {
		case *ScriptAction:
			if a.Tag.ScriptData == nil || a.Tag.ScriptData.GetMetadataValue() == nil {
				ctx.AddComment(Comment{
					Type:    CommentTypeOther,
					Message: "script tag is not a valid onMetaData, replaced with an empty one",
					Context: ruleNameHandleNewScript,
				})
				a.Tag.ScriptData = amf0.NewOnMetaData()
			}
			SanitizeMetadata(a.Tag.ScriptData.GetMetadataValue())

			if ctx.Session.Script.Seen {
				ctx.AddComment(Comment{
					Type:    CommentTypeLogging,
					Message: "new script tag received, start a new file",
					Context: ruleNameHandleNewScript,
				})
				ctx.InsertAction(i, &NewFileAction{})
				i++
			}
			ctx.Session.Script.Seen = true

		case *DataAction, *EndAction:
			if ctx.Session.Script.Seen {
				continue
			}
			ctx.AddComment(Comment{
				Type:    CommentTypeOther,
				Message: "no script tag before data, inserted an empty one",
				Context: ruleNameHandleNewScript,
			})
			tag := flv.NewScriptTag(nil)
			SanitizeMetadata(tag.ScriptData.GetMetadataValue())
			ctx.InsertAction(i, &ScriptAction{Tag: tag})
			i++
			ctx.Session.Script.Seen = true
		}
	}
}

// SanitizeMetadata 删除写入方需要重新生成的字段，并将duration置0
func SanitizeMetadata(meta *amf0.Object) {
	for _, k := range staleMetadataKeys {
		meta.Delete(k)
	}
	meta.Set(amf0.MetadataKeyDuration, float64(0))
	meta.Set(amf0.MetadataKeyMetadataCreator, base.FlvfixMetadataCreator)
}
