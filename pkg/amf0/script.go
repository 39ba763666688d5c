// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package amf0

import (
	"bytes"

	"github.com/q191201771/flvfix/pkg/base"
)

const (
	MetadataName     = "onMetaData"
	SetDataFrameName = "@setDataFrame"
)

// onMetaData 中会被使用的字段
const (
	MetadataKeyDuration              = "duration"
	MetadataKeyKeyframes             = "keyframes"
	MetadataKeyFilesize              = "filesize"
	MetadataKeyLastTimestamp         = "lasttimestamp"
	MetadataKeyLastKeyframeTimestamp = "lastkeyframetimestamp"
	MetadataKeyLastKeyframeLocation  = "lastkeyframelocation"
	MetadataKeyMetadataCreator       = "metadatacreator"
	MetadataKeyWidth                 = "width"
	MetadataKeyHeight                = "height"
	MetadataKeyVideoCodecId          = "videocodecid"
	MetadataKeyAudioCodecId          = "audiocodecid"
	MetadataKeyFramerate             = "framerate"
)

// ScriptTagBody script tag的payload，由一串amf0值组成，通常为 "onMetaData" + ecma array
type ScriptTagBody struct {
	Values []interface{}
}

// NewOnMetaData 构造只包含 duration 字段的 onMetaData
func NewOnMetaData() *ScriptTagBody {
	obj := NewEcmaArray()
	obj.Set(MetadataKeyDuration, float64(0))
	return &ScriptTagBody{
		Values: []interface{}{MetadataName, obj},
	}
}

// ParseScriptTagBody 解析script tag的payload
//
// 开头的 @setDataFrame 会被去掉
func ParseScriptTagBody(b []byte) (*ScriptTagBody, error) {
	body := &ScriptTagBody{}
	pos := 0
	for pos < len(b) {
		v, l, err := ReadValue(b[pos:])
		if err != nil {
			return nil, err
		}
		pos += l
		if len(body.Values) == 0 {
			if s, ok := v.(string); ok && s == SetDataFrameName {
				continue
			}
		}
		body.Values = append(body.Values, v)
	}
	if len(body.Values) == 0 {
		return nil, base.ErrAmfTooShort
	}
	return body, nil
}

// GetMetadataValue 不是 onMetaData 时返回nil
func (s *ScriptTagBody) GetMetadataValue() *Object {
	if len(s.Values) < 2 {
		return nil
	}
	name, ok := s.Values[0].(string)
	if !ok || name != MetadataName {
		return nil
	}
	obj, _ := s.Values[1].(*Object)
	return obj
}

func (s *ScriptTagBody) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range s.Values {
		if err := WriteValue(&buf, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Clone 深拷贝object和数组，keyframes 会被复制为同capacity的新对象
func (s *ScriptTagBody) Clone() *ScriptTagBody {
	ret := &ScriptTagBody{Values: make([]interface{}, len(s.Values))}
	for i, v := range s.Values {
		ret.Values[i] = cloneValue(v)
	}
	return ret
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case *Object:
		o := &Object{IsEcmaArray: val.IsEcmaArray, Pairs: make(ObjectPairArray, len(val.Pairs))}
		for i := range val.Pairs {
			o.Pairs[i] = ObjectPair{Key: val.Pairs[i].Key, Value: cloneValue(val.Pairs[i].Value)}
		}
		return o
	case []interface{}:
		arr := make([]interface{}, len(val))
		for i := range val {
			arr[i] = cloneValue(val[i])
		}
		return arr
	case *Keyframes:
		k := NewKeyframes(val.capacity)
		k.times = append(k.times, val.times...)
		k.filepositions = append(k.filepositions, val.filepositions...)
		return k
	}
	return v
}
