// Copyright 2019, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package amf0

import (
	"fmt"
	"strings"
)

type ObjectPair struct {
	Key   string
	Value interface{}
}

type ObjectPairArray []ObjectPair

func (opa ObjectPairArray) Find(key string) (interface{}, bool) {
	for i := range opa {
		if opa[i].Key == key {
			return opa[i].Value, true
		}
	}
	return nil, false
}

func (opa ObjectPairArray) DebugString() string {
	var sb strings.Builder
	for i := range opa {
		sb.WriteString(fmt.Sprintf("%s: %+v\n", opa[i].Key, opa[i].Value))
	}
	return sb.String()
}

// Object amf0的object或者ecma array，按写入顺序保存
type Object struct {
	Pairs       ObjectPairArray
	IsEcmaArray bool
}

func NewEcmaArray() *Object {
	return &Object{IsEcmaArray: true}
}

func (o *Object) Get(key string) interface{} {
	v, _ := o.Pairs.Find(key)
	return v
}

func (o *Object) Has(key string) bool {
	_, ok := o.Pairs.Find(key)
	return ok
}

// GetNumber key不存在或者类型不是number时，ok为false
func (o *Object) GetNumber(key string) (v float64, ok bool) {
	v, ok = o.Get(key).(float64)
	return
}

func (o *Object) GetString(key string) (v string, ok bool) {
	v, ok = o.Get(key).(string)
	return
}

// Set key已存在时原位置替换，否则追加到末尾
func (o *Object) Set(key string, value interface{}) {
	for i := range o.Pairs {
		if o.Pairs[i].Key == key {
			o.Pairs[i].Value = value
			return
		}
	}
	o.Pairs = append(o.Pairs, ObjectPair{Key: key, Value: value})
}

// Delete 返回key是否存在
func (o *Object) Delete(key string) bool {
	for i := range o.Pairs {
		if o.Pairs[i].Key == key {
			o.Pairs = append(o.Pairs[:i], o.Pairs[i+1:]...)
			return true
		}
	}
	return false
}

func (o *Object) Len() int {
	return len(o.Pairs)
}

// Undefined amf0 undefined类型
type Undefined struct{}

type Date struct {
	UnixMilli float64
	TimeZone  int16
}
