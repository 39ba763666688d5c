// Copyright 2019, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package amf0 提供amf0格式的编码与解码，object保持key的原始顺序
package amf0

import (
	"bytes"
	"io"
	"math"

	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
)

const (
	TypeMarkerNumber      = uint8(0x00)
	TypeMarkerBoolean     = uint8(0x01)
	TypeMarkerString      = uint8(0x02)
	TypeMarkerObject      = uint8(0x03)
	TypeMarkerMovieclip   = uint8(0x04)
	TypeMarkerNull        = uint8(0x05)
	TypeMarkerUndefined   = uint8(0x06)
	TypeMarkerReference   = uint8(0x07)
	TypeMarkerEcmaArray   = uint8(0x08)
	TypeMarkerObjectEnd   = uint8(0x09)
	TypeMarkerStrictArray = uint8(0x0a)
	TypeMarkerDate        = uint8(0x0b)
	TypeMarkerLongString  = uint8(0x0c)
)

var TypeMarkerObjectEndBytes = []byte{0, 0, TypeMarkerObjectEnd}

// 嵌套层数上限，避免恶意数据导致的栈溢出
const maxNestDepth = 32

// ----- write ---------------------------------------------------------------------------------------------------------

func WriteNumber(writer io.Writer, val float64) error {
	b := make([]byte, 9)
	b[0] = TypeMarkerNumber
	bele.BePutUint64(b[1:], math.Float64bits(val))
	_, err := writer.Write(b)
	return err
}

func WriteBoolean(writer io.Writer, val bool) error {
	b := []byte{TypeMarkerBoolean, 0}
	if val {
		b[1] = 1
	}
	_, err := writer.Write(b)
	return err
}

func WriteString(writer io.Writer, val string) error {
	if len(val) < 65536 {
		if _, err := writer.Write([]byte{TypeMarkerString}); err != nil {
			return err
		}
		if err := writeStringWithoutType(writer, val); err != nil {
			return err
		}
		return nil
	}

	b := make([]byte, 5)
	b[0] = TypeMarkerLongString
	bele.BePutUint32(b[1:], uint32(len(val)))
	if _, err := writer.Write(b); err != nil {
		return err
	}
	_, err := writer.Write([]byte(val))
	return err
}

func WriteNull(writer io.Writer) error {
	_, err := writer.Write([]byte{TypeMarkerNull})
	return err
}

func WriteUndefined(writer io.Writer) error {
	_, err := writer.Write([]byte{TypeMarkerUndefined})
	return err
}

func WriteDate(writer io.Writer, val Date) error {
	b := make([]byte, 11)
	b[0] = TypeMarkerDate
	bele.BePutUint64(b[1:], math.Float64bits(val.UnixMilli))
	bele.BePutUint16(b[9:], uint16(val.TimeZone))
	_, err := writer.Write(b)
	return err
}

// WriteObject 根据 obj.IsEcmaArray 决定写入object或者ecma array
func WriteObject(writer io.Writer, obj *Object) error {
	if obj.IsEcmaArray {
		b := make([]byte, 5)
		b[0] = TypeMarkerEcmaArray
		bele.BePutUint32(b[1:], uint32(len(obj.Pairs)))
		if _, err := writer.Write(b); err != nil {
			return err
		}
	} else {
		if _, err := writer.Write([]byte{TypeMarkerObject}); err != nil {
			return err
		}
	}
	if err := writePairs(writer, obj.Pairs); err != nil {
		return err
	}
	_, err := writer.Write(TypeMarkerObjectEndBytes)
	return err
}

func WriteStrictArray(writer io.Writer, arr []interface{}) error {
	b := make([]byte, 5)
	b[0] = TypeMarkerStrictArray
	bele.BePutUint32(b[1:], uint32(len(arr)))
	if _, err := writer.Write(b); err != nil {
		return err
	}
	for _, v := range arr {
		if err := WriteValue(writer, v); err != nil {
			return err
		}
	}
	return nil
}

// WriteValue 根据`v`的go类型选择amf0类型写入
//
// 整型统一写为number
func WriteValue(writer io.Writer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		return WriteNull(writer)
	case float64:
		return WriteNumber(writer, val)
	case float32:
		return WriteNumber(writer, float64(val))
	case int:
		return WriteNumber(writer, float64(val))
	case int64:
		return WriteNumber(writer, float64(val))
	case uint32:
		return WriteNumber(writer, float64(val))
	case bool:
		return WriteBoolean(writer, val)
	case string:
		return WriteString(writer, val)
	case *Object:
		return WriteObject(writer, val)
	case []interface{}:
		return WriteStrictArray(writer, val)
	case Undefined:
		return WriteUndefined(writer)
	case Date:
		return WriteDate(writer, val)
	case *Keyframes:
		return val.write(writer)
	}
	return base.ErrAmfInvalidType
}

// ----- read ----------------------------------------------------------------------------------------------------------

// read类型的函数集合
//
// 从输入参数`b`切片中读取函数名所指定的amf类型数据
// 注意，函数内部不会修改输入参数`b`切片的内容
//
// 返回值如无特殊说明，则
// 第1个参数为读取出的所指定类型的数据
// 第2个参数为读取时从`b`消耗的字节大小
// 第3个参数error，如果不等于nil，表示读取失败

func ReadStringWithoutType(b []byte) (string, int, error) {
	if len(b) < 2 {
		return "", 0, base.ErrAmfTooShort
	}
	l := int(bele.BeUint16(b))
	if l > len(b)-2 {
		return "", 0, base.ErrAmfTooShort
	}
	return string(b[2 : 2+l]), 2 + l, nil
}

func ReadLongStringWithoutType(b []byte) (string, int, error) {
	if len(b) < 4 {
		return "", 0, base.ErrAmfTooShort
	}
	l := int(bele.BeUint32(b))
	if l > len(b)-4 {
		return "", 0, base.ErrAmfTooShort
	}
	return string(b[4 : 4+l]), 4 + l, nil
}

func ReadString(b []byte) (val string, l int, err error) {
	if len(b) < 1 {
		return "", 0, base.ErrAmfTooShort
	}
	switch b[0] {
	case TypeMarkerString:
		val, l, err = ReadStringWithoutType(b[1:])
		l++
	case TypeMarkerLongString:
		val, l, err = ReadLongStringWithoutType(b[1:])
		l++
	default:
		err = base.NewErrAmfInvalidType(b[0])
	}
	return
}

func ReadNumber(b []byte) (float64, int, error) {
	if len(b) < 9 {
		return 0, 0, base.ErrAmfTooShort
	}
	if b[0] != TypeMarkerNumber {
		return 0, 0, base.NewErrAmfInvalidType(b[0])
	}
	return math.Float64frombits(bele.BeUint64(b[1:])), 9, nil
}

func ReadBoolean(b []byte) (bool, int, error) {
	if len(b) < 2 {
		return false, 0, base.ErrAmfTooShort
	}
	if b[0] != TypeMarkerBoolean {
		return false, 0, base.NewErrAmfInvalidType(b[0])
	}
	return b[1] != 0x0, 2, nil
}

func ReadNull(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, base.ErrAmfTooShort
	}
	if b[0] != TypeMarkerNull {
		return 0, base.NewErrAmfInvalidType(b[0])
	}
	return 1, nil
}

func ReadDate(b []byte) (Date, int, error) {
	if len(b) < 11 {
		return Date{}, 0, base.ErrAmfTooShort
	}
	if b[0] != TypeMarkerDate {
		return Date{}, 0, base.NewErrAmfInvalidType(b[0])
	}
	return Date{
		UnixMilli: math.Float64frombits(bele.BeUint64(b[1:])),
		TimeZone:  int16(bele.BeUint16(b[9:])),
	}, 11, nil
}

// ReadObject 读取object或者ecma array
func ReadObject(b []byte) (*Object, int, error) {
	return readObject(b, 0)
}

func ReadStrictArray(b []byte) ([]interface{}, int, error) {
	return readStrictArray(b, 0)
}

// ReadValue 读取任意amf0类型
//
// number -> float64, boolean -> bool, string -> string, object/ecma array -> *Object,
// strict array -> []interface{}, null -> nil, undefined -> Undefined, date -> Date
func ReadValue(b []byte) (interface{}, int, error) {
	return readValue(b, 0)
}

// ---------------------------------------------------------------------------------------------------------------------

func writeStringWithoutType(writer io.Writer, val string) error {
	b := make([]byte, 2+len(val))
	bele.BePutUint16(b, uint16(len(val)))
	copy(b[2:], val)
	_, err := writer.Write(b)
	return err
}

func writePairs(writer io.Writer, pairs ObjectPairArray) error {
	for i := range pairs {
		if err := writeStringWithoutType(writer, pairs[i].Key); err != nil {
			return err
		}
		if err := WriteValue(writer, pairs[i].Value); err != nil {
			return err
		}
	}
	return nil
}

func readValue(b []byte, depth int) (interface{}, int, error) {
	if len(b) < 1 {
		return nil, 0, base.ErrAmfTooShort
	}
	if depth > maxNestDepth {
		return nil, 0, base.NewErrAmfInvalidType(b[0])
	}
	switch b[0] {
	case TypeMarkerNumber:
		return ReadNumber(b)
	case TypeMarkerBoolean:
		return ReadBoolean(b)
	case TypeMarkerString, TypeMarkerLongString:
		return ReadString(b)
	case TypeMarkerObject, TypeMarkerEcmaArray:
		return readObject(b, depth)
	case TypeMarkerStrictArray:
		return readStrictArray(b, depth)
	case TypeMarkerNull:
		return nil, 1, nil
	case TypeMarkerUndefined:
		return Undefined{}, 1, nil
	case TypeMarkerDate:
		return ReadDate(b)
	}
	return nil, 0, base.NewErrAmfInvalidType(b[0])
}

func readObject(b []byte, depth int) (*Object, int, error) {
	if len(b) < 1 {
		return nil, 0, base.ErrAmfTooShort
	}

	obj := &Object{}
	index := 1
	switch b[0] {
	case TypeMarkerObject:
	case TypeMarkerEcmaArray:
		// ecma array的count字段并不可靠，以object end为准
		if len(b) < 5 {
			return nil, 0, base.ErrAmfTooShort
		}
		obj.IsEcmaArray = true
		index = 5
	default:
		return nil, 0, base.NewErrAmfInvalidType(b[0])
	}

	for {
		if len(b)-index >= 3 && bytes.Equal(b[index:index+3], TypeMarkerObjectEndBytes) {
			return obj, index + 3, nil
		}

		k, l, err := ReadStringWithoutType(b[index:])
		if err != nil {
			return nil, 0, err
		}
		index += l

		v, l, err := readValue(b[index:], depth+1)
		if err != nil {
			return nil, 0, err
		}
		index += l
		obj.Pairs = append(obj.Pairs, ObjectPair{Key: k, Value: v})
	}
}

func readStrictArray(b []byte, depth int) ([]interface{}, int, error) {
	if len(b) < 5 {
		return nil, 0, base.ErrAmfTooShort
	}
	if b[0] != TypeMarkerStrictArray {
		return nil, 0, base.NewErrAmfInvalidType(b[0])
	}
	count := int(bele.BeUint32(b[1:]))
	// 每个元素至少占用1字节
	if count > len(b)-5 {
		return nil, 0, base.ErrAmfTooShort
	}

	arr := make([]interface{}, 0, count)
	index := 5
	for i := 0; i < count; i++ {
		v, l, err := readValue(b[index:], depth+1)
		if err != nil {
			return nil, 0, err
		}
		index += l
		arr = append(arr, v)
	}
	return arr, index, nil
}
