// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package amf0

import (
	"bytes"
	"io"
	"math"

	"github.com/q191201771/naza/pkg/bele"
)

// DefaultKeyframesCapacity 按2秒一个关键帧估算，约3.5小时
const DefaultKeyframesCapacity = 6300

const (
	KeyframesKeyTimes         = "times"
	KeyframesKeyFilepositions = "filepositions"
	KeyframesKeySpacer        = "spacer"
)

// Keyframes metadata中的关键帧索引
//
// 编码为object:
//   times:         strict array，单位秒
//   filepositions: strict array，单位字节
//   spacer:        strict array，元素个数为 2 * (capacity - count)，值全为0
//
// 三个数组的number总数恒为 2 * capacity，所以同一个capacity下编码后的大小不随关键帧数量变化，
// 这保证了已经写入文件的script tag可以原地覆盖。
// 达到capacity后 AddData 不再追加。
type Keyframes struct {
	capacity      int
	times         []float64
	filepositions []float64
}

func NewKeyframes(capacity int) *Keyframes {
	if capacity < 0 {
		capacity = 0
	}
	return &Keyframes{
		capacity:      capacity,
		times:         make([]float64, 0, capacity),
		filepositions: make([]float64, 0, capacity),
	}
}

// AddData
//
// @param timeMs:       关键帧时间戳，单位毫秒
// @param filePosition: 关键帧所在tag在文件中的偏移
//
// @return 已满时返回false
func (k *Keyframes) AddData(timeMs int64, filePosition int64) bool {
	if len(k.times) >= k.capacity {
		return false
	}
	k.times = append(k.times, float64(timeMs)/1000)
	k.filepositions = append(k.filepositions, float64(filePosition))
	return true
}

func (k *Keyframes) Count() int {
	return len(k.times)
}

func (k *Keyframes) Capacity() int {
	return k.capacity
}

func (k *Keyframes) IsFull() bool {
	return len(k.times) >= k.capacity
}

func (k *Keyframes) Times() []float64 {
	return k.times
}

func (k *Keyframes) FilePositions() []float64 {
	return k.filepositions
}

// EncodedSize 编码后的字节数，只和capacity有关
func (k *Keyframes) EncodedSize() int {
	var buf bytes.Buffer
	_ = k.write(&buf)
	return buf.Len()
}

func (k *Keyframes) write(writer io.Writer) error {
	if _, err := writer.Write([]byte{TypeMarkerObject}); err != nil {
		return err
	}
	if err := writeStringWithoutType(writer, KeyframesKeyTimes); err != nil {
		return err
	}
	if err := writeNumberArray(writer, k.times, len(k.times)); err != nil {
		return err
	}
	if err := writeStringWithoutType(writer, KeyframesKeyFilepositions); err != nil {
		return err
	}
	if err := writeNumberArray(writer, k.filepositions, len(k.filepositions)); err != nil {
		return err
	}
	if err := writeStringWithoutType(writer, KeyframesKeySpacer); err != nil {
		return err
	}
	if err := writeNumberArray(writer, nil, 2*(k.capacity-len(k.times))); err != nil {
		return err
	}
	_, err := writer.Write(TypeMarkerObjectEndBytes)
	return err
}

// writeNumberArray 写入count个number，`values`不足的部分补0
func writeNumberArray(writer io.Writer, values []float64, count int) error {
	b := make([]byte, 5+9*count)
	b[0] = TypeMarkerStrictArray
	bele.BePutUint32(b[1:], uint32(count))
	pos := 5
	for i := 0; i < count; i++ {
		var v float64
		if i < len(values) {
			v = values[i]
		}
		b[pos] = TypeMarkerNumber
		bele.BePutUint64(b[pos+1:], math.Float64bits(v))
		pos += 9
	}
	_, err := writer.Write(b)
	return err
}
