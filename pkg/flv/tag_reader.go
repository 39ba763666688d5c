// Copyright 2019, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package flv

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/q191201771/flvfix/pkg/amf0"
	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
)

type TagReaderOption struct {
	// BufferProvider tag body的内存块来源
	BufferProvider BufferProvider

	// ReadBufSize bufio的大小，为0时不使用bufio
	ReadBufSize int
}

var defaultTagReaderOption = TagReaderOption{
	BufferProvider: nil, // 为nil时使用 DefaultBufferProvider
	ReadBufSize:    base.FlvReadBufSize,
}

type ModTagReaderOption func(option *TagReaderOption)

// TagReader 从字节流中逐个读取tag
//
// 文件头不合法时返回 base.ErrNotFlvFile ，tag类型不合法时返回 base.ErrUnknownTagType 。
// 文件末尾被截断的tag会被丢弃，并返回io.EOF。
type TagReader struct {
	option TagReaderOption
	rd     io.Reader

	headerRead bool
	offset     int64 // 已经消费的字节数

	peekTag *Tag
	peekErr error

	tagHeader []byte
	prevSize  []byte
}

func NewTagReader(rd io.Reader, modOptions ...ModTagReaderOption) *TagReader {
	option := defaultTagReaderOption
	for _, fn := range modOptions {
		fn(&option)
	}
	if option.BufferProvider == nil {
		option.BufferProvider = DefaultBufferProvider()
	}
	if option.ReadBufSize > 0 {
		rd = bufio.NewReaderSize(rd, option.ReadBufSize)
	}

	return &TagReader{
		option:    option,
		rd:        rd,
		tagHeader: make([]byte, TagHeaderSize),
		prevSize:  make([]byte, PrevTagSizeFieldSize),
	}
}

// PeekTag 返回下一个tag但不消费，连续调用返回同一个tag
func (r *TagReader) PeekTag(ctx context.Context) (*Tag, error) {
	if r.peekTag != nil || r.peekErr != nil {
		return r.peekTag, r.peekErr
	}
	r.peekTag, r.peekErr = r.readTag(ctx)
	return r.peekTag, r.peekErr
}

func (r *TagReader) ReadTag(ctx context.Context) (*Tag, error) {
	if r.peekTag != nil || r.peekErr != nil {
		tag, err := r.peekTag, r.peekErr
		r.peekTag = nil
		// 错误是粘滞的，后续的调用都返回同一个错误
		if err == nil {
			r.peekErr = nil
		}
		return tag, err
	}
	tag, err := r.readTag(ctx)
	if err != nil {
		r.peekErr = err
	}
	return tag, err
}

// Offset 已经从输入中消费的字节数
func (r *TagReader) Offset() int64 {
	return r.offset
}

func (r *TagReader) readTag(ctx context.Context) (*Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !r.headerRead {
		if err := r.readFlvHeader(); err != nil {
			return nil, err
		}
		r.headerRead = true
	}

	n, err := io.ReadFull(r.rd, r.tagHeader)
	r.offset += int64(n)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			base.Log.Warnf("tag header truncated at end of input, ignored. offset=%d, got=%d", r.offset-int64(n), n)
			return nil, io.EOF
		}
		return nil, base.NewErrInputIo(err)
	}

	t := TagType(r.tagHeader[0] & 0x1F) // 高3位为保留位和filter位
	if !t.IsValid() {
		return nil, base.NewErrUnknownTagType(r.tagHeader[0], r.offset-int64(n))
	}
	dataSize := int(bele.BeUint24(r.tagHeader[1:]))
	timestamp := int64((uint32(r.tagHeader[7]) << 24) + bele.BeUint24(r.tagHeader[4:]))

	data := r.option.BufferProvider.Get(dataSize)
	n, err = io.ReadFull(r.rd, data)
	r.offset += int64(n)
	if err != nil {
		r.option.BufferProvider.Put(data)
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			base.Log.Warnf("tag body truncated at end of input, ignored. type=%s, ts=%d, size=%d, got=%d",
				t, timestamp, dataSize, n)
			return nil, io.EOF
		}
		return nil, base.NewErrInputIo(err)
	}

	tag := &Tag{
		Type:      t,
		Flag:      ClassifyTagFlag(t, data),
		Timestamp: timestamp,
		Data:      data,
		provider:  r.option.BufferProvider,
	}

	// 最后一个tag的prev tag size缺失时，tag依然有效
	n, err = io.ReadFull(r.rd, r.prevSize)
	r.offset += int64(n)
	if err == nil {
		if prev := bele.BeUint32(r.prevSize); prev != uint32(TagHeaderSize+dataSize) {
			base.Log.Debugf("prev tag size mismatch. expected=%d, actual=%d, tag=%s", TagHeaderSize+dataSize, prev, tag.String())
		}
	} else if err != io.EOF && !errors.Is(err, io.ErrUnexpectedEOF) {
		tag.Release()
		return nil, base.NewErrInputIo(err)
	}

	if t == TagTypeScript {
		sd, err := amf0.ParseScriptTagBody(data)
		if err != nil {
			base.Log.Debugf("parse script tag failed. err=%+v, tag=%s", err, tag.DebugString())
		} else {
			tag.ScriptData = sd
		}
	}
	return tag, nil
}

func (r *TagReader) readFlvHeader() error {
	header := make([]byte, 9)
	n, err := io.ReadFull(r.rd, header)
	r.offset += int64(n)
	if err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return base.ErrNotFlvFile
		}
		return base.NewErrInputIo(err)
	}
	if header[0] != 'F' || header[1] != 'L' || header[2] != 'V' || header[3] != 1 {
		return base.ErrNotFlvFile
	}

	// data offset之后是 PreviousTagSize0
	dataOffset := int64(bele.BeUint32(header[5:]))
	if dataOffset < 9 {
		return base.ErrNotFlvFile
	}
	skip := dataOffset - 9 + PrevTagSizeFieldSize
	m, err := io.CopyN(io.Discard, r.rd, skip)
	r.offset += m
	if err != nil && err != io.EOF {
		return base.NewErrInputIo(err)
	}
	return nil
}
