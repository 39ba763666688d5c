// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
	"fmt"
)

// ----- 通用的 ---------------------------------------------------------------------------------------------------------

var (
	ErrShortBuffer = errors.New("flvfix: buffer too short")
)

// ----- pkg/aac -------------------------------------------------------------------------------------------------------

var ErrAac = errors.New("flvfix.aac: invalid audio specific config")

// ----- pkg/avc -------------------------------------------------------------------------------------------------------

var ErrAvc = errors.New("flvfix.avc: invalid avc data")

// ----- pkg/amf0 ------------------------------------------------------------------------------------------------------

var (
	ErrAmfInvalidType = errors.New("flvfix.amf0: invalid amf0 type")
	ErrAmfTooShort    = errors.New("flvfix.amf0: too short to unmarshal amf0 data")
	ErrAmfNotMetadata = errors.New("flvfix.amf0: script tag body is not onMetaData")
)

func NewErrAmfInvalidType(b byte) error {
	return fmt.Errorf("%w. b=%d", ErrAmfInvalidType, b)
}

// ----- pkg/flv -------------------------------------------------------------------------------------------------------

var (
	// ErrNotFlvFile 输入不是flv容器
	ErrNotFlvFile = errors.New("flvfix.flv: not a flv file")

	// ErrUnknownTagType tag类型不是 audio、video、script 中的一种
	ErrUnknownTagType = errors.New("flvfix.flv: unknown flv tag type")

	ErrFileAlreadyOpen     = errors.New("flvfix.flv: output file already open")
	ErrFileNotOpen         = errors.New("flvfix.flv: no output file open")
	ErrNoScriptTagWritten  = errors.New("flvfix.flv: no script tag written to current file")
	ErrMetadataSizeChanged = errors.New("flvfix.flv: metadata size changed, can not overwrite in place")
	ErrOutputIo            = errors.New("flvfix.flv: output io error")
)

func NewErrUnknownTagType(t uint8, offset int64) error {
	return fmt.Errorf("%w. type=%d, offset=%d", ErrUnknownTagType, t, offset)
}

func NewErrOutputIo(err error) error {
	return fmt.Errorf("%w. err=%v", ErrOutputIo, err)
}

// ----- pkg/xmlflv ----------------------------------------------------------------------------------------------------

var (
	// ErrXmlInvalidTag xml tag列表中的tag无法还原为flv tag
	ErrXmlInvalidTag = errors.New("flvfix.xmlflv: invalid xml tag")
)

// ----- pkg/writer ----------------------------------------------------------------------------------------------------

var (
	ErrWriterInvalidState = errors.New("flvfix.writer: writer is in an invalid state")
	ErrNoScriptTag        = errors.New("flvfix.writer: no script tag available")
	ErrNoScriptData       = errors.New("flvfix.writer: script tag has no script data")
	ErrNoVideoHeader      = errors.New("flvfix.writer: no video header tag available")
	ErrNoAudioHeader      = errors.New("flvfix.writer: no audio header tag available")
	ErrUnknownAction      = errors.New("flvfix.writer: unknown pipeline action")
	ErrWriterDisposed     = errors.New("flvfix.writer: writer already disposed")
)

func NewErrUnknownAction(action interface{}) error {
	return fmt.Errorf("%w. action=%T", ErrUnknownAction, action)
}

// ----- pkg/fix -------------------------------------------------------------------------------------------------------

var (
	ErrInputIo = errors.New("flvfix.fix: input io error")
)

func NewErrInputIo(err error) error {
	return fmt.Errorf("%w. err=%v", ErrInputIo, err)
}

// ---------------------------------------------------------------------------------------------------------------------
