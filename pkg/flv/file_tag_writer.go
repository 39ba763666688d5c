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
	"encoding/hex"
	"fmt"
	"io"

	"github.com/q191201771/flvfix/pkg/amf0"
	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

var fileWriteBufSize = 65536

// FileTagWriter 将tag写入 TargetProvider 提供的输出流
type FileTagWriter struct {
	provider TargetProvider

	stream OutputStream
	bw     *bufio.Writer
	state  interface{}

	fileSize int64

	hasScript        bool
	scriptOffset     int64
	scriptPayloadLen int

	altStream io.WriteCloser
	disposed  bool
}

func NewFileTagWriter(provider TargetProvider) *FileTagWriter {
	return &FileTagWriter{
		provider: provider,
	}
}

func (w *FileTagWriter) CreateNewFile() error {
	if w.disposed {
		return base.ErrWriterDisposed
	}
	if w.stream != nil {
		return base.ErrFileAlreadyOpen
	}

	stream, state, err := w.provider.CreateOutputStream()
	if err != nil {
		return base.NewErrOutputIo(err)
	}
	w.stream = stream
	w.state = state
	w.bw = bufio.NewWriterSize(stream, fileWriteBufSize)
	w.fileSize = 0
	w.hasScript = false

	if _, err = w.bw.Write(FlvHeader); err != nil {
		return base.NewErrOutputIo(err)
	}
	w.fileSize = FlvHeaderSize
	return nil
}

func (w *FileTagWriter) CloseCurrentFile() (bool, error) {
	if w.stream == nil {
		return false, nil
	}
	err1 := w.bw.Flush()
	err2 := w.stream.Close()
	w.stream = nil
	w.bw = nil
	w.hasScript = false
	if err := nazaerrors.CombineErrors(err1, err2); err != nil {
		return true, base.NewErrOutputIo(err)
	}
	return true, nil
}

func (w *FileTagWriter) WriteTag(tag *Tag) error {
	if w.stream == nil {
		return base.ErrFileNotOpen
	}
	payload, err := tag.Payload()
	if err != nil {
		return err
	}

	if tag.Type == TagTypeScript {
		w.hasScript = true
		w.scriptOffset = w.fileSize
		w.scriptPayloadLen = len(payload)
	}

	if _, err = w.bw.Write(PackTag(tag.Type, tag.Timestamp, payload)); err != nil {
		return base.NewErrOutputIo(err)
	}
	w.fileSize += TagSizeOnDisk(len(payload))
	return nil
}

func (w *FileTagWriter) OverwriteMetadata(body *amf0.ScriptTagBody) error {
	if w.stream == nil {
		return base.ErrFileNotOpen
	}
	if !w.hasScript {
		return base.ErrNoScriptTagWritten
	}
	payload, err := body.Marshal()
	if err != nil {
		return err
	}
	if len(payload) != w.scriptPayloadLen {
		return fmt.Errorf("%w. expected=%d, actual=%d", base.ErrMetadataSizeChanged, w.scriptPayloadLen, len(payload))
	}

	if err = w.bw.Flush(); err != nil {
		return base.NewErrOutputIo(err)
	}
	if _, err = w.stream.Seek(w.scriptOffset+TagHeaderSize, io.SeekStart); err != nil {
		return base.NewErrOutputIo(err)
	}
	if _, err = w.stream.Write(payload); err != nil {
		return base.NewErrOutputIo(err)
	}
	if _, err = w.stream.Seek(0, io.SeekEnd); err != nil {
		return base.NewErrOutputIo(err)
	}
	return nil
}

func (w *FileTagWriter) WriteAlternativeHeaders(tags []*Tag) error {
	if w.altStream == nil {
		s, err := w.provider.CreateAlternativeHeaderStream()
		if err != nil {
			return base.NewErrOutputIo(err)
		}
		w.altStream = s
	}
	if _, err := io.WriteString(w.altStream, FormatAlternativeHeaders(tags)); err != nil {
		return base.NewErrOutputIo(err)
	}
	return nil
}

func (w *FileTagWriter) FileSize() int64 {
	return w.fileSize
}

func (w *FileTagWriter) State() interface{} {
	return w.state
}

func (w *FileTagWriter) Dispose() error {
	if w.disposed {
		return nil
	}
	w.disposed = true

	_, err1 := w.CloseCurrentFile()
	var err2 error
	if w.altStream != nil {
		err2 = w.altStream.Close()
		w.altStream = nil
	}
	return nazaerrors.CombineErrors(err1, err2)
}

// FormatAlternativeHeaders header诊断输出的文本格式
func FormatAlternativeHeaders(tags []*Tag) string {
	s := fmt.Sprintf("----- alternative headers at %s -----\n", base.ReadableNowTime())
	for _, tag := range tags {
		s += fmt.Sprintf("%s\n%s\n", tag.String(), hex.EncodeToString(tag.Data))
	}
	return s
}
