// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package xmlflv 以xml描述的flv tag列表，用于脱敏后的问题复现
//
// 文件结构:
//
//	<BililiveRecorderFlv>
//	  <Meta Version="..." ExportTime="..." FileSize="..."/>
//	  <Tags>
//	    <Tag Type="Video" Flag="keyframe" Size="6" Timestamp="40" Position="13">
//	      <BinaryData>170100000065</BinaryData>
//	    </Tag>
//	  </Tags>
//	</BililiveRecorderFlv>
//
// 文件名以 .gz 结尾时使用gzip压缩。
package xmlflv

import (
	"compress/gzip"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/q191201771/flvfix/pkg/amf0"
	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/flvfix/pkg/flv"
)

const (
	TypeScript = "Script"
	TypeAudio  = "Audio"
	TypeVideo  = "Video"
)

type File struct {
	XMLName xml.Name `xml:"BililiveRecorderFlv"`
	Meta    *Meta    `xml:"Meta,omitempty"`
	Tags    []Tag    `xml:"Tags>Tag"`
}

type Meta struct {
	Version              string `xml:"Version,attr,omitempty"`
	ExportTime           string `xml:"ExportTime,attr,omitempty"`
	FileSize             int64  `xml:"FileSize,attr,omitempty"`
	FileCreationTime     string `xml:"FileCreationTime,attr,omitempty"`
	FileModificationTime string `xml:"FileModificationTime,attr,omitempty"`
}

// Tag
//
// BinaryData 为tag body的hex。为空时只根据 Flag 还原tag的类别，没有内容。
type Tag struct {
	Type       string `xml:"Type,attr"`
	Flag       string `xml:"Flag,attr,omitempty"`
	Size       int    `xml:"Size,attr"`
	Timestamp  int64  `xml:"Timestamp,attr"`
	Position   int64  `xml:"Position,attr,omitempty"`
	BinaryData string `xml:"BinaryData,omitempty"`
}

// IsXmlPath 根据扩展名判断是否为xml tag列表，.xml 或者 .gz
func IsXmlPath(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".xml" || ext == ".gz"
}

func isGzipPath(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".gz")
}

func Unmarshal(rd io.Reader) (*File, error) {
	var f File
	if err := xml.NewDecoder(rd).Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func Marshal(w io.Writer, f *File) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(f); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func ReadFile(filename string) (*File, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	var rd io.Reader = fp
	if isGzipPath(filename) {
		gz, err := gzip.NewReader(fp)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		rd = gz
	}
	return Unmarshal(rd)
}

// WriteFile 目录不存在时创建
func WriteFile(filename string, f *File) (err error) {
	if err = os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fp.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if !isGzipPath(filename) {
		return Marshal(fp, f)
	}
	gz := gzip.NewWriter(fp)
	if err = Marshal(gz, f); err != nil {
		_ = gz.Close()
		return err
	}
	return gz.Close()
}

// NewFile 由flv tag生成xml文件，Position 为tag在flv文件中的偏移
func NewFile(tags []*flv.Tag) (*File, error) {
	f := &File{}
	pos := int64(flv.FlvHeaderSize)
	for _, tag := range tags {
		payload, err := tag.Payload()
		if err != nil {
			return nil, err
		}
		typ, err := typeName(tag.Type)
		if err != nil {
			return nil, err
		}
		xt := Tag{
			Type:       typ,
			Size:       len(payload),
			Timestamp:  tag.Timestamp,
			Position:   pos,
			BinaryData: strings.ToUpper(hex.EncodeToString(payload)),
		}
		if tag.Flag != flv.TagFlagNone {
			xt.Flag = tag.Flag.String()
		}
		f.Tags = append(f.Tags, xt)
		pos += flv.TagSizeOnDisk(len(payload))
	}
	return f, nil
}

// ToFlvTags 还原为flv tag，内存块不属于任何 BufferProvider
func (f *File) ToFlvTags() ([]*flv.Tag, error) {
	tags := make([]*flv.Tag, 0, len(f.Tags))
	for i := range f.Tags {
		tag, err := f.Tags[i].toFlvTag()
		if err != nil {
			return nil, fmt.Errorf("%w. index=%d", err, i)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (t *Tag) toFlvTag() (*flv.Tag, error) {
	typ, err := parseType(t.Type)
	if err != nil {
		return nil, err
	}

	var data []byte
	if t.BinaryData != "" {
		data, err = hex.DecodeString(strings.TrimSpace(t.BinaryData))
		if err != nil {
			return nil, fmt.Errorf("%w. err=%v", base.ErrXmlInvalidTag, err)
		}
	}

	tag := flv.NewTag(typ, t.Timestamp, data)
	if data == nil {
		tag.Flag = parseFlag(t.Flag)
	}
	if typ == flv.TagTypeScript && data != nil {
		if sd, err := amf0.ParseScriptTagBody(data); err == nil {
			tag.ScriptData = sd
		}
	}
	return tag, nil
}

func typeName(t flv.TagType) (string, error) {
	switch t {
	case flv.TagTypeScript:
		return TypeScript, nil
	case flv.TagTypeAudio:
		return TypeAudio, nil
	case flv.TagTypeVideo:
		return TypeVideo, nil
	}
	return "", base.NewErrUnknownTagType(uint8(t), -1)
}

// parseType 也接受数字形式的tag类型
func parseType(s string) (flv.TagType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "script":
		return flv.TagTypeScript, nil
	case "audio":
		return flv.TagTypeAudio, nil
	case "video":
		return flv.TagTypeVideo, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err == nil && flv.TagType(n).IsValid() {
		return flv.TagType(n), nil
	}
	return 0, fmt.Errorf("%w. type=%s", base.ErrUnknownTagType, s)
}

func parseFlag(s string) flv.TagFlag {
	var flag flv.TagFlag
	for _, item := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' || r == ' ' }) {
		switch strings.ToLower(item) {
		case "header":
			flag |= flv.TagFlagHeader
		case "keyframe":
			flag |= flv.TagFlagKeyframe
		case "end":
			flag |= flv.TagFlagEnd
		}
	}
	return flag
}
