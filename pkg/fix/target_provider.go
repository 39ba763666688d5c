// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package fix

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/q191201771/flvfix/pkg/flv"
)

// AutoFixTargetProvider 输出文件命名为 <base>.fix_p001.flv, <base>.fix_p002.flv ...
// xml tag列表输入时为 <base>.fix_p001.brec.xml ...
// header诊断输出为 <base>.header.txt
type AutoFixTargetProvider struct {
	outputBase string
	index      int

	// OnBeforeFileOpen 每个输出文件创建之前回调
	OnBeforeFileOpen func(path string)
}

func NewAutoFixTargetProvider(outputBase string) *AutoFixTargetProvider {
	return &AutoFixTargetProvider{outputBase: outputBase}
}

// OutputBaseOf 根据输入文件路径生成输出文件的前缀，`outDir`为空时和输入文件在同一个目录
//
// a.flv、a.xml、a.xml.gz、a.brec.xml 的前缀都是a
func OutputBaseOf(input string, outDir string) string {
	dir, name := filepath.Split(input)
	if ext := filepath.Ext(name); strings.EqualFold(ext, ".gz") {
		name = name[:len(name)-len(ext)]
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if ext := filepath.Ext(name); strings.EqualFold(ext, ".brec") {
		name = name[:len(name)-len(ext)]
	}
	if outDir != "" {
		dir = outDir
	}
	return filepath.Join(dir, name)
}

func (p *AutoFixTargetProvider) FilePath(index int) string {
	return fmt.Sprintf("%s.fix_p%03d.flv", p.outputBase, index)
}

// XmlFilePath xml tag列表输入时的输出文件
func (p *AutoFixTargetProvider) XmlFilePath(index int) string {
	return fmt.Sprintf("%s.fix_p%03d.brec.xml", p.outputBase, index)
}

func (p *AutoFixTargetProvider) HeaderFilePath() string {
	return p.outputBase + ".header.txt"
}

// CreateOutputStream state为文件路径
func (p *AutoFixTargetProvider) CreateOutputStream() (flv.OutputStream, interface{}, error) {
	p.index++
	path := p.FilePath(p.index)
	if p.OnBeforeFileOpen != nil {
		p.OnBeforeFileOpen(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	fp, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return fp, path, nil
}

func (p *AutoFixTargetProvider) CreateAlternativeHeaderStream() (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(p.HeaderFilePath()), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(p.HeaderFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
