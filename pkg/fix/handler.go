// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package fix 修复和分析一个flv录制文件
package fix

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/flvfix/pkg/flv"
	"github.com/q191201771/flvfix/pkg/grouping"
	"github.com/q191201771/flvfix/pkg/pipeline"
	"github.com/q191201771/flvfix/pkg/writer"
	"github.com/q191201771/flvfix/pkg/xmlflv"
)

type Progress struct {
	TaskKey    string
	Offset     int64 // 已读取的输入字节数，xml输入时为tag个数
	Total      int64 // 输入文件大小，未知时为0。xml输入时为tag总数
	GroupCount int
}

type Request struct {
	// Input flv文件，或者 .xml / .xml.gz 格式的tag列表
	Input string

	// OutputBase 输出文件的前缀，为空时根据 Input 和 Config.Output.Dir 生成，Analyze 时忽略
	OutputBase string

	// Progress 每处理 base.FlvProgressReportGroupInterval 个group回调一次，可以为nil
	Progress func(p Progress)
}

type Handler struct {
	config *Config
}

func NewHandler(config *Config) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Handler{config: config}
}

// Fix 修复`req.Input`，输出一个或多个flv文件
//
// 输入为xml tag列表时，输出为 <base>.fix_p001.brec.xml 等xml文件。
// 返回的 Response 不为nil，出错时 Response.Status 描述错误类型，已经产生的输出文件保留。
func (h *Handler) Fix(ctx context.Context, req Request) (*Response, error) {
	outputBase := req.OutputBase
	if outputBase == "" {
		outputBase = OutputBaseOf(req.Input, h.config.Output.Dir)
	}
	resp := &Response{}
	provider := NewAutoFixTargetProvider(outputBase)

	if xmlflv.IsXmlPath(req.Input) {
		target := xmlflv.NewTagListWriter()
		if _, err := h.run(ctx, req, target, resp); err != nil {
			return resp, err
		}
		err := h.saveXml(provider, target, resp)
		if err != nil {
			h.finish(resp, err)
		}
		return resp, err
	}

	provider.OnBeforeFileOpen = func(path string) {
		resp.OutputPaths = append(resp.OutputPaths, path)
	}
	return h.run(ctx, req, flv.NewFileTagWriter(provider), resp)
}

// Analyze 执行和 Fix 一样的修复逻辑，但不产生输出文件
func (h *Handler) Analyze(ctx context.Context, req Request) (*Response, error) {
	resp := &Response{Analyze: true}
	return h.run(ctx, req, flv.NewAnalyzeTagWriter(), resp)
}

// FixStream 从`rd`读取输入，写入`target`，用于非文件的输入输出
func (h *Handler) FixStream(ctx context.Context, rd io.Reader, target flv.TagWriter) (*Response, error) {
	resp := &Response{}
	err := h.process(ctx, h.newTagReader(rd), 0, target, resp, nil)
	return resp, err
}

// tagSource 带读取进度的 grouping.TagSource
type tagSource interface {
	grouping.TagSource
	Offset() int64
}

func (h *Handler) newTagReader(rd io.Reader) *flv.TagReader {
	return flv.NewTagReader(rd, func(option *flv.TagReaderOption) {
		option.ReadBufSize = h.config.ReadBufSize
	})
}

func (h *Handler) run(ctx context.Context, req Request, target flv.TagWriter, resp *Response) (*Response, error) {
	resp.InputPath = req.Input

	source, total, closeInput, err := h.openInput(req.Input)
	if err != nil {
		h.finish(resp, err)
		_ = target.Dispose()
		return resp, err
	}
	defer closeInput()
	resp.InputSize = total

	err = h.process(ctx, source, total, target, resp, req.Progress)
	return resp, err
}

// openInput 根据扩展名选择flv或者xml tag列表
//
// @return total: flv为文件大小，xml为tag个数
func (h *Handler) openInput(input string) (source tagSource, total int64, closeInput func(), err error) {
	if xmlflv.IsXmlPath(input) {
		f, err := xmlflv.ReadFile(input)
		if err != nil {
			return nil, 0, nil, base.NewErrInputIo(err)
		}
		tags, err := f.ToFlvTags()
		if err != nil {
			return nil, 0, nil, err
		}
		if f.Meta != nil {
			base.Log.Infof("xml meta. input=%s, version=%s, export_time=%s, file_size=%d",
				input, f.Meta.Version, f.Meta.ExportTime, f.Meta.FileSize)
		}
		return xmlflv.NewTagListReader(tags), int64(len(tags)), func() {}, nil
	}

	fp, err := os.Open(input)
	if err != nil {
		return nil, 0, nil, base.NewErrInputIo(err)
	}
	if fi, err := fp.Stat(); err == nil {
		total = fi.Size()
	}
	return h.newTagReader(fp), total, func() { _ = fp.Close() }, nil
}

// saveXml 把 TagListWriter 中的每个文件写成一个xml文件，变化的header写入 <base>.header.txt
func (h *Handler) saveXml(provider *AutoFixTargetProvider, target *xmlflv.TagListWriter, resp *Response) error {
	for i, tags := range target.Files() {
		path := provider.XmlFilePath(i + 1)
		resp.OutputPaths = append(resp.OutputPaths, path)
		f, err := xmlflv.NewFile(tags)
		if err != nil {
			return err
		}
		if err = xmlflv.WriteFile(path, f); err != nil {
			return base.NewErrOutputIo(err)
		}
		if i < len(resp.OutputFiles) {
			resp.OutputFiles[i].Path = path
		}
	}

	if headers := target.AlternativeHeaders(); len(headers) > 0 {
		w, err := provider.CreateAlternativeHeaderStream()
		if err != nil {
			return base.NewErrOutputIo(err)
		}
		_, err = io.WriteString(w, flv.FormatAlternativeHeaders(headers))
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return base.NewErrOutputIo(err)
		}
	}
	base.Log.Infof("[%s] xml saved. files=%d, alternative_headers=%d", resp.TaskKey, len(target.Files()), len(target.AlternativeHeaders()))
	return nil
}

// process 读取group，执行pipeline，交给writer写入，直到输入结束或出错
func (h *Handler) process(ctx context.Context, source tagSource, total int64, target flv.TagWriter, resp *Response, onProgress func(p Progress)) (err error) {
	start := time.Now()
	resp.TaskKey = base.GenUkFixTask()
	uk := resp.TaskKey
	base.Log.Infof("[%s] start. input=%s, analyze=%v", uk, resp.InputPath, resp.Analyze)

	groupReader := grouping.NewTagGroupReader(source, func(option *grouping.TagGroupReaderOption) {
		option.MaxTags = h.config.Group.MaxTags
		option.MaxTagGapMs = h.config.Group.MaxTagGapMs
	})

	stats := pipeline.NewStatsRule()
	builder := pipeline.NewBuilder(func(option *pipeline.Option) {
		option.TimestampJumpThresholdMs = h.config.Repair.TimestampJumpThresholdMs
		option.FallbackFrameDurationMs = h.config.Repair.FallbackFrameDurationMs
		option.RepeatingDataWindow = h.config.Repair.RepeatingDataWindow
	}).Add(stats).AddDefault()
	if h.config.Repair.RemoveFillerData {
		builder.AddRemoveFillerData()
	}
	p := builder.Build()

	w := writer.NewContextWriter(target, func(option *writer.Option) {
		option.AllowMissingHeader = h.config.Output.AllowMissingHeader
		option.DisableKeyframes = h.config.Output.DisableKeyframes
		option.KeyframesCapacity = h.config.Output.KeyframesCapacity
		option.OnFileClosed = func(event writer.FileClosedEvent) {
			path, _ := event.State.(string)
			resp.OutputFiles = append(resp.OutputFiles, OutputFile{
				Path:     path,
				Size:     event.FileSize,
				Duration: event.Duration,
			})
		}
	})
	defer func() {
		if derr := w.Dispose(); derr != nil && err == nil {
			err = base.NewErrOutputIo(derr)
		}
		resp.VideoStats, resp.AudioStats = stats.GetStats()
		resp.ElapsedMs = time.Since(start).Milliseconds()
		h.finish(resp, err)
		base.Log.Infof("[%s] done. status=%s, groups=%d, files=%d, issues=%d, cost=%dms",
			uk, resp.Status, resp.GroupCount, resp.OutputFileCount, resp.IssueTypes.Total(), resp.ElapsedMs)
	}()

	session := pipeline.NewSession()
	pctx := pipeline.NewContext()
	dump := base.NewLogDump(base.Log, h.config.Report.DebugDumpMaxNum)

	for {
		if err = ctx.Err(); err != nil {
			base.Log.Warnf("[%s] cancelled. offset=%d", uk, source.Offset())
			return err
		}

		var group *grouping.TagGroup
		group, err = groupReader.ReadGroup(ctx)
		if err == io.EOF {
			err = nil
			break
		}
		if err != nil {
			base.Log.Errorf("[%s] read group failed. offset=%d, err=%+v", uk, source.Offset(), err)
			return err
		}

		pctx.Reset(group, session)
		p.Run(pctx)

		for _, c := range pctx.Comments {
			resp.IssueTypes.add(c)
			if c.Type == pipeline.CommentTypeUnrepairable {
				resp.Unrepairable = true
			}
			if dump.ShouldDump() {
				dump.Outf("[%s] group=%d %s, comment=%s", uk, resp.GroupCount, group.String(), c.String())
			}
		}

		err = w.Write(pctx)
		pctx.ReleaseData()
		if err != nil {
			return err
		}

		resp.GroupCount++
		if onProgress != nil && resp.GroupCount%base.FlvProgressReportGroupInterval == 0 {
			onProgress(Progress{
				TaskKey:    uk,
				Offset:     source.Offset(),
				Total:      total,
				GroupCount: resp.GroupCount,
			})
		}
	}

	if n := dump.Skipped(); n > 0 {
		base.Log.Debugf("[%s] %d comment(s) not dumped.", uk, n)
	}
	return nil
}

func (h *Handler) finish(resp *Response, err error) {
	resp.Status = StatusOf(err)
	if err != nil {
		resp.Error = err.Error()
	}
	resp.OutputFileCount = len(resp.OutputFiles)
	resp.NeedFix = resp.OutputFileCount != 1 || resp.IssueTypes.Total() > 0
}
