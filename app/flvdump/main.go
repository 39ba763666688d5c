// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/flvfix/pkg/flv"
	"github.com/q191201771/flvfix/pkg/grouping"
	"github.com/q191201771/flvfix/pkg/pipeline"
	"github.com/q191201771/flvfix/pkg/xmlflv"
	"github.com/q191201771/naza/pkg/nazalog"
)

// 打印flv文件的tag，或者按group打印修复逻辑的输出，用于排查问题
//
// Usage:
// ./bin/flvdump -i /tmp/in.flv
// ./bin/flvdump -i /tmp/in.flv -g -n 100
// ./bin/flvdump -i /tmp/in.flv -e /tmp/in.brec.xml.gz

func main() {
	_ = nazalog.Init(func(option *nazalog.Option) {
		option.Level = nazalog.LevelWarn
		option.AssertBehavior = nazalog.AssertFatal
	})
	defer nazalog.Sync()

	inFileName, byGroup, maxNum, hexDump, exportFileName := parseFlag()

	if exportFileName != "" {
		if err := exportXml(inFileName, exportFileName); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "export failed. err=%+v\n", err)
			os.Exit(1)
		}
		return
	}

	fp, err := os.Open(inFileName)
	nazalog.Assert(nil, err)
	defer fp.Close()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	tagReader := flv.NewTagReader(fp)
	if byGroup {
		err = dumpGroups(w, tagReader, maxNum)
	} else {
		err = dumpTags(w, tagReader, maxNum, hexDump)
	}
	if err != nil {
		_ = w.Flush()
		_, _ = fmt.Fprintf(os.Stderr, "dump failed. offset=%d, err=%+v\n", tagReader.Offset(), err)
		os.Exit(1)
	}
}

func dumpTags(w io.Writer, r *flv.TagReader, maxNum int, hexDump bool) error {
	var countA, countV, countS int
	for i := 0; maxNum <= 0 || i < maxNum; i++ {
		offset := r.Offset()
		tag, err := r.ReadTag(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch tag.Type {
		case flv.TagTypeAudio:
			countA++
		case flv.TagTypeVideo:
			countV++
		case flv.TagTypeScript:
			countS++
		}
		if hexDump {
			_, _ = fmt.Fprintf(w, "%d %s\n", offset, tag.DebugString())
		} else {
			_, _ = fmt.Fprintf(w, "%d %s\n", offset, tag.String())
		}
		if tag.ScriptData != nil {
			if meta := tag.ScriptData.GetMetadataValue(); meta != nil {
				_, _ = fmt.Fprintf(w, "  %s\n", meta.Pairs.DebugString())
			}
		}
		tag.Release()
	}
	_, _ = fmt.Fprintf(w, "total. audio=%d, video=%d, script=%d\n", countA, countV, countS)
	return nil
}

// dumpGroups 每个group执行一次默认的修复逻辑，打印产生的action和comment
func dumpGroups(w io.Writer, r *flv.TagReader, maxNum int) error {
	groupReader := grouping.NewTagGroupReader(r)
	stats := pipeline.NewStatsRule()
	p := pipeline.NewBuilder().Add(stats).AddDefault().AddRemoveFillerData().Build()
	session := pipeline.NewSession()
	ctx := pipeline.NewContext()

	for i := 0; maxNum <= 0 || i < maxNum; i++ {
		group, err := groupReader.ReadGroup(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(w, "#%d %s\n", i, group.String())
		ctx.Reset(group, session)
		p.Run(ctx)
		for _, a := range ctx.Actions {
			_, _ = fmt.Fprintf(w, "  > %s\n", a.String())
		}
		for _, c := range ctx.Comments {
			_, _ = fmt.Fprintf(w, "  ! %s\n", c.String())
		}
		ctx.ReleaseData()
	}

	video, audio := stats.GetStats()
	_, _ = fmt.Fprintf(w, "video: %+v\naudio: %+v\n", video, audio)
	return nil
}

// exportXml 把flv文件导出为xml tag列表，可以作为 flvfix 的输入
func exportXml(inFileName string, outFileName string) error {
	tags, err := flv.ReadAllTagsFromFlvFile(inFileName)
	if err != nil {
		return err
	}
	f, err := xmlflv.NewFile(tags)
	if err != nil {
		return err
	}
	f.Meta = &xmlflv.Meta{
		Version:    base.FlvfixVersion,
		ExportTime: time.Now().Format(time.RFC3339),
	}
	if fi, err := os.Stat(inFileName); err == nil {
		f.Meta.FileSize = fi.Size()
		f.Meta.FileModificationTime = fi.ModTime().Format(time.RFC3339)
	}
	if err = xmlflv.WriteFile(outFileName, f); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stderr, "exported %d tag(s) to %s\n", len(tags), outFileName)
	return nil
}

func parseFlag() (string, bool, int, bool, string) {
	i := flag.String("i", "", "specify input flv file")
	g := flag.Bool("g", false, "dump groups with repair actions and comments")
	n := flag.Int("n", 0, "max number of tags or groups to dump, 0 means no limit")
	x := flag.Bool("x", false, "hex dump the head of each tag payload")
	e := flag.String("e", "", "export all tags to a xml tag list file (.xml or .xml.gz) instead of dumping")
	flag.Parse()
	if *i == "" {
		flag.Usage()
		base.OsExitAndWaitPressIfWindows(1)
	}
	return *i, *g, *n, *x, *e
}
