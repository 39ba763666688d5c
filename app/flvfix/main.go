// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/q191201771/flvfix/pkg/base"
	"github.com/q191201771/flvfix/pkg/fix"
	"github.com/q191201771/flvfix/pkg/report"
	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazalog"
	"golang.org/x/sync/errgroup"
)

type flags struct {
	confFile    string
	outDir      string
	analyze     bool
	json        bool
	dbFile      string
	metricsFile string
	jobs        int
	inputs      []string
}

func main() {
	code := run()
	nazalog.Sync()
	os.Exit(code)
}

func run() int {
	f := parseFlag()
	config := loadConf(f)
	initLog(config.Log)
	base.LogoutStartInfo()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var store *report.Store
	if f.dbFile != "" {
		var err error
		if store, err = report.OpenStore(f.dbFile); err != nil {
			nazalog.Errorf("open report store failed. file=%s, err=%+v", f.dbFile, err)
			return 1
		}
		defer store.Close()
	}
	var metrics *report.Metrics
	if f.metricsFile != "" {
		metrics = report.NewMetrics()
	}

	h := fix.NewHandler(config)

	var (
		mu     sync.Mutex
		failed int
		eg     errgroup.Group
	)
	eg.SetLimit(f.jobs)
	for _, input := range f.inputs {
		input := input
		eg.Go(func() error {
			req := fix.Request{
				Input: input,
				Progress: func(p fix.Progress) {
					if p.Total > 0 {
						nazalog.Debugf("[%s] progress. %d/%d (%.1f%%), groups=%d",
							p.TaskKey, p.Offset, p.Total, float64(p.Offset)*100/float64(p.Total), p.GroupCount)
					}
				},
			}
			var resp *fix.Response
			if f.analyze {
				resp, _ = h.Analyze(ctx, req)
			} else {
				resp, _ = h.Fix(ctx, req)
			}

			mu.Lock()
			defer mu.Unlock()
			if resp.Status != fix.StatusOk {
				failed++
			}
			if f.json {
				_ = report.WriteJson(os.Stdout, resp)
			} else {
				_ = report.Print(os.Stdout, resp)
			}
			if store != nil {
				if _, err := store.Save(ctx, resp); err != nil {
					nazalog.Warnf("save report failed. input=%s, err=%+v", input, err)
				}
			}
			if metrics != nil {
				metrics.Observe(resp)
			}
			return nil
		})
	}
	_ = eg.Wait()

	if metrics != nil {
		if err := metrics.WriteTextfile(f.metricsFile); err != nil {
			nazalog.Errorf("write metrics failed. file=%s, err=%+v", f.metricsFile, err)
		}
	}

	nazalog.Infof("all done. total=%d, failed=%d", len(f.inputs), failed)
	if failed > 0 {
		return 1
	}
	return 0
}

func parseFlag() flags {
	var f flags
	binInfoFlag := flag.Bool("v", false, "show bin info")
	flag.StringVar(&f.confFile, "c", "", "specify conf file, optional")
	flag.StringVar(&f.outDir, "o", "", "specify output dir, default is the dir of each input file")
	flag.BoolVar(&f.analyze, "analyze", false, "analyze only, do not write output files")
	flag.BoolVar(&f.json, "json", false, "print result as json")
	flag.StringVar(&f.dbFile, "db", "", "save results to sqlite db file, optional")
	flag.StringVar(&f.metricsFile, "metrics", "", "write prometheus textfile metrics, optional")
	flag.IntVar(&f.jobs, "j", runtime.NumCPU(), "number of files processed concurrently")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.FlvfixFullInfo)
		os.Exit(0)
	}
	f.inputs = flag.Args()
	if len(f.inputs) == 0 {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  ./bin/flvfix -c ./conf/flvfix.conf.json -o ./fixed record1.flv record2.flv
  ./bin/flvfix -analyze -json record.flv
  ./bin/flvfix record.brec.xml.gz
`)
		base.OsExitAndWaitPressIfWindows(1)
	}
	if f.jobs < 1 {
		f.jobs = 1
	}
	return f
}

func loadConf(f flags) *fix.Config {
	config := fix.DefaultConfig()
	if f.confFile != "" {
		var err error
		if config, err = fix.LoadConf(f.confFile); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "load conf failed. file=%s err=%+v\n", f.confFile, err)
			base.OsExitAndWaitPressIfWindows(1)
		}
	}
	if f.outDir != "" {
		config.Output.Dir = f.outDir
	}
	return config
}

func initLog(opt nazalog.Option) {
	if err := nazalog.Init(func(option *nazalog.Option) {
		*option = opt
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "initial log failed. err=%+v\n", err)
		base.OsExitAndWaitPressIfWindows(1)
	}
	nazalog.Info("initial log succ.")
}
