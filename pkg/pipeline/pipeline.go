// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package pipeline 由一组有序的rule组成的修复逻辑
//
// 每个rule处理一个group，读写 Session ，追加或修改 Context 中的 Actions 和 Comments 。
// 后面的rule能看到前面的rule的输出。
package pipeline

import (
	"github.com/q191201771/flvfix/pkg/base"
)

type Rule interface {
	Run(ctx *Context)
}

type RuleFunc func(ctx *Context)

func (fn RuleFunc) Run(ctx *Context) {
	fn(ctx)
}

type Option struct {
	// TimestampJumpThresholdMs 相邻group同一媒体类型的时间戳向前跳变超过该值时，认为是时间戳跳变
	TimestampJumpThresholdMs int64

	// FallbackFrameDurationMs 时间戳跳变修正后，新group与上一个group之间的间隔
	FallbackFrameDurationMs int64

	// RepeatingDataWindow 检测重复数据时保留的最近data tag个数
	RepeatingDataWindow int
}

var defaultOption = Option{
	TimestampJumpThresholdMs: 1000,
	FallbackFrameDurationMs:  33,
	RepeatingDataWindow:      32,
}

type ModOption func(option *Option)

type Builder struct {
	option Option
	rules  []Rule
}

func NewBuilder(modOptions ...ModOption) *Builder {
	option := defaultOption
	for _, fn := range modOptions {
		fn(&option)
	}
	return &Builder{option: option}
}

// Add `rule`为nil时panic
func (b *Builder) Add(rule Rule) *Builder {
	if rule == nil {
		panic("flvfix.pipeline: rule is nil")
	}
	b.rules = append(b.rules, rule)
	return b
}

// AddDefault 结束tag、script tag、header以及时间戳相关的修复
func (b *Builder) AddDefault() *Builder {
	return b.
		Add(NewHandleEndTagRule()).
		Add(NewHandleNewScriptRule()).
		Add(NewHandleNewHeaderRule()).
		Add(NewUpdateTimestampOffsetRule()).
		Add(NewUpdateTimestampJumpRule(b.option))
}

func (b *Builder) AddRemoveFillerData() *Builder {
	return b.Add(NewRemoveFillerDataRule(b.option))
}

func (b *Builder) Build() *Pipeline {
	return &Pipeline{
		uniqueKey: base.GenUkPipeline(),
		rules:     append([]Rule(nil), b.rules...),
	}
}

type Pipeline struct {
	uniqueKey string
	rules     []Rule
}

// Run 按顺序执行所有rule
func (p *Pipeline) Run(ctx *Context) {
	for _, r := range p.rules {
		r.Run(ctx)
	}
}

func (p *Pipeline) UniqueKey() string {
	return p.uniqueKey
}

func (p *Pipeline) RuleCount() int {
	return len(p.rules)
}
