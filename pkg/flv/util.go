// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/flvfix
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package flv

import (
	"context"
	"io"
	"os"
)

// ReadAllTags 读取`rd`中所有tag，内存块不使用pool
func ReadAllTags(ctx context.Context, rd io.Reader) ([]*Tag, error) {
	r := NewTagReader(rd, func(option *TagReaderOption) {
		option.BufferProvider = heapBufferProvider{}
	})
	var tags []*Tag
	for {
		tag, err := r.ReadTag(ctx)
		if err == io.EOF {
			return tags, nil
		}
		if err != nil {
			return tags, err
		}
		tags = append(tags, tag)
	}
}

func ReadAllTagsFromFlvFile(filename string) ([]*Tag, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return ReadAllTags(context.Background(), fp)
}

type heapBufferProvider struct{}

func (heapBufferProvider) Get(size int) []byte {
	return make([]byte, size)
}

func (heapBufferProvider) Put(b []byte) {}
