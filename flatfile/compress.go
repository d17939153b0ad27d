// Copyright © 2025 Microsoft <wastore@microsoft.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package flatfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/wastore/sfcopy/common"
)

// CompressError wraps any failure while producing the .gz sibling. The
// partial output has already been deleted by the time callers see this.
type CompressError struct {
	Path string
	Err  error
}

func (e *CompressError) Error() string {
	return fmt.Sprintf("compressing %s: %v", e.Path, e.Err)
}

func (e *CompressError) Unwrap() error { return e.Err }

const compressBlockSize = 10 * 1024 * 1024

// Compress writes <path>.gz next to the input, streaming in fixed-size blocks
// so memory stays flat regardless of input size. progress, if non-nil,
// receives the input bytes consumed after each flushed block. On any failure
// (including cancellation) the partial output is removed before returning.
func Compress(ctx context.Context, path string, progress func(delta int64)) (gzPath string, err error) {
	gzPath = path + ".gz"

	in, err := os.Open(path)
	if err != nil {
		return "", &CompressError{Path: path, Err: err}
	}
	defer in.Close()

	out, err := os.Create(gzPath)
	if err != nil {
		return "", &CompressError{Path: path, Err: err}
	}

	fail := func(cause error) (string, error) {
		_ = out.Close()
		_ = os.Remove(gzPath)
		return "", &CompressError{Path: path, Err: cause}
	}

	gz, err := gzip.NewWriterLevel(out, 6)
	if err != nil {
		return fail(err)
	}

	buf := make([]byte, compressBlockSize)
	for {
		select {
		case <-ctx.Done():
			return fail(common.ErrCancelled)
		default:
		}

		n, readErr := in.Read(buf)
		if n > 0 {
			if _, err := gz.Write(buf[:n]); err != nil {
				return fail(err)
			}
			if err := gz.Flush(); err != nil {
				return fail(err)
			}
			if progress != nil {
				progress(int64(n))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fail(readErr)
		}
	}

	if err := gz.Close(); err != nil {
		return fail(err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(gzPath)
		return "", &CompressError{Path: path, Err: err}
	}
	return gzPath, nil
}

// CheckDiskSpace compares the free space where the output will land against
// the expected compressed size (a third of the input measures well on
// delimited text). It returns a warning message to surface, or "" when there
// is room. Preflight only; the write itself still handles ENOSPC.
func CheckDiskSpace(path string, inputSize int64) string {
	usage, err := disk.Usage(filepath.Dir(path))
	if err != nil {
		return "" // stat problems surface later, from the real write
	}

	needed := uint64(inputSize / 3)
	if usage.Free < needed {
		return fmt.Sprintf("low disk space: %s free at %s, compression needs about %s",
			humanize.IBytes(usage.Free), filepath.Dir(path), humanize.IBytes(needed))
	}
	return ""
}
