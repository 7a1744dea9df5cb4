// Copyright (c) 2025 Stefano Scafiti
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
package cmd

import (
	"fmt"

	"github.com/ostafen/blockid/internal/buildinfo"
	"github.com/spf13/cobra"
)

// DefineCacheFileCommand defines the cache-file subcommand, which prints
// buildinfo.DefaultCacheFile, or the path given as its argument. Nothing
// is stored or read: the cache itself (a flat (device, stat-sig, tag-set)
// table) is an out-of-scope external collaborator per spec.md §1/§6.
func DefineCacheFileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cache-file [path]",
		Short:        "Print (or, with an argument, report) the cache file location in use",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         RunCacheFile,
	}
	return cmd
}

func RunCacheFile(cmd *cobra.Command, args []string) error {
	path := buildinfo.DefaultCacheFile
	if len(args) == 1 {
		path = args[0]
	}
	fmt.Println(path)
	return nil
}
