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

	"github.com/ostafen/blockid/internal/blockid"
	_ "github.com/ostafen/blockid/internal/blockid/registry"
	"github.com/spf13/cobra"
)

func DefineListCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "list-supported",
		Short:        "Enumerate every registered detector and exit",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunList,
	}
}

func RunList(cmd *cobra.Command, args []string) error {
	for _, entry := range blockid.DefaultRegistry {
		fmt.Printf("%-16s %s\n", entry.Name, entry.Usage)
	}
	return nil
}
