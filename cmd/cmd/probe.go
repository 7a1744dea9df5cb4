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
	"encoding/json"
	"fmt"
	"os"

	"github.com/ostafen/blockid/internal/blockid"
	_ "github.com/ostafen/blockid/internal/blockid/registry"
	"github.com/ostafen/blockid/internal/disk"
	"github.com/ostafen/blockid/internal/logger"
	"github.com/ostafen/blockid/pkg/util/format"
	"github.com/spf13/cobra"
)

func DefineProbeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "probe <device>",
		Short:        "Identify the filesystem, partition table, or container format on a device or image",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunProbe,
	}

	cmd.Flags().String("format", "export", "output format: export or json")
	cmd.Flags().StringSlice("match-tag", nil, "restrict output to these tags (default: all)")
	cmd.Flags().Bool("force-gpt-pmbr", false, "treat the protective MBR as valid without re-checking it")
	cmd.Flags().StringSlice("filter", nil, "detector categories to run: container, partitiontable, filesystem (default: all)")
	cmd.Flags().Bool("verbose", false, "log rejected candidate detectors to stderr")

	return cmd
}

func RunProbe(cmd *cobra.Command, args []string) error {
	path := disk.NormalizeVolumePath(args[0])

	outputFormat, _ := cmd.Flags().GetString("format")
	matchTags, _ := cmd.Flags().GetStringSlice("match-tag")
	forceGPTPMBR, _ := cmd.Flags().GetBool("force-gpt-pmbr")
	filters, _ := cmd.Flags().GetStringSlice("filter")
	verbose, _ := cmd.Flags().GetBool("verbose")

	dev, err := disk.Open(path)
	if err != nil {
		return err
	}
	defer dev.Close()

	p := blockid.New(dev, dev.SectorSize)
	p.Flags.ForceGPTPMBR = forceGPTPMBR
	if len(filters) > 0 {
		p.Filter = parseFilter(filters)
	}
	if verbose {
		log := logger.New(os.Stderr, logger.DebugLevel)
		p.Logger = log.Debugf
		log.Debugf("%s: %s device, %d byte sectors, size %s", path,
			blockDevKind(dev.IsBlockDev), dev.SectorSize, format.FormatBytes(dev.Size()))
	}

	result, err := p.Run()
	if err != nil {
		if err == blockid.ErrNoMatch {
			fmt.Fprintf(os.Stderr, "%s: no known format detected\n", path)
		}
		return err
	}

	tags := filterTags(tagsOf(path, result), matchTags)

	switch outputFormat {
	case "json":
		return printJSON(tags)
	default:
		for _, t := range tags {
			fmt.Println(t)
		}
	}
	return nil
}

func printJSON(tags []string) error {
	obj := map[string]string{}
	for _, t := range tags {
		for i := 0; i < len(t); i++ {
			if t[i] == '=' {
				obj[t[:i]] = t[i+1:]
				break
			}
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(obj)
}

func blockDevKind(isBlockDev bool) string {
	if isBlockDev {
		return "block"
	}
	return "regular file"
}

func parseFilter(names []string) blockid.FilterMask {
	var mask blockid.FilterMask
	for _, n := range names {
		switch n {
		case "container":
			mask |= blockid.FilterContainer
		case "partitiontable":
			mask |= blockid.FilterPartitionTable
		case "filesystem":
			mask |= blockid.FilterFilesystem
		}
	}
	return mask
}
