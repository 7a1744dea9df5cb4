package cmd

import (
	"strconv"

	"github.com/ostafen/blockid/internal/blockid"
)

// knownTags is the full {Device, Type, Label, PartLabel, UUID, PartUUID,
// BlockSize, Creator} set spec.md §6 names for --match-tag; "probe"'s
// default (no --match-tag given) is all of them.
var knownTags = []string{"Device", "Type", "Label", "PartLabel", "UUID", "PartUUID", "BlockSize", "Creator"}

// tagsOf flattens a blockid.Result into the tag=value pairs spec.md §6
// prescribes. PartLabel/PartUUID only appear for a PartTable result's
// first partition entry, matching the common "probing a whole-disk
// image surfaces its first partition's identity" case; a deeper
// per-partition walk is a front-end concern this module doesn't own.
func tagsOf(device string, r blockid.Result) map[string]string {
	tags := map[string]string{"Device": device}

	switch r.Kind {
	case blockid.ResultKindContainer:
		c := r.Container
		tags["Type"] = c.Type.String()
		if c.Label != nil {
			tags["Label"] = *c.Label
		}
		if c.UUID != nil {
			tags["UUID"] = c.UUID.String()
		}
		if c.Creator != nil {
			tags["Creator"] = *c.Creator
		}
	case blockid.ResultKindPartTable:
		pt := r.PartTable
		tags["Type"] = pt.Type.String()
		if pt.PTUUID != nil {
			tags["UUID"] = pt.PTUUID.String()
		}
		if len(pt.Partitions) > 0 {
			first := pt.Partitions[0]
			if first.Name != nil {
				tags["PartLabel"] = *first.Name
			}
			if first.PartUUID != nil {
				tags["PartUUID"] = first.PartUUID.String()
			}
		}
	case blockid.ResultKindFilesystem:
		fs := r.Filesystem
		tags["Type"] = fs.Type.String()
		if fs.Label != nil {
			tags["Label"] = *fs.Label
		}
		if fs.UUID != nil {
			tags["UUID"] = fs.UUID.String()
		}
		if fs.Creator != nil {
			tags["Creator"] = *fs.Creator
		}
		if fs.FSBlockSize != nil {
			tags["BlockSize"] = strconv.FormatUint(*fs.FSBlockSize, 10)
		} else if fs.SectorSize != nil {
			tags["BlockSize"] = strconv.FormatUint(*fs.SectorSize, 10)
		}
	}
	return tags
}

// filterTags keeps only the requested subset, in the order requested, or
// every populated tag in knownTags order when selected is empty.
func filterTags(tags map[string]string, selected []string) []string {
	order := knownTags
	if len(selected) > 0 {
		order = selected
	}
	seen := map[string]bool{}
	var out []string
	for _, k := range order {
		if seen[k] {
			continue
		}
		seen[k] = true
		if v, ok := tags[k]; ok {
			out = append(out, k+"="+v)
		}
	}
	return out
}
