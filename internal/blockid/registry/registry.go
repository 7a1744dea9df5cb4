// Package registry assembles blockid.DefaultRegistry from every detector
// family, in the exact order spec.md §4.1 mandates. Import this package
// for its side effect (an init() that populates the registry) wherever a
// Probe is actually run — cmd/cmd/probe.go blank-imports it, tests that
// exercise the full dispatcher import it directly.
//
// This lives in its own package, rather than inside internal/blockid
// itself, because the detector families import internal/blockid for its
// core types; internal/blockid cannot import them back without a cycle.
// The same registration-by-side-effect shape as image.RegisterFormat or
// database/sql.Register.
package registry

import (
	"github.com/ostafen/blockid/internal/blockid"
	"github.com/ostafen/blockid/internal/blockid/containers"
	"github.com/ostafen/blockid/internal/blockid/filesystems"
	"github.com/ostafen/blockid/internal/blockid/partitions"
)

func init() {
	blockid.DefaultRegistry = []blockid.Idinfo{
		// Containers first (spec.md §4.1): a LUKS/LVM container's own
		// magic takes priority over any filesystem signature its
		// payload might incidentally resemble.
		containers.Luks1Idinfo,
		containers.Luks2Idinfo,
		containers.LuksOpalIdinfo,
		containers.Lvm2Idinfo,
		containers.Lvm1Idinfo,
		containers.LvmSnapcowIdinfo,
		containers.LvmIntegrityIdinfo,
		containers.LvmVerityIdinfo,

		// Partition tables next: DOS/MBR before GPT's protective-MBR
		// companion check, so a plain DOS table doesn't get mistaken
		// for a not-yet-verified protective MBR.
		partitions.DosIdinfo,
		partitions.GptIdinfo,

		// Filesystems, innermost ordering ties resolved per spec.md §4.1:
		// exFAT before VFAT (both can look like a FAT BPB), swsuspend
		// before swap-v1 before swap-v0 (all three share the same
		// page-boundary magic convention), ext4 before ext3 before ext2
		// (feature-bit narrowing), SquashFS v4+ before v3.
		filesystems.ExfatIdinfo,
		filesystems.VfatIdinfo,
		filesystems.SwsuspendIdinfo,
		filesystems.LinuxSwapV1Idinfo,
		filesystems.LinuxSwapV0Idinfo,
		filesystems.Ext4Idinfo,
		filesystems.Ext3Idinfo,
		filesystems.Ext2Idinfo,
		filesystems.XfsIdinfo,
		filesystems.ApfsIdinfo,
		filesystems.SquashfsIdinfo,
		filesystems.Squashfs3Idinfo,
		filesystems.ZonefsIdinfo,
	}
}
