// Package mbr reads and writes Master Boot Record (MBR) partition tables.
//
// Only the four primary entries, the disk signature and the boot signature are handled.
// The boot code in the first 440 bytes is never touched.
//
// Here is a simple example of an MBR Table with a single 10MB Linux partition:
//
//	table := &mbr.Table{
//	  LogicalSectorSize:  512,
//	  PhysicalSectorSize: 512,
//	  Partitions: []*mbr.Partition{
//	    {
//	      Bootable:      false,
//	      Type:          mbr.Linux,
//	      Start:         2048,
//	      Size:          20480,
//	    },
//	  },
//	}
package mbr
