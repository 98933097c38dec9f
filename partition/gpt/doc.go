// Package gpt reads and writes GUID Partition Tables (GPT).
//
// It handles only the on-disk encoding: the protective MBR, the primary and backup
// headers and partition entry arrays, and their CRC32 checksums. Validation of
// partition placement and slot allocation happens in github.com/diskfs/go-fdisk/label.
//
// Here is a GPT Table for a 10MB disk image with a single Linux partition in slot 1:
//
//	table := gpt.NewTable(10*1024*1024, 512, 512)
//	table.Partitions = []*gpt.Partition{
//	  {
//	    Index: 1,
//	    Start: 2048,
//	    End:   20446,
//	    Type:  gpt.LinuxFilesystem,
//	    Name:  "root",
//	  },
//	}
//	err := table.Write(f, 10*1024*1024)
package gpt
