// Package serialization saves and loads control snapshots: the values of the
// fields and constants a functional depends on, as left by an optimization run.
//
//	Format Structure:
//	  [64 bytes: fixed header]
//	    0x00 magic "FGRD"
//	    0x04 version (uint32 LE)
//	    0x08 flags (uint32 LE)
//	    0x10 header size (uint64 LE)
//	    0x18 data size (uint64 LE)
//	    0x20 SHA-256 of the data section
//	  [Header: JSON metadata]
//	  [Data: float64 LE values, 64-byte aligned]
//
// Example usage:
//
//	snap := &serialization.Snapshot{Controls: []serialization.Entry{
//	    {Name: "u", Kind: serialization.KindField, Space: "DG0", Values: u.Values()},
//	}}
//	if err := serialization.Save("controls.fgrd", snap); err != nil {
//	    log.Fatal(err)
//	}
//
//	snap, err := serialization.Load("controls.fgrd")
package serialization
