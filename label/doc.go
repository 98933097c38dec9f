// Package label holds the in-memory disk label of a device: its format, the usable
// geometry and the authoritative partition slots.
//
// A Label is created empty for a new partition table with Create, or read from a
// device with Probe. Partitions are committed into numbered slots; every commit is
// checked against the geometry and the other slots so that a Label never holds
// out-of-range or overlapping entries. Nothing is written to the device until Write.
package label
