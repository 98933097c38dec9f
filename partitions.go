package fdisk

import (
	"fmt"

	"github.com/diskfs/go-fdisk/label"
	"github.com/diskfs/go-fdisk/partition"
)

// GetPartition returns a copy of partition partno of the active label. The caller
// owns the copy.
func (c *Context) GetPartition(partno int) (*partition.Partition, error) {
	if c.label == nil {
		return nil, ErrNoLabel
	}
	return c.label.Partition(partno)
}

// GetPartitions returns a snapshot of the partitions of the active label, in partno
// order. Release it with Unref.
func (c *Context) GetPartitions() (*partition.Table, error) {
	if c.label == nil {
		return nil, ErrNoLabel
	}
	return c.label.Partitions(), nil
}

// FreeSpaces returns the runs of the usable window not covered by a partition, in
// ascending order.
func (c *Context) FreeSpaces() ([]label.Range, error) {
	if c.label == nil {
		return nil, ErrNoLabel
	}
	return c.label.FreeSpaces(), nil
}

// SetPartition creates or modifies partition partno. Only the fields set on p are
// changed; an unset start or size is resolved as for ApplyTable.
func (c *Context) SetPartition(partno int, p *partition.Partition) error {
	if p == nil {
		return fmt.Errorf("cannot set nil partition: %w", partition.ErrInvalidArgument)
	}
	q := p.Clone()
	defer q.Unref()
	if err := q.SetPartno(partno); err != nil {
		return err
	}
	_, err := c.applyOne(q)
	return err
}

// AddPartition adds p in the lowest free slot, or in its own slot when p has a partno
// that is not in use. Returns the partno used.
func (c *Context) AddPartition(p *partition.Partition) (int, error) {
	if p == nil {
		return -1, fmt.Errorf("cannot add nil partition: %w", partition.ErrInvalidArgument)
	}
	if c.label == nil {
		return -1, ErrNoLabel
	}
	if n, ok := p.Partno(); ok {
		if cur, err := c.label.Partition(n); err == nil {
			cur.Unref()
			return -1, fmt.Errorf("partition %d already exists: %w", n, partition.ErrInvalidArgument)
		}
	}
	q := p.Clone()
	defer q.Unref()
	return c.applyOne(q)
}

func (c *Context) applyOne(p *partition.Partition) (int, error) {
	t := partition.NewTable()
	defer t.Unref()
	_ = t.Add(p)
	partnos, err := c.applyTable(t)
	if err != nil {
		return -1, err
	}
	return partnos[0], nil
}

// DeletePartition removes partition partno from the active label.
func (c *Context) DeletePartition(partno int) error {
	if c.label == nil {
		return ErrNoLabel
	}
	if err := c.label.DeletePartition(partno); err != nil {
		return err
	}
	c.log.Debugf("deleted partition %d", partno)
	return nil
}

// DeleteAllPartitions removes every partition from the active label.
func (c *Context) DeleteAllPartitions() error {
	if c.label == nil {
		return ErrNoLabel
	}
	c.label.DeleteAll()
	c.log.Debug("deleted all partitions")
	return nil
}
