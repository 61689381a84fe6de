// Package volume is the three-dimensional data family. A Volume's content can
// live in host memory (ram), device texture memory (gpu) or the blob store
// (disk), and is converted between them on demand.
package volume

import (
	"fmt"

	"github.com/zjrosen/datarep/internal/representation"
)

// Family is the registry tag of the volume family.
const Family representation.Family = "volume"

const (
	KindRAM  representation.Kind = "ram"
	KindGPU  representation.Kind = "gpu"
	KindDisk representation.Kind = "disk"
)

func checkDims(dims []int) error {
	if len(dims) != 3 {
		return fmt.Errorf("volume needs 3 dimensions, got %d", len(dims))
	}
	for _, d := range dims {
		if d <= 0 {
			return fmt.Errorf("volume dimensions must be positive, got %v", dims)
		}
	}
	return nil
}

func sameLayout(a, b interface{ Dims() []int }) bool {
	da, db := a.Dims(), b.Dims()
	if len(da) != len(db) {
		return false
	}
	for i := range da {
		if da[i] != db[i] {
			return false
		}
	}
	return true
}
