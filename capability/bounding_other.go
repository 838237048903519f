//go:build !linux

package capability

import "fmt"

func BoundingSetDrop(keep []Cap) error {
	return fmt.Errorf("capability bounding set manipulation is only supported on linux")
}
