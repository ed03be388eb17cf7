// Package gpuerr defines the typed error kinds the GPU pipeline can
// surface to the capture controller, per the error handling design.
package gpuerr

import "fmt"

// UnsupportedInstance means the Vulkan instance could not be created
// because a required instance-level extension or layer is missing.
type UnsupportedInstance struct {
	Missing []string
}

func (e *UnsupportedInstance) Error() string {
	return fmt.Sprintf("gpu does not meet requirements: instance missing %v", e.Missing)
}

// UnsupportedDevice means no physical device qualified during
// selection (missing feature, extension, or queue family shape).
type UnsupportedDevice struct {
	Reason string
}

func (e *UnsupportedDevice) Error() string {
	return fmt.Sprintf("gpu does not meet requirements: %s", e.Reason)
}

// VkError wraps a failing Vulkan call with the call site and result
// code attached.
type VkError struct {
	Call   string
	Result int32
}

func (e *VkError) Error() string {
	return fmt.Sprintf("%s failed: vkresult %d", e.Call, e.Result)
}

// NoSuitableMemoryType means no memory heap satisfied the requested
// property flags for an allocation.
type NoSuitableMemoryType struct {
	TypeFilter uint32
}

func (e *NoSuitableMemoryType) Error() string {
	return fmt.Sprintf("no suitable memory type for filter %#x", e.TypeFilter)
}

// MonitorsMismatch means the cursor position could not be resolved to
// exactly one connected monitor.
type MonitorsMismatch struct{}

func (e *MonitorsMismatch) Error() string { return "cursor is not on a recognised monitor" }

// NoDisplay means no monitor is currently connected.
type NoDisplay struct{}

func (e *NoDisplay) Error() string { return "no display connected" }

// DeviceLost means the GPU driver reported the device removed/lost.
// There is no recovery path; the process must exit.
type DeviceLost struct {
	Reason string
}

func (e *DeviceLost) Error() string { return fmt.Sprintf("device lost: %s", e.Reason) }

// InvalidExtent means a scan or histogram operation was asked to
// operate on a zero-sized image.
type InvalidExtent struct{}

func (e *InvalidExtent) Error() string { return "image has zero extent" }
