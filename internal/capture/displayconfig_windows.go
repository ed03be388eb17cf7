//go:build windows && !headless

package capture

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	procGetDisplayConfigBufferSizes = user32.NewProc("GetDisplayConfigBufferSizes")
	procQueryDisplayConfig          = user32.NewProc("QueryDisplayConfig")
	procDisplayConfigGetDeviceInfo  = user32.NewProc("DisplayConfigGetDeviceInfo")
)

const (
	qdcOnlyActivePaths = 0x2

	displayconfigDeviceInfoGetSDRWhiteLevel     = 11
	displayconfigDeviceInfoGetAdvancedColorInfo = 9
)

type displayConfigPathInfo struct {
	SourceInfo struct {
		AdapterID   windows.LUID
		ID          uint32
		ModeInfoIdx uint32
		StatusFlags uint32
	}
	TargetInfo struct {
		AdapterID        windows.LUID
		ID               uint32
		ModeInfoIdx      uint32
		OutputTechnology uint32
		Rotation         uint32
		Scaling          uint32
		RefreshRate      struct{ Numerator, Denominator uint32 }
		ScanLineOrdering uint32
		TargetAvailable  int32
		StatusFlags      uint32
	}
	Flags uint32
}

type displayConfigModeInfo struct {
	InfoType  uint32
	ID        uint32
	AdapterID windows.LUID
	Mode      [48]byte
}

type displayConfigDeviceInfoHeader struct {
	Type      uint32
	Size      uint32
	AdapterID windows.LUID
	ID        uint32
}

// activePaths queries the active display-config paths once per call;
// the list is small (one entry per active monitor).
func activePaths() []displayConfigPathInfo {
	var pathCount, modeCount uint32
	ret, _, _ := procGetDisplayConfigBufferSizes.Call(qdcOnlyActivePaths,
		uintptr(unsafe.Pointer(&pathCount)), uintptr(unsafe.Pointer(&modeCount)))
	if ret != 0 || pathCount == 0 {
		return nil
	}
	paths := make([]displayConfigPathInfo, pathCount)
	modes := make([]displayConfigModeInfo, modeCount)
	ret, _, _ = procQueryDisplayConfig.Call(qdcOnlyActivePaths,
		uintptr(unsafe.Pointer(&pathCount)), uintptr(unsafe.Pointer(&paths[0])),
		uintptr(unsafe.Pointer(&modeCount)), uintptr(unsafe.Pointer(&modes[0])), 0)
	if ret != 0 {
		return nil
	}
	return paths[:pathCount]
}

// querySDRWhiteLevel returns the SDR white level in nits of the first
// active display-config path that answers; hmon is not used to pick
// the path. The OS reports it as a millinit-scaled multiplier of 80
// nits.
func querySDRWhiteLevel(hmon uintptr) (float32, bool) {
	for _, path := range activePaths() {
		var req struct {
			Header        displayConfigDeviceInfoHeader
			SDRWhiteLevel uint32
		}
		req.Header.Type = displayconfigDeviceInfoGetSDRWhiteLevel
		req.Header.Size = uint32(unsafe.Sizeof(req))
		req.Header.AdapterID = path.TargetInfo.AdapterID
		req.Header.ID = path.TargetInfo.ID
		ret, _, _ := procDisplayConfigGetDeviceInfo.Call(uintptr(unsafe.Pointer(&req)))
		if ret != 0 {
			continue
		}
		// SDRWhiteLevel is (nits / 80) * 1000.
		return float32(req.SDRWhiteLevel) / 1000.0 * 80.0, true
	}
	_ = hmon
	return 0, false
}

// queryMaxLuminance reports a peak luminance in nits for the first
// active display-config path that answers: an assumed 1499 nits when
// its advanced-color info block shows advanced colour enabled, and no
// value otherwise. hmon is not used to pick the path.
func queryMaxLuminance(hmon uintptr) (float32, bool) {
	for _, path := range activePaths() {
		var req struct {
			Header              displayConfigDeviceInfoHeader
			Value               uint32
			ColorEncoding       uint32
			BitsPerColorChannel uint32
		}
		req.Header.Type = displayconfigDeviceInfoGetAdvancedColorInfo
		req.Header.Size = uint32(unsafe.Sizeof(req))
		req.Header.AdapterID = path.TargetInfo.AdapterID
		req.Header.ID = path.TargetInfo.ID
		ret, _, _ := procDisplayConfigGetDeviceInfo.Call(uintptr(unsafe.Pointer(&req)))
		if ret != 0 {
			continue
		}
		const advancedColorEnabled = 0x2
		if req.Value&advancedColorEnabled == 0 {
			return 0, false
		}
		// The advanced-color block carries no single peak value;
		// assume the common consumer-panel ceiling.
		return 1499.0, true
	}
	_ = hmon
	return 0, false
}
