//go:build windows && !headless

package capture

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/hdrsnip/hdrsnip/internal/gpuerr"
)

var (
	d3d11                = windows.NewLazySystemDLL("d3d11.dll")
	procD3D11CreateDevic = d3d11.NewProc("D3D11CreateDevice")
)

const (
	d3dDriverTypeUnknown     = 0
	d3d11SDKVersion          = 7
	d3d11CreateDeviceBGRASup = 0x20

	dxgiFormatR16G16B16A16Float = 10

	dxgiSharedResourceRead  = 0x80000000
	dxgiSharedResourceWrite = 1

	deviceRemovedHResult = 0x887A0005 // DXGI_ERROR_DEVICE_REMOVED
	accessLostHResult    = 0x887A0026 // DXGI_ERROR_ACCESS_LOST
)

// comObject is the common prefix of every COM interface: a pointer to
// its vtable. Methods are invoked by index with SyscallN, which is
// how Go talks COM without cgo.
type comObject struct {
	vtbl *uintptr
}

func comCall(obj *comObject, index int, args ...uintptr) uintptr {
	vtbl := unsafe.Slice(obj.vtbl, index+1)
	callArgs := append([]uintptr{uintptr(unsafe.Pointer(obj))}, args...)
	ret, _, _ := syscall.SyscallN(vtbl[index], callArgs...)
	return ret
}

func comRelease(obj *comObject) {
	if obj != nil {
		comCall(obj, 2) // IUnknown::Release
	}
}

func comQueryInterface(obj *comObject, iid *windows.GUID) (*comObject, error) {
	var out *comObject
	hr := comCall(obj, 0, uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(&out)))
	if hr != 0 {
		return nil, hresultError("QueryInterface", hr)
	}
	return out, nil
}

func hresultError(call string, hr uintptr) error {
	switch uint32(hr) {
	case deviceRemovedHResult:
		return &gpuerr.DeviceLost{Reason: call}
	default:
		return fmt.Errorf("%s failed: hresult %#x", call, hr)
	}
}

var (
	iidIDXGIDevice    = windows.GUID{Data1: 0x54ec77fa, Data2: 0x1377, Data3: 0x44e6, Data4: [8]byte{0x8c, 0x32, 0x88, 0xfd, 0x5f, 0x44, 0xc8, 0x4c}}
	iidIDXGIResource1 = windows.GUID{Data1: 0x30961379, Data2: 0x4609, Data3: 0x4a41, Data4: [8]byte{0x99, 0x8e, 0x54, 0xfe, 0x56, 0x7e, 0xe0, 0xc1}}
	iidIDXGIOutput5   = windows.GUID{Data1: 0x80a07424, Data2: 0xab52, Data3: 0x42eb, Data4: [8]byte{0x83, 0x3c, 0x0c, 0x42, 0xfd, 0x28, 0x2d, 0x98}}
)

// duplicationSession captures one monitor through IDXGIOutputDuplication
// and exposes each frame as a shareable NT handle the GPU core
// imports.
type duplicationSession struct {
	mon MonitorInfo

	device      *comObject // ID3D11Device
	duplication *comObject // IDXGIOutputDuplication
}

func newDuplicationSession(mon MonitorInfo) (Session, error) {
	s := &duplicationSession{mon: mon}

	var device *comObject
	hr, _, _ := procD3D11CreateDevic.Call(
		0, // default adapter
		d3dDriverTypeUnknown+1,
		0,
		d3d11CreateDeviceBGRASup,
		0, 0,
		d3d11SDKVersion,
		uintptr(unsafe.Pointer(&device)),
		0, 0,
	)
	if hr != 0 {
		return nil, hresultError("D3D11CreateDevice", hr)
	}
	s.device = device

	dup, err := s.duplicateOutput()
	if err != nil {
		comRelease(device)
		return nil, err
	}
	s.duplication = dup
	return s, nil
}

// duplicateOutput walks device -> adapter -> output for this
// session's monitor and calls DuplicateOutput1 asking for the HDR
// frame format.
func (s *duplicationSession) duplicateOutput() (*comObject, error) {
	dxgiDevice, err := comQueryInterface(s.device, &iidIDXGIDevice)
	if err != nil {
		return nil, err
	}
	defer comRelease(dxgiDevice)

	var adapter *comObject
	if hr := comCall(dxgiDevice, 7, uintptr(unsafe.Pointer(&adapter))); hr != 0 { // IDXGIDevice::GetAdapter
		return nil, hresultError("IDXGIDevice::GetAdapter", hr)
	}
	defer comRelease(adapter)

	// IDXGIAdapter::EnumOutputs until the output's monitor handle
	// matches the one we resolved.
	for i := uintptr(0); ; i++ {
		var output *comObject
		if hr := comCall(adapter, 7, i, uintptr(unsafe.Pointer(&output))); hr != 0 {
			return nil, &gpuerr.MonitorsMismatch{}
		}

		var desc struct {
			DeviceName        [32]uint16
			DesktopCoordinate winRect
			AttachedToDesktop int32
			Rotation          uint32
			Monitor           uintptr
		}
		if hr := comCall(output, 7, uintptr(unsafe.Pointer(&desc))); hr != 0 { // IDXGIOutput::GetDesc
			comRelease(output)
			return nil, hresultError("IDXGIOutput::GetDesc", hr)
		}
		if desc.Monitor != s.mon.Handle {
			comRelease(output)
			continue
		}

		output5, err := comQueryInterface(output, &iidIDXGIOutput5)
		comRelease(output)
		if err != nil {
			return nil, err
		}
		defer comRelease(output5)

		formats := []uint32{dxgiFormatR16G16B16A16Float}
		var duplication *comObject
		// IDXGIOutput5::DuplicateOutput1(device, flags, count, formats, out)
		if hr := comCall(output5, 26,
			uintptr(unsafe.Pointer(s.device)), 0,
			uintptr(len(formats)), uintptr(unsafe.Pointer(&formats[0])),
			uintptr(unsafe.Pointer(&duplication))); hr != 0 {
			return nil, hresultError("IDXGIOutput5::DuplicateOutput1", hr)
		}
		return duplication, nil
	}
}

// Capture acquires the next desktop frame, wraps it in a shareable
// NT handle, and returns the handle plus the frame extent. release
// closes the handle and releases the acquired frame.
func (s *duplicationSession) Capture() (uintptr, uint32, uint32, func(), error) {
	const timeoutMs = 1000

	var info struct {
		LastPresentTime          int64
		LastMouseUpdateTime      int64
		AccumulatedFrames        uint32
		RectsCoalesced           int32
		ProtectedContentMaskedOu int32
		PointerPosition          [12]byte
		TotalMetadataBufferSize  uint32
		PointerShapeBufferSize   uint32
	}
	var resource *comObject
	// IDXGIOutputDuplication::AcquireNextFrame
	if hr := comCall(s.duplication, 8, timeoutMs,
		uintptr(unsafe.Pointer(&info)), uintptr(unsafe.Pointer(&resource))); hr != 0 {
		if uint32(hr) == accessLostHResult {
			return 0, 0, 0, nil, &gpuerr.MonitorsMismatch{}
		}
		return 0, 0, 0, nil, hresultError("AcquireNextFrame", hr)
	}

	resource1, err := comQueryInterface(resource, &iidIDXGIResource1)
	comRelease(resource)
	if err != nil {
		comCall(s.duplication, 14) // ReleaseFrame
		return 0, 0, 0, nil, err
	}

	var handle windows.Handle
	// IDXGIResource1::CreateSharedHandle(attributes, access, name, out)
	if hr := comCall(resource1, 13, 0,
		dxgiSharedResourceRead|dxgiSharedResourceWrite, 0,
		uintptr(unsafe.Pointer(&handle))); hr != 0 {
		comRelease(resource1)
		comCall(s.duplication, 14)
		return 0, 0, 0, nil, hresultError("CreateSharedHandle", hr)
	}
	comRelease(resource1)

	release := func() {
		windows.CloseHandle(handle)
		comCall(s.duplication, 14) // ReleaseFrame
	}
	return uintptr(handle), s.mon.Rect.Width, s.mon.Rect.Height, release, nil
}

// Close releases the duplication and device objects.
func (s *duplicationSession) Close() {
	comRelease(s.duplication)
	comRelease(s.device)
}
