//go:build windows

// Window-message transport: frames messages through WM_COPYDATA sent
// between a hidden message-only window pair, for the in-process and
// same-desktop-session IPC case the original calculator sample also
// supported alongside named pipes.
package transport

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"duplexrpc/wire"
)

const (
	wmCopyData    = 0x004A
	hwndMessage   = ^uintptr(2) // HWND_MESSAGE, (HWND)(-3)
	classNameBase = "duplexrpc-wm-"
)

// RegisterWindowMessageW is exercised indirectly: WM_COPYDATA itself is a
// predefined message, but a caller layering multiple logical channels
// over one window pair can mint its own message ID with this to avoid
// colliding with another application's custom messages on the same
// desktop session.
var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procRegisterClassExW = user32.NewProc("RegisterClassExW")
	procCreateWindowExW  = user32.NewProc("CreateWindowExW")
	procDestroyWindow    = user32.NewProc("DestroyWindow")
	procDefWindowProcW   = user32.NewProc("DefWindowProcW")
	procSendMessageW     = user32.NewProc("SendMessageW")
	procFindWindowW      = user32.NewProc("FindWindowW")
	procRegisterWindowMessageW = user32.NewProc("RegisterWindowMessageW")
)

// RegisterAppMessage mints a system-wide unique message ID for name via
// RegisterWindowMessageW, for callers that want to disambiguate their
// WM_COPYDATA traffic from other applications on the same session.
func RegisterAppMessage(name string) (uint32, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, err
	}
	ret, _, err := procRegisterWindowMessageW.Call(uintptr(unsafe.Pointer(namePtr)))
	if ret == 0 {
		return 0, fmt.Errorf("transport: RegisterWindowMessageW: %w", err)
	}
	return uint32(ret), nil
}

type copyDataStruct struct {
	dwData uintptr
	cbData uint32
	lpData uintptr
}

// WindowMessageTransport exchanges framed messages via WM_COPYDATA
// between two named message-only windows, one per peer. Send targets the
// peer's window by name; Receive drains an internal channel fed by the
// window procedure.
type WindowMessageTransport struct {
	hwnd       uintptr
	peerName   string
	inbox      chan []byte
	closeOnce  sync.Once
	closed     chan struct{}
	registerID uint32
}

var wmTransportRegistry sync.Map // hwnd -> *WindowMessageTransport

// NewWindowMessageTransport creates a message-only window named
// localName to receive frames, and targets peerName as the destination
// window for Send.
func NewWindowMessageTransport(localName, peerName string) (*WindowMessageTransport, error) {
	classNamePtr, err := windows.UTF16PtrFromString(classNameBase + localName)
	if err != nil {
		return nil, err
	}

	wndProc := windows.NewCallback(wmWndProc)

	wc := wndClassEx{
		cbSize:    uint32(unsafe.Sizeof(wndClassEx{})),
		lpfnWndProc: wndProc,
		lpszClassName: classNamePtr,
	}
	if ret, _, err := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc))); ret == 0 {
		return nil, fmt.Errorf("transport: RegisterClassExW: %w", err)
	}

	namePtr, err := windows.UTF16PtrFromString(localName)
	if err != nil {
		return nil, err
	}
	hwnd, _, err := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(classNamePtr)),
		uintptr(unsafe.Pointer(namePtr)),
		0, 0, 0, 0, 0,
		hwndMessage,
		0, 0, 0,
	)
	if hwnd == 0 {
		return nil, fmt.Errorf("transport: CreateWindowExW: %w", err)
	}

	t := &WindowMessageTransport{
		hwnd:     hwnd,
		peerName: peerName,
		inbox:    make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
	wmTransportRegistry.Store(hwnd, t)
	return t, nil
}

type wndClassEx struct {
	cbSize        uint32
	style         uint32
	lpfnWndProc   uintptr
	cbClsExtra    int32
	cbWndExtra    int32
	hInstance     uintptr
	hIcon         uintptr
	hCursor       uintptr
	hbrBackground uintptr
	lpszMenuName  *uint16
	lpszClassName *uint16
	hIconSm       uintptr
}

func wmWndProc(hwnd, msg, wparam, lparam uintptr) uintptr {
	if msg == wmCopyData {
		v, ok := wmTransportRegistry.Load(hwnd)
		if ok {
			t := v.(*WindowMessageTransport)
			cds := (*copyDataStruct)(unsafe.Pointer(lparam))
			buf := unsafe.Slice((*byte)(unsafe.Pointer(cds.lpData)), int(cds.cbData))
			cp := make([]byte, len(buf))
			copy(cp, buf)
			select {
			case t.inbox <- cp:
			default:
			}
		}
		return 1
	}
	ret, _, _ := procDefWindowProcW.Call(hwnd, msg, wparam, lparam)
	return ret
}

// Send implements Transport by framing msg into a byte buffer and
// delivering it to the peer window via WM_COPYDATA.
func (t *WindowMessageTransport) Send(msg wire.Message) error {
	var buf []byte
	buf = append(buf, encodeFrame(msg)...)

	peerPtr, err := windows.UTF16PtrFromString(t.peerName)
	if err != nil {
		return err
	}
	classAny := uintptr(0)
	hwnd, _, _ := procFindWindowW.Call(classAny, uintptr(unsafe.Pointer(peerPtr)))
	if hwnd == 0 {
		return fmt.Errorf("transport: window-message peer %q not found", t.peerName)
	}

	cds := copyDataStruct{
		dwData: 0,
		cbData: uint32(len(buf)),
		lpData: uintptr(unsafe.Pointer(&buf[0])),
	}
	ret, _, err := procSendMessageW.Call(hwnd, wmCopyData, t.hwnd, uintptr(unsafe.Pointer(&cds)))
	if ret == 0 {
		return fmt.Errorf("transport: SendMessageW WM_COPYDATA: %w", err)
	}
	return nil
}

// Receive implements Transport by pulling the next full frame off the
// channel the window procedure fills.
func (t *WindowMessageTransport) Receive() (wire.Message, error) {
	select {
	case buf := <-t.inbox:
		return decodeFrame(buf)
	case <-t.closed:
		return wire.Message{}, fmt.Errorf("transport: window-message transport closed")
	}
}

// Close destroys the message-only window and unblocks any pending Receive.
func (t *WindowMessageTransport) Close() error {
	t.closeOnce.Do(func() {
		wmTransportRegistry.Delete(t.hwnd)
		close(t.closed)
		_, _, _ = procDestroyWindow.Call(t.hwnd)
	})
	return nil
}

func encodeFrame(msg wire.Message) []byte {
	var buf sliceWriter
	_ = wire.WriteMessage(&buf, msg)
	return buf.b
}

func decodeFrame(b []byte) (wire.Message, error) {
	return wire.ReadMessage(&sliceReader{b: b})
}

// sliceWriter/sliceReader adapt wire.WriteMessage/ReadMessage (which want
// an io.Writer/io.Reader) to a single in-memory WM_COPYDATA buffer,
// since a window message carries one already-complete frame rather than
// a continuous byte stream.
type sliceWriter struct{ b []byte }

func (w *sliceWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

type sliceReader struct {
	b   []byte
	off int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	n := copy(p, r.b[r.off:])
	r.off += n
	if n == 0 {
		return 0, fmt.Errorf("transport: short window-message frame")
	}
	return n, nil
}
