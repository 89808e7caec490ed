//go:build windows

package hotkey

import (
	"context"
	"errors"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"
)

// Обёртки для функций, которых нет в lxn/win
var (
	user32               = syscall.NewLazyDLL("user32.dll")
	procRegisterHotKey   = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey = user32.NewProc("UnregisterHotKey")
)

type winImpl struct {
	mods uint32
	vk   uint32
}

func newWinListener(mods, vk uint32) (winListener, error) {
	return &winImpl{mods: mods, vk: vk}, nil
}

func (w *winImpl) run(ctx context.Context, out chan<- Event) error {
	// UI/WinAPI должен жить в закрепленном системном потоке
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	className := syscall.StringToUTF16Ptr("DictationHotkeyWindowClass")

	// Регистрация класса окна
	var wc win.WNDCLASSEX
	wc.CbSize = uint32(unsafe.Sizeof(wc))
	wc.LpfnWndProc = syscall.NewCallback(func(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
		switch msg {
		case win.WM_HOTKEY:
			select {
			case out <- Event{At: time.Now()}:
			default:
				// потребитель отстаёт — нажатие дропается
			}
			return 0
		case win.WM_DESTROY:
			win.PostQuitMessage(0)
			return 0
		}
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	})
	wc.HInstance = win.GetModuleHandle(nil)
	wc.LpszClassName = className
	if win.RegisterClassEx(&wc) == 0 {
		// возможно, уже зарегистрирован — пробуем продолжить
	}

	// Создаём скрытое окно
	hwnd := win.CreateWindowEx(
		0,
		className,
		syscall.StringToUTF16Ptr("DictationHotkeyWindow"),
		0,
		0, 0, 0, 0, // x, y, width, height
		0, // parent
		0, // menu
		wc.HInstance,
		nil,
	)
	if hwnd == 0 {
		return errors.New("hotkey: CreateWindowEx вернул 0")
	}

	// Регистрируем глобальный хоткей
	const hotkeyID = 1
	if !registerHotKey(hwnd, hotkeyID, w.mods, w.vk) {
		win.DestroyWindow(hwnd)
		return errors.New("hotkey: RegisterHotKey не удался (клавиша занята другим приложением?)")
	}

	// Параллельно следим за ctx и закрываем окно
	go func() {
		<-ctx.Done()
		win.PostMessage(hwnd, win.WM_CLOSE, 0, 0)
	}()

	// Цикл сообщений до WM_QUIT
	msg := new(win.MSG)
	for {
		r := win.GetMessage(msg, 0, 0, 0)
		if r == 0 || r == -1 { // WM_QUIT или ошибка
			break
		}
		win.TranslateMessage(msg)
		win.DispatchMessage(msg)
	}

	// Очистка
	_ = unregisterHotKey(hwnd, hotkeyID)
	win.DestroyWindow(hwnd)
	return context.Cause(ctx)
}

func registerHotKey(hwnd win.HWND, id int32, modifiers uint32, vk uint32) bool {
	if procRegisterHotKey.Find() != nil {
		return false
	}
	r, _, _ := procRegisterHotKey.Call(uintptr(hwnd), uintptr(id), uintptr(modifiers), uintptr(vk))
	return r != 0
}

func unregisterHotKey(hwnd win.HWND, id int32) bool {
	if procUnregisterHotKey.Find() != nil {
		return false
	}
	r, _, _ := procUnregisterHotKey.Call(uintptr(hwnd), uintptr(id))
	return r != 0
}
