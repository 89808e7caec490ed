//go:build windows

package typer

import (
	"fmt"
	"time"
	"unicode/utf16"
	"unsafe"

	"github.com/atotto/clipboard"
	"github.com/lxn/win"
	"github.com/micmonay/keybd_event"
)

// keyboard эмулирует ввод через SendInput (KEYEVENTF_UNICODE) и вставку Ctrl+V.
type keyboard struct {
	pasteSettle time.Duration
	kb          keybd_event.KeyBonding
}

func newKeyboard(pasteSettle time.Duration) (Inserter, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("typer: keybd_event init: %w", err)
	}
	return &keyboard{pasteSettle: pasteSettle, kb: kb}, nil
}

// TypeText печатает произвольный юникод-текст. KEYEVENTF_UNICODE кладёт в WScan
// UTF-16 код и не зависит от раскладки; символы вне BMP уходят суррогатной парой.
func (k *keyboard) TypeText(text string) error {
	if text == "" {
		return nil
	}
	units := utf16.Encode([]rune(text))
	inputs := make([]win.KEYBD_INPUT, 0, 2*len(units))
	for _, u := range units {
		inputs = append(inputs,
			win.KEYBD_INPUT{
				Type: win.INPUT_KEYBOARD,
				Ki:   win.KEYBDINPUT{WScan: u, DwFlags: win.KEYEVENTF_UNICODE},
			},
			win.KEYBD_INPUT{
				Type: win.INPUT_KEYBOARD,
				Ki:   win.KEYBDINPUT{WScan: u, DwFlags: win.KEYEVENTF_UNICODE | win.KEYEVENTF_KEYUP},
			},
		)
	}
	return sendInputs(inputs)
}

// Backspace стирает n символов клавишей VK_BACK.
func (k *keyboard) Backspace(n int) error {
	if n <= 0 {
		return nil
	}
	inputs := make([]win.KEYBD_INPUT, 0, 2*n)
	for i := 0; i < n; i++ {
		inputs = append(inputs,
			win.KEYBD_INPUT{
				Type: win.INPUT_KEYBOARD,
				Ki:   win.KEYBDINPUT{WVk: win.VK_BACK},
			},
			win.KEYBD_INPUT{
				Type: win.INPUT_KEYBOARD,
				Ki:   win.KEYBDINPUT{WVk: win.VK_BACK, DwFlags: win.KEYEVENTF_KEYUP},
			},
		)
	}
	return sendInputs(inputs)
}

// Paste сохраняет буфер обмена, кладёт туда текст, жмёт Ctrl+V и восстанавливает
// прежнее содержимое. Восстановление выполняется даже если нажатие не удалось.
func (k *keyboard) Paste(text string) error {
	if text == "" {
		return nil
	}
	// Старое содержимое; ошибка чтения не фатальна (буфер мог быть не текстовым)
	old, _ := clipboard.ReadAll()

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("typer: clipboard write: %w", err)
	}

	k.kb.Clear()
	k.kb.SetKeys(keybd_event.VK_V)
	k.kb.HasCTRL(true)
	pressErr := k.kb.Launching()

	// Пауза, чтобы целевое приложение успело обработать Ctrl+V до отката буфера
	time.Sleep(k.pasteSettle)
	if err := clipboard.WriteAll(old); err != nil && pressErr == nil {
		return fmt.Errorf("typer: clipboard restore: %w", err)
	}
	if pressErr != nil {
		return fmt.Errorf("typer: paste keystroke: %w", pressErr)
	}
	return nil
}

func sendInputs(inputs []win.KEYBD_INPUT) error {
	if len(inputs) == 0 {
		return nil
	}
	n := win.SendInput(uint32(len(inputs)), unsafe.Pointer(&inputs[0]), int32(unsafe.Sizeof(inputs[0])))
	if n != uint32(len(inputs)) {
		return fmt.Errorf("typer: SendInput вставил %d из %d событий", n, len(inputs))
	}
	return nil
}
