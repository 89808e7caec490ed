package hotkey

import (
	"fmt"
	"strconv"
	"strings"
)

// Модификаторы и виртуальные коды клавиш Win32 (winuser.h).
const (
	modAlt     = 0x0001
	modControl = 0x0002
	modShift   = 0x0004
	modWin     = 0x0008

	vkSpace  = 0x20
	vkReturn = 0x0D
	vkEscape = 0x1B
	vkF1     = 0x70
)

// ParseHotkey разбирает строку вида "ctrl+shift+d" в пару (модификаторы, VK-код).
// Требуется хотя бы один модификатор и ровно одна основная клавиша:
// буква, цифра, F1..F24, space, enter или esc. Регистр не важен.
func ParseHotkey(combo string) (mods uint32, vk uint32, err error) {
	tokens := strings.Split(combo, "+")
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			return 0, 0, fmt.Errorf("пустой токен в %q", combo)
		}
		switch tok {
		case "ctrl", "control":
			mods |= modControl
			continue
		case "alt", "menu":
			mods |= modAlt
			continue
		case "shift":
			mods |= modShift
			continue
		case "win", "meta", "super":
			mods |= modWin
			continue
		}
		// основная клавиша — допускается только одна
		if vk != 0 {
			return 0, 0, fmt.Errorf("больше одной основной клавиши в %q", combo)
		}
		k, kerr := parseKey(tok)
		if kerr != nil {
			return 0, 0, kerr
		}
		vk = k
	}
	if vk == 0 {
		return 0, 0, fmt.Errorf("не указана основная клавиша в %q", combo)
	}
	if mods == 0 {
		return 0, 0, fmt.Errorf("нужен хотя бы один модификатор в %q", combo)
	}
	return mods, vk, nil
}

func parseKey(tok string) (uint32, error) {
	switch tok {
	case "space":
		return vkSpace, nil
	case "enter", "return":
		return vkReturn, nil
	case "esc", "escape":
		return vkEscape, nil
	}
	// F1..F24
	if strings.HasPrefix(tok, "f") && len(tok) > 1 {
		if n, err := strconv.Atoi(tok[1:]); err == nil {
			if n < 1 || n > 24 {
				return 0, fmt.Errorf("функциональная клавиша вне диапазона: %q", tok)
			}
			return uint32(vkF1 + n - 1), nil
		}
	}
	if len(tok) == 1 {
		c := tok[0]
		// VK букв и цифр совпадают с ASCII кодами 'A'..'Z' и '0'..'9'
		if c >= 'a' && c <= 'z' {
			return uint32(c - 'a' + 'A'), nil
		}
		if c >= '0' && c <= '9' {
			return uint32(c), nil
		}
	}
	return 0, fmt.Errorf("неизвестная клавиша: %q", tok)
}
