//go:build !windows

package hotkey

import "errors"

func newWinListener(mods, vk uint32) (winListener, error) {
	return nil, errors.New("hotkey: windows listener unavailable on this platform")
}
