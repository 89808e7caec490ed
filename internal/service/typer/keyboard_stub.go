//go:build !windows

package typer

import (
	"errors"
	"time"
)

func newKeyboard(pasteSettle time.Duration) (Inserter, error) {
	return nil, errors.New("typer: keyboard insertion unavailable on this platform")
}
