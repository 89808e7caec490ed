package typer

import "strings"

// Reconcile вычисляет минимальную правку для перехода от уже показанного текста
// prev к новой гипотезе next: сколько символов стереть backspace'ами и какой
// хвост допечатать. Если next продолжает prev — стирать нечего, печатаем только
// добавленный суффикс; иначе стираем prev целиком и печатаем next заново.
// Считаем в рунах: backspace в поле ввода удаляет символ, а не байт.
func Reconcile(prev, next string) (backspaces int, typeText string) {
	if prev == next {
		return 0, ""
	}
	if strings.HasPrefix(next, prev) {
		return 0, next[len(prev):]
	}
	return len([]rune(prev)), next
}
