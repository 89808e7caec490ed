package typer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconcile(t *testing.T) {
	cases := []struct {
		name       string
		prev, next string
		backspaces int
		typeText   string
	}{
		{name: "одинаковый текст", prev: "привет", next: "привет", backspaces: 0, typeText: ""},
		{name: "с нуля", prev: "", next: "hello", backspaces: 0, typeText: "hello"},
		{name: "дописывание хвоста", prev: "hello", next: "hello world", backspaces: 0, typeText: " world"},
		{name: "полная замена", prev: "hello word", next: "hello world", backspaces: 10, typeText: "hello world"},
		{name: "замена на пусто", prev: "oops", next: "", backspaces: 4, typeText: ""},
		{name: "руны считаются посимвольно", prev: "привет мир", next: "привет всем", backspaces: 10, typeText: "привет всем"},
		{name: "суффикс с рунами", prev: "привет", next: "привет, мир", backspaces: 0, typeText: ", мир"},
		{name: "укорачивание гипотезы", prev: "one two three", next: "one two", backspaces: 13, typeText: "one two"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bs, txt := Reconcile(tc.prev, tc.next)
			assert.Equal(t, tc.backspaces, bs, "backspaces")
			assert.Equal(t, tc.typeText, txt, "typeText")
		})
	}
}

// Применение правки к prev обязано давать next — инвариант реконсиляции.
func TestReconcileRoundtrip(t *testing.T) {
	pairs := [][2]string{
		{"", ""},
		{"", "a"},
		{"abc", "abcdef"},
		{"abc", "xyz"},
		{"привет мир", "привет мир!"},
		{"hello wor", "hello world"},
		{"так", "иначе"},
	}
	for _, p := range pairs {
		prev, next := p[0], p[1]
		bs, txt := Reconcile(prev, next)
		r := []rune(prev)
		assert.LessOrEqual(t, bs, len(r))
		got := string(r[:len(r)-bs]) + txt
		assert.Equal(t, next, got, "prev=%q next=%q", prev, next)
	}
}
