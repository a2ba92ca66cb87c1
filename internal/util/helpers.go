package util

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Timestamped добавляет к имени файла текущее время, чтобы повторные загрузки не совпадали.
func Timestamped(name string) string {
	ts := time.Now().Format("20060102_150405")
	return fmt.Sprintf("%s__%s", ts, name)
}

// TruncateRunes обрезает s до n рун.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	rs := []rune(s)
	return string(rs[:n])
}

// Batches режет items на подряд идущие группы не больше size элементов.
// Группы делят общий массив с items.
func Batches[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end:end])
	}
	return out
}
