package memory

// blockingList - список, который можно заблокировать: пока он заблокирован,
// Append и Remove принимаются, но ничего не меняют. Синхронизация на стороне владельца.
type blockingList[T any] struct {
	items   []T
	blocked bool
}

func newBlockingList[T any](items []T) blockingList[T] {
	return blockingList[T]{items: items}
}

// Append добавляет элемент, если список открыт. Возвращает true, если элемент добавлен.
func (l *blockingList[T]) Append(v T) bool {
	if l.blocked {
		return false
	}
	l.items = append(l.items, v)
	return true
}

// Remove удаляет первый элемент, подходящий под match.
func (l *blockingList[T]) Remove(match func(T) bool) bool {
	if l.blocked {
		return false
	}
	for i, item := range l.items {
		if match(item) {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

// Find возвращает первый подходящий элемент.
func (l *blockingList[T]) Find(match func(T) bool) (T, bool) {
	for _, item := range l.items {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Items возвращает копию среза элементов.
func (l *blockingList[T]) Items() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

func (l *blockingList[T]) Len() int { return len(l.items) }

// Replace подменяет содержимое, сохраняя состояние блокировки.
func (l *blockingList[T]) Replace(items []T) { l.items = items }

// Clear очищает список независимо от блокировки.
func (l *blockingList[T]) Clear() { l.items = nil }

func (l *blockingList[T]) Block()        { l.blocked = true }
func (l *blockingList[T]) Unblock()      { l.blocked = false }
func (l *blockingList[T]) Blocked() bool { return l.blocked }
