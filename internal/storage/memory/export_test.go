package memory

// OrderLockCount возвращает число замков пересчёта, которые держит хранилище.
func (l *Ledger) OrderLockCount() int {
	n := 0
	l.orderLocks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
