package domain

import "time"

// Member — участник комнаты. Порядок входа важен: при выходе контроллера
// управление получает первый оставшийся (см. registry).
type Member struct {
	UserID      string
	DisplayName string
	JoinedAt    time.Time
}
