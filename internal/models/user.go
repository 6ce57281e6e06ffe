package models

// User — модель пользователя из внешнего CRUD-хранилища админ-панели.
// Ядро сессий её не владеет: использует для выпуска клеймов и проверки,
// что аккаунт всё ещё активен.
type User struct {
	ID       int64
	Username string
	Email    string
	Role     string
	IsActive bool
	// PasswordHash проверяется внешним коллаборатором (bcrypt-адаптер);
	// ядро сравнение паролей не реализует.
	PasswordHash string
}
