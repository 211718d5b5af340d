// models содержит доменные сущности accounts-сервиса.
// Эти типы используются слоями бизнес-логики, хранилища и транспорта.
package models

import (
	"time"

	"github.com/google/uuid"
)

// User — учётная запись пользователя.
// Важно:
//   - Username и Email хранятся в нижнем регистре и уникальны;
//   - PasswordHash — только bcrypt-хэш, открытый пароль нигде не хранится;
//   - RefreshToken — последний выданный refresh-токен или пусто (сессии нет);
//   - PasswordHash и RefreshToken никогда не попадают в JSON-проекцию наружу.
type User struct {
	ID           uuid.UUID `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Avatar       string    `json:"avatar"`
	CoverImage   string    `json:"coverImage"`
	PasswordHash string    `json:"-"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Projection возвращает копию пользователя без секретных полей.
// JSON-теги уже скрывают их, но проекция защищает и от случайного логирования/копирования.
func (u *User) Projection() *User {
	if u == nil {
		return nil
	}

	p := *u
	p.PasswordHash = ""
	p.RefreshToken = ""

	return &p
}
