package models

import "time"

// TokenPair — пара токенов, выдаваемая при входе и обновлении сессии.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API, на сервере не хранится;
//   - RefreshToken — долгоживущий JWT, его точное значение хранится в записи
//     пользователя и сверяется при обновлении пары;
//   - AccessExpiresAt/RefreshExpiresAt — моменты истечения (UTC), нужны для cookie.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Session — результат успешного входа: пара токенов и проекция пользователя.
type Session struct {
	Tokens *TokenPair
	User   *User
}
