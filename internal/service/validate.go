package service

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// maxPasswordBytes — предел bcrypt: длина считается в байтах, а не в рунах.
const maxPasswordBytes = 72

// profileRules — ограничения формата полей профиля (обязательность проверяется отдельно).
type profileRules struct {
	Username string `validate:"omitempty,min=3,max=30,username"`
	Email    string `validate:"omitempty,email,max=254"`
	FullName string `validate:"omitempty,max=100"`
	Password string `validate:"omitempty,pwbytes"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})

	_ = v.RegisterValidation("pwbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})

	return v
}
