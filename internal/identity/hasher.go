package identity

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// Hasher определяет, в каком виде пароль хранится в коллекции users
type Hasher interface {
	Hash(password string) (string, error)
	Compare(stored, password string) bool
}

// BcryptHasher хранит соленый bcrypt-хеш. Записи, сохраненные открытым текстом
// в старом формате, по-прежнему принимаются.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h BcryptHasher) Compare(stored, password string) bool {
	if _, err := bcrypt.Cost([]byte(stored)); err != nil {
		return PlainHasher{}.Compare(stored, password)
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// PlainHasher хранит пароль открытым текстом, как исходное приложение.
// Не использовать вне демонстрационных установок.
type PlainHasher struct{}

func (PlainHasher) Hash(password string) (string, error) {
	return password, nil
}

func (PlainHasher) Compare(stored, password string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}
