package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"lumashot/internal/domain"
)

var gSecret []byte

// InitVerifier устанавливает секрет для проверки токенов
func InitVerifier(cfg *Config) {
	gSecret = []byte(cfg.JWTSecret)
}

// Ready сообщает, настроена ли проверка токенов
func Ready() bool {
	return len(gSecret) > 0
}

// VerifyToken извлекает bearer-токен из запроса и возвращает ID пользователя
func VerifyToken(r *http.Request) (string, error) {
	authToken := r.Header.Get("Authorization")
	if authToken == "" {
		return "", fmt.Errorf("%w: no authorization header", domain.ErrUnauthorized)
	}

	raw := strings.TrimPrefix(authToken, "Bearer ")

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return gSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: invalid claims", domain.ErrUnauthorized)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}

	return sub, nil
}
