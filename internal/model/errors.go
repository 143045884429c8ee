package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest - запрос не прошёл проверку.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotConfigured - нет ключа или настроек провайдера. Вызов блокируется до сетевого ввода-вывода.
	ErrNotConfigured = errors.New("provider is not configured")
	// ErrProviderFailed - общая ошибка адаптера провайдера.
	ErrProviderFailed = errors.New("provider call failed")
)

// ProviderErrorKind классифицирует сбой провайдера.
type ProviderErrorKind string

const (
	ProviderErrorNetwork   ProviderErrorKind = "network"
	ProviderErrorAuth      ProviderErrorKind = "auth"
	ProviderErrorQuota     ProviderErrorKind = "quota"
	ProviderErrorMalformed ProviderErrorKind = "malformed_response"
	ProviderErrorStatus    ProviderErrorKind = "status"
)

// ProviderError - типизированная ошибка адаптера.
type ProviderError struct {
	Kind       ProviderErrorKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is позволяет проверять любую ошибку провайдера через errors.Is(err, ErrProviderFailed).
func (e *ProviderError) Is(target error) bool { return target == ErrProviderFailed }
