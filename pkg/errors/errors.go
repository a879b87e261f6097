// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误，调用方使用 errors.Is 判断
var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidArg  = errors.New("invalid argument")
	ErrTimeout     = errors.New("task timed out")
	ErrPersistence = errors.New("persistence failure")
	ErrInterrupted = errors.New("task interrupted")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is 透传标准库 errors.Is，避免调用方同时导入两个 errors 包
func Is(err, target error) bool {
	return errors.Is(err, target)
}
