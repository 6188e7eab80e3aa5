package utils

import "fmt"

// ErrorKind 业务错误分类
type ErrorKind int

const (
	ErrValidation  ErrorKind = iota // 参数缺失 / 格式错误
	ErrNotFound                     // 关系 / 档案 / 类型不存在
	ErrConflict                     // 重复关系、自我配对
	ErrState                        // 非法状态迁移
	ErrCapacity                     // 搭档数量已达上限
	ErrPrivacy                      // 对方隐私设置拒绝请求
	ErrUnknownType                  // 成就目录中不存在的类型
)

// AppError 带分类的业务错误，handler 层据此映射 HTTP 状态码
type AppError struct {
	Kind    ErrorKind
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(kind ErrorKind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(format string, args ...interface{}) *AppError {
	return NewAppError(ErrValidation, format, args...)
}

func NotFoundError(format string, args ...interface{}) *AppError {
	return NewAppError(ErrNotFound, format, args...)
}

func ConflictError(format string, args ...interface{}) *AppError {
	return NewAppError(ErrConflict, format, args...)
}

func StateError(format string, args ...interface{}) *AppError {
	return NewAppError(ErrState, format, args...)
}

func CapacityError(format string, args ...interface{}) *AppError {
	return NewAppError(ErrCapacity, format, args...)
}

func PrivacyError(format string, args ...interface{}) *AppError {
	return NewAppError(ErrPrivacy, format, args...)
}

func UnknownTypeError(format string, args ...interface{}) *AppError {
	return NewAppError(ErrUnknownType, format, args...)
}
