package model

import "errors"

// 错误分类
var (
	// ErrInvalidArgument is returned for bad caller-supplied parameters.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrShapeError is returned when array dimensions disagree with the declared axis sizes.
	ErrShapeError = errors.New("shape error")

	// ErrNotFound is returned for a missing file, variable, frame or task.
	ErrNotFound = errors.New("not found")

	// ErrNotImplemented is returned for unsupported option combinations.
	ErrNotImplemented = errors.New("not implemented")
)
