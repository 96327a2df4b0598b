package models

import (
	"errors"
	"fmt"
)

// Error kinds reported by the update pipeline. Match them with errors.Is.
var (
	ErrNetwork                  = errors.New("network error")
	ErrPackageSize              = errors.New("package size mismatch")
	ErrPackageVerify            = errors.New("package verification failed")
	ErrPackageInfoFormat        = errors.New("invalid package info")
	ErrUnsupportedPackageFormat = errors.New("unsupported package format")
	ErrUnsupportedHashAlgorithm = errors.New("unsupported hash algorithm")
	ErrOpenFile                 = errors.New("open file failed")
	ErrPackageExtract           = errors.New("package extract failed")
	ErrMoveFile                 = errors.New("move file failed")
	ErrRunInstallerPosition     = errors.New("installer runs inside the target directory")
	ErrRunInstaller             = errors.New("run installer failed")
	ErrRunNewVersion            = errors.New("run new version failed")
	ErrMalformedInstallArgs     = errors.New("malformed install arguments")
)

/**
 * UpdateError 更新流程错误，携带错误类别与底层原因
 * @property {error} Kind - 错误类别，取值为本包定义的 Err* 之一
 * @property {string} Msg - 附加说明(路径、版本等)
 * @property {error} Err - 底层原因，可以为nil
 * @description
 * - errors.Is 同时匹配 Kind 与 Err 链上的任意错误
 */
type UpdateError struct {
	Kind error
	Msg  string
	Err  error
}

func (e *UpdateError) Error() string {
	s := e.Kind.Error()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *UpdateError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError builds an UpdateError of the given kind with a formatted message.
func NewError(kind error, format string, args ...any) error {
	return &UpdateError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError builds an UpdateError of the given kind around cause.
func WrapError(kind error, cause error, format string, args ...any) error {
	return &UpdateError{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// ErrorKind returns the kind carried by err, or nil when err is not an UpdateError.
func ErrorKind(err error) error {
	var ue *UpdateError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return nil
}

// KindName is a short stable label for err, used in metrics and result files.
func KindName(err error) string {
	if err == nil {
		return "ok"
	}
	switch ErrorKind(err) {
	case ErrNetwork:
		return "network"
	case ErrPackageSize:
		return "package_size"
	case ErrPackageVerify:
		return "package_verify"
	case ErrPackageInfoFormat:
		return "package_info_format"
	case ErrUnsupportedPackageFormat:
		return "unsupported_package_format"
	case ErrUnsupportedHashAlgorithm:
		return "unsupported_hash_algorithm"
	case ErrOpenFile:
		return "open_file"
	case ErrPackageExtract:
		return "package_extract"
	case ErrMoveFile:
		return "move_file"
	case ErrRunInstallerPosition:
		return "run_installer_position"
	case ErrRunInstaller:
		return "run_installer"
	case ErrRunNewVersion:
		return "run_new_version"
	case ErrMalformedInstallArgs:
		return "malformed_install_args"
	}
	return "unknown"
}
