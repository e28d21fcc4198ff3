package pcap

import (
	"errors"
	"fmt"
)

// ErrDeviceNotOpen a live filter operation was attempted on a device that is
// not open
var ErrDeviceNotOpen = errors.New("device not open")

// CompileError the expression was rejected by the compiler backend
type CompileError struct {
	Expression string
	// Diagnostic the compiler's own message
	Diagnostic string
	Err        error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("failed to compile filter %q: %s", e.Expression, e.Diagnostic)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// InstallError the compiled program was rejected by the capture session
type InstallError struct {
	Expression string
	Err        error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("unable to set filter %q: %v", e.Expression, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

func newCompileError(expr string, err error) *CompileError {
	return &CompileError{
		Expression: expr,
		Diagnostic: err.Error(),
		Err:        err,
	}
}
