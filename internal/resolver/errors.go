package resolver

import (
	"fmt"

	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// Code identifies the structured resolution failure taxonomy from
// spec.md §4.6, mirroring the diagnostic codes in pkg/types.
type Code string

const (
	CodePackageNotFound       Code = types.CodePackageNotFound
	CodePackageIncompatible   Code = types.CodePackageIncompatible
	CodePackageDownloadFailed Code = types.CodePackageDownloadFail
)

// Error is returned by Resolver.Resolve on every failure path, always
// carrying one of the Code constants above.
type Error struct {
	Code      Code
	PackageID string
	Version   string
	cause     error
}

func (e *Error) Error() string {
	ref := e.PackageID
	if e.Version != "" {
		ref += "@" + e.Version
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, ref, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, ref)
}

func (e *Error) Unwrap() error { return e.cause }
