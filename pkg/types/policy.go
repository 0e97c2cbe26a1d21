// Package types provides the core data types shared across the Roslyn-Stone
// execution engine: security policy, session metadata, diagnostics, and
// execution outcomes.
package types

import (
	"strings"
	"time"
)

// SecurityPolicy is an immutable set of limits and restrictions enforced by
// the execution engine for every snippet it runs. Construct one with
// DevelopmentPolicy, ProductionPolicy, or by filling in the struct directly.
type SecurityPolicy struct {
	// ExecutionTimeout bounds wall-clock execution time. Zero
	// (InfiniteTimeout) means no limit.
	ExecutionTimeout time.Duration

	// MaxMemoryBytes bounds the delta between allocated-heap samples taken
	// before and during execution. Zero means unlimited.
	MaxMemoryBytes int64

	// ForbiddenIdentifiers is the set of identifier names (matched
	// case-insensitively) whose lexical appearance in user source fails
	// static analysis before compilation is attempted.
	ForbiddenIdentifiers map[string]struct{}

	// BlockedModules is the set of runtime module name prefixes the
	// sandbox loader refuses to resolve, e.g. "System.IO".
	BlockedModules []string

	RestrictAPIs         bool
	EnforceTimeout       bool
	EnforceMemory        bool
	MaskSessionIDsInLogs bool
}

// InfiniteTimeout signals that SecurityPolicy.ExecutionTimeout carries no
// bound; it is the zero value's counterpart when EnforceTimeout is false.
const InfiniteTimeout time.Duration = 0

// defaultForbiddenIdentifiers returns the minimum set spec.md §4.1 requires:
// arbitrary file I/O, child-process creation, network clients, native-code
// bridging, and process-wide termination.
func defaultForbiddenIdentifiers() map[string]struct{} {
	names := []string{
		"File", "Directory", "FileInfo", "DirectoryInfo", "DriveInfo",
		"FileStream", "StreamWriter", "StreamReader",
		"Process", "ProcessStartInfo",
		"Socket", "TcpClient", "TcpListener", "UdpClient", "HttpClient", "WebClient",
		"DllImportAttribute", "Marshal", "NativeLibrary",
		"Environment",
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// defaultBlockedModules returns the runtime module prefixes that re-expose
// the forbidden identifiers above.
func defaultBlockedModules() []string {
	return []string{
		"System.IO",
		"System.Diagnostics.Process",
		"System.Net.Sockets",
		"System.Net.Http",
		"System.Runtime.InteropServices",
	}
}

// DevelopmentPolicy returns the permissive preset: analyzer off, a generous
// timeout, unlimited memory.
func DevelopmentPolicy() SecurityPolicy {
	return SecurityPolicy{
		ExecutionTimeout:     60 * time.Second,
		MaxMemoryBytes:       0,
		ForbiddenIdentifiers: defaultForbiddenIdentifiers(),
		BlockedModules:       defaultBlockedModules(),
		RestrictAPIs:         false,
		EnforceTimeout:       true,
		EnforceMemory:        false,
		MaskSessionIDsInLogs: false,
	}
}

// ProductionPolicy returns the strict preset: analyzer on, 30s timeout,
// 512MB memory ceiling, full blocklists.
func ProductionPolicy() SecurityPolicy {
	return SecurityPolicy{
		ExecutionTimeout:     30 * time.Second,
		MaxMemoryBytes:       512 * 1024 * 1024,
		ForbiddenIdentifiers: defaultForbiddenIdentifiers(),
		BlockedModules:       defaultBlockedModules(),
		RestrictAPIs:         true,
		EnforceTimeout:       true,
		EnforceMemory:        true,
		MaskSessionIDsInLogs: true,
	}
}

// IsForbidden reports whether name names a forbidden identifier, matching
// case-insensitively per spec.md §4.3.
func (p SecurityPolicy) IsForbidden(name string) bool {
	if !p.RestrictAPIs {
		return false
	}
	for forbidden := range p.ForbiddenIdentifiers {
		if strings.EqualFold(forbidden, name) {
			return true
		}
	}
	return false
}

// IsBlockedModule reports whether moduleName matches a blocked prefix,
// case-insensitively, with prefix match on "X." per spec.md §4.5.
func (p SecurityPolicy) IsBlockedModule(moduleName string) bool {
	for _, prefix := range p.BlockedModules {
		if strings.EqualFold(moduleName, prefix) {
			return true
		}
		if len(moduleName) > len(prefix) &&
			strings.EqualFold(moduleName[:len(prefix)], prefix) &&
			moduleName[len(prefix)] == '.' {
			return true
		}
	}
	return false
}
