// Package resolver implements the dependency resolver described in
// spec.md §4.6: given a package id and optional version, produce local
// artifact paths compatible with the host runtime, fetched from an
// external package repository.
//
// The repository protocol itself is out of scope (spec.md §1) - Resolver
// depends on the Repository interface below, not on any one wire format,
// the same way the engine depends on the Compiler interface rather than a
// concrete compiler. Resolver owns the parts that are in scope: version
// selection, runtime-variant best match, lib/ vs ref/ filtering, and
// caching so a repeated resolution within the process doesn't re-fetch.
package resolver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/mod/semver"

	"github.com/roslyn-stone/roslyn-stone/internal/logging"
	"github.com/roslyn-stone/roslyn-stone/internal/storage"
)

// Variant is one runtime-targeted build of a package version, as returned
// by a Repository.
type Variant struct {
	// TargetFramework is a moniker like "net8.0", "net6.0", "netstandard2.1".
	TargetFramework string
	// Files maps an artifact's repository-relative path (e.g.
	// "lib/net8.0/Newtonsoft.Json.dll") to its bytes. Only entries whose
	// path starts with "lib/" are compile/runtime artifacts; "ref/"
	// entries are compile-time-only and must never be returned to the
	// sandbox loader.
	Files map[string][]byte
}

// Repository is the opaque package repository collaborator. A concrete
// implementation speaks whatever wire protocol the configured repository
// URL expects (see HTTPRepository for a NuGet-v3-shaped one).
type Repository interface {
	ListVersions(ctx context.Context, packageID string) ([]string, error)
	FetchVariants(ctx context.Context, packageID, version string) ([]Variant, error)
}

// Resolver is the DependencyResolver of spec.md §4.6.
type Resolver struct {
	repo        Repository
	hostRuntime string
	cacheDir    string

	mem  *lru.Cache[string, []string]
	disk *storage.Storage

	mu sync.Mutex
}

// New returns a Resolver that queries repo, resolves variants against
// hostRuntime (e.g. "net8.0"), and caches resolved artifact bytes under
// cacheDir.
func New(repo Repository, hostRuntime, cacheDir string) (*Resolver, error) {
	mem, err := lru.New[string, []string](256)
	if err != nil {
		return nil, fmt.Errorf("create resolver cache: %w", err)
	}
	return &Resolver{
		repo:        repo,
		hostRuntime: hostRuntime,
		cacheDir:    cacheDir,
		mem:         mem,
		disk:        storage.New(cacheDir),
	}, nil
}

type diskRecord struct {
	Paths []string `json:"paths"`
}

// Resolve returns local artifact paths for packageID at version (latest
// stable if version is empty), per spec.md §4.6.
func (r *Resolver) Resolve(ctx context.Context, packageID, version string) ([]string, error) {
	resolvedVersion := version
	if resolvedVersion == "" {
		v, err := r.latestStable(ctx, packageID)
		if err != nil {
			return nil, err
		}
		resolvedVersion = v
	}

	cacheKey := packageID + "@" + resolvedVersion
	if paths, ok := r.mem.Get(cacheKey); ok {
		return paths, nil
	}

	var rec diskRecord
	if err := r.disk.Get(ctx, []string{"packages", sanitize(packageID), sanitize(resolvedVersion)}, &rec); err == nil {
		r.mem.Add(cacheKey, rec.Paths)
		return rec.Paths, nil
	}

	variants, err := r.repo.FetchVariants(ctx, packageID, resolvedVersion)
	if err != nil {
		return nil, &Error{Code: CodePackageDownloadFailed, PackageID: packageID, Version: resolvedVersion, cause: err}
	}
	if len(variants) == 0 {
		return nil, &Error{Code: CodePackageNotFound, PackageID: packageID, Version: resolvedVersion}
	}

	variant, ok := bestMatch(variants, r.hostRuntime)
	if !ok {
		return nil, &Error{Code: CodePackageIncompatible, PackageID: packageID, Version: resolvedVersion}
	}

	paths, err := r.materialize(packageID, resolvedVersion, variant)
	if err != nil {
		return nil, &Error{Code: CodePackageDownloadFailed, PackageID: packageID, Version: resolvedVersion, cause: err}
	}
	if len(paths) == 0 {
		return nil, &Error{Code: CodePackageIncompatible, PackageID: packageID, Version: resolvedVersion}
	}

	r.mem.Add(cacheKey, paths)
	_ = r.disk.Put(ctx, []string{"packages", sanitize(packageID), sanitize(resolvedVersion)}, diskRecord{Paths: paths})

	logging.Info().Str("package", packageID).Str("version", resolvedVersion).Int("artifacts", len(paths)).Msg("package resolved")
	return paths, nil
}

// materialize writes variant's lib/ files to the cache directory and
// returns their local paths, excluding any ref/ (compile-time-only) entry.
func (r *Resolver) materialize(packageID, version string, variant Variant) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Join(r.cacheDir, "artifacts", sanitize(packageID), sanitize(version))
	var paths []string
	for path, data := range variant.Files {
		if !strings.HasPrefix(path, "lib/") {
			continue
		}
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := writeFileAll(full, data); err != nil {
			return nil, err
		}
		paths = append(paths, full)
	}
	return dedupe(paths), nil
}

func (r *Resolver) latestStable(ctx context.Context, packageID string) (string, error) {
	versions, err := r.repo.ListVersions(ctx, packageID)
	if err != nil {
		return "", &Error{Code: CodePackageDownloadFailed, PackageID: packageID, cause: err}
	}
	best := ""
	for _, v := range versions {
		if isPrerelease(v) {
			continue
		}
		if best == "" || compareVersions(v, best) > 0 {
			best = v
		}
	}
	if best == "" {
		return "", &Error{Code: CodePackageNotFound, PackageID: packageID}
	}
	return best, nil
}

// bestMatch picks the variant nearest to hostRuntime: same major preferred,
// else the highest target-framework version not exceeding the host.
func bestMatch(variants []Variant, hostRuntime string) (Variant, bool) {
	hostMajor, hostVersion := parseFramework(hostRuntime)

	var best Variant
	var bestVersion string
	found := false
	for _, v := range variants {
		major, version := parseFramework(v.TargetFramework)
		if major != hostMajor {
			continue
		}
		if compareVersions(version, hostVersion) > 0 {
			continue // exceeds host
		}
		if !found || compareVersions(version, bestVersion) > 0 {
			best, bestVersion, found = v, version, true
		}
	}
	if found {
		return best, true
	}

	// No same-major match: fall back to the highest variant not exceeding
	// the host runtime version at all.
	for _, v := range variants {
		_, version := parseFramework(v.TargetFramework)
		if compareVersions(version, hostVersion) > 0 {
			continue
		}
		if !found || compareVersions(version, bestVersion) > 0 {
			best, bestVersion, found = v, version, true
		}
	}
	return best, found
}

// parseFramework splits a moniker like "net8.0" or "netstandard2.1" into a
// family ("net", "netstandard") and a dotted version ("8.0", "2.1").
func parseFramework(moniker string) (family, version string) {
	i := strings.IndexAny(moniker, "0123456789")
	if i == -1 {
		return moniker, "0.0"
	}
	return moniker[:i], moniker[i:]
}

// compareVersions compares two dotted version strings (not necessarily
// full semver) using golang.org/x/mod/semver by normalizing to "vX.Y.Z".
func compareVersions(a, b string) int {
	return semver.Compare(normalizeSemver(a), normalizeSemver(b))
}

func normalizeSemver(v string) string {
	v = strings.TrimPrefix(v, "v")
	parts := strings.SplitN(v, "-", 2)
	segs := strings.Split(parts[0], ".")
	for len(segs) < 3 {
		segs = append(segs, "0")
	}
	norm := "v" + strings.Join(segs[:3], ".")
	if len(parts) > 1 {
		norm += "-" + parts[1]
	}
	return norm
}

func isPrerelease(v string) bool {
	return strings.Contains(v, "-")
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '-'
		}
		return r
	}, strings.ToLower(s))
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
