package sftpwire

import (
	"path/filepath"
	"runtime"
	"strings"
)

// jail maps client-supplied virtual paths onto a physical root
// directory, clamping any attempted traversal back to the root rather
// than erroring. Generalized from an error-returning guard to a clamp
// requires.
type jail struct {
	root string // canonicalized, absolute
}

func newJail(root string) (*jail, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &jail{root: filepath.Clean(abs)}, nil
}

// toPhysical resolves a client virtual path to an absolute physical
// path inside the jail root. It never errors: any escape attempt
// clamps transparently to the root.
func (j *jail) toPhysical(virtual string) string {
	if virtual == "" || virtual == "." || virtual == "/" {
		return j.root
	}

	p := strings.ReplaceAll(virtual, "/", string(filepath.Separator))
	p = strings.TrimPrefix(p, string(filepath.Separator))

	candidate := filepath.Join(j.root, p)
	candidate = filepath.Clean(candidate)

	if !j.contains(candidate) {
		return j.root
	}
	return candidate
}

// contains reports whether p is the root itself or lies under it.
func (j *jail) contains(p string) bool {
	root := j.root
	if caseInsensitiveFS() {
		p = strings.ToLower(p)
		root = strings.ToLower(root)
	}
	if p == root {
		return true
	}
	return strings.HasPrefix(p, root+string(filepath.Separator))
}

// toVirtual inverts toPhysical: strips the jail root and renders a
// forward-slash-rooted virtual path. The root itself becomes "/".
func (j *jail) toVirtual(physical string) string {
	clean := filepath.Clean(physical)
	root := j.root
	cmp, cmpRoot := clean, root
	if caseInsensitiveFS() {
		cmp, cmpRoot = strings.ToLower(clean), strings.ToLower(root)
	}
	if cmp == cmpRoot {
		return "/"
	}
	rel := clean
	if strings.HasPrefix(cmp, cmpRoot+string(filepath.Separator)) {
		rel = clean[len(root)+1:]
	}
	rel = strings.ReplaceAll(rel, string(filepath.Separator), "/")
	return "/" + rel
}

// caseInsensitiveFS reports whether the host filesystem's path
// comparisons should be treated as case-insensitive.
func caseInsensitiveFS() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}
