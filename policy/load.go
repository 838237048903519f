package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/trifectatechfoundation/sudo-rs-sub002/sudolog"
)

const maxIncludeDepth = 32

// Policy is the queryable representation produced by loading a sudoers
// root file (§4.C).
type Policy struct {
	userAliases  map[string][]string
	hostAliases  map[string][]string
	runasAliases map[string][]string
	cmndAliases  map[string][]string

	defaults []defaultsDecl
	specs    []userSpecDecl

	log *logrus.Entry
}

// Warning is a non-fatal condition surfaced while loading (e.g. a skipped
// insecure transitively-included file, or an include cycle).
type Warning struct {
	File    string
	Message string
}

// Load parses the sudoers file at rootPath (and any @include/@includedir
// it references) on the real filesystem.
func Load(rootPath string) (*Policy, []Warning, error) {
	return LoadFS(afero.NewOsFs(), rootPath)
}

// LoadFS parses a sudoers file using the given afero filesystem, the way
// the teacher's utils/linuxUtils tests substitute afero.NewMemMapFs() for
// the real filesystem.
func LoadFS(fs afero.Fs, rootPath string) (*Policy, []Warning, error) {
	if err := checkSecure(fs, rootPath); err != nil {
		return nil, nil, err
	}

	p := &Policy{
		userAliases:  map[string][]string{},
		hostAliases:  map[string][]string{},
		runasAliases: map[string][]string{},
		cmndAliases:  map[string][]string{},
		log:          sudolog.For("policy"),
	}

	var warnings []Warning
	visited := map[string]bool{}

	if err := p.loadFile(fs, rootPath, true, 0, visited, &warnings); err != nil {
		return nil, warnings, err
	}

	return p, warnings, nil
}

func (p *Policy) loadFile(fs afero.Fs, path string, isRoot bool, depth int, visited map[string]bool, warnings *[]Warning) error {
	if depth > maxIncludeDepth {
		*warnings = append(*warnings, Warning{File: path, Message: "maximum include depth exceeded, skipping branch"})
		return nil
	}

	if !isRoot {
		if err := checkSecure(fs, path); err != nil {
			*warnings = append(*warnings, Warning{File: path, Message: err.Error()})
			return nil
		}
	}

	abs, err := filepath.Abs(path)
	if err == nil {
		if visited[abs] {
			*warnings = append(*warnings, Warning{File: path, Message: "include cycle detected, skipping"})
			return nil
		}
		visited[abs] = true
	}

	lines, err := readLogicalLines(fs, path)
	if err != nil {
		return err
	}

	for _, ll := range lines {
		if inc, dir, ok := parseIncludeDirective(ll.text); ok {
			var target string
			if filepath.IsAbs(inc) {
				target = inc
			} else {
				target = filepath.Join(filepath.Dir(path), inc)
			}

			if dir {
				if err := p.loadIncludeDir(fs, target, depth, visited, warnings); err != nil {
					*warnings = append(*warnings, Warning{File: target, Message: err.Error()})
				}
			} else {
				if err := p.loadFile(fs, target, false, depth+1, visited, warnings); err != nil {
					return err
				}
			}
			continue
		}

		stmt, err := parseStatement(ll)
		if err != nil {
			return err
		}

		switch s := stmt.(type) {
		case *aliasDecl:
			p.addAlias(s)
		case *defaultsDecl:
			p.defaults = append(p.defaults, *s)
		case *userSpecDecl:
			p.specs = append(p.specs, *s)
		}
	}

	return nil
}

// loadIncludeDir loads every file in dir whose name does not contain "."
// or "~" (§4.C), in lexicographic order, non-recursively.
func (p *Policy) loadIncludeDir(fs afero.Fs, dir string, depth int, visited map[string]bool, warnings *[]Warning) error {
	// godirwalk operates on the real filesystem; for the afero-backed test
	// path we fall back to afero's own directory listing so in-memory
	// filesystems used by tests behave identically to production.
	if _, ok := fs.(*afero.OsFs); ok {
		var names []string
		err := godirwalk.Walk(dir, &godirwalk.Options{
			Callback: func(path string, de *godirwalk.Dirent) error {
				if path == dir {
					return nil
				}
				if de.IsDir() {
					return filepath.SkipDir
				}
				names = append(names, filepath.Base(path))
				return nil
			},
			Unsorted: true,
		})
		if err != nil {
			return err
		}
		sort.Strings(names)
		for _, name := range names {
			if !includeDirNameOK(name) {
				continue
			}
			if err := p.loadFile(fs, filepath.Join(dir, name), false, depth+1, visited, warnings); err != nil {
				return err
			}
		}
		return nil
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !includeDirNameOK(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		if err := p.loadFile(fs, filepath.Join(dir, name), false, depth+1, visited, warnings); err != nil {
			return err
		}
	}
	return nil
}

// includeDirNameOK implements §4.C's @includedir filter: no "." or "~",
// and not a backup file.
func includeDirNameOK(name string) bool {
	if strings.Contains(name, ".") || strings.Contains(name, "~") {
		return false
	}
	if strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".rpmsave") || strings.HasSuffix(name, ".rpmnew") {
		return false
	}
	return true
}

func parseIncludeDirective(text string) (path string, isDir bool, ok bool) {
	switch {
	case strings.HasPrefix(text, "@includedir "):
		return strings.TrimSpace(strings.TrimPrefix(text, "@includedir ")), true, true
	case strings.HasPrefix(text, "#includedir "):
		return strings.TrimSpace(strings.TrimPrefix(text, "#includedir ")), true, true
	case strings.HasPrefix(text, "@include "):
		return strings.TrimSpace(strings.TrimPrefix(text, "@include ")), false, true
	case strings.HasPrefix(text, "#include "):
		return strings.TrimSpace(strings.TrimPrefix(text, "#include ")), false, true
	}
	return "", false, false
}

// checkSecure enforces §3's invariant on the policy source file: not
// group- or world-writable, and owned by uid 0.
func checkSecure(fs afero.Fs, path string) error {
	fi, err := fs.Stat(path)
	if err != nil {
		return &InsecureError{Path: path, Reason: err.Error()}
	}

	if fi.Mode().Perm()&0o022 != 0 {
		return &InsecureError{Path: path, Reason: fmt.Sprintf("mode %s is group- or world-writable", fi.Mode().Perm())}
	}

	if uid, ok := fileOwnerUid(fi); ok && uid != 0 {
		return &InsecureError{Path: path, Reason: "not owned by uid 0"}
	}

	return nil
}

func (p *Policy) addAlias(decl *aliasDecl) {
	var target map[string][]string
	switch decl.category {
	case "User_Alias":
		target = p.userAliases
	case "Host_Alias":
		target = p.hostAliases
	case "Runas_Alias":
		target = p.runasAliases
	case "Cmnd_Alias":
		target = p.cmndAliases
	default:
		return
	}
	for _, e := range decl.entries {
		target[e.name] = e.members
	}
}

// fileOwnerUid reports the owner uid of fi; ok is false where the Stat()
// result carries no syscall.Stat_t (non-linux builds, or an afero
// in-memory file), and checkSecure then skips the owner check.
var fileOwnerUid = func(fi os.FileInfo) (uint32, bool) {
	return statUid(fi)
}

func uidString(uid uint32) string {
	return strconv.FormatUint(uint64(uid), 10)
}
