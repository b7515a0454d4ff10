package versions

import (
	"path"
	"strconv"
	"strings"
)

// splitName splits the base name of p into stem and final extension. A name
// whose only dot is the leading one (".gitignore") has no extension.
func splitName(p string) (dir, stem, ext string) {
	dir, base := path.Split(p)
	ext = path.Ext(base)
	if ext == base {
		ext = ""
	}
	return dir, strings.TrimSuffix(base, ext), ext
}

// StorageKey returns the key that stores version of p: the version token is
// inserted before the final extension so the extension keeps describing the
// content type.
//
//	a/b.ftd     -> a/b.3.ftd
//	README      -> README.3
//	x.tar.gz    -> x.tar.3.gz
func StorageKey(p string, version int32) string {
	dir, stem, ext := splitName(p)
	return dir + stem + "." + strconv.FormatInt(int64(version), 10) + ext
}

// matchKey reports the version that base name name stores for stem/ext, if
// any.
func matchKey(name, stem, ext string) (int32, bool) {
	rest, ok := strings.CutPrefix(name, stem+".")
	if !ok {
		return 0, false
	}
	rest, ok = strings.CutSuffix(rest, ext)
	if !ok || rest == "" {
		return 0, false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(rest, 10, 32)
	if err != nil || n < 1 {
		return 0, false
	}
	return int32(n), true
}

// ParseKey recovers the path and version from a storage key. It is the
// inverse of StorageKey.
func ParseKey(key string) (string, int32, bool) {
	dir, base := path.Split(key)

	// b.3.ftd
	if _, stem, ext := splitName(key); ext != "" {
		if i := strings.LastIndexByte(stem, '.'); i > 0 {
			if v, ok := matchKey(base, stem[:i], ext); ok {
				return dir + stem[:i] + ext, v, true
			}
		}
	}

	// README.3
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		if v, ok := matchKey(base, base[:i], ""); ok {
			return dir + base[:i], v, true
		}
	}
	return "", 0, false
}
