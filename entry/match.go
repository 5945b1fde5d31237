package entry

import "github.com/bmatcuk/doublestar/v4"

// Match reports whether name (a slash-separated archive path) matches
// a doublestar glob pattern, letting callers filter tar_open/zip_open
// results the way doublestar.Glob filters a filesystem tree.
func Match(pattern, name string) (bool, error) {
	return doublestar.Match(pattern, name)
}

// Filter returns the subset of infos whose Name matches pattern.
func Filter(infos []Info, pattern string) ([]Info, error) {
	var out []Info
	for _, i := range infos {
		ok, err := Match(pattern, i.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, i)
		}
	}
	return out, nil
}
