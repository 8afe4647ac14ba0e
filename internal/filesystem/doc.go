// Package filesystem walks generated instances and hatch's scratch
// directories.
//
// Walks skip version-control metadata and the caches that lint, install and
// test stages leave behind (virtualenvs, __pycache__, tool caches), so that a
// walk of an instance reports what the template produced.
//
//	n, err := filesystem.CountFiles(instancePath)
//
//	err := filesystem.Walk(dir, filesystem.WalkOptions{
//	    IgnorePatterns: []string{"*.tmp"},
//	}, func(path string, info os.FileInfo) error {
//	    return nil
//	})
package filesystem
