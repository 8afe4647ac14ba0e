package filesystem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTree creates files (and their parents) relative to root
func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, file := range files {
		path := filepath.Join(root, file)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("test"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestWalk_BasicTraversal(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, "file1.txt", "dir1/file2.txt", "dir1/subdir/file3.txt", "dir2/file4.txt")

	var visited []string
	err := Walk(tmpDir, WalkOptions{IgnoreDirs: []string{}}, func(path string, info os.FileInfo) error {
		rel, _ := filepath.Rel(tmpDir, path)
		if rel != "." {
			visited = append(visited, rel)
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	if len(visited) != 7 { // 3 dirs + 4 files
		t.Errorf("Walk() visited %d paths, want 7: %v", len(visited), visited)
	}
}

func TestWalk_IgnoreDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir,
		".venv/lib/site.py",
		"__pycache__/mod.pyc",
		".git/HEAD",
		"src/pkg/mod.py",
	)

	var visited []string
	err := WalkWithDefaults(tmpDir, func(path string, info os.FileInfo) error {
		rel, _ := filepath.Rel(tmpDir, path)
		visited = append(visited, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	for _, v := range visited {
		if strings.Contains(v, ".venv") || strings.Contains(v, "__pycache__") || strings.Contains(v, ".git") {
			t.Errorf("Walk() visited ignored directory: %s", v)
		}
	}
}

func TestWalk_IgnorePatterns(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, "keep.py", "drop.tmp")

	var files []string
	err := Walk(tmpDir, WalkOptions{IgnorePatterns: []string{"*.tmp"}}, func(path string, info os.FileInfo) error {
		if !info.IsDir() {
			files = append(files, info.Name())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	if len(files) != 1 || files[0] != "keep.py" {
		t.Errorf("Walk() files = %v, want [keep.py]", files)
	}
}

func TestCountFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, "Makefile", ".pre-commit-config.yaml", "src/pkg/__init__.py", ".git/HEAD", ".venv/bin/python")

	n, err := CountFiles(tmpDir)
	if err != nil {
		t.Fatalf("CountFiles() error = %v", err)
	}
	if n != 3 {
		t.Errorf("CountFiles() = %d, want 3", n)
	}
}

func TestGlob(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir,
		"cookiecutter-test-config-abc123.json",
		"cookiecutter-test-config-def456.yaml",
		"other.json",
		"nested/cookiecutter-test-config-zzz.json",
	)

	matches, err := Glob(tmpDir, "cookiecutter-test-config-*")
	if err != nil {
		t.Fatalf("Glob() error = %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("Glob() = %v, want 2 matches", matches)
	}

	missing, err := Glob(filepath.Join(tmpDir, "missing"), "*")
	if err != nil {
		t.Fatalf("Glob() on missing dir error = %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("Glob() on missing dir = %v, want none", missing)
	}
}
