package util

import (
	"os"
)

// IsRegularFile reports whether fpath exists and is a regular file.
func IsRegularFile(fpath string) bool {
	info, err := os.Stat(fpath)
	return err == nil && info.Mode().IsRegular()
}

// IsDir reports whether fpath exists and is a directory.
func IsDir(fpath string) bool {
	info, err := os.Stat(fpath)
	return err == nil && info.IsDir()
}
