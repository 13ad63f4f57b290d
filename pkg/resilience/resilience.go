// Package resilience provides the filesystem mutation helpers test
// harnesses use to provoke SUT misbehaviour: truncating or deleting
// the log file under the SUT, revoking write permission, or pointing
// it at a size-limited tmpfs that will fill up.
//
// The tmpfs helpers shell out to mount/umount and therefore need
// root; everything else is plain syscalls.
package resilience

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
)

// FileExists reports whether path exists.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// FileSize returns the size of the file at path in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// TruncateFile empties the file at path.
func TruncateFile(path string) error {
	return os.Truncate(path, 0)
}

// DeleteFile removes the file at path. A file that is already gone is
// a no-op success.
func DeleteFile(path string) error {
	err := os.Remove(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// CreateReadOnlyDir creates a directory the SUT cannot write into.
func CreateReadOnlyDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	return os.Chmod(path, 0o555)
}

// RemoveDir removes a directory and everything under it.
func RemoveDir(path string) error {
	// A read-only directory cannot have its entries removed; restore
	// write permission first and ignore failure (removal will report).
	_ = os.Chmod(path, 0o755)
	return os.RemoveAll(path)
}

// CreateSizedTmpfs mounts a tmpfs of the given size in KiB at path,
// creating the mount point if needed. Writing past the size limit
// makes the SUT see ENOSPC.
func CreateSizedTmpfs(path string, sizeKiB int) error {
	if sizeKiB <= 0 {
		return fmt.Errorf("tmpfs size must be positive, got %d KiB", sizeKiB)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	cmd := exec.Command("mount", "-t", "tmpfs",
		"-o", fmt.Sprintf("size=%dk", sizeKiB), "tmpfs", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("mount tmpfs at %s: %v: %s", path, err, out)
	}
	return nil
}

// RemoveTmpfs unmounts the tmpfs at path and removes the mount point.
func RemoveTmpfs(path string) error {
	cmd := exec.Command("umount", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("umount %s: %v: %s", path, err, out)
	}
	return os.Remove(path)
}

// RemoveWritePermission clears every write bit on path.
func RemoveWritePermission(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chmod(path, info.Mode().Perm()&^0o222)
}

// AddWritePermission restores the owner write bit on path.
func AddWritePermission(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chmod(path, info.Mode().Perm()|0o200)
}
