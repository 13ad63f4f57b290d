package profile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// MaxProfileFileSize is the maximum allowed size for a profile
	// file (1MB). Keeps a mistaken path (a log file, say) from being
	// slurped whole.
	MaxProfileFileSize = 1 * 1024 * 1024

	// MaxPatternLength bounds the regular expression in a profile.
	MaxPatternLength = 512

	// SupportedVersion is the currently supported profile file format
	// version.
	SupportedVersion = 1
)

// sanitizePathError removes the path from os.PathError so error
// messages do not echo file system paths back to users.
func sanitizePathError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%s: %w", pathErr.Op, pathErr.Err)
	}
	return err
}

// Load reads and validates a profile file from the given path.
//
// The file must be a regular file (not a FIFO, device or socket), no
// larger than MaxProfileFileSize, declaring a supported version and a
// structurally valid method.
func Load(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile file: %w", sanitizePathError(err))
	}
	defer func() { _ = f.Close() }()

	// Stat the descriptor, not the path, to avoid TOCTOU surprises.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat profile file: %w", sanitizePathError(err))
	}
	if !info.Mode().IsRegular() {
		return nil, errors.New("profile file must be a regular file")
	}
	if info.Size() == 0 {
		return nil, errors.New("profile file is empty")
	}
	if info.Size() > MaxProfileFileSize {
		return nil, fmt.Errorf("profile file too large: %d bytes (max %d)", info.Size(), MaxProfileFileSize)
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxProfileFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", sanitizePathError(err))
	}
	if len(data) > MaxProfileFileSize {
		return nil, fmt.Errorf("profile file too large (max %d bytes)", MaxProfileFileSize)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile file: %w", err)
	}
	if err := validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func validate(p *Profile) error {
	if p.Version != SupportedVersion {
		return &ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (want %d)", p.Version, SupportedVersion),
		}
	}
	switch p.Method {
	case "pattern":
		if p.Pattern == "" {
			return &ValidationError{Field: "pattern", Message: "required in pattern mode"}
		}
		if len(p.Pattern) > MaxPatternLength {
			return &ValidationError{
				Field:   "pattern",
				Message: fmt.Sprintf("too long: %d bytes (max %d)", len(p.Pattern), MaxPatternLength),
			}
		}
		if len(p.Fields) == 0 {
			return &ValidationError{Field: "fields", Message: "required in pattern mode"}
		}
	case "json":
		if p.Pattern != "" || len(p.Fields) > 0 {
			return &ValidationError{Field: "method", Message: "pattern/fields are not valid in json mode"}
		}
	case "":
		return &ValidationError{Field: "method", Message: "required"}
	default:
		return &ValidationError{
			Field:   "method",
			Message: fmt.Sprintf("unknown method %q (want pattern or json)", p.Method),
		}
	}
	return nil
}
