package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Driver archives the audio samples submitted for cloning, so a failed or
// disputed clone can be replayed against the provider later.
type Driver interface {
	SaveSample(callID string, wav []byte) (string, error)
	SamplePath(callID string) (string, error)
}

// LocalDriver writes samples to the local filesystem.
type LocalDriver struct {
	basePath string
}

func NewLocalDriver(basePath string) *LocalDriver {
	if basePath == "" {
		basePath = "/data/samples"
	}
	return &LocalDriver{basePath: basePath}
}

func (d *LocalDriver) SaveSample(callID string, wav []byte) (string, error) {
	if callID == "" {
		return "", fmt.Errorf("callID is required")
	}
	if err := os.MkdirAll(d.basePath, 0755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	path := filepath.Join(d.basePath, fmt.Sprintf("%s.wav", callID))
	if err := os.WriteFile(path, wav, 0644); err != nil {
		return "", fmt.Errorf("failed to write sample: %w", err)
	}
	return path, nil
}

func (d *LocalDriver) SamplePath(callID string) (string, error) {
	if callID == "" {
		return "", fmt.Errorf("callID is required")
	}
	path := filepath.Join(d.basePath, fmt.Sprintf("%s.wav", callID))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("sample not found: %w", err)
	}
	return path, nil
}

// NullDriver discards samples. Used when archiving is switched off.
type NullDriver struct{}

func (NullDriver) SaveSample(callID string, wav []byte) (string, error) {
	return "", nil
}

func (NullDriver) SamplePath(callID string) (string, error) {
	return "", fmt.Errorf("sample archiving disabled")
}

func NewDriver(driverType string, localPath string) (Driver, error) {
	switch strings.ToLower(driverType) {
	case "local":
		return NewLocalDriver(localPath), nil
	case "none", "null":
		return NullDriver{}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driverType)
	}
}
