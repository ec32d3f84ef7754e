package unityasset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoVersion indicates that a file declares no engine version and no
// fallback version has been configured.
var ErrNoVersion = errors.New("file declares no engine version and no fallback is configured; call SetFallbackVersion (for example \"2019.4.0f1\") before loading")

// Settings holds configuration consulted when loading files.
type Settings struct {
	// FallbackVersion is used in place of the engine version of files that
	// do not declare one. Empty means no fallback.
	FallbackVersion string

	// TypeTreeEnabled controls whether type trees are read when loading
	// serialized files. Without them, objects can only be decoded when a tree
	// for their class has been cached by another file.
	TypeTreeEnabled bool

	// Logger receives warnings and debug events. If nil, slog.Default is
	// used.
	Logger *slog.Logger
}

// DefaultSettings returns the settings in effect before any setter is called.
func DefaultSettings() Settings {
	return Settings{TypeTreeEnabled: true}
}

// Log returns the logger of s.
func (s Settings) Log() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// ResolveVersion returns the engine version to use for a file named name
// that declared version declared. If the declared version is missing, the
// fallback is returned and a warning is logged each time. If there is no
// fallback either, ErrNoVersion is returned.
func (s Settings) ResolveVersion(name, declared string) (string, error) {
	if !VersionMissing(declared) {
		return declared, nil
	}
	if s.FallbackVersion == "" {
		return "", fmt.Errorf("%s: %w", name, ErrNoVersion)
	}
	s.Log().LogAttrs(context.Background(), slog.LevelWarn, "using fallback engine version",
		slog.String("file", name),
		slog.String("declared", declared),
		slog.String("fallback", s.FallbackVersion),
	)
	return s.FallbackVersion, nil
}

// VersionMissing returns whether a declared engine version carries no
// information. Stripped builds write "0.0.0".
func VersionMissing(v string) bool {
	return v == "" || v == "0.0.0"
}

var settings = struct {
	sync.RWMutex
	s Settings
}{s: DefaultSettings()}

// CurrentSettings returns a copy of the process-wide settings.
func CurrentSettings() Settings {
	settings.RLock()
	defer settings.RUnlock()
	return settings.s
}

// SetSettings replaces the process-wide settings.
func SetSettings(s Settings) {
	settings.Lock()
	settings.s = s
	settings.Unlock()
}

// FallbackVersion returns the process-wide fallback engine version.
func FallbackVersion() string {
	settings.RLock()
	defer settings.RUnlock()
	return settings.s.FallbackVersion
}

// SetFallbackVersion sets the process-wide fallback engine version. An empty
// string removes the fallback. Otherwise the version must parse.
func SetFallbackVersion(v string) error {
	if v != "" {
		if _, err := ParseVersion(v); err != nil {
			return err
		}
	}
	settings.Lock()
	settings.s.FallbackVersion = v
	settings.Unlock()
	return nil
}

// TypeTreeEnabled returns whether type trees are read when loading files.
func TypeTreeEnabled() bool {
	settings.RLock()
	defer settings.RUnlock()
	return settings.s.TypeTreeEnabled
}

// SetTypeTreeEnabled sets whether type trees are read when loading files.
func SetTypeTreeEnabled(enabled bool) {
	settings.Lock()
	settings.s.TypeTreeEnabled = enabled
	settings.Unlock()
}

// SetLogger sets the process-wide logger.
func SetLogger(l *slog.Logger) {
	settings.Lock()
	settings.s.Logger = l
	settings.Unlock()
}
