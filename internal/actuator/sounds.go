package actuator

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// AvailableSounds lists playable sound files found in the platform sound
// directories. Serves the "list available sounds" query command, and startup
// uses it to suggest alternatives when the configured sound is missing.
func AvailableSounds() []string {
	var out []string
	for _, dir := range soundDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if hasSoundExtension(entry.Name()) {
				out = append(out, filepath.Join(dir, entry.Name()))
			}
		}
	}
	sort.Strings(out)
	return out
}

// SoundExists reports whether the configured sound file is present.
func SoundExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SoundName returns the display name of a sound path (file stem).
func SoundName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func hasSoundExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range soundExtensions {
		if ext == want {
			return true
		}
	}
	return false
}
