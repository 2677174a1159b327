package transcript

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OrphanMaxAge is how long a temp audio file may sit on disk before the
// janitor treats it as abandoned by a crashed run.
const OrphanMaxAge = time.Hour

// CleanOrphans removes temp audio files older than maxAge from dir. It is
// meant to run once at startup before collection begins.
func CleanOrphans(dir string, maxAge time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("read temp audio dir %s: %v", dir, err)
		}
		return 0
	}

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp3") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Printf("remove orphaned audio %s: %v", path, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("janitor removed %d orphaned audio file(s) from %s", removed, dir)
	}
	return removed
}
