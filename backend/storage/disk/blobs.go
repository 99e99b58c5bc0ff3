// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package disk

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlobStore writes voice-note payloads under <dataDir>/audio. A blob is
// synced to disk before the message referencing it is appended, so the log
// never points at a file that does not exist.
type BlobStore struct {
	audioDir string
}

// NewBlobStore creates the audio directory. A failure here has no degraded
// mode; callers treat it as fatal.
func NewBlobStore(dataDir string) (*BlobStore, error) {
	audioDir := filepath.Join(dataDir, "audio")
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio dir: %w", err)
	}
	return &BlobStore{audioDir: audioDir}, nil
}

// SaveAudio durably stores one voice note and returns its stable reference.
func (b *BlobStore) SaveAudio(data []byte, mimeType string) (string, error) {
	filename := fmt.Sprintf("%d-%s.%s", time.Now().UnixMilli(), uuid.New(), extensionFor(mimeType))

	f, err := os.OpenFile(filepath.Join(b.audioDir, filename), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to sync audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close audio file: %w", err)
	}

	return "/audio/" + filename, nil
}

// Path maps a stored reference back to its file for serving. References
// that escape the audio directory are rejected.
func (b *BlobStore) Path(ref string) (string, error) {
	name := strings.TrimPrefix(ref, "/audio/")
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid audio reference %q", ref)
	}
	path := filepath.Join(b.audioDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "webm"):
		return "webm"
	case strings.Contains(mimeType, "wav"):
		return "wav"
	default:
		return "ogg"
	}
}
