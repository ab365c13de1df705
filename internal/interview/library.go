package interview

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRecordingNotFound is returned for unknown library IDs
var ErrRecordingNotFound = errors.New("recording not found")

// LibraryEntry describes one uploaded conference recording
type LibraryEntry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	Transcript  string    `json:"transcript,omitempty"`
}

type libraryItem struct {
	entry LibraryEntry
	data  []byte
}

// Library keeps the recordings uploaded from the conference side-channel
// for the lifetime of the interview
type Library struct {
	mu    sync.RWMutex
	items []*libraryItem
	now   func() time.Time
}

// NewLibrary creates an empty library
func NewLibrary() *Library {
	return &Library{now: time.Now}
}

// Add stores a recording and returns its entry
func (l *Library) Add(name, contentType string, data []byte) LibraryEntry {
	item := &libraryItem{
		entry: LibraryEntry{
			ID:          uuid.New().String(),
			Name:        name,
			ContentType: contentType,
			Size:        len(data),
			CreatedAt:   l.now(),
		},
		data: data,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, item)
	return item.entry
}

// List returns entries newest first
func (l *Library) List() []LibraryEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]LibraryEntry, 0, len(l.items))
	for i := len(l.items) - 1; i >= 0; i-- {
		entries = append(entries, l.items[i].entry)
	}
	return entries
}

// Get returns an entry and its audio
func (l *Library) Get(id string) (LibraryEntry, []byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, item := range l.items {
		if item.entry.ID == id {
			return item.entry, item.data, nil
		}
	}
	return LibraryEntry{}, nil, ErrRecordingNotFound
}

// SetTranscript attaches converted text to an entry
func (l *Library) SetTranscript(id, text string) (LibraryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, item := range l.items {
		if item.entry.ID == id {
			item.entry.Transcript = text
			return item.entry, nil
		}
	}
	return LibraryEntry{}, ErrRecordingNotFound
}

// Clear drops every recording
func (l *Library) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}
