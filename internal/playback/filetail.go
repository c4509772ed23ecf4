package playback

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/mdufaud/sihdgo/internal/typedarray"
)

// fileTailRecord is the newline-delimited wire format FileTailProvider
// reads: one JSON object per line, written by whatever process appends
// to the tailed file.
type fileTailRecord struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp_unix_nano"`
	Kind      int    `json:"kind"`
	Value     []byte `json:"value"`
}

// FileTailProvider is a continuous Provider over a growing,
// newline-delimited record file: it never reports Providing() == false
// on its own, since a file being tailed is assumed to keep receiving
// writes until the caller closes it.
type FileTailProvider struct {
	path string

	mu        sync.Mutex
	file      *os.File
	reader    *bufio.Reader
	watcher   *fsnotify.Watcher
	pending   chan struct{}
	closed    bool
	providing bool
}

// OpenFileTailProvider opens path and starts watching it for appended
// writes. The watcher is set up on path itself, so the file must already
// exist: opening fails if path cannot be watched.
func OpenFileTailProvider(path string) (*FileTailProvider, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new watcher: %w", err)
	}

	p := &FileTailProvider{
		path:      path,
		watcher:   watcher,
		pending:   make(chan struct{}, 1),
		providing: true,
	}

	if f, err := os.Open(path); err == nil {
		p.file = f
		p.reader = bufio.NewReader(f)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	go p.watch()
	return p, nil
}

func (p *FileTailProvider) watch() {
	for event := range p.watcher.Events {
		if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			continue
		}
		select {
		case p.pending <- struct{}{}:
		default:
		}
	}
}

func (p *FileTailProvider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.providing = false
	if p.file != nil {
		p.file.Close()
	}
	p.mu.Unlock()
	return p.watcher.Close()
}

func (p *FileTailProvider) Providing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.providing
}

// Changed returns a channel that receives a value whenever fsnotify
// reports the tailed file was written to or created. A caller that
// polls Provide() on a fixed interval doesn't need this; it exists for
// a caller that would rather block until there is actually something
// new to read, instead of retrying Provide() blind.
func (p *FileTailProvider) Changed() <-chan struct{} {
	return p.pending
}

// Provide reads the next complete line from the tailed file. If the file
// has grown since the last read but a final newline has not yet arrived,
// Provide returns false for now rather than handing back a partial
// record — the caller is expected to retry.
func (p *FileTailProvider) Provide() (PlayableRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return PlayableRecord{}, false
	}
	if p.file == nil {
		if f, err := os.Open(p.path); err == nil {
			p.file = f
			p.reader = bufio.NewReader(f)
		} else {
			return PlayableRecord{}, false
		}
	}

	line, err := p.reader.ReadBytes('\n')
	if err != nil {
		if err != io.EOF {
			return PlayableRecord{}, false
		}
		// partial or no line yet; rewind so the bytes are re-read once
		// the rest of the line arrives.
		if len(line) > 0 {
			if _, seekErr := p.file.Seek(-int64(len(line)), io.SeekCurrent); seekErr == nil {
				p.reader = bufio.NewReader(p.file)
			}
		}
		return PlayableRecord{}, false
	}

	var wire fileTailRecord
	if err := json.Unmarshal(line, &wire); err != nil {
		return PlayableRecord{}, false
	}

	elems := len(wire.Value) / typedarray.ElemSize(typedarray.Kind(wire.Kind))
	arr, err := typedarray.New(typedarray.Kind(wire.Kind), elems)
	if err != nil {
		return PlayableRecord{}, false
	}
	if err := arr.CopyFromBytes(wire.Value, 0); err != nil {
		return PlayableRecord{}, false
	}

	id := wire.ID
	if id == "" {
		id = uuid.NewString()
	}
	return PlayableRecord{
		ID:        id,
		Name:      wire.Name,
		Timestamp: time.Unix(0, wire.Timestamp),
		Value:     arr,
	}, true
}

var _ Provider[PlayableRecord] = (*FileTailProvider)(nil)
