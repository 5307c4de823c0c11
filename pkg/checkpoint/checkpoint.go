package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// State is the durable crawl cursor: the next page to fetch after a
// restart. The JSON keys are operator-facing; progress files are meant to
// be read (and occasionally hand-edited) during operational debugging.
type State struct {
	TaskIndex  int    `json:"task_index"`  // 0-based index into the task list
	PageNum    int    `json:"page_num"`    // 1-based next page to fetch for that task
	URL        string `json:"url"`         // seed URL of the task, empty past the last task
	LineNumber int    `json:"line_number"` // 1-based seed-file line, = task_index+1 unless advanced
}

// Default is the state a fresh crawl starts from.
func Default() State {
	return State{TaskIndex: 0, PageNum: 1, URL: "", LineNumber: 1}
}

// Manager persists crawl progress to a JSON file. It is the single source
// of truth for resumption; there is no other persisted cursor.
type Manager struct {
	path string
	log  *logrus.Logger
}

// NewManager creates a checkpoint manager for the given file path.
func NewManager(path string, log *logrus.Logger) *Manager {
	return &Manager{path: path, log: log}
}

// Load reads the saved state. A missing, unreadable, or corrupt file
// yields the default state: checkpoint corruption must never crash
// startup, it only costs a re-crawl.
func (m *Manager) Load() State {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.log.Warnf("Could not read checkpoint %s: %v (starting from the top)", m.path, err)
		}
		return Default()
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		m.log.Warnf("Checkpoint %s is corrupt: %v (starting from the top)", m.path, err)
		return Default()
	}
	if st.TaskIndex < 0 {
		m.log.Warnf("Checkpoint %s has a negative task index (starting from the top)", m.path)
		return Default()
	}

	// Older progress files predate the url and line_number fields.
	if st.LineNumber < 1 {
		st.LineNumber = st.TaskIndex + 1
	}
	if st.PageNum < 1 {
		st.PageNum = 1
	}
	return st
}

// Save writes the state durably. The write goes through a temp file and a
// rename, so a crash mid-write cannot leave a torn checkpoint behind and a
// reader never observes a state older than the last completed Save.
func (m *Manager) Save(st State) error {
	if st.LineNumber < 1 {
		st.LineNumber = st.TaskIndex + 1
	}

	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating checkpoint directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replacing checkpoint: %w", err)
	}
	return nil
}
