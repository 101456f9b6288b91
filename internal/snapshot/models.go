package snapshot

import (
	"time"

	"github.com/google/uuid"
)

// Run status values.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Run is the stored record of one processing run over a snapshot.
type Run struct {
	ID          string            `json:"id"`
	Tag         string            `json:"tag,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	SnapshotDir string            `json:"snapshot_dir"`
	Fingerprint string            `json:"fingerprint"`
	Status      string            `json:"status"`
	ParseCounts map[string]int    `json:"parse_counts"`
	Nodes       []NodeEntry       `json:"nodes"`
	Failures    map[string]string `json:"failures,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NodeEntry points at a stored node document.
type NodeEntry struct {
	Hostname      string `json:"hostname"`
	SourceFile    string `json:"source_file"`
	ConvertStatus string `json:"convert_status"`
	ContentHash   string `json:"content_hash"`
	Size          int    `json:"size"`
}

// Object is a node document to store alongside a run.
type Object struct {
	Hostname string
	Content  []byte
}

// RunIndex lists every stored run.
type RunIndex struct {
	Runs      []RunSummary `json:"runs"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// RunSummary is the index entry of a run.
type RunSummary struct {
	ID          string    `json:"id"`
	Tag         string    `json:"tag,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Fingerprint string    `json:"fingerprint"`
	Status      string    `json:"status"`
	NodeCount   int       `json:"node_count"`
}

// NewRun starts a run record with a fresh ID.
func NewRun(snap *Snapshot) *Run {
	r := &Run{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Status:      StatusSuccess,
		ParseCounts: make(map[string]int),
		Failures:    make(map[string]string),
		Metadata:    make(map[string]string),
	}
	if snap != nil {
		r.SnapshotDir = snap.Dir
		r.Fingerprint = snap.Fingerprint()
		if snap.Metadata.Name != "" {
			r.Metadata["name"] = snap.Metadata.Name
		}
		for k, v := range snap.Metadata.Labels {
			r.Metadata["label."+k] = v
		}
	}
	return r
}

// AddNode records a node document and returns the object to store.
func (r *Run) AddNode(hostname, sourceFile, status string, content []byte) Object {
	r.Nodes = append(r.Nodes, NodeEntry{
		Hostname:      hostname,
		SourceFile:    sourceFile,
		ConvertStatus: status,
		ContentHash:   ContentHash(content),
		Size:          len(content),
	})
	return Object{Hostname: hostname, Content: content}
}

// Summary returns the index entry of r.
func (r *Run) Summary() RunSummary {
	return RunSummary{
		ID:          r.ID,
		Tag:         r.Tag,
		CreatedAt:   r.CreatedAt,
		Fingerprint: r.Fingerprint,
		Status:      r.Status,
		NodeCount:   len(r.Nodes),
	}
}

// ContentHash is the object key of content.
func ContentHash(content []byte) string {
	return Fingerprint(content)
}
