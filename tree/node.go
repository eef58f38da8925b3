package tree

import (
	"time"
)

// RootName is the reserved name of every namespace's root Directory.
// Node names are validated against a pattern that cannot produce it.
const RootName = "$root"

// DefaultMaxDepth bounds ancestor chain walks.
const DefaultMaxDepth = 64

// NodeType discriminates Directories and Files in stored records.
type NodeType string

const (
	TypeDirectory NodeType = "dir"
	TypeFile      NodeType = "file"
)

// FileStatus is the ingestion state of a File.
type FileStatus string

const (
	StatusCreated    FileStatus = "created"
	StatusAdded      FileStatus = "added"
	StatusQueued     FileStatus = "queued"
	StatusProcessing FileStatus = "processing"
	StatusProcessed  FileStatus = "processed"
	StatusError      FileStatus = "error"
)

// Header holds the fields shared by every node.
type Header struct {
	ID       string   `json:"id"`
	ParentID string   `json:"parent_id"`
	Owner    string   `json:"owner"`
	Name     string   `json:"name"`
	Type     NodeType `json:"type"`
	Revision int64    `json:"revision"`
}

// Info returns the node's common fields.
func (h Header) Info() Header {
	return h
}

// Node is a Directory or a File.
type Node interface {
	Info() Header
	isNode()
}

// DirectoryMetadata holds a Directory's aggregates.
type DirectoryMetadata struct {
	// FileCount is the number of direct child Files.
	FileCount int64 `json:"file_count"`

	// DirCount is the number of direct child Directories.
	DirCount int64 `json:"dir_count"`

	// CumulativeSize is the sum of the sizes of all Files below the Directory.
	CumulativeSize int64 `json:"size"`

	TimeCreated time.Time `json:"time_created"`
	TimeUpdated time.Time `json:"time_updated"`
}

// Directory is an interior node.
type Directory struct {
	Header
	Metadata DirectoryMetadata `json:"metadata"`
}

func (*Directory) isNode() {}

// IsRoot reports whether d is a namespace root.
func (d *Directory) IsRoot() bool {
	return d.Name == RootName
}

// FileMetadata holds a File's descriptive fields.
type FileMetadata struct {
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	TimeCreated time.Time `json:"time_created"`
	TimeUpdated time.Time `json:"time_updated"`
}

// File is a leaf node describing externally stored content.
type File struct {
	Header
	ContentHash   string       `json:"content_hash"`
	StorageHandle string       `json:"storage_handle"`
	Status        FileStatus   `json:"status"`
	Metadata      FileMetadata `json:"metadata"`
}

func (*File) isNode() {}

// nodeRecord is the stored shape of both node kinds. Directory cumulative size
// and File size share metadata.size so one ancestor increment serves both.
type nodeRecord struct {
	ID       string         `json:"id"`
	ParentID string         `json:"parent_id"`
	Owner    string         `json:"owner"`
	Type     NodeType       `json:"type"`
	Name     string         `json:"name"`
	Revision int64          `json:"revision"`
	Hash     string         `json:"hash,omitempty"`
	Handle   string         `json:"handle,omitempty"`
	Status   FileStatus     `json:"status,omitempty"`
	Metadata recordMetadata `json:"metadata"`
}

type recordMetadata struct {
	FileCount   int64     `json:"file_count"`
	DirCount    int64     `json:"dir_count"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	TimeCreated time.Time `json:"time_created"`
	TimeUpdated time.Time `json:"time_updated"`
}

// Stored field paths used by mutations.
const (
	fieldName        = "name"
	fieldParentID    = "parent_id"
	fieldRevision    = "revision"
	fieldStatus      = "status"
	fieldFileCount   = "metadata.file_count"
	fieldDirCount    = "metadata.dir_count"
	fieldSize        = "metadata.size"
	fieldTimeUpdated = "metadata.time_updated"
)

func (r *nodeRecord) node() Node {
	h := Header{
		ID:       r.ID,
		ParentID: r.ParentID,
		Owner:    r.Owner,
		Name:     r.Name,
		Type:     r.Type,
		Revision: r.Revision,
	}
	if r.Type == TypeFile {
		return &File{
			Header:        h,
			ContentHash:   r.Hash,
			StorageHandle: r.Handle,
			Status:        r.Status,
			Metadata: FileMetadata{
				ContentType: r.Metadata.ContentType,
				Size:        r.Metadata.Size,
				TimeCreated: r.Metadata.TimeCreated,
				TimeUpdated: r.Metadata.TimeUpdated,
			},
		}
	}
	return &Directory{
		Header: h,
		Metadata: DirectoryMetadata{
			FileCount:      r.Metadata.FileCount,
			DirCount:       r.Metadata.DirCount,
			CumulativeSize: r.Metadata.Size,
			TimeCreated:    r.Metadata.TimeCreated,
			TimeUpdated:    r.Metadata.TimeUpdated,
		},
	}
}

// sizeOf returns the amount a node contributes to its ancestors' cumulative size.
func sizeOf(n Node) int64 {
	switch v := n.(type) {
	case *Directory:
		return v.Metadata.CumulativeSize
	case *File:
		return v.Metadata.Size
	}
	return 0
}

func isRoot(n Node) bool {
	d, ok := n.(*Directory)
	return ok && d.IsRoot()
}
