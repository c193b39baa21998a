// Package ingest implements the asset-ingestion collaborators: a local
// directory store and a client for a remote upload endpoint.
package ingest

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
)

// MaxUploadSize caps a single uploaded file.
const MaxUploadSize = 10 * 1024 * 1024

// ErrTooLarge is reported for files at or above MaxUploadSize.
var ErrTooLarge = errors.New("file too large (max 10MB)")

// File is one file handed to Upload.
type File struct {
	Name string
	Data []byte
}

// FileError reports why a single file was rejected.
type FileError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// UploadResult mirrors the ingestion contract: Success is true only when
// every file produced an asset.
type UploadResult struct {
	Success bool        `json:"success"`
	Assets  []Asset     `json:"assets,omitempty"`
	Errors  []FileError `json:"errors,omitempty"`
}

// Asset is the ingested form of a file. It is converted to a
// models.AssetItem by the placement adapter.
type Asset struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	FullURL string `json:"fullUrl"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

func dataMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
