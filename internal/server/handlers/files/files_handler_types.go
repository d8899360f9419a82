package files

import "time"

type FileInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Size       int64     `json:"size"`
}

type ListFilesResponse struct {
	Files []FileInfo `json:"files"`
}

type FileContent struct {
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

type PutFileRequest struct {
	Content *string `json:"content" binding:"required"`
}

type PutFileResponse struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modifiedAt"`
}
