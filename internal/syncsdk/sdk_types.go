package syncsdk

import "time"

const (
	HeaderUserAgent = "User-Agent"
	HeaderVersion   = "X-Syftsync-Version"
	HeaderClientID  = "X-Syftsync-Client-Id"
)

const (
	pathHealth    = "/health"
	pathLock      = "/projects/{project}/lock"
	pathHeartbeat = "/projects/{project}/lock/heartbeat"
	pathFiles     = "/projects/{project}/files"
	pathFile      = "/projects/{project}/files/{name}"
)

// ===================================================================================================

type HealthResponse struct {
	Status       string `json:"status"`
	AuthRequired bool   `json:"authRequired"`
	Version      string `json:"version,omitempty"`
}

// ===================================================================================================

// Lock is a lease on a project as reported by the coordinator
type Lock struct {
	ProjectID  string    `json:"projectId"`
	ClientID   string    `json:"clientId"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type LockResponse struct {
	Lock *Lock `json:"lock"`
}

type ReleaseResponse struct {
	Released bool `json:"released"`
}

// ===================================================================================================

type FileInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Size       int64     `json:"size,omitempty"`
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
	Content string `json:"content"`
}

type PutFileResponse struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modifiedAt"`
}
