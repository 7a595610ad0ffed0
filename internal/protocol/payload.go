package protocol

// Payload is the typed "data" object of a frame. The set of implementations
// is closed: one record per EventKind.
type Payload interface {
	Kind() EventKind
	payload()
}

// Outbound payloads carry the session id inside data.
type Outbound interface {
	Payload
	WithSessionID(id string) Outbound
}

type InitData struct {
	URL       string `json:"url,omitempty"`
	SandboxID string `json:"sandbox_id,omitempty"`
	Exists    *bool  `json:"exists,omitempty"`
	// SessionID is only set on the client handshake.
	SessionID string `json:"session_id,omitempty"`
}

type UserData struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

type AgentPartialData struct {
	Text string `json:"text"`
}

type AgentFinalData struct {
	Text string `json:"text"`
}

type UpdateInProgressData struct{}

type UpdateFileData struct {
	Text string `json:"text,omitempty"`
	Path string `json:"path,omitempty"`
}

type UpdateCompletedData struct{}

type GetFileTreeData struct {
	SessionID string `json:"session_id"`
}

// FileNode is one entry of the workspace directory listing.
type FileNode struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	IsDir    bool       `json:"is_dir"`
	Type     string     `json:"type,omitempty"`
	Size     *int64     `json:"size,omitempty"`
	Language string     `json:"language,omitempty"`
	Children []FileNode `json:"children,omitempty"`
}

type FileTreeData struct {
	Tree []FileNode `json:"tree"`
	Root string     `json:"root,omitempty"`
}

type GetFileContentData struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
}

type FileContentData struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
}

type SaveFileData struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Content   string `json:"content"`
}

type FileSavedData struct {
	Path    string `json:"path"`
	Success *bool  `json:"success,omitempty"`
}

type ErrorData struct {
	Text string `json:"text,omitempty"`
}

type PingData struct{}

func (InitData) Kind() EventKind             { return KindInit }
func (UserData) Kind() EventKind             { return KindUser }
func (AgentPartialData) Kind() EventKind     { return KindAgentPartial }
func (AgentFinalData) Kind() EventKind       { return KindAgentFinal }
func (UpdateInProgressData) Kind() EventKind { return KindUpdateInProgress }
func (UpdateFileData) Kind() EventKind       { return KindUpdateFile }
func (UpdateCompletedData) Kind() EventKind  { return KindUpdateCompleted }
func (GetFileTreeData) Kind() EventKind      { return KindGetFileTree }
func (FileTreeData) Kind() EventKind         { return KindFileTree }
func (GetFileContentData) Kind() EventKind   { return KindGetFileContent }
func (FileContentData) Kind() EventKind      { return KindFileContent }
func (SaveFileData) Kind() EventKind         { return KindSaveFile }
func (FileSavedData) Kind() EventKind        { return KindFileSaved }
func (ErrorData) Kind() EventKind            { return KindError }
func (PingData) Kind() EventKind             { return KindPing }

func (InitData) payload()             {}
func (UserData) payload()             {}
func (AgentPartialData) payload()     {}
func (AgentFinalData) payload()       {}
func (UpdateInProgressData) payload() {}
func (UpdateFileData) payload()       {}
func (UpdateCompletedData) payload()  {}
func (GetFileTreeData) payload()      {}
func (FileTreeData) payload()         {}
func (GetFileContentData) payload()   {}
func (FileContentData) payload()      {}
func (SaveFileData) payload()         {}
func (FileSavedData) payload()        {}
func (ErrorData) payload()            {}
func (PingData) payload()             {}

func (d InitData) WithSessionID(id string) Outbound           { d.SessionID = id; return d }
func (d UserData) WithSessionID(id string) Outbound           { d.SessionID = id; return d }
func (d GetFileTreeData) WithSessionID(id string) Outbound    { d.SessionID = id; return d }
func (d GetFileContentData) WithSessionID(id string) Outbound { d.SessionID = id; return d }
func (d SaveFileData) WithSessionID(id string) Outbound       { d.SessionID = id; return d }

// newPayload returns a zero payload for kind, ready to be decoded into.
func newPayload(kind EventKind) (Payload, bool) {
	switch kind {
	case KindInit:
		return &InitData{}, true
	case KindUser:
		return &UserData{}, true
	case KindAgentPartial:
		return &AgentPartialData{}, true
	case KindAgentFinal:
		return &AgentFinalData{}, true
	case KindUpdateInProgress:
		return &UpdateInProgressData{}, true
	case KindUpdateFile:
		return &UpdateFileData{}, true
	case KindUpdateCompleted:
		return &UpdateCompletedData{}, true
	case KindGetFileTree:
		return &GetFileTreeData{}, true
	case KindFileTree:
		return &FileTreeData{}, true
	case KindGetFileContent:
		return &GetFileContentData{}, true
	case KindFileContent:
		return &FileContentData{}, true
	case KindSaveFile:
		return &SaveFileData{}, true
	case KindFileSaved:
		return &FileSavedData{}, true
	case KindError:
		return &ErrorData{}, true
	case KindPing:
		return &PingData{}, true
	}
	return nil, false
}
