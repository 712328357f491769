package model

// Row 是对话记录渲染后的一行
type Row struct {
	Key      string `json:"key"`
	Kind     string `json:"kind"` // message | pending | error
	Role     Role   `json:"role,omitempty"`
	Align    string `json:"align"`
	Text     string `json:"text"`
	HTML     string `json:"html,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type SessionResponse struct {
	SessionID     string   `json:"session_id"`
	Accepted      bool     `json:"accepted"`
	Rows          []Row    `json:"rows"`
	Status        Status   `json:"status"`
	Suggestions   []string `json:"suggestions,omitempty"`
	DefaultPrompt string   `json:"default_image_prompt,omitempty"`
}

type CredentialResponse struct {
	Present  bool   `json:"present"`
	Masked   string `json:"masked"`
	Remember bool   `json:"remember"`
	Usable   bool   `json:"usable"`
}

type SettingsResponse struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	ImageProvider string `json:"image_provider"`
}

// StreamEvent 通过 SSE 推送给前端
type StreamEvent struct {
	SessionID string   `json:"session_id"`
	Type      string   `json:"type"` // message | status
	Index     int      `json:"index,omitempty"`
	Message   *Message `json:"message,omitempty"`
	Row       *Row     `json:"row,omitempty"`
	Status    *Status  `json:"status,omitempty"`
	Timestamp int64    `json:"timestamp"`
}
