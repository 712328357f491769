package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Part 与上游 chat API 的 parts 结构保持一致，本系统每条消息只用一个片段
type Part struct {
	Text string `json:"text"`
}

// Message 追加到会话后即不可变
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTextMessage(role Role, text string) Message {
	return Message{
		Role:  role,
		Parts: []Part{{Text: text}},
	}
}

// Text 拼接全部片段
func (m Message) Text() string {
	if len(m.Parts) == 1 {
		return m.Parts[0].Text
	}
	var out string
	for _, p := range m.Parts {
		out += p.Text
	}
	return out
}

// Clone 返回深拷贝，避免调用方修改已追加消息的 parts
func (m Message) Clone() Message {
	c := m
	c.Parts = append([]Part(nil), m.Parts...)
	return c
}

// Status 是忙碌闸门、可见错误和输入框文本的快照
type Status struct {
	TextInFlight  bool   `json:"textInFlight"`
	ImageInFlight bool   `json:"imageInFlight"`
	Error         string `json:"error"`
	Composer      string `json:"composer"`
}

func (s Status) Busy() bool {
	return s.TextInFlight || s.ImageInFlight
}
