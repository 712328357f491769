package model

// SendRequest 的 Content 为空时使用输入框中的文本
type SendRequest struct {
	Content *string `json:"content"`
}

type ComposerRequest struct {
	Text string `json:"text"`
}

type ImageRequest struct {
	Prompt string `json:"prompt"`
}

type CredentialRequest struct {
	Value string `json:"value"`
}

type RememberRequest struct {
	Remember *bool `json:"remember" binding:"required"`
}

type ModelSettingRequest struct {
	Model string `json:"model" binding:"required"`
}
