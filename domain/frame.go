package domain

// Frame types exchanged with the browser client.
const (
	FrameJoin    = "join"
	FrameMessage = "message"
	FrameSystem  = "system"
	FrameChat    = "chat"
	FrameAIChat  = "ai_chat"
)

// InboundFrame is the closed set of frames a client may send.
type InboundFrame interface {
	inbound()
}

type JoinFrame struct {
	Name string `validate:"required,max=64"`
	Lang string `validate:"required,bcp47_language_tag"`
}

// MessageFrame carries a chat line. Lang is empty when the client did not say.
type MessageFrame struct {
	Text string `validate:"required"`
	Lang string `validate:"omitempty,bcp47_language_tag"`
}

func (JoinFrame) inbound()    {}
func (MessageFrame) inbound() {}

// OutboundFrame is the closed set of frames the server writes.
type OutboundFrame interface {
	FrameType() string
}

type SystemFrame struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

type ChatFrame struct {
	Type           string `json:"type"`
	From           string `json:"from"`
	Text           string `json:"text"`
	FromLang       string `json:"from_lang"`
	TranslatedText string `json:"translated_text"`
	ToLang         string `json:"to_lang"`
}

// AIChatFrame reuses TranslatedText to carry the assistant's answer.
type AIChatFrame struct {
	Type           string `json:"type"`
	From           string `json:"from"`
	Text           string `json:"text"`
	TranslatedText string `json:"translated_text"`
	ToLang         string `json:"to_lang"`
}

func (f SystemFrame) FrameType() string { return f.Type }
func (f ChatFrame) FrameType() string   { return f.Type }
func (f AIChatFrame) FrameType() string { return f.Type }

func NewSystemFrame(msg string) SystemFrame {
	return SystemFrame{Type: FrameSystem, Msg: msg}
}

func NewChatFrame(from, text, fromLang, translatedText, toLang string) ChatFrame {
	return ChatFrame{
		Type:           FrameChat,
		From:           from,
		Text:           text,
		FromLang:       fromLang,
		TranslatedText: translatedText,
		ToLang:         toLang,
	}
}

func NewAIChatFrame(from, question, answer, toLang string) AIChatFrame {
	return AIChatFrame{
		Type:           FrameAIChat,
		From:           from,
		Text:           question,
		TranslatedText: answer,
		ToLang:         toLang,
	}
}
