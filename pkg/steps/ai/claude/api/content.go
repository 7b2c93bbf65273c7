package api

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type ContentType string

const (
	ContentTypeText ContentType = "text"
)

type Content interface {
	Type() ContentType
}

type BaseContent struct {
	Type_ ContentType `json:"type"`
}

type TextContent struct {
	BaseContent
	Text string `json:"text"`
}

func (t TextContent) Type() ContentType {
	return ContentTypeText
}

func NewTextContent(text string) Content {
	return TextContent{BaseContent: BaseContent{Type_: ContentTypeText}, Text: text}
}

// Message is one entry of the messages array.
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

func NewTextMessage(role string, text string) Message {
	return Message{Role: role, Content: []Content{NewTextContent(text)}}
}

// Text concatenates the text blocks of the message.
func (m Message) Text() string {
	ret := ""
	for _, c := range m.Content {
		if t, ok := c.(TextContent); ok {
			ret += t.Text
		}
	}
	return ret
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string            `json:"role"`
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Content = make([]Content, 0, len(raw.Content))
	for _, c := range raw.Content {
		var base BaseContent
		if err := json.Unmarshal(c, &base); err != nil {
			return err
		}
		switch base.Type_ {
		case ContentTypeText:
			var t TextContent
			if err := json.Unmarshal(c, &t); err != nil {
				return err
			}
			m.Content = append(m.Content, t)
		default:
			return errors.Errorf("unsupported content type %q", base.Type_)
		}
	}
	return nil
}
