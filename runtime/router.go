package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"polyglot-chat/contract"
	"polyglot-chat/domain"
	"polyglot-chat/errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Router validates raw client frames against the closed set of frame types
// before any side effect happens, then dispatches them to a FrameHandler.
type Router struct {
	defaultLang      string
	maxContentLength int
}

func NewRouter(defaultLang string, maxContentLength int) *Router {
	if defaultLang == "" {
		defaultLang = domain.DefaultLanguage
	}
	return &Router{defaultLang: defaultLang, maxContentLength: maxContentLength}
}

// Route decodes one raw frame and hands it to the matching handler method.
func (r *Router) Route(ctx context.Context, sink domain.Sink, raw []byte, handler contract.FrameHandler) error {
	frame, err := r.Decode(raw)
	if err != nil {
		return err
	}
	switch f := frame.(type) {
	case domain.JoinFrame:
		return handler.OnJoin(ctx, sink, f)
	case domain.MessageFrame:
		return handler.OnMessage(ctx, sink, f)
	default:
		return errors.Protocol("route", errors.ErrUnknownFrameType)
	}
}

// Decode turns an untyped JSON payload into a typed inbound frame.
// Whitespace-only messages yield ErrEmptyMessage, which callers drop silently.
func (r *Router) Decode(raw []byte) (domain.InboundFrame, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return nil, errors.Protocol("decode", errors.ErrMalformedFrame)
	}
	frameType, _ := coerceString(payload["type"])
	switch frameType {
	case domain.FrameJoin:
		return r.decodeJoin(payload)
	case domain.FrameMessage:
		return r.decodeMessage(payload)
	default:
		return nil, errors.Protocol("decode", fmt.Errorf("%w: %q", errors.ErrUnknownFrameType, frameType))
	}
}

func (r *Router) decodeJoin(payload map[string]any) (domain.InboundFrame, error) {
	name, _ := coerceString(payload["name"])
	lang := coerceLang(payload["lang"])
	frame := domain.JoinFrame{
		Name: strings.TrimSpace(name),
		Lang: strings.ToLower(strings.TrimSpace(lang)),
	}
	if frame.Lang == "" {
		frame.Lang = r.defaultLang
	}
	if err := validate.Struct(frame); err != nil {
		return nil, errors.Protocol("join", fieldError(err))
	}
	return frame, nil
}

func (r *Router) decodeMessage(payload map[string]any) (domain.InboundFrame, error) {
	text, _ := coerceString(payload["text"])
	lang := coerceLang(payload["lang"])
	frame := domain.MessageFrame{
		Text: strings.TrimSpace(text),
		Lang: strings.ToLower(strings.TrimSpace(lang)),
	}
	if frame.Text == "" {
		return nil, errors.ErrEmptyMessage
	}
	if r.maxContentLength > 0 && utf8.RuneCountInString(frame.Text) > r.maxContentLength {
		return nil, errors.Protocol("message", errors.ErrTextTooLong)
	}
	if err := validate.Struct(frame); err != nil {
		return nil, errors.Protocol("message", fieldError(err))
	}
	return frame, nil
}

func fieldError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return errors.ErrMalformedFrame
	}
	switch validationErrors[0].Field() {
	case "Name":
		return errors.ErrInvalidName
	case "Lang":
		return errors.ErrInvalidLang
	case "Text":
		return errors.ErrEmptyMessage
	default:
		return errors.ErrMalformedFrame
	}
}

// coerceLang treats the falsy JSON values false, 0 and null as no language.
func coerceLang(v any) string {
	switch value := v.(type) {
	case bool:
		if !value {
			return ""
		}
	case float64:
		if value == 0 {
			return ""
		}
	}
	lang, _ := coerceString(v)
	return lang
}

// coerceString accepts the scalar JSON values a loosely typed client may send.
func coerceString(v any) (string, bool) {
	switch value := v.(type) {
	case string:
		return value, true
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(value), true
	default:
		return "", false
	}
}
