package domain

import (
	"encoding/json"
	"fmt"
)

// Method is the wire name of a coordinator request.
type Method string

const (
	MethodSetComment                Method = "setComment"
	MethodDeleteComment             Method = "deleteComment"
	MethodInjectCommentToFocusedTab Method = "injectCommentToFocusedTab"
	MethodSetColor                  Method = "setColor"
	MethodGetColor                  Method = "getColor"
	MethodSetFontSize               Method = "setFontSize"
	MethodGetFontSize               Method = "getFontSize"
	MethodSetFontFamily             Method = "setFontFamily"
	MethodGetFontFamily             Method = "getFontFamily"
	MethodSetIsEnabledStreaming     Method = "setIsEnabledStreaming"
	MethodGetIsEnabledStreaming     Method = "getIsEnabledStreaming"
	MethodToggleIsEnabledStreaming  Method = "toggleIsEnabledStreaming"
)

// Request is a closed union of coordinator requests. Only types in this
// package implement it.
type Request interface {
	Method() Method
	request()
}

type SetComment struct {
	Text  string
	Color string
}

type DeleteComment struct{}

type InjectCommentToFocusedTab struct{}

type SetColor struct{ Value string }

type GetColor struct{}

type SetFontSize struct{ Value string }

type GetFontSize struct{}

type SetFontFamily struct{ Value string }

type GetFontFamily struct{}

type SetIsEnabledStreaming struct{ Value bool }

type GetIsEnabledStreaming struct{}

type ToggleIsEnabledStreaming struct{}

func (SetComment) Method() Method                { return MethodSetComment }
func (DeleteComment) Method() Method             { return MethodDeleteComment }
func (InjectCommentToFocusedTab) Method() Method { return MethodInjectCommentToFocusedTab }
func (SetColor) Method() Method                  { return MethodSetColor }
func (GetColor) Method() Method                  { return MethodGetColor }
func (SetFontSize) Method() Method               { return MethodSetFontSize }
func (GetFontSize) Method() Method               { return MethodGetFontSize }
func (SetFontFamily) Method() Method             { return MethodSetFontFamily }
func (GetFontFamily) Method() Method             { return MethodGetFontFamily }
func (SetIsEnabledStreaming) Method() Method     { return MethodSetIsEnabledStreaming }
func (GetIsEnabledStreaming) Method() Method     { return MethodGetIsEnabledStreaming }
func (ToggleIsEnabledStreaming) Method() Method  { return MethodToggleIsEnabledStreaming }

func (SetComment) request()                {}
func (DeleteComment) request()             {}
func (InjectCommentToFocusedTab) request() {}
func (SetColor) request()                  {}
func (GetColor) request()                  {}
func (SetFontSize) request()               {}
func (GetFontSize) request()               {}
func (SetFontFamily) request()             {}
func (GetFontFamily) request()             {}
func (SetIsEnabledStreaming) request()     {}
func (GetIsEnabledStreaming) request()     {}
func (ToggleIsEnabledStreaming) request()  {}

// Response is the coordinator's answer. Present is false when the method
// produces no value (setters, or a getter whose cell is empty).
type Response struct {
	Value   string
	Flag    bool
	Present bool
}

// StringResponse wraps a string value.
func StringResponse(v string) Response { return Response{Value: v, Present: true} }

// BoolResponse wraps a boolean value.
func BoolResponse(v bool) Response { return Response{Flag: v, Present: true} }

// WireMessage is the JSON shape used by page bindings and the CLI.
type WireMessage struct {
	Method Method          `json:"method"`
	Value  json.RawMessage `json:"value,omitempty"`
	Color  string          `json:"color,omitempty"`
}

// DecodeRequest converts a wire message into a typed request.
func DecodeRequest(msg WireMessage) (Request, error) {
	switch msg.Method {
	case MethodSetComment:
		text, err := decodeString(msg.Value)
		if err != nil {
			return nil, err
		}
		return SetComment{Text: text, Color: msg.Color}, nil
	case MethodDeleteComment:
		return DeleteComment{}, nil
	case MethodInjectCommentToFocusedTab:
		return InjectCommentToFocusedTab{}, nil
	case MethodSetColor:
		v, err := decodeString(msg.Value)
		if err != nil {
			return nil, err
		}
		return SetColor{Value: v}, nil
	case MethodGetColor:
		return GetColor{}, nil
	case MethodSetFontSize:
		v, err := decodeString(msg.Value)
		if err != nil {
			return nil, err
		}
		return SetFontSize{Value: v}, nil
	case MethodGetFontSize:
		return GetFontSize{}, nil
	case MethodSetFontFamily:
		v, err := decodeString(msg.Value)
		if err != nil {
			return nil, err
		}
		return SetFontFamily{Value: v}, nil
	case MethodGetFontFamily:
		return GetFontFamily{}, nil
	case MethodSetIsEnabledStreaming:
		var v bool
		if len(msg.Value) > 0 {
			if err := json.Unmarshal(msg.Value, &v); err != nil {
				return nil, fmt.Errorf("decode %s value: %w", msg.Method, err)
			}
		}
		return SetIsEnabledStreaming{Value: v}, nil
	case MethodGetIsEnabledStreaming:
		return GetIsEnabledStreaming{}, nil
	case MethodToggleIsEnabledStreaming:
		return ToggleIsEnabledStreaming{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, msg.Method)
	}
}

func decodeString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("decode string value: %w", err)
	}
	return s, nil
}
