package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable covers network failures, timeouts and 5xx answers.
	ErrUnavailable = errors.New("server unavailable")
	// ErrUnauthorized is returned for 401 and 403 answers.
	ErrUnauthorized = errors.New("unauthorized")
)

// ErrorKind classifies the error codes the server reports.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidCredentials
	KindUserBlocked
	KindPasswordChangeRequired
	KindDeviceError
	KindNoProfile
	KindSessionExpired
	KindUserNotFound
	KindVersionOutdated
	KindValidationFailed
	KindInternalServer
)

var kindNames = map[ErrorKind]string{
	KindUnknown:                "Unknown",
	KindInvalidCredentials:     "InvalidCredentials",
	KindUserBlocked:            "UserBlocked",
	KindPasswordChangeRequired: "PasswordChangeRequired",
	KindDeviceError:            "DeviceError",
	KindNoProfile:              "NoProfile",
	KindSessionExpired:         "SessionExpired",
	KindUserNotFound:           "UserNotFound",
	KindVersionOutdated:        "VersionOutdated",
	KindValidationFailed:       "ValidationFailed",
	KindInternalServer:         "InternalServer",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// KindFromCode maps a server code ("01".."10", leading zeros optional).
func KindFromCode(code string) ErrorKind {
	code = strings.TrimSpace(code)
	if len(code) == 1 {
		code = "0" + code
	}
	switch code {
	case "01":
		return KindInvalidCredentials
	case "02":
		return KindUserBlocked
	case "03":
		return KindPasswordChangeRequired
	case "04":
		return KindDeviceError
	case "05":
		return KindNoProfile
	case "06":
		return KindSessionExpired
	case "07":
		return KindUserNotFound
	case "08":
		return KindVersionOutdated
	case "09":
		return KindValidationFailed
	case "10":
		return KindInternalServer
	}
	return KindUnknown
}

// Error is an application error reported by the server.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server error %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("server error %s (%s): %s", e.Kind, e.Code, e.Message)
}

// AsError returns the *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

type errorBody struct {
	CodigoError  json.RawMessage `json:"CodigoError"`
	MensajeError string          `json:"MensajeError"`
	Mensaje      string          `json:"Mensaje"`
}

// ParseError extracts a server error from a response body. It understands
// {"CodigoError","MensajeError"} objects, a "NN|mensaje" string in
// MensajeError or Mensaje, and a bare "NN|mensaje" body. It returns nil
// when the body carries no error.
func ParseError(body []byte) *Error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	switch body[0] {
	case '{':
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err != nil {
			return nil
		}
		code := rawCode(eb.CodigoError)
		msg := eb.MensajeError
		if msg == "" {
			msg = eb.Mensaje
		}
		if c, m, ok := splitPiped(msg); ok {
			if code == "" {
				code = c
			}
			msg = m
		}
		if code == "" || code == "00" || code == "0" {
			return nil
		}
		return &Error{Kind: KindFromCode(code), Code: code, Message: msg}
	case '"':
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return nil
		}
		body = []byte(s)
	}

	if c, m, ok := splitPiped(string(body)); ok {
		return &Error{Kind: KindFromCode(c), Code: c, Message: m}
	}
	return nil
}

func rawCode(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var code string
	if err := json.Unmarshal(raw, &code); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ""
		}
		code = n.String()
	}
	code = strings.TrimSpace(code)
	if len(code) == 1 {
		code = "0" + code
	}
	return code
}

func splitPiped(s string) (code, msg string, ok bool) {
	code, msg, found := strings.Cut(s, "|")
	if !found {
		return "", "", false
	}
	code = strings.TrimSpace(code)
	if code == "" || len(code) > 3 || strings.Trim(code, "0123456789") != "" {
		return "", "", false
	}
	if len(code) == 1 {
		code = "0" + code
	}
	return code, strings.TrimSpace(msg), true
}
