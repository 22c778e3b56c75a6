// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStoreDocumentNotFound   Code = "store.document.not_found"
	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"
	CodeStoreInvalidInput       Code = "store.invalid_input"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeResolveInvalidFormat   Code = "relay.resolve.invalid_format"
	CodeResolveInvalidUsername Code = "relay.resolve.invalid_username"
	CodeResolveInvalidInvite   Code = "relay.resolve.invalid_invite"
	CodeResolveNotAccessible   Code = "relay.resolve.not_accessible"

	CodeRegistryIDInvalid         Code = "relay.registry.id.invalid"
	CodeRegistrySourceNotFound    Code = "relay.registry.source.not_found"
	CodeRegistrySelfRelayConflict Code = "relay.registry.self_relay.conflict"
	CodeRegistryAdminDenied       Code = "relay.registry.admin.denied"
	CodeRegistryPersistFailure    Code = "relay.registry.persist.failure"

	CodeCopyFailure           Code = "relay.copy.failure"
	CodeCopyRateLimitExceeded Code = "relay.copy.rate_limit.exceeded"
	CodeCopySourceRequired    Code = "relay.copy.source.required"
	CodeCopyTargetRequired    Code = "relay.copy.target.required"
	CodeCopyMessageNotFound   Code = "relay.copy.message.not_found"
	CodeCopyRequestInvalid    Code = "relay.copy.request.invalid"

	CodePlatformUpstreamFailure Code = "platform.request.upstream.failure"
	CodePlatformMessageNotFound Code = "platform.message.not_found"
	CodePlatformChatNotFound    Code = "platform.chat.not_found"
	CodePlatformUsernameInvalid Code = "platform.username.invalid"
	CodePlatformInviteInvalid   Code = "platform.invite.invalid"

	CodeChannelTokenInvalid     Code = "channel.token.invalid"
	CodeChannelTokenCheckFailed Code = "channel.token.check.failure"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"

	CodeCLIGatewayNotRunning Code = "cli.gateway.not_running"
	CodeCLIRequestFailure    Code = "cli.request.failure"
	CodeCLISetupFailure      Code = "cli.setup.failure"
	CodeCLIInputInvalid      Code = "cli.input.invalid"

	CodeSecretInvalidInput   Code = "secret.input.invalid"
	CodeSecretNotFound       Code = "secret.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretListFailure    Code = "secret.list.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldChatID(value int64) Attr {
	return Field("chat_id", value)
}

func FieldMessageID(value int) Attr {
	return Field("message_id", value)
}

func FieldIdentifier(value string) Attr {
	return Field("identifier", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUnauthorized(err error) bool {
	r := reason(CodeOf(err))
	return r == "unauthorized" || r == "forbidden" || r == "denied"
}

func IsBudgetExceeded(err error) bool {
	return reason(CodeOf(err)) == "exceeded"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnauthorized(err):
		if reason(CodeOf(err)) == "forbidden" || reason(CodeOf(err)) == "denied" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case IsBudgetExceeded(err):
		return http.StatusTooManyRequests
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
