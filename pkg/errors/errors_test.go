// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := relayerr.New(
		relayerr.CodeConfigValidateInvalidValue,
		"invalid relay configuration",
		relayerr.FieldChatID(-1001111),
		relayerr.Field("key", "relay.max_batch_size"),
	)

	require.Error(t, err)
	assert.Equal(t, relayerr.CodeConfigValidateInvalidValue, relayerr.CodeOf(err))
	assert.True(t, relayerr.HasCode(err, relayerr.CodeConfigValidateInvalidValue))

	fields := relayerr.FieldsOf(err)
	assert.Equal(t, int64(-1001111), fields["chat_id"])
	assert.Equal(t, "relay.max_batch_size", fields["key"])
}

func TestNewWithNoFields(t *testing.T) {
	err := relayerr.New(relayerr.CodeStoreDatabaseFailure, "connection lost")
	require.Error(t, err)
	assert.Equal(t, relayerr.CodeStoreDatabaseFailure, relayerr.CodeOf(err))
	assert.Contains(t, err.Error(), "connection lost")
}

func TestErrorfFormatsMessage(t *testing.T) {
	err := relayerr.Errorf(relayerr.CodeCopyFailure, "copying message %d into %d", 42, -1003333)
	require.Error(t, err)
	assert.Equal(t, relayerr.CodeCopyFailure, relayerr.CodeOf(err))
	assert.Contains(t, err.Error(), "copying message 42 into -1003333")
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, relayerr.CodeStoreDatabaseFailure, relayerr.CodeOf(err))
}

// ---------------------------------------------------------------------------
// Wrap / Wrapf
// ---------------------------------------------------------------------------

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("MESSAGE_ID_INVALID")
	err := relayerr.Wrap(
		root,
		relayerr.CodePlatformMessageNotFound,
		"fetching message",
		relayerr.FieldMessageID(503),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.Equal(t, relayerr.CodePlatformMessageNotFound, relayerr.CodeOf(err))
	assert.True(t, relayerr.IsNotFound(err))
	assert.Equal(t, 503, relayerr.FieldsOf(err)["message_id"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, relayerr.Wrap(nil, relayerr.CodeServerInternalFailure, "ignored"))
}

func TestWrapfNilReturnsNil(t *testing.T) {
	assert.NoError(t, relayerr.Wrapf(nil, relayerr.CodeServerInternalFailure, "ignored %s", "arg"))
}

func TestWrapfFormatsAndPreservesChain(t *testing.T) {
	root := stderrors.New("timeout")
	err := relayerr.Wrapf(root, relayerr.CodePlatformUpstreamFailure, "calling %s for chat %d", "channels.getMessages", -1001111)

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.Equal(t, relayerr.CodePlatformUpstreamFailure, relayerr.CodeOf(err))
	assert.Contains(t, err.Error(), "calling channels.getMessages for chat -1001111")
}

func TestWrapWithFields(t *testing.T) {
	root := stderrors.New("CHAT_WRITE_FORBIDDEN")
	err := relayerr.Wrap(root, relayerr.CodeRegistryAdminDenied, "admin probe",
		relayerr.FieldChatID(-1002222),
		relayerr.FieldIdentifier("@news"),
	)

	fields := relayerr.FieldsOf(err)
	assert.Equal(t, int64(-1002222), fields["chat_id"])
	assert.Equal(t, "@news", fields["identifier"])
}

// ---------------------------------------------------------------------------
// With
// ---------------------------------------------------------------------------

func TestWithAddsContextWithoutChangingCode(t *testing.T) {
	base := relayerr.New(relayerr.CodeRegistrySourceNotFound, "not a source")
	withCtx := relayerr.With(base, relayerr.FieldChatID(-1009999))

	require.Error(t, withCtx)
	assert.Equal(t, relayerr.CodeRegistrySourceNotFound, relayerr.CodeOf(withCtx))
	assert.Equal(t, int64(-1009999), relayerr.FieldsOf(withCtx)["chat_id"])
}

func TestWithNilReturnsNil(t *testing.T) {
	assert.NoError(t, relayerr.With(nil, relayerr.FieldIdentifier("x")))
}

func TestWithOnPlainErrorDefaultsToInternalCode(t *testing.T) {
	plain := stderrors.New("something broke")
	enriched := relayerr.With(plain, relayerr.FieldIdentifier("t.me/news"))

	require.Error(t, enriched)
	assert.Equal(t, relayerr.CodeServerInternalFailure, relayerr.CodeOf(enriched))
	assert.Equal(t, "t.me/news", relayerr.FieldsOf(enriched)["identifier"])
}

// ---------------------------------------------------------------------------
// HasCode / CodeOf / FieldsOf
// ---------------------------------------------------------------------------

func TestHasCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code relayerr.Code
		want bool
	}{
		{
			name: "matching code",
			err:  relayerr.New(relayerr.CodeStoreDocumentNotFound, "gone"),
			code: relayerr.CodeStoreDocumentNotFound,
			want: true,
		},
		{
			name: "non-matching code",
			err:  relayerr.New(relayerr.CodeStoreDocumentNotFound, "gone"),
			code: relayerr.CodeStoreDatabaseFailure,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			code: relayerr.CodeStoreDocumentNotFound,
			want: false,
		},
		{
			name: "plain stdlib error has no code",
			err:  stderrors.New("plain"),
			code: relayerr.CodeServerInternalFailure,
			want: false,
		},
		{
			name: "wrapped coded error returns innermost code",
			err: relayerr.Wrap(
				relayerr.New(relayerr.CodeStoreDatabaseFailure, "inner"),
				relayerr.CodeRegistryPersistFailure, "outer",
			),
			code: relayerr.CodeStoreDatabaseFailure,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relayerr.HasCode(tt.err, tt.code))
		})
	}
}

func TestCodeOfNil(t *testing.T) {
	assert.Equal(t, relayerr.Code(""), relayerr.CodeOf(nil))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, relayerr.Code(""), relayerr.CodeOf(stderrors.New("plain")))
}

func TestFieldsOfNil(t *testing.T) {
	assert.Nil(t, relayerr.FieldsOf(nil))
}

func TestFieldsOfPlainError(t *testing.T) {
	assert.Nil(t, relayerr.FieldsOf(stderrors.New("plain")))
}

func TestTypedFieldHelpers(t *testing.T) {
	tests := []struct {
		name string
		attr relayerr.Attr
		key  string
		val  any
	}{
		{"chat_id", relayerr.FieldChatID(-1001111), "chat_id", int64(-1001111)},
		{"message_id", relayerr.FieldMessageID(7), "message_id", 7},
		{"identifier", relayerr.FieldIdentifier("@news"), "identifier", "@news"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.val, tt.attr.Value)
		})
	}
}

func TestFieldsWithEmptyKeyAreIgnored(t *testing.T) {
	err := relayerr.New(relayerr.CodeStoreDatabaseFailure, "oops",
		relayerr.Field("", "should-be-dropped"),
		relayerr.FieldIdentifier("kept"),
	)
	fields := relayerr.FieldsOf(err)
	assert.Equal(t, "kept", fields["identifier"])
	assert.NotContains(t, fields, "")
}

// ---------------------------------------------------------------------------
// Unwrapping
// ---------------------------------------------------------------------------

func TestErrorIsWithWrappedChain(t *testing.T) {
	sentinel := stderrors.New("root cause")
	mid := fmt.Errorf("mid: %w", sentinel)
	outer := relayerr.Wrap(mid, relayerr.CodeServerInternalFailure, "handler")

	assert.ErrorIs(t, outer, sentinel)
}

func TestNestedWrapInnermostCodePersists(t *testing.T) {
	root := stderrors.New("io error")
	l1 := relayerr.Wrap(root, relayerr.CodeStoreDatabaseFailure, "store layer")
	l2 := relayerr.Wrap(l1, relayerr.CodeRegistryPersistFailure, "registry layer")
	l3 := relayerr.Wrap(l2, relayerr.CodeServerInternalFailure, "server layer")

	// oops walks to the deepest coded error, so CodeOf returns the first code set.
	assert.Equal(t, relayerr.CodeStoreDatabaseFailure, relayerr.CodeOf(l3))
	assert.ErrorIs(t, l3, root)
}

// ---------------------------------------------------------------------------
// Classification helpers
// ---------------------------------------------------------------------------

func TestClassificationAndStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		code   relayerr.Code
		status int
		check  func(error) bool
	}{
		{name: "document not found", code: relayerr.CodeStoreDocumentNotFound, status: 404, check: relayerr.IsNotFound},
		{name: "not a source", code: relayerr.CodeRegistrySourceNotFound, status: 404, check: relayerr.IsNotFound},
		{name: "message not found", code: relayerr.CodeCopyMessageNotFound, status: 404, check: relayerr.IsNotFound},
		{name: "self relay", code: relayerr.CodeRegistrySelfRelayConflict, status: 409, check: relayerr.IsConflict},
		{name: "invalid value", code: relayerr.CodeConfigValidateInvalidValue, status: 400, check: relayerr.IsInvalidInput},
		{name: "invalid format", code: relayerr.CodeResolveInvalidFormat, status: 400, check: relayerr.IsInvalidInput},
		{name: "invalid input", code: relayerr.CodeStoreInvalidInput, status: 400, check: relayerr.IsInvalidInput},
		{name: "non-canonical id", code: relayerr.CodeRegistryIDInvalid, status: 400, check: relayerr.IsInvalidInput},
		{name: "admin denied", code: relayerr.CodeRegistryAdminDenied, status: 403, check: relayerr.IsUnauthorized},
		{name: "rate limit exceeded", code: relayerr.CodeCopyRateLimitExceeded, status: 429, check: relayerr.IsBudgetExceeded},
		{name: "upstream failure", code: relayerr.CodePlatformUpstreamFailure, status: 502, check: relayerr.IsUpstreamFailure},
		{name: "internal", code: relayerr.CodeServerInternalFailure, status: 500, check: func(err error) bool { return !relayerr.IsNotFound(err) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := relayerr.New(tt.code, "boom")
			assert.Equal(t, tt.status, relayerr.HTTPStatus(err))
			assert.True(t, tt.check(err))
		})
	}
}

func TestClassificationNegativeCases(t *testing.T) {
	err := relayerr.New(relayerr.CodeStoreDatabaseFailure, "db error")
	assert.False(t, relayerr.IsNotFound(err))
	assert.False(t, relayerr.IsConflict(err))
	assert.False(t, relayerr.IsInvalidInput(err))
	assert.False(t, relayerr.IsUnauthorized(err))
	assert.False(t, relayerr.IsBudgetExceeded(err))
	assert.False(t, relayerr.IsUpstreamFailure(err))
}

func TestClassificationOnNilError(t *testing.T) {
	assert.False(t, relayerr.IsNotFound(nil))
	assert.False(t, relayerr.IsConflict(nil))
	assert.False(t, relayerr.IsInvalidInput(nil))
	assert.False(t, relayerr.IsUnauthorized(nil))
	assert.False(t, relayerr.IsBudgetExceeded(nil))
	assert.False(t, relayerr.IsUpstreamFailure(nil))
}

func TestHTTPStatusNilReturnsInternalServerError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, relayerr.HTTPStatus(nil))
}

func TestHTTPStatusPlainErrorReturnsInternalServerError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, relayerr.HTTPStatus(stderrors.New("oops")))
}

// ---------------------------------------------------------------------------
// Join
// ---------------------------------------------------------------------------

func TestJoinCombinesErrors(t *testing.T) {
	a := stderrors.New("first")
	b := stderrors.New("second")
	joined := relayerr.Join(a, b)

	require.Error(t, joined)
	assert.ErrorIs(t, joined, a)
	assert.ErrorIs(t, joined, b)
	assert.Equal(t, relayerr.CodeServerInternalFailure, relayerr.CodeOf(joined))
}

func TestWrapMessageIncludesContext(t *testing.T) {
	root := stderrors.New("EOF")
	err := relayerr.Wrap(root, relayerr.CodeStoreDatabaseFailure, "reading channel document")

	msg := err.Error()
	assert.Contains(t, msg, "reading channel document")
	assert.Contains(t, msg, "EOF")
}
