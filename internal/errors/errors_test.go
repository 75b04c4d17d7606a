package errors

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "lifecycle error",
			code:    CodeNotReady,
			wantMsg: "Server is not ready",
			wantCat: CategoryRuntime,
		},
		{
			name:    "module error",
			code:    CodeModuleNotFound,
			wantMsg: "Middleware module not found",
			wantCat: CategoryModule,
		},
		{
			name:    "listen error",
			code:    CodeAddressInUse,
			wantMsg: "Address already in use",
			wantCat: CategoryListen,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	err := New(CodeClosed)
	if got, want := err.Error(), "E201: Server is closed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err = New(CodeListenFailed).Wrap(fmt.Errorf("boom"))
	if got, want := err.Error(), "E221: Failed to listen: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	plain := &Error{Message: "test error"}
	if plain.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", plain.Error(), "test error")
	}
}

func TestError_Unwrap(t *testing.T) {
	err := New(CodeConfigNotFound).Wrap(fs.ErrNotExist)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is should see the wrapped error")
	}

	outer := fmt.Errorf("loading: %w", err)
	var e *Error
	if !errors.As(outer, &e) {
		t.Fatal("errors.As should find *Error")
	}
	if e.Code != CodeConfigNotFound {
		t.Errorf("Code = %q, want %q", e.Code, CodeConfigNotFound)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, CodeListenFailed) != nil {
		t.Error("FromError(nil) should be nil")
	}

	cause := fmt.Errorf("plain")
	got := FromError(cause, CodeListenFailed)
	if got.Code != CodeListenFailed || got.Wrapped != cause {
		t.Errorf("FromError = %+v", got)
	}

	existing := New(CodeTLSInvalid)
	if FromError(fmt.Errorf("ctx: %w", existing), CodeListenFailed) != existing {
		t.Error("FromError should return the existing *Error")
	}
}

func TestHasCode(t *testing.T) {
	inner := New(CodeAddressInUse)
	outer := New(CodeListenFailed).Wrap(inner)

	if !HasCode(outer, CodeListenFailed) {
		t.Error("outer code not found")
	}
	if !HasCode(outer, CodeAddressInUse) {
		t.Error("inner code not found")
	}
	if HasCode(outer, CodeTLSInvalid) {
		t.Error("unexpected code match")
	}
	if HasCode(fmt.Errorf("plain"), CodeListenFailed) {
		t.Error("plain error has no code")
	}
}

func TestWithCaller(t *testing.T) {
	err := New(CodeNotReady).WithCaller(0)
	if err.Location == nil {
		t.Fatal("Location is nil")
	}
	if !strings.HasSuffix(err.Location.File, "errors_test.go") {
		t.Errorf("Location.File = %q", err.Location.File)
	}
	if !strings.Contains(err.Location.Function, "TestWithCaller") {
		t.Errorf("Location.Function = %q", err.Location.Function)
	}
}

func TestFormat(t *testing.T) {
	err := New(CodeAddressInUse).
		Wrap(fmt.Errorf("bind: address already in use")).
		WithDetail("localhost:3000 is already bound").
		WithSuggestion("Pick another port")

	plain := err.FormatPlain()
	for _, want := range []string{
		"ERROR E220: Address already in use",
		"localhost:3000 is already bound",
		"Cause: bind: address already in use",
		"Hint: Pick another port",
		"https://vserve.dev/docs/errors/E220",
	} {
		if !strings.Contains(plain, want) {
			t.Errorf("FormatPlain() missing %q:\n%s", want, plain)
		}
	}
	if strings.Contains(plain, "\033[") {
		t.Error("FormatPlain() should not contain ANSI codes")
	}
	if !strings.Contains(err.Format(), "\033[") {
		t.Error("Format() should contain ANSI codes")
	}
}

func TestFormatCompact(t *testing.T) {
	err := New(CodeClosed)
	if got, want := err.FormatCompact(), "E201: Server is closed"; got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestFprint(t *testing.T) {
	var buf bytes.Buffer
	Fprint(&buf, fmt.Errorf("wrapped: %w", New(CodeNotReady)))
	if !strings.Contains(buf.String(), "E200") {
		t.Errorf("Fprint() = %q", buf.String())
	}

	buf.Reset()
	Fprint(&buf, fmt.Errorf("plain failure"))
	if !strings.Contains(buf.String(), "plain failure") {
		t.Errorf("Fprint() = %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 30), 20)
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line too long: %q", l)
		}
	}
	if wrapText("", 10) != nil {
		t.Error("empty text should produce no lines")
	}
}
