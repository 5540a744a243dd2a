package email

import (
	"strings"
	"testing"
)

func TestComposeHeaders(t *testing.T) {
	msg, err := Compose(ComposeOptions{
		From:    "Ada <ada@example.com>",
		To:      []string{"Marta <marta@example.com>"},
		Subject: "Cena el viernes",
		Body:    "Hola Marta,\n\n¿Cenamos el **viernes**?",
	})
	if err != nil {
		t.Fatalf("Compose() error: %v", err)
	}

	raw := string(msg)
	for _, want := range []string{
		"From:",
		"ada@example.com",
		"marta@example.com",
		"Message-Id:",
		"multipart/alternative",
		"text/plain",
		"text/html",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestComposeInvalidAddress(t *testing.T) {
	_, err := Compose(ComposeOptions{
		From:    "not an address",
		To:      []string{"x@example.com"},
		Subject: "s",
		Body:    "b",
	})
	if err == nil {
		t.Error("Compose() with bad from address should fail")
	}

	_, err = Compose(ComposeOptions{
		From:    "ada@example.com",
		To:      []string{"<<broken"},
		Subject: "s",
		Body:    "b",
	})
	if err == nil {
		t.Error("Compose() with bad recipient should fail")
	}
}

func TestMarkdownToPlain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "esto es **importante**", "esto es importante"},
		{"link", "mira [esto](https://example.com)", "mira esto (https://example.com)"},
		{"heading", "# Plan\ntexto", "Plan\ntexto"},
		{"inline code", "usa `go test`", "usa go test"},
		{"list kept", "- uno\n- dos", "- uno\n- dos"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := markdownToPlain(tc.in); got != tc.want {
				t.Errorf("markdownToPlain(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestMarkdownToHTML(t *testing.T) {
	got, err := markdownToHTML("hola **mundo**")
	if err != nil {
		t.Fatalf("markdownToHTML() error: %v", err)
	}
	if !strings.Contains(got, "<strong>mundo</strong>") {
		t.Errorf("html missing rendered bold: %s", got)
	}
	if !strings.Contains(got, "<!DOCTYPE html>") {
		t.Error("html missing document wrapper")
	}
}

func TestBareAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ada <ada@example.com>", "ada@example.com"},
		{"ada@example.com", "ada@example.com"},
		{"<x@y.z>", "x@y.z"},
	}
	for _, tc := range tests {
		if got := bareAddress(tc.in); got != tc.want {
			t.Errorf("bareAddress(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
