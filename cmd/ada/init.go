package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/adavila/ada/internal/defaults"
	"github.com/adavila/ada/internal/web"
)

// tokenHashPlaceholder marks where the generated web token hash goes in
// the embedded config template.
const tokenHashPlaceholder = "ADA_WEB_TOKEN_HASH"

// runInit initializes an Ada working directory with default files and
// a fresh web access token. Existing files are never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing Ada workspace in %s\n", dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, "ada.yaml")
	configContent := defaults.ConfigYAML

	// A fresh config gets a random web token. The cleartext is printed
	// once here; only the bcrypt hash lands in the file.
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		token, hash, err := newWebToken()
		if err != nil {
			return fmt.Errorf("generate web token: %w", err)
		}
		configContent = []byte(strings.Replace(string(defaults.ConfigYAML), tokenHashPlaceholder, hash, 1))
		fmt.Fprintf(w, "  Web access token (save it, it is not stored in cleartext): %s\n", token)
	}

	if err := writeIfMissing(configPath, configContent); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", configPath)

	personaPath := filepath.Join(dir, "persona.md")
	if err := writeIfMissing(personaPath, defaults.PersonaMD); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", personaPath)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit ada.yaml and persona.md to customize your installation.")
	return nil
}

// newWebToken generates a random access token and its bcrypt hash.
func newWebToken() (token, hash string, err error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(raw)
	hash, err = web.HashToken(token)
	if err != nil {
		return "", "", err
	}
	return token, hash, nil
}

// writeIfMissing writes content to path only if the file does not
// already exist, so init never overwrites user customizations.
func writeIfMissing(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, content, 0o644)
}
