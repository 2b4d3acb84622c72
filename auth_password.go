package main

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/martinhoefling/goxkcdpwgen/xkcdpwgen"
	"golang.org/x/term"
)

func generateAppPassword() string {
	g := xkcdpwgen.NewGenerator()
	g.SetNumWords(3)
	g.SetCapitalize(false)
	g.SetDelimiter("-")
	return strings.TrimSpace(g.GeneratePasswordString())
}

// ensureAppPassword makes sure a login password exists. On first run it
// generates one, stores only its digest in the secrets file and logs the
// plaintext once.
func ensureAppPassword(cfg *Config, secretsPath string) error {
	if cfg.AppPassword != "" || cfg.AppPasswordSHA256 != "" {
		return nil
	}
	password := generateAppPassword()
	digest := appPasswordHash(password)
	if err := updateSecretsFile(secretsPath, func(sc *secretsConfig) {
		sc.AppPasswordSHA256 = digest
		if sc.AppUsername == "" {
			sc.AppUsername = cfg.AppUsername
		}
	}); err != nil {
		return fmt.Errorf("store generated password: %w", err)
	}
	cfg.AppPasswordSHA256 = digest
	logger.Warn("generated panel login password; change it with -set-password",
		"username", cfg.AppUsername, "password", password, "secrets", secretsPath)
	return nil
}

// runSetPassword prompts for a new login password on the terminal and
// replaces whatever the secrets file held.
func runSetPassword(secretsPath string) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("-set-password needs an interactive terminal")
	}
	first, err := promptPassword(fd, os.Stdout, "New panel password: ")
	if err != nil {
		return err
	}
	if len(first) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	second, err := promptPassword(fd, os.Stdout, "Repeat password: ")
	if err != nil {
		return err
	}
	if !compareStringsConstantTime(first, second) {
		return errors.New("passwords do not match")
	}
	return updateSecretsFile(secretsPath, func(sc *secretsConfig) {
		sc.AppPassword = ""
		sc.AppPasswordSHA256 = appPasswordHash(first)
	})
}

func promptPassword(fd int, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(data), nil
}

func credentialsMatch(cfg Config, username, password string) bool {
	if cfg.AppUsername == "" || (cfg.AppPassword == "" && cfg.AppPasswordSHA256 == "") {
		return false
	}
	if !compareStringsConstantTime(cfg.AppUsername, strings.TrimSpace(username)) {
		return false
	}
	if hash := strings.ToLower(strings.TrimSpace(cfg.AppPasswordSHA256)); hash != "" {
		return compareStringsConstantTime(hash, appPasswordHash(password))
	}
	return compareStringsConstantTime(cfg.AppPassword, password)
}

func compareStringsConstantTime(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
