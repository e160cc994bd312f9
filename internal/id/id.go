// Package id generates prefixed unique identifiers for Quoteline entities.
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Well-known entity prefixes. Every persisted row carries one of these so
// identifiers are self-describing in logs and export bundles.
const (
	PrefixTeam          = "team"
	PrefixUser          = "user"
	PrefixComponent     = "cmp"
	PrefixAssembly      = "asm"
	PrefixAssemblyEntry = "asmc"
	PrefixQuotation     = "quo"
	PrefixSystem        = "sys"
	PrefixItem          = "itm"
	PrefixAttachment    = "att"
)

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "cmp-V1StGXR8_Z5jdHi6B-myT")
//
// NanoIDs are URL-friendly, compact (21 characters vs UUID's 36),
// and use a larger alphabet for better entropy per character.
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
// Use this only when you're certain the system entropy is available,
// or when failure should crash the program (e.g., during initialization).
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// PrefixAPIKey marks opaque bearer tokens issued to users. Keys are longer
// than entity IDs since they act as credentials.
const PrefixAPIKey = "qlk"

const apiKeyLength = 40

// GenerateKey creates an opaque API key.
func GenerateKey() (string, error) {
	key, err := gonanoid.New(apiKeyLength)
	if err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return PrefixAPIKey + "-" + key, nil
}

// Prefix returns the prefix portion of a generated ID, or "" if the ID
// does not contain one.
func Prefix(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return ""
}
