// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// MaxReadSize bounds what ReadFromPath accepts. Access tokens and age
// identity files are far smaller.
const MaxReadSize = 64 << 10

// ReadFromPath reads a secret from a file, or all of stdin if path is
// "-". Surrounding whitespace is trimmed. An empty secret, or one over
// MaxReadSize, is an error.
func ReadFromPath(path string) (*Buffer, error) {
	var source io.Reader = os.Stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		source = file
	}

	data, err := io.ReadAll(io.LimitReader(source, MaxReadSize+1))
	if err != nil {
		wipe(data)
		return nil, fmt.Errorf("reading secret from %s: %w", path, err)
	}
	defer wipe(data)
	if len(data) > MaxReadSize {
		return nil, fmt.Errorf("secret in %s is larger than %d bytes", path, MaxReadSize)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret in %s is empty", path)
	}
	return NewFromBytes(trimmed)
}

// ReadFromEnv reads a secret from the named environment variable and
// unsets it, so child processes do not inherit it. A missing or blank
// variable returns (nil, nil).
func ReadFromEnv(name string) (*Buffer, error) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return nil, nil
	}
	if err := os.Unsetenv(name); err != nil {
		return nil, fmt.Errorf("unsetting %s: %w", name, err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	return NewFromString(value)
}
