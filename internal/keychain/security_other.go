// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

//go:build !darwin

package keychain

import "errors"

var (
	errSecurityNotFound    = errors.New("keychain item not found")
	errSecurityUnsupported = errors.New("the security command is only available on macOS")
)

// securityBackend never exists off macOS; NewManager falls through to the keyring library.
type securityBackend struct{}

func newSecurityBackend(string) (*securityBackend, error) {
	return nil, errSecurityUnsupported
}

func (*securityBackend) Set(string, string) error { return errSecurityUnsupported }
func (*securityBackend) Get(string) (string, error) { return "", errSecurityUnsupported }
func (*securityBackend) Delete(string) error { return errSecurityUnsupported }
