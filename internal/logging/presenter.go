// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"errors"

	apperrors "storefront/cli/internal/errors"
)

// PresentError formats an error for the user. Typed errors show their message
// and cause without the kind prefix, and secrets are masked. An empty context
// is omitted.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	msg := apperrors.MessageOf(err)
	var e *apperrors.E
	if errors.As(err, &e) && e.Err != nil && e.Message != "" {
		msg = e.Message + ": " + e.Err.Error()
	}
	msg = Mask(msg)
	if context == "" {
		return msg
	}
	return context + ": " + msg
}
