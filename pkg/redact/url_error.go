// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package redact strips sensitive query-string values out of error
// messages before they reach a log line, so a *url.Error surfaced from a
// failed external-adapter dial never leaks an API key or token.
package redact

import (
	"errors"
	"net/url"
	"regexp"
)

var sensitiveQueryParam = regexp.MustCompile(`(?i)(apikey|api_key|passkey|token|password)=[^&]*`)

// URLError rewrites err's URL, if it is or wraps a *url.Error, replacing
// any apikey/api_key/passkey/token/password query value with REDACTED.
// Errors that aren't a *url.Error are returned unchanged.
func URLError(err error) error {
	if err == nil {
		return nil
	}

	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}

	return &url.Error{
		Op:  urlErr.Op,
		URL: sensitiveQueryParam.ReplaceAllString(urlErr.URL, "$1=REDACTED"),
		Err: urlErr.Err,
	}
}
