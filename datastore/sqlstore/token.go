/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package sqlstore

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/suparena/docstore/errors"
)

const tokenSep = "\x00"

func encodeToken(pk, id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(pk + tokenSep + id))
}

func decodeToken(token string) (pk, id string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", errors.NewValidationError("continuation_token", err.Error())
	}
	pk, id, ok := strings.Cut(string(raw), tokenSep)
	if !ok {
		return "", "", errors.NewValidationError("continuation_token", fmt.Sprintf("malformed token %q", token))
	}
	return pk, id, nil
}
