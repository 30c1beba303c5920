/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package processor

import "errors"

var (
	// ErrCreatorRequired is returned when NewBulkImporter gets a nil creator.
	ErrCreatorRequired = errors.New("creator is required")
)
