// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package telescope

import "errors"

// ErrAlreadySlewing is returned when a slew is commanded while one is
// already in progress.
var ErrAlreadySlewing = errors.New("telescope: already slewing")
