// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package filterseq

import "errors"

// ErrCancelled is returned by Run when Cancel was called before the
// sequence finished.
var ErrCancelled = errors.New("filterseq: cancelled")
