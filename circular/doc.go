// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package circular provides coordinate arithmetic for circular contigs whose
// sequence has been extended with a copy of its own start.  A read that
// crosses the origin of a circular contig aligns to the padded tail; folding
// maps such padded positions back onto the original 1..length coordinates.
package circular
