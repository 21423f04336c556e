/*
Copyright © 2022 the ModVege authors.
This file is part of ModVege.

ModVege is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ModVege is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ModVege.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package hash computes stable fingerprints of simulation inputs and
// outputs, used as checkpoint keys and to compare runs.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"io"

	"github.com/davecgh/go-spew/spew"
)

// Hash returns a hex fingerprint of object. Values that gob cannot encode
// are fingerprinted from their spew dump instead.
func Hash(object interface{}) string {
	h := fnv.New128a()
	if err := gob.NewEncoder(h).Encode(object); err != nil {
		h.Reset()
		dump(h, object)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Dump returns a fingerprint of object computed from its printed form
// alone. Unlike Hash it does not depend on gob's encoding of
// interface values, so it is stable for values that hold interfaces.
func Dump(object interface{}) string {
	h := fnv.New128a()
	dump(h, object)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func dump(w io.Writer, object interface{}) {
	printer := spew.ConfigState{
		Indent:                  " ",
		SortKeys:                true,
		DisableMethods:          true,
		SpewKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}
	printer.Fprintf(w, "%#v", object)
}
