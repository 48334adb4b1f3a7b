// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package recordstore reads single-record files and writes multi-record
// containers.
//
// Both file kinds start with a 4 byte magic and a version byte followed by
// CBOR data items. A single-record file holds exactly one record. A container
// holds a CBOR sequence of records appended one after another, so a container
// can be written in a single forward pass and read back the same way.
//
// Record groups are carried as raw CBOR and never re-encoded while copying,
// which keeps a non-reverted copy byte-identical to its source.
package recordstore

import (
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// codec holds the CBOR modes shared by every reader and writer.
type codec struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

var defaultCodec = mustNewCodec()

func mustNewCodec() *codec {
	c, err := newCodec()
	if err != nil {
		panic(err)
	}
	return c
}

func newCodec() (*codec, error) {
	// Core deterministic encoding sorts map keys, so the same record always
	// produces the same bytes.
	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	decMode, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,        // Reject records with duplicate group names
		IntDec:            cbor.IntDecConvertSigned,         // Decode all integers as int64
		DefaultMapType:    reflect.TypeOf(map[string]any{}), // Decode maps as map[string]any
		UTF8:              cbor.UTF8DecodeInvalid,           // Tolerate odd bytes in free-text tags
		MaxArrayElements:  math.MaxInt32,                    // Raw signals are long
		MaxMapPairs:       math.MaxInt32,                    // Tag groups can be wide
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,   // Unknown record fields are a parse error
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR decoder: %w", err)
	}

	return &codec{
		encMode: encMode,
		decMode: decMode,
	}, nil
}

func (c *codec) newEncoder(w io.Writer) *cbor.Encoder {
	return c.encMode.NewEncoder(w)
}

func (c *codec) newDecoder(r io.Reader) *cbor.Decoder {
	return c.decMode.NewDecoder(r)
}

// marshal encodes v using the deterministic encoding.
func (c *codec) marshal(v any) ([]byte, error) {
	return c.encMode.Marshal(v)
}

// unmarshalFirst decodes the first CBOR data item and returns what follows it.
func (c *codec) unmarshalFirst(data []byte, v any) ([]byte, error) {
	return c.decMode.UnmarshalFirst(data, v)
}

func (c *codec) unmarshal(data []byte, v any) error {
	return c.decMode.Unmarshal(data, v)
}
