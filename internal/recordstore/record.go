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

package recordstore

import (
	"fmt"
	"maps"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/fxamacker/cbor/v2"
)

const (
	// RecordExt is the file extension of single-record files.
	RecordExt = ".srec"
	// ContainerExt is the file extension of multi-record containers.
	ContainerExt = ".mrec"

	// ReadPrefix prefixes a read id to form the record's name inside a container.
	ReadPrefix = "read_"
)

// rawGroups are the groups a reverted record keeps. Everything else
// (basecalls, segmentation and other analyses) is derived content.
var rawGroups = mapset.NewSet("Raw", "channel_id", "context_tags", "tracking_id")

// RawGroups returns the names of the groups kept when a record is reverted.
func RawGroups() []string {
	names := rawGroups.ToSlice()
	slices.Sort(names)
	return names
}

// Record is one read: its id plus named groups of raw CBOR.
type Record struct {
	ReadID string                     `cbor:"1,keyasint"`
	Groups map[string]cbor.RawMessage `cbor:"2,keyasint"`
}

// Name is the record's name inside a container.
func (r *Record) Name() string {
	return ReadPrefix + r.ReadID
}

// GroupNames returns the record's group names in sorted order.
func (r *Record) GroupNames() []string {
	return slices.Sorted(maps.Keys(r.Groups))
}

// HasGroup reports whether the record carries the named group.
func (r *Record) HasGroup(name string) bool {
	_, ok := r.Groups[name]
	return ok
}

// Group decodes the named group into v.
func (r *Record) Group(name string, v any) error {
	raw, ok := r.Groups[name]
	if !ok {
		return fmt.Errorf("record %s has no group %q", r.ReadID, name)
	}
	if err := defaultCodec.unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode group %q of record %s: %w", name, r.ReadID, err)
	}
	return nil
}

// SetGroup encodes v and stores it under name, replacing any existing group.
func (r *Record) SetGroup(name string, v any) error {
	b, err := defaultCodec.marshal(v)
	if err != nil {
		return fmt.Errorf("encode group %q: %w", name, err)
	}
	if r.Groups == nil {
		r.Groups = make(map[string]cbor.RawMessage)
	}
	r.Groups[name] = b
	return nil
}

// Reverted returns a copy of the record holding only the raw groups.
// Groups the record lacks are simply absent from the copy.
func (r *Record) Reverted() *Record {
	out := &Record{
		ReadID: r.ReadID,
		Groups: make(map[string]cbor.RawMessage, rawGroups.Cardinality()),
	}
	for name, raw := range r.Groups {
		if rawGroups.Contains(name) {
			out.Groups[name] = raw
		}
	}
	return out
}

func (r *Record) validate() error {
	if r.ReadID == "" {
		return fmt.Errorf("missing read id")
	}
	for name, raw := range r.Groups {
		if name == "" {
			return fmt.Errorf("empty group name")
		}
		if len(raw) == 0 {
			return fmt.Errorf("group %q is empty", name)
		}
	}
	return nil
}
