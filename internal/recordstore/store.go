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

// Container is an output container open for writing.
type Container interface {
	Append(rec *Record) error
	Path() string
	Count() int
	Close() error
}

// RecordIterator walks the records of a container. Next returns io.EOF at
// the end.
type RecordIterator interface {
	Next() (*Record, error)
	Close() error
}

// Store is the record store boundary the converters are written against.
type Store interface {
	// OpenRecord reads a single-record file. Invalid files yield *ParseError.
	OpenRecord(path string) (*Record, error)
	// CreateContainer creates a new, empty container at path.
	CreateContainer(path string) (Container, error)
	// OpenContainer opens an existing container for reading.
	OpenContainer(path string) (RecordIterator, error)
}

// FileStore is the Store backed by the on-disk formats of this package.
type FileStore struct{}

var _ Store = FileStore{}

func (FileStore) OpenRecord(path string) (*Record, error) {
	return OpenRecord(path)
}

func (FileStore) CreateContainer(path string) (Container, error) {
	w, err := CreateContainer(path)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (FileStore) OpenContainer(path string) (RecordIterator, error) {
	r, err := OpenContainer(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}
