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

package convert

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/tarbatch/internal/recordstore"
)

// ContainerName returns the file name of the index-th container.
func ContainerName(base string, index int) string {
	return fmt.Sprintf("%s_%d%s", base, index, recordstore.ContainerExt)
}

// Rotator writes records into a series of containers of at most batchSize
// records each. A new container is opened exactly when the number of records
// written so far is a multiple of batchSize, and only one container is open
// at a time.
type Rotator struct {
	store     recordstore.Store
	dir       string
	base      string
	batchSize int
	revert    bool
	mapping   *MappingTable

	current    recordstore.Container
	processed  int
	containers []string
}

// NewRotator returns a Rotator writing into dir. The mapping table is
// optional; when set, one line is appended per record written. The Rotator
// takes ownership of the mapping table and closes it in Close.
func NewRotator(store recordstore.Store, dir string, cfg Config, mapping *MappingTable) *Rotator {
	return &Rotator{
		store:     store,
		dir:       dir,
		base:      cfg.FilenameBase,
		batchSize: cfg.BatchSize,
		revert:    cfg.Revert,
		mapping:   mapping,
	}
}

// Add copies rec into the current container, rotating first when the batch
// boundary is reached. source is the name written to the mapping table.
func (r *Rotator) Add(ctx context.Context, rec *recordstore.Record, source string) error {
	if r.processed%r.batchSize == 0 {
		if err := r.rotate(ctx); err != nil {
			return err
		}
	}
	if err := recordstore.CopyRecord(r.current, rec, r.revert); err != nil {
		return err
	}
	if r.mapping != nil {
		if err := r.mapping.Append(ctx, source, filepath.Base(r.current.Path())); err != nil {
			return err
		}
	}
	r.processed++
	recordConverted(ctx)
	return nil
}

func (r *Rotator) rotate(ctx context.Context) error {
	if r.current != nil {
		if err := r.current.Close(); err != nil {
			return fmt.Errorf("close container %s: %w", r.current.Path(), err)
		}
		r.current = nil
	}
	path := filepath.Join(r.dir, ContainerName(r.base, r.processed/r.batchSize))
	c, err := r.store.CreateContainer(path)
	if err != nil {
		return err
	}
	r.current = c
	r.containers = append(r.containers, path)
	recordContainerOpened(ctx)
	return nil
}

// Processed returns how many records have been written.
func (r *Rotator) Processed() int {
	return r.processed
}

// Containers returns the paths of every container opened so far.
func (r *Rotator) Containers() []string {
	return append([]string(nil), r.containers...)
}

// Close closes the open container and the mapping table.
func (r *Rotator) Close() error {
	var result *multierror.Error
	if r.current != nil {
		if err := r.current.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close container %s: %w", r.current.Path(), err))
		}
		r.current = nil
	}
	if r.mapping != nil {
		if err := r.mapping.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
