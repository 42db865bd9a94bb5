// Package instance stores workflow instance records and their key
// associations; a Store serves as the host durability and key association
// hooks.
package instance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viant/actflow/host"
	"github.com/viant/actflow/runtime/async"
	"github.com/viant/actflow/runtime/persistence"
	"github.com/viant/actflow/runtime/timer"
	"github.com/viant/actflow/service/dao"
	"github.com/viant/actflow/service/dao/bolt"
	"github.com/viant/actflow/service/dao/criteria"
	"github.com/viant/actflow/service/dao/fs"
	"github.com/viant/actflow/service/dao/memory"
	"github.com/viant/afs"
	"go.etcd.io/bbolt"
	"go.uber.org/multierr"
)

// ErrKeyConflict is returned when a key is already associated with another instance.
var ErrKeyConflict = fmt.Errorf("%w: key is associated with another instance", dao.ErrConflict)

// Association maps an external key to an instance.
type Association struct {
	Key        string `json:"key"`
	InstanceID string `json:"instanceId"`
}

// Store persists instance records.
type Store struct {
	records dao.Service[string, host.Record]
	keys    dao.Service[string, Association]
}

// New creates a store over the supplied DAOs.
func New(records dao.Service[string, host.Record], keys dao.Service[string, Association]) *Store {
	return &Store{records: records, keys: keys}
}

func recordKey(record *host.Record) string { return record.InstanceID }

func associationKey(association *Association) string { return association.Key }

// NewMemory creates an in-memory store.
func NewMemory() *Store {
	return New(memory.New[string, host.Record](recordKey, criteria.Match), memory.New[string, Association](associationKey, nil))
}

// NewFS creates a store under baseURL with instances and keys sub locations.
func NewFS(ctx context.Context, fsService afs.Service, baseURL string) (*Store, error) {
	records, err := fs.New[host.Record](ctx, fsService, baseURL+"/instances", recordKey, criteria.Match)
	if err != nil {
		return nil, err
	}
	keys, err := fs.New[Association](ctx, fsService, baseURL+"/keys", associationKey, nil)
	if err != nil {
		return nil, err
	}
	return New(records, keys), nil
}

// NewBolt creates a store using the instances and keys buckets of db.
func NewBolt(db *bbolt.DB) (*Store, error) {
	records, err := bolt.New[host.Record](db, "instances", recordKey, criteria.Match)
	if err != nil {
		return nil, err
	}
	keys, err := bolt.New[Association](db, "keys", associationKey, nil)
	if err != nil {
		return nil, err
	}
	return New(records, keys), nil
}

// Persist saves record; the returned future is already completed.
func (s *Store) Persist(ctx context.Context, record *host.Record) *async.Future[struct{}] {
	return async.Completed(struct{}{}, s.records.Save(ctx, record))
}

// AssociateKeys maps keys to instanceID.
func (s *Store) AssociateKeys(ctx context.Context, instanceID string, keys []string) error {
	for _, key := range keys {
		existing, err := s.keys.Load(ctx, key)
		switch {
		case err == nil && existing.InstanceID != instanceID:
			return fmt.Errorf("%w: %v -> %v", ErrKeyConflict, key, existing.InstanceID)
		case err == nil:
			continue
		case !errors.Is(err, dao.ErrNotFound):
			return err
		}
		if err = s.keys.Save(ctx, &Association{Key: key, InstanceID: instanceID}); err != nil {
			return err
		}
	}
	return nil
}

// DisassociateKeys removes the keys owned by instanceID.
func (s *Store) DisassociateKeys(ctx context.Context, instanceID string, keys []string) (err error) {
	for _, key := range keys {
		existing, loadErr := s.keys.Load(ctx, key)
		if loadErr != nil {
			if !errors.Is(loadErr, dao.ErrNotFound) {
				err = multierr.Append(err, loadErr)
			}
			continue
		}
		if existing.InstanceID == instanceID {
			err = multierr.Append(err, s.keys.Delete(ctx, key))
		}
	}
	return err
}

// Lookup returns the instance associated with key.
func (s *Store) Lookup(ctx context.Context, key string) (string, error) {
	association, err := s.keys.Load(ctx, key)
	if err != nil {
		return "", err
	}
	return association.InstanceID, nil
}

// Load returns the record of instanceID.
func (s *Store) Load(ctx context.Context, instanceID string) (*host.Record, error) {
	return s.records.Load(ctx, instanceID)
}

// List returns records matching criteria parameters.
func (s *Store) List(ctx context.Context, parameters ...*dao.Parameter) ([]*host.Record, error) {
	return s.records.List(ctx, parameters...)
}

// Delete removes the record and its key associations.
func (s *Store) Delete(ctx context.Context, instanceID string) error {
	record, err := s.records.Load(ctx, instanceID)
	if err != nil {
		return err
	}
	return multierr.Append(s.DisassociateKeys(ctx, instanceID, record.Keys), s.records.Delete(ctx, instanceID))
}

// ListDue returns idle records whose earliest timer is due at now.
func (s *Store) ListDue(ctx context.Context, now time.Time) ([]*host.Record, error) {
	records, err := s.records.List(ctx, dao.NewParameter(criteria.State, host.Idle.String()))
	if err != nil {
		return nil, err
	}
	var ret []*host.Record
	for _, record := range records {
		if wake, ok := NextWake(record); ok && !wake.After(now) {
			ret = append(ret, record)
		}
	}
	return ret, nil
}

// NextWake returns the earliest timer due time published in record.
func NextWake(record *host.Record) (time.Time, bool) {
	if record == nil || record.Values == nil {
		return time.Time{}, false
	}
	raw, ok := record.Values.WriteOnly[timer.NextExpirationName.String()]
	if !ok {
		return time.Time{}, false
	}
	var ret time.Time
	if err := persistence.Decode(raw, &ret); err != nil {
		return time.Time{}, false
	}
	return ret, true
}

var (
	_ host.Durability     = (*Store)(nil)
	_ host.KeyAssociation = (*Store)(nil)
)
