package lstore

import (
	"github.com/ValentinKolb/kvmig/lib/db"
	"github.com/ValentinKolb/kvmig/lib/store"
	"sync/atomic"
)

type storeImpl struct {
	db    db.KVDB
	index atomic.Uint64
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// This works by using the maple engine from the db package directly.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db:    factory(),
		index: atomic.Uint64{},
	}
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// unsupported returns an error if the db does not support the feature
func (s *storeImpl) unsupported(feature db.Feature) error {
	if s.db.SupportsFeature(feature) {
		return nil
	}
	return store.NewError(store.RetCUnsupportedOperation, feature.String()+" operation is not supported")
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	if err := s.unsupported(db.FeatureSet); err != nil {
		return err
	}
	s.db.Set(key, value, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) SetIfUnset(key string, value []byte) error {
	if err := s.unsupported(db.FeatureSetIfUnset); err != nil {
		return err
	}
	s.db.SetIfUnset(key, value, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) Delete(key string) error {
	if err := s.unsupported(db.FeatureDelete); err != nil {
		return err
	}
	s.db.Delete(key, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if err := s.unsupported(db.FeatureGet); err != nil {
		return nil, false, err
	}
	val, ok, err := s.db.Get(key)
	return val, ok, store.FromDBError(err)
}

func (s *storeImpl) Has(key string) (bool, error) {
	if err := s.unsupported(db.FeatureHas); err != nil {
		return false, err
	}
	return s.db.Has(key), nil
}

func (s *storeImpl) HGet(key, field string) ([]byte, bool, error) {
	if err := s.unsupported(db.FeatureHash); err != nil {
		return nil, false, err
	}
	val, ok, err := s.db.HGet(key, field)
	return val, ok, store.FromDBError(err)
}

func (s *storeImpl) HSetIfUnset(key, field string, value []byte) error {
	if err := s.unsupported(db.FeatureHash); err != nil {
		return err
	}
	_, err := s.db.HSetIfUnset(key, field, value, s.incAndGetIndex())
	return store.FromDBError(err)
}

func (s *storeImpl) HDelete(key, field string) error {
	if err := s.unsupported(db.FeatureHash); err != nil {
		return err
	}
	_, err := s.db.HDelete(key, field, s.incAndGetIndex())
	return store.FromDBError(err)
}

func (s *storeImpl) RenameIfUnset(key, newKey string) error {
	if err := s.unsupported(db.FeatureRename); err != nil {
		return err
	}
	s.db.RenameIfUnset(key, newKey, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) Keys(pattern string) ([]string, error) {
	if err := s.unsupported(db.FeatureKeys); err != nil {
		return nil, err
	}
	return s.db.Keys(pattern), nil
}

func (s *storeImpl) Exec(cmds []db.Command) ([]db.Result, error) {
	if err := s.unsupported(db.FeatureApply); err != nil {
		return nil, err
	}
	for _, cmd := range cmds {
		feature, err := cmd.Type.ToDBFeature()
		if err != nil {
			return nil, store.NewError(store.RetCInvalidOperation, err.Error())
		}
		if err := s.unsupported(feature); err != nil {
			return nil, err
		}
	}
	results, err := s.db.Apply(cmds, s.incAndGetIndex())
	if err != nil {
		return nil, store.FromDBError(err)
	}
	return results, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}
