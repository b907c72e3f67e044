package mocks

import (
	"context"
	"errors"

	kdb "github.com/fieldline/imagingdb/pkg/db"
	"github.com/fieldline/imagingdb/pkg/domain"
	"github.com/fieldline/imagingdb/pkg/domain/catalog"
)

type StoreInterface struct {
	Impl struct {
		Exists       func(context.Context, catalog.EntityType, catalog.Key) (bool, error)
		KeysPresent  func(context.Context, catalog.EntityType, catalog.KeySchema) ([]catalog.Key, error)
		InsertAtomic func(context.Context, *domain.WriteSet) error
		FetchOne     func(context.Context, catalog.EntityType, catalog.Key) (domain.Record, error)
	}
	Calls struct {
		Exists CallLog[struct {
			Type catalog.EntityType
			Key  catalog.Key
		}]
		KeysPresent CallLog[struct {
			Type catalog.EntityType
			Onto catalog.KeySchema
		}]
		InsertAtomic CallLog[struct{ WriteSet *domain.WriteSet }]
		FetchOne     CallLog[struct {
			Type catalog.EntityType
			Key  catalog.Key
		}]
	}
}

func NewStoreInterface() *StoreInterface {
	return &StoreInterface{}
}

var _ kdb.StoreInterface = &StoreInterface{}

func (m *StoreInterface) Exists(ctx context.Context, t catalog.EntityType, key catalog.Key) (bool, error) {
	m.Calls.Exists = append(m.Calls.Exists, struct {
		Type catalog.EntityType
		Key  catalog.Key
	}{Type: t, Key: key})
	if m.Impl.Exists != nil {
		return m.Impl.Exists(ctx, t, key)
	}
	panic(errors.New("it should not be called"))
}

func (m *StoreInterface) KeysPresent(ctx context.Context, t catalog.EntityType, onto catalog.KeySchema) ([]catalog.Key, error) {
	m.Calls.KeysPresent = append(m.Calls.KeysPresent, struct {
		Type catalog.EntityType
		Onto catalog.KeySchema
	}{Type: t, Onto: onto})
	if m.Impl.KeysPresent != nil {
		return m.Impl.KeysPresent(ctx, t, onto)
	}
	panic(errors.New("it should not be called"))
}

func (m *StoreInterface) InsertAtomic(ctx context.Context, ws *domain.WriteSet) error {
	m.Calls.InsertAtomic = append(m.Calls.InsertAtomic, struct{ WriteSet *domain.WriteSet }{WriteSet: ws})
	if m.Impl.InsertAtomic != nil {
		return m.Impl.InsertAtomic(ctx, ws)
	}
	panic(errors.New("it should not be called"))
}

func (m *StoreInterface) FetchOne(ctx context.Context, t catalog.EntityType, key catalog.Key) (domain.Record, error) {
	m.Calls.FetchOne = append(m.Calls.FetchOne, struct {
		Type catalog.EntityType
		Key  catalog.Key
	}{Type: t, Key: key})
	if m.Impl.FetchOne != nil {
		return m.Impl.FetchOne(ctx, t, key)
	}
	panic(errors.New("it should not be called"))
}
