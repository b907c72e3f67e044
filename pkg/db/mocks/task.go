package mocks

import (
	"context"
	"errors"

	kdb "github.com/fieldline/imagingdb/pkg/db"
	"github.com/fieldline/imagingdb/pkg/domain"
)

type TaskInterface struct {
	Impl struct {
		NewParamSet func(context.Context, domain.ProcessingParamSet) error
		NewTask     func(context.Context, string, domain.Method, int) (domain.TaskKey, error)
		MethodOf    func(context.Context, domain.TaskKey) (domain.Method, error)
		DeleteTask  func(context.Context, domain.TaskKey) error
	}
	Calls struct {
		NewParamSet CallLog[struct{ ParamSet domain.ProcessingParamSet }]
		NewTask     CallLog[struct {
			ScanID      string
			Method      domain.Method
			ParamsetIdx int
		}]
		MethodOf   CallLog[struct{ Key domain.TaskKey }]
		DeleteTask CallLog[struct{ Key domain.TaskKey }]
	}
}

func NewTaskInterface() *TaskInterface {
	return &TaskInterface{}
}

var _ kdb.TaskInterface = &TaskInterface{}

func (m *TaskInterface) NewParamSet(ctx context.Context, paramset domain.ProcessingParamSet) error {
	m.Calls.NewParamSet = append(m.Calls.NewParamSet, struct{ ParamSet domain.ProcessingParamSet }{ParamSet: paramset})
	if m.Impl.NewParamSet != nil {
		return m.Impl.NewParamSet(ctx, paramset)
	}
	panic(errors.New("it should not be called"))
}

func (m *TaskInterface) NewTask(ctx context.Context, scanID string, method domain.Method, paramsetIdx int) (domain.TaskKey, error) {
	m.Calls.NewTask = append(m.Calls.NewTask, struct {
		ScanID      string
		Method      domain.Method
		ParamsetIdx int
	}{ScanID: scanID, Method: method, ParamsetIdx: paramsetIdx})
	if m.Impl.NewTask != nil {
		return m.Impl.NewTask(ctx, scanID, method, paramsetIdx)
	}
	panic(errors.New("it should not be called"))
}

func (m *TaskInterface) MethodOf(ctx context.Context, key domain.TaskKey) (domain.Method, error) {
	m.Calls.MethodOf = append(m.Calls.MethodOf, struct{ Key domain.TaskKey }{Key: key})
	if m.Impl.MethodOf != nil {
		return m.Impl.MethodOf(ctx, key)
	}
	panic(errors.New("it should not be called"))
}

func (m *TaskInterface) DeleteTask(ctx context.Context, key domain.TaskKey) error {
	m.Calls.DeleteTask = append(m.Calls.DeleteTask, struct{ Key domain.TaskKey }{Key: key})
	if m.Impl.DeleteTask != nil {
		return m.Impl.DeleteTask(ctx, key)
	}
	panic(errors.New("it should not be called"))
}
