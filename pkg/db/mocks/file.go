package mocks

import (
	"context"
	"errors"

	kdb "github.com/fieldline/imagingdb/pkg/db"
	"github.com/fieldline/imagingdb/pkg/domain"
)

type FileInterface struct {
	Impl struct {
		RegisterIfAbsent func(context.Context, string) error
	}
	Calls struct {
		RegisterIfAbsent CallLog[struct{ RelPath string }]
	}
}

func NewFileInterface() *FileInterface {
	return &FileInterface{}
}

var _ kdb.FileInterface = &FileInterface{}

func (m *FileInterface) RegisterIfAbsent(ctx context.Context, relPath string) error {
	m.Calls.RegisterIfAbsent = append(m.Calls.RegisterIfAbsent, struct{ RelPath string }{RelPath: relPath})
	if m.Impl.RegisterIfAbsent != nil {
		return m.Impl.RegisterIfAbsent(ctx, relPath)
	}
	panic(errors.New("it should not be called"))
}

type ScanInterface struct {
	Impl struct {
		NewScan     func(context.Context, string) error
		SetScanInfo func(context.Context, domain.ScanInfo, []domain.Field) error
	}
	Calls struct {
		NewScan     CallLog[struct{ ScanID string }]
		SetScanInfo CallLog[struct {
			Info   domain.ScanInfo
			Fields []domain.Field
		}]
	}
}

func NewScanInterface() *ScanInterface {
	return &ScanInterface{}
}

var _ kdb.ScanInterface = &ScanInterface{}

func (m *ScanInterface) NewScan(ctx context.Context, scanID string) error {
	m.Calls.NewScan = append(m.Calls.NewScan, struct{ ScanID string }{ScanID: scanID})
	if m.Impl.NewScan != nil {
		return m.Impl.NewScan(ctx, scanID)
	}
	panic(errors.New("it should not be called"))
}

func (m *ScanInterface) SetScanInfo(ctx context.Context, info domain.ScanInfo, fields []domain.Field) error {
	m.Calls.SetScanInfo = append(m.Calls.SetScanInfo, struct {
		Info   domain.ScanInfo
		Fields []domain.Field
	}{Info: info, Fields: fields})
	if m.Impl.SetScanInfo != nil {
		return m.Impl.SetScanInfo(ctx, info, fields)
	}
	panic(errors.New("it should not be called"))
}
