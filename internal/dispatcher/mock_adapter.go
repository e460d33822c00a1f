package dispatcher

import (
	"context"
	reflect "reflect"

	"github.com/LeeXN/finance-gateway/internal/breaker"
	"github.com/LeeXN/finance-gateway/internal/keypool"
	"github.com/LeeXN/finance-gateway/internal/model"
	"github.com/LeeXN/finance-gateway/internal/provider"

	gomock "go.uber.org/mock/gomock"
)

// MockAdapter is a hand-written mock of provider.Adapter, in the shape
// mockgen would produce for //go:generate mockgen -destination=mock_adapter.go
// -package=dispatcher github.com/LeeXN/finance-gateway/internal/provider Adapter.
// Written directly since only a handful of methods are exercised by
// Dispatcher tests.
type MockAdapter struct {
	ctrl     *gomock.Controller
	recorder *MockAdapterMockRecorder
}

// MockAdapterMockRecorder is the EXPECT() surface for MockAdapter.
type MockAdapterMockRecorder struct {
	mock *MockAdapter
}

// NewMockAdapter returns a new mock controlled by ctrl.
func NewMockAdapter(ctrl *gomock.Controller) *MockAdapter {
	m := &MockAdapter{ctrl: ctrl}
	m.recorder = &MockAdapterMockRecorder{m}
	return m
}

// EXPECT returns the recorder used to set call expectations.
func (m *MockAdapter) EXPECT() *MockAdapterMockRecorder {
	return m.recorder
}

func (m *MockAdapter) Tag() model.Provider {
	ret := m.ctrl.Call(m, "Tag")
	return ret[0].(model.Provider)
}

func (mr *MockAdapterMockRecorder) Tag() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Tag", reflect.TypeOf((*MockAdapter)(nil).Tag))
}

func (m *MockAdapter) Supports(tool model.Tool) bool {
	ret := m.ctrl.Call(m, "Supports", tool)
	return ret[0].(bool)
}

func (mr *MockAdapterMockRecorder) Supports(tool any) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Supports", reflect.TypeOf((*MockAdapter)(nil).Supports), tool)
}

func (m *MockAdapter) Covers(market model.Market) bool {
	ret := m.ctrl.Call(m, "Covers", market)
	return ret[0].(bool)
}

func (mr *MockAdapterMockRecorder) Covers(market any) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Covers", reflect.TypeOf((*MockAdapter)(nil).Covers), market)
}

func (m *MockAdapter) Keys() *keypool.Pool {
	ret := m.ctrl.Call(m, "Keys")
	return ret[0].(*keypool.Pool)
}

func (mr *MockAdapterMockRecorder) Keys() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Keys", reflect.TypeOf((*MockAdapter)(nil).Keys))
}

func (m *MockAdapter) Breaker() *breaker.Breaker {
	ret := m.ctrl.Call(m, "Breaker")
	return ret[0].(*breaker.Breaker)
}

func (mr *MockAdapterMockRecorder) Breaker() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Breaker", reflect.TypeOf((*MockAdapter)(nil).Breaker))
}

func (m *MockAdapter) IsAvailable() bool {
	ret := m.ctrl.Call(m, "IsAvailable")
	return ret[0].(bool)
}

func (mr *MockAdapterMockRecorder) IsAvailable() *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsAvailable", reflect.TypeOf((*MockAdapter)(nil).IsAvailable))
}

func (m *MockAdapter) Handle(ctx context.Context, tool model.Tool, credential string, args provider.Args) (any, error) {
	ret := m.ctrl.Call(m, "Handle", ctx, tool, credential, args)
	var err error
	if ret[1] != nil {
		err = ret[1].(error)
	}
	return ret[0], err
}

func (mr *MockAdapterMockRecorder) Handle(ctx, tool, credential, args any) *gomock.Call {
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Handle", reflect.TypeOf((*MockAdapter)(nil).Handle), ctx, tool, credential, args)
}
