package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"script-studio/internal/api"
	"script-studio/internal/model"
	"script-studio/internal/stream"
)

// MockActionService is a mock type for the api.ActionService type
type MockActionService struct {
	mock.Mock
}

// Perform provides a mock function with given fields: ctx, req
func (_m *MockActionService) Perform(ctx context.Context, req model.ActionRequest) (model.ActionResult, error) {
	ret := _m.Called(ctx, req)

	var r0 model.ActionResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(model.ActionResult)
	}
	return r0, ret.Error(1)
}

// Stream provides a mock function with given fields: ctx, req
func (_m *MockActionService) Stream(ctx context.Context, req model.ActionRequest) (*stream.Stream, error) {
	ret := _m.Called(ctx, req)

	var r0 *stream.Stream
	if rf, ok := ret.Get(0).(func(context.Context, model.ActionRequest) *stream.Stream); ok {
		r0 = rf(ctx, req)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*stream.Stream)
	}
	return r0, ret.Error(1)
}

// ParseStoryboard provides a mock function with given fields: result, next
func (_m *MockActionService) ParseStoryboard(result model.ActionResult, next int) []model.StoryboardEntry {
	ret := _m.Called(result, next)

	var r0 []model.StoryboardEntry
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.StoryboardEntry)
	}
	return r0
}

// NewMockActionService creates a new instance of MockActionService.
func NewMockActionService(t interface {
	mock.TestingT
	Helper()
}) *MockActionService {
	m := &MockActionService{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ api.ActionService = (*MockActionService)(nil)

// MockModelLister is a mock type for the api.ModelLister type
type MockModelLister struct {
	mock.Mock
}

// ListModels provides a mock function with given fields: ctx, relay
func (_m *MockModelLister) ListModels(ctx context.Context, relay model.RelaySnapshot) ([]string, error) {
	ret := _m.Called(ctx, relay)

	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}
	return r0, ret.Error(1)
}

// Refresh provides a mock function with given fields: ctx, relay
func (_m *MockModelLister) Refresh(ctx context.Context, relay model.RelaySnapshot) ([]string, error) {
	ret := _m.Called(ctx, relay)

	var r0 []string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}
	return r0, ret.Error(1)
}

// NewMockModelLister creates a new instance of MockModelLister.
func NewMockModelLister(t interface {
	mock.TestingT
	Helper()
}) *MockModelLister {
	m := &MockModelLister{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ api.ModelLister = (*MockModelLister)(nil)
