package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"script-studio/internal/action"
	"script-studio/internal/model"
	"script-studio/internal/provider"
)

// MockTextProvider is a mock type for the provider.TextProvider type
type MockTextProvider struct {
	mock.Mock
}

// Submit provides a mock function with given fields: ctx, job
func (_m *MockTextProvider) Submit(ctx context.Context, job model.JobRequest) (model.JobResult, error) {
	ret := _m.Called(ctx, job)

	var r0 model.JobResult
	if rf, ok := ret.Get(0).(func(context.Context, model.JobRequest) model.JobResult); ok {
		r0 = rf(ctx, job)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(model.JobResult)
	}
	return r0, ret.Error(1)
}

// SubmitStream provides a mock function with given fields: ctx, job, onDelta
func (_m *MockTextProvider) SubmitStream(ctx context.Context, job model.JobRequest, onDelta func(string) error) (model.JobResult, error) {
	ret := _m.Called(ctx, job, onDelta)

	var r0 model.JobResult
	if rf, ok := ret.Get(0).(func(context.Context, model.JobRequest, func(string) error) model.JobResult); ok {
		r0 = rf(ctx, job, onDelta)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(model.JobResult)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, model.JobRequest, func(string) error) error); ok {
		r1 = rf(ctx, job, onDelta)
	} else {
		r1 = ret.Error(1)
	}
	return r0, r1
}

// NewMockTextProvider creates a new instance of MockTextProvider.
func NewMockTextProvider(t interface {
	mock.TestingT
	Helper()
}) *MockTextProvider {
	m := &MockTextProvider{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ provider.TextProvider = (*MockTextProvider)(nil)

// MockImageProvider is a mock type for the provider.ImageProvider type
type MockImageProvider struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, job
func (_m *MockImageProvider) Generate(ctx context.Context, job model.JobRequest) (model.JobResult, error) {
	ret := _m.Called(ctx, job)

	var r0 model.JobResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(model.JobResult)
	}
	return r0, ret.Error(1)
}

// NewMockImageProvider creates a new instance of MockImageProvider.
func NewMockImageProvider(t interface {
	mock.TestingT
	Helper()
}) *MockImageProvider {
	m := &MockImageProvider{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ provider.ImageProvider = (*MockImageProvider)(nil)

// MockProviderFactory is a mock type for the action.ProviderFactory type
type MockProviderFactory struct {
	mock.Mock
}

// Text provides a mock function with given fields: ctx, res, officialKey
func (_m *MockProviderFactory) Text(ctx context.Context, res model.RouteResolution, officialKey string) (provider.TextProvider, error) {
	ret := _m.Called(ctx, res, officialKey)

	var r0 provider.TextProvider
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(provider.TextProvider)
	}
	return r0, ret.Error(1)
}

// Image provides a mock function with given fields: ctx, res, officialKey
func (_m *MockProviderFactory) Image(ctx context.Context, res model.RouteResolution, officialKey string) (provider.ImageProvider, error) {
	ret := _m.Called(ctx, res, officialKey)

	var r0 provider.ImageProvider
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(provider.ImageProvider)
	}
	return r0, ret.Error(1)
}

// NewMockProviderFactory creates a new instance of MockProviderFactory.
func NewMockProviderFactory(t interface {
	mock.TestingT
	Helper()
}) *MockProviderFactory {
	m := &MockProviderFactory{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ action.ProviderFactory = (*MockProviderFactory)(nil)
