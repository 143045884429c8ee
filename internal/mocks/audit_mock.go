package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"script-studio/internal/audit"
	"script-studio/internal/model"
)

// MockAuditStore is a mock type for the audit.Store type
type MockAuditStore struct {
	mock.Mock
}

// Record provides a mock function with given fields: ctx, entry
func (_m *MockAuditStore) Record(ctx context.Context, entry model.AuditLogEntry) error {
	ret := _m.Called(ctx, entry)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, model.AuditLogEntry) error); ok {
		r0 = rf(ctx, entry)
	} else {
		r0 = ret.Error(0)
	}
	return r0
}

// FetchRecent provides a mock function with given fields: ctx, limit
func (_m *MockAuditStore) FetchRecent(ctx context.Context, limit int) ([]model.AuditLogEntry, error) {
	ret := _m.Called(ctx, limit)

	var r0 []model.AuditLogEntry
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.AuditLogEntry)
	}
	return r0, ret.Error(1)
}

// LoadAll provides a mock function with given fields: ctx
func (_m *MockAuditStore) LoadAll(ctx context.Context) ([]model.AuditLogEntry, error) {
	ret := _m.Called(ctx)

	var r0 []model.AuditLogEntry
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.AuditLogEntry)
	}
	return r0, ret.Error(1)
}

// ClearAll provides a mock function with given fields: ctx
func (_m *MockAuditStore) ClearAll(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}

// NewMockAuditStore creates a new instance of MockAuditStore. It also registers a testing interface on the mock.
func NewMockAuditStore(t interface {
	mock.TestingT
	Helper()
}) *MockAuditStore {
	m := &MockAuditStore{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ audit.Store = (*MockAuditStore)(nil)

// MockAuditPublisher is a mock type for the audit.Publisher type
type MockAuditPublisher struct {
	mock.Mock
}

// Publish provides a mock function with given fields: ctx, entry
func (_m *MockAuditPublisher) Publish(ctx context.Context, entry model.AuditLogEntry) error {
	ret := _m.Called(ctx, entry)
	return ret.Error(0)
}

// NewMockAuditPublisher creates a new instance of MockAuditPublisher.
func NewMockAuditPublisher(t interface {
	mock.TestingT
	Helper()
}) *MockAuditPublisher {
	m := &MockAuditPublisher{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ audit.Publisher = (*MockAuditPublisher)(nil)
