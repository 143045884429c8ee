package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"script-studio/internal/action"
	"script-studio/internal/model"
)

// MockRouteResolver is a mock type for the action.RouteResolver type
type MockRouteResolver struct {
	mock.Mock
}

// Resolve provides a mock function with given fields: ch
func (_m *MockRouteResolver) Resolve(ch model.Channel) model.RouteResolution {
	ret := _m.Called(ch)
	return ret.Get(0).(model.RouteResolution)
}

// NewMockRouteResolver creates a new instance of MockRouteResolver.
func NewMockRouteResolver(t interface {
	mock.TestingT
	Helper()
}) *MockRouteResolver {
	m := &MockRouteResolver{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ action.RouteResolver = (*MockRouteResolver)(nil)

// MockPromptSource is a mock type for the action.PromptSource type
type MockPromptSource struct {
	mock.Mock
}

// GetPrompt provides a mock function with given fields: module
func (_m *MockPromptSource) GetPrompt(module string) string {
	ret := _m.Called(module)
	return ret.String(0)
}

// NewMockPromptSource creates a new instance of MockPromptSource.
func NewMockPromptSource(t interface {
	mock.TestingT
	Helper()
}) *MockPromptSource {
	m := &MockPromptSource{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ action.PromptSource = (*MockPromptSource)(nil)

// MockAuditRecorder is a mock type for the action.AuditRecorder type
type MockAuditRecorder struct {
	mock.Mock
}

// Record provides a mock function with given fields: ctx, entry
func (_m *MockAuditRecorder) Record(ctx context.Context, entry model.AuditLogEntry) bool {
	ret := _m.Called(ctx, entry)
	return ret.Bool(0)
}

// NewMockAuditRecorder creates a new instance of MockAuditRecorder.
func NewMockAuditRecorder(t interface {
	mock.TestingT
	Helper()
}) *MockAuditRecorder {
	m := &MockAuditRecorder{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ action.AuditRecorder = (*MockAuditRecorder)(nil)
