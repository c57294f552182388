// Package mocks provides test doubles for the telnyx client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	telnyx "github.com/sells-group/lead-enrichment/pkg/telnyx"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Lookup provides a mock function with given fields: ctx, phone
func (_m *MockClient) Lookup(ctx context.Context, phone string) (*telnyx.LookupResponse, error) {
	ret := _m.Called(ctx, phone)

	if len(ret) == 0 {
		panic("no return value specified for Lookup")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) (*telnyx.LookupResponse, error)); ok {
		return rf(ctx, phone)
	}

	var r0 *telnyx.LookupResponse
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*telnyx.LookupResponse)
	}
	return r0, ret.Error(1)
}

// NewMockClient creates a new instance of MockClient and registers cleanup
// assertions on t.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
