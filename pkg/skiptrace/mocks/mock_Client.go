// Package mocks provides test doubles for the skiptrace client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	skiptrace "github.com/sells-group/lead-enrichment/pkg/skiptrace"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// SearchByName provides a mock function with given fields: ctx, name, cityStateZip
func (_m *MockClient) SearchByName(ctx context.Context, name string, cityStateZip string) (*skiptrace.SearchResponse, error) {
	ret := _m.Called(ctx, name, cityStateZip)

	if len(ret) == 0 {
		panic("no return value specified for SearchByName")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string, string) (*skiptrace.SearchResponse, error)); ok {
		return rf(ctx, name, cityStateZip)
	}

	var r0 *skiptrace.SearchResponse
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*skiptrace.SearchResponse)
	}
	return r0, ret.Error(1)
}

// PersonDetails provides a mock function with given fields: ctx, personID
func (_m *MockClient) PersonDetails(ctx context.Context, personID string) (*skiptrace.DetailsResponse, error) {
	ret := _m.Called(ctx, personID)

	if len(ret) == 0 {
		panic("no return value specified for PersonDetails")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) (*skiptrace.DetailsResponse, error)); ok {
		return rf(ctx, personID)
	}

	var r0 *skiptrace.DetailsResponse
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*skiptrace.DetailsResponse)
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
