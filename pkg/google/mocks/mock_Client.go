// Package mocks provides test doubles for the google client.
package mocks

import (
	"context"
	"iter"

	mock "github.com/stretchr/testify/mock"

	google "github.com/sells-group/cafescrape/pkg/google"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// GeocodeCity provides a mock function with given fields: ctx, city, country, region
func (_m *MockClient) GeocodeCity(ctx context.Context, city string, country string, region string) (*google.GeocodeResult, error) {
	ret := _m.Called(ctx, city, country, region)

	if len(ret) == 0 {
		panic("no return value specified for GeocodeCity")
	}

	var r0 *google.GeocodeResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) (*google.GeocodeResult, error)); ok {
		return rf(ctx, city, country, region)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*google.GeocodeResult)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// CityPlaces provides a mock function with given fields: ctx, query, maxResults, opts
func (_m *MockClient) CityPlaces(ctx context.Context, query string, maxResults int, opts ...google.SearchOption) iter.Seq2[google.PlaceSummary, error] {
	ret := _m.Called(ctx, query, maxResults, opts)

	if len(ret) == 0 {
		panic("no return value specified for CityPlaces")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string, int, ...google.SearchOption) iter.Seq2[google.PlaceSummary, error]); ok {
		return rf(ctx, query, maxResults, opts...)
	}

	var r0 iter.Seq2[google.PlaceSummary, error]
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(iter.Seq2[google.PlaceSummary, error])
	}

	return r0
}

// PlaceDetails provides a mock function with given fields: ctx, placeID, fields
func (_m *MockClient) PlaceDetails(ctx context.Context, placeID string, fields []string) (*google.PlaceDetails, error) {
	ret := _m.Called(ctx, placeID, fields)

	if len(ret) == 0 {
		panic("no return value specified for PlaceDetails")
	}

	var r0 *google.PlaceDetails
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, []string) (*google.PlaceDetails, error)); ok {
		return rf(ctx, placeID, fields)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*google.PlaceDetails)
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, []string) error); ok {
		r1 = rf(ctx, placeID, fields)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// PlacesSeq builds a place sequence for CityPlaces expectations. A non-nil
// err is yielded after the places.
func PlacesSeq(places []google.PlaceSummary, err error) iter.Seq2[google.PlaceSummary, error] {
	return func(yield func(google.PlaceSummary, error) bool) {
		for _, p := range places {
			if !yield(p, nil) {
				return
			}
		}
		if err != nil {
			yield(google.PlaceSummary{}, err)
		}
	}
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
