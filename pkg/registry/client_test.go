package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(srv *httptest.Server, opts ...Option) Client {
	base := []Option{
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithRateLimit(1000),
	}
	return NewClient(append(base, opts...)...)
}

func TestSearch_SinglePage(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = io.WriteString(w, `[
			{"place_id":1,"name":"Cafe Kreta","lat":"35.3387","lon":"25.1442",
			 "address":{"road":"Leoforos Knosou","house_number":"10","city":"Heraklion"}},
			{"place_id":2,"name":"","display_name":"Anonimo, Heraklion, Greece","lat":"35.34","lon":"25.14",
			 "address":{"road":"","town":"Heraklion"}}
		]`)
	}))
	defer srv.Close()

	records, err := testClient(srv).Search(context.Background(), "cafe", "Heraklion")
	require.NoError(t, err)
	assert.Equal(t, "cafe in Heraklion", gotQuery)
	require.Len(t, records, 2)

	assert.Equal(t, "Cafe Kreta", records[0].Name)
	assert.Equal(t, "Leoforos Knosou 10", records[0].Address)
	assert.Equal(t, "Heraklion", records[0].City)
	assert.Equal(t, "cafe", records[0].Category)
	require.NotNil(t, records[0].Coordinate)
	assert.InDelta(t, 35.3387, records[0].Coordinate.Lat, 1e-9)

	// Fallbacks: name and street from display_name, city from address.town.
	assert.Equal(t, "Anonimo", records[1].Name)
	assert.Equal(t, "Anonimo", records[1].Address)
	assert.Equal(t, "Heraklion", records[1].City)
}

func TestSearch_PagesWithExcludePlaceIDs(t *testing.T) {
	var excludes []string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		excludes = append(excludes, r.URL.Query().Get("exclude_place_ids"))
		switch calls {
		case 1:
			// Full page, client must continue.
			_, _ = io.WriteString(w, `[
				{"place_id":11,"name":"A","lat":"35.1","lon":"25.1","address":{"road":"a","city":"Heraklion"}},
				{"place_id":12,"name":"B","lat":"35.2","lon":"25.2","address":{"road":"b","city":"Heraklion"}}
			]`)
		default:
			// Short page ends the search.
			_, _ = io.WriteString(w, `[
				{"place_id":13,"name":"C","lat":"35.3","lon":"25.3","address":{"road":"c","city":"Heraklion"}}
			]`)
		}
	}))
	defer srv.Close()

	records, err := testClient(srv, WithPaging(2, 5)).Search(context.Background(), "pharmacy", "Heraklion")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, records, 3)

	assert.Empty(t, excludes[0])
	assert.Equal(t, "11,12", excludes[1])
}

func TestSearch_MaxPagesCapsRequests(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// Always a full page of one; without the cap this would loop.
		_, _ = fmt.Fprintf(w, `[{"place_id":%d,"name":"X","lat":"35.1","lon":"25.1","address":{"city":"Heraklion"}}]`, calls)
	}))
	defer srv.Close()

	records, err := testClient(srv, WithPaging(1, 3)).Search(context.Background(), "cafe", "Heraklion")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, records, 3)
}

func TestSearch_SkipsEntriesWithoutCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[
			{"place_id":1,"name":"Good","lat":"35.3387","lon":"25.1442","address":{"city":"Heraklion"}},
			{"place_id":2,"name":"Bad","lat":"","lon":"","address":{"city":"Heraklion"}}
		]`)
	}))
	defer srv.Close()

	records, err := testClient(srv).Search(context.Background(), "cafe", "Heraklion")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Good", records[0].Name)
}

func TestSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv).Search(context.Background(), "cafe", "Heraklion")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 503"))
}

func TestSearch_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	records, err := testClient(srv).Search(context.Background(), "cafe", "Nowhere")
	require.NoError(t, err)
	assert.Empty(t, records)
}
