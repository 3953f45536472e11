// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package socrata

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stockparfait/chunketl/chunk"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSocrata(t *testing.T) {
	t.Parallel()

	Convey("Query builds nondestructively", t, func() {
		q := NewQuery("http://test/resource.csv")

		Convey("Between", func() {
			q2 := q.Between("date", "2020-01-01T00:00:00", "2020-01-02T23:59:59")
			So(len(q.Values()), ShouldEqual, 0)
			So(q2.Values(), ShouldResemble, url.Values{
				"$where": []string{"date BETWEEN '2020-01-01T00:00:00' AND '2020-01-02T23:59:59'"},
			})
		})

		Convey("quotes are escaped", func() {
			q2 := q.Between("name", "O'Brien", "z")
			So(q2.Values().Get("$where"), ShouldEqual, "name BETWEEN 'O''Brien' AND 'z'")
		})

		Convey("Options", func() {
			q2 := q.Select("a", "b")
			q3 := q.Order(":id")
			q4 := q.Limit(100)
			q5 := q.Offset(200)
			So(len(q.Values()), ShouldEqual, 0)
			So(q2.Values(), ShouldResemble, url.Values{"$select": []string{"a,b"}})
			So(q3.Values(), ShouldResemble, url.Values{"$order": []string{":id"}})
			So(q4.Values(), ShouldResemble, url.Values{"$limit": []string{"100"}})
			So(q5.Values(), ShouldResemble, url.Values{"$offset": []string{"200"}})
		})

		Convey("zero offset and limit are omitted", func() {
			So(len(q.Limit(-1).Offset(0).Values()), ShouldEqual, 0)
		})
	})

	Convey("ParseCSV", t, func() {
		Convey("header and records", func() {
			p, err := ParseCSV(strings.NewReader("a,b\n1,2\n3,\"x,y\"\n"))
			So(err, ShouldBeNil)
			So(p.Header, ShouldResemble, []string{"a", "b"})
			So(p.Records, ShouldResemble, [][]string{{"1", "2"}, {"3", "x,y"}})
			So(p.Len(), ShouldEqual, 2)
		})

		Convey("header only is an empty page", func() {
			p, err := ParseCSV(strings.NewReader("a,b\n"))
			So(err, ShouldBeNil)
			So(p.Len(), ShouldEqual, 0)
		})

		Convey("empty body is an empty page", func() {
			p, err := ParseCSV(strings.NewReader(""))
			So(err, ShouldBeNil)
			So(p.Len(), ShouldEqual, 0)
		})

		Convey("ragged records fail", func() {
			_, err := ParseCSV(strings.NewReader("a,b\n1,2,3\n"))
			So(err, ShouldNotBeNil)
		})

		Convey("unterminated quote fails", func() {
			_, err := ParseCSV(strings.NewReader("a,b\n1,\"2\n"))
			So(err, ShouldNotBeNil)
		})
	})

	Convey("API calls work correctly", t, func() {
		server := testutil.NewTestServer()
		defer server.Close()
		server.ResponseBody = []string{""}

		ctx := fetch.UseClient(context.Background(), server.Client())
		ctx = UseClient(ctx, "token")
		endpoint := server.URL() + "/resource/test.csv"

		Convey("ReadPage fetches one page", func() {
			server.ResponseBody = []string{"date,pack\n2020-01-01T00:00:00.000,6\n"}
			q := NewQuery(endpoint).Limit(5).Offset(10)
			p, err := q.ReadPage(ctx)
			So(err, ShouldBeNil)
			So(p.Header, ShouldResemble, []string{"date", "pack"})
			So(p.Records, ShouldResemble, [][]string{{"2020-01-01T00:00:00.000", "6"}})
			So(server.RequestPath, ShouldEqual, "/resource/test.csv")
			expected := q.Values()
			expected.Set("$$app_token", "token")
			So(server.RequestQuery, ShouldResemble, expected)
		})

		Convey("ReadPage fails on a malformed page", func() {
			server.ResponseBody = []string{"date,pack\n2020-01-01,6,7\n"}
			_, err := NewQuery(endpoint).ReadPage(ctx)
			So(err, ShouldNotBeNil)
		})

		Convey("ReadPage requires a client", func() {
			_, err := NewQuery(endpoint).ReadPage(fetch.UseClient(context.Background(), server.Client()))
			So(err, ShouldNotBeNil)
		})

		Convey("Dataset.FetchPage filters by range with a stable order", func() {
			server.ResponseBody = []string{"date,pack\n"}
			d := Dataset{Endpoint: endpoint, DateColumn: "date", OrderBy: ":id"}
			r, err := chunk.NewDateRange("2020-01-01", "2020-01-02")
			So(err, ShouldBeNil)
			p, err := d.FetchPage(ctx, r, 2, 4)
			So(err, ShouldBeNil)
			So(p.Len(), ShouldEqual, 0)
			So(server.RequestQuery, ShouldResemble, url.Values{
				"$select":     []string{"*"},
				"$where":      []string{"date BETWEEN '2020-01-01T00:00:00' AND '2020-01-02T23:59:59'"},
				"$order":      []string{":id"},
				"$$app_token": []string{"token"},
				"$limit":      []string{"2"},
				"$offset":     []string{"4"},
			})
		})
	})
}
