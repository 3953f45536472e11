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

package table

import (
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTable(t *testing.T) {
	t.Parallel()

	Convey("Table methods work", t, func() {
		tbl := NewTable("seq", "rows", "city")
		tbl.Add([]string{"0", "2", "Zürich"}, []string{"1", "10", "Ames"})
		headless := NewTable()
		headless.Add(tbl.Rows...)

		So(tbl.Header, ShouldResemble, []string{"seq", "rows", "city"})
		So(len(tbl.Rows), ShouldEqual, 2)

		Convey("WriteCSV", func() {
			Convey("Default Params", func() {
				var buf bytes.Buffer
				So(tbl.WriteCSV(&buf, Params{}), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
seq,rows,city
0,2,Zürich
1,10,Ames
`)
			})

			Convey("Limited rows, no header", func() {
				var buf bytes.Buffer
				So(tbl.WriteCSV(&buf, Params{Rows: 1, NoHeader: true}), ShouldBeNil)
				So(buf.String(), ShouldEqual, "0,2,Zürich\n")
			})

			Convey("ragged rows", func() {
				tbl.Add([]string{"2"})
				var buf bytes.Buffer
				So(tbl.WriteCSV(&buf, Params{}), ShouldNotBeNil)
			})
		})

		Convey("WriteText", func() {
			Convey("Default Params", func() {
				var buf bytes.Buffer
				So(tbl.WriteText(&buf, Params{}), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
seq | rows | city
----+------+-------
0   | 2    | Zürich
1   | 10   | Ames
`)
			})

			Convey("headless", func() {
				var buf bytes.Buffer
				So(headless.WriteText(&buf, Params{}), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
0 | 2  | Zürich
1 | 10 | Ames
`)
			})

			Convey("Limited rows and width", func() {
				var buf bytes.Buffer
				So(tbl.WriteText(&buf, Params{Rows: 1, MaxColWidth: 4}), ShouldBeNil)
				So("\n"+buf.String(), ShouldEqual, `
seq | rows | city
----+------+-----
0   | 2    | Zü..
`)
			})

			Convey("bad width", func() {
				var buf bytes.Buffer
				So(tbl.WriteText(&buf, Params{MaxColWidth: 3}), ShouldNotBeNil)
			})

			Convey("empty table", func() {
				var buf bytes.Buffer
				So(NewTable().WriteText(&buf, Params{}), ShouldBeNil)
				So(buf.String(), ShouldEqual, "")
			})
		})
	})
}
