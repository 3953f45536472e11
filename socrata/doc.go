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

// Package socrata implements a paginated client for Socrata Open Data (SODA)
// resources in CSV format, such as the Iowa Liquor Sales dataset.
//
// Official documentation is at https://dev.socrata.com/docs/queries/ .
//
// A query selects rows with SoQL parameters ($select, $where, $order, $limit,
// $offset). The response is a CSV document whose first line is the header, so
// each page is self-describing. Paging is offset based: the caller advances the
// offset by the number of rows received, and the end of data is a page with no
// rows. For offset paging to be stable across pages, the query must have an
// explicit order.
package socrata
