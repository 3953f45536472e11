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

// Package chunk defines the unit of work shared by all pipeline stages: a
// bounded batch of rows materialized as one self-contained file (an artifact).
//
// The extractor writes raw chunks holding the source text exactly as received;
// the transformer derives one cleaned chunk holding typed Rows from each raw
// chunk, keeping its sequence number; the loader reads the cleaned chunks in
// sequence order. Stages hand off ordered lists of Artifact values, which are
// plain data and serialize to JSON (see Manifest), so a stage may run in a
// different process than the one before it.
//
// Artifacts are never modified after they are written and are never deleted by
// the pipeline. They stay on disk as an audit trail of the run.
package chunk
