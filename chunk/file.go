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

package chunk

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stockparfait/errors"
)

// FileName of the artifact with the given sequence number. Names are
// deterministic, so that re-runs over the same range are diffable.
func FileName(sequence int) string {
	return fmt.Sprintf("chunk_%05d.gob", sequence)
}

func writeGob(fileName string, v interface{}) error {
	f, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Annotate(err, "failed to open file for writing: '%s'", fileName)
	}
	enc := gob.NewEncoder(f)
	if err = enc.Encode(v); err != nil {
		f.Close()
		return errors.Annotate(err, "failed to write to '%s'", fileName)
	}
	if err = f.Close(); err != nil {
		return errors.Annotate(err, "failed to close '%s'", fileName)
	}
	return nil
}

func readGob(fileName string, v interface{}) error {
	f, err := os.Open(fileName)
	if err != nil {
		return errors.Annotate(err, "failed to open file for reading: '%s'", fileName)
	}
	defer f.Close()
	dec := gob.NewDecoder(f)
	if err = dec.Decode(v); err != nil {
		return errors.Annotate(err, "failed to read from '%s'", fileName)
	}
	return nil
}

// WriteChunk saves a non-empty chunk in dir under its deterministic name and
// returns the artifact referring to it. The file is written under a temporary
// name first, so a failed write leaves no artifact under the final name.
func WriteChunk(dir string, c *Chunk) (Artifact, error) {
	if c.Len() == 0 {
		return Artifact{}, errors.Reason("refusing to write empty chunk %d", c.Sequence)
	}
	if c.Stage != Raw && c.Stage != Cleaned {
		return Artifact{}, errors.Reason("unknown stage '%s'", c.Stage)
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return Artifact{}, errors.Annotate(err, "failed to create directory '%s'", dir)
	}
	path := filepath.Join(dir, FileName(c.Sequence))
	tmp := path + ".tmp"
	if err := writeGob(tmp, c); err != nil {
		os.Remove(tmp)
		return Artifact{}, errors.Annotate(err, "failed to write chunk %d", c.Sequence)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return Artifact{}, errors.Annotate(err, "failed to rename '%s'", tmp)
	}
	return Artifact{
		Sequence: c.Sequence,
		Rows:     c.Len(),
		Location: path,
		Stage:    c.Stage,
	}, nil
}

// ReadChunk loads the chunk stored at location.
func ReadChunk(location string) (*Chunk, error) {
	var c Chunk
	if err := readGob(location, &c); err != nil {
		return nil, errors.Annotate(err, "failed to read chunk")
	}
	return &c, nil
}

// Manifest is the handoff between stages: the ordered list of artifacts a
// stage produced in a run. It is stored as JSON next to the artifacts.
type Manifest struct {
	RunID     string     `json:"run_id"`
	Step      Step       `json:"step"`
	Start     string     `json:"start,omitempty"` // range start, YYYY-MM-DD
	End       string     `json:"end,omitempty"`   // range end, YYYY-MM-DD
	Artifacts []Artifact `json:"artifacts"`
}

// WriteManifest saves the manifest as JSON.
func WriteManifest(fileName string, m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(fileName), os.ModePerm); err != nil {
		return errors.Annotate(err, "failed to create directory for '%s'", fileName)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Annotate(err, "failed to marshal manifest")
	}
	if err := os.WriteFile(fileName, data, 0644); err != nil {
		return errors.Annotate(err, "failed to write manifest '%s'", fileName)
	}
	return nil
}

// ReadManifest loads a manifest saved by WriteManifest.
func ReadManifest(fileName string) (*Manifest, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read manifest '%s'", fileName)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Annotate(err, "failed to parse manifest '%s'", fileName)
	}
	if m.Artifacts == nil {
		m.Artifacts = []Artifact{}
	}
	return &m, nil
}
