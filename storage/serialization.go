// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/profmatch/core"
)

// VectorMUS serializes a vector as a length prefix followed by fixed-width floats.
var VectorMUS = vectorSer{}

// StringsMUS serializes an ordered string list.
var StringsMUS = stringsSer{}

// RecordMUS serializes an InstructorRecord.
var RecordMUS = recordSer{}

// IndexEntryMUS serializes a full IndexEntry.
var IndexEntryMUS = indexEntrySer{}

type vectorSer struct{}

func (vectorSer) Marshal(v []float32, bs []byte) (n int) {
	n = varint.PositiveInt.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

func (vectorSer) Unmarshal(bs []byte) (v []float32, n int, err error) {
	length, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length < 0 || length > (len(bs)-n)/4 {
		return nil, n, ErrTruncatedData
	}
	v = make([]float32, length)
	for i := range v {
		var m int
		v[i], m, err = raw.Float32.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func (vectorSer) Size(v []float32) int {
	size := varint.PositiveInt.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func (s vectorSer) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

type stringsSer struct{}

func (stringsSer) Marshal(v []string, bs []byte) (n int) {
	n = varint.PositiveInt.Marshal(len(v), bs)
	for _, s := range v {
		n += ord.String.Marshal(s, bs[n:])
	}
	return n
}

func (stringsSer) Unmarshal(bs []byte) (v []string, n int, err error) {
	length, n, err := varint.PositiveInt.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	// Every element takes at least its one-byte length prefix.
	if length < 0 || length > len(bs)-n {
		return nil, n, ErrTruncatedData
	}
	if length == 0 {
		return nil, n, nil
	}
	v = make([]string, length)
	for i := range v {
		var m int
		v[i], m, err = ord.String.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func (stringsSer) Size(v []string) int {
	size := varint.PositiveInt.Size(len(v))
	for _, s := range v {
		size += ord.String.Size(s)
	}
	return size
}

func (s stringsSer) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

type recordSer struct{}

func (recordSer) Marshal(r core.InstructorRecord, bs []byte) (n int) {
	n = ord.String.Marshal(r.Name, bs)
	n += ord.String.Marshal(r.Department, bs[n:])
	n += ord.String.Marshal(r.RatingRaw, bs[n:])
	n += StringsMUS.Marshal(r.ReviewSnippets, bs[n:])
	n += ord.String.Marshal(r.SourceURL, bs[n:])
	return n
}

func (recordSer) Unmarshal(bs []byte) (r core.InstructorRecord, n int, err error) {
	var m int
	fields := []*string{&r.Name, &r.Department, &r.RatingRaw}
	for _, f := range fields {
		*f, m, err = ord.String.Unmarshal(bs[n:])
		n += m
		if err != nil {
			return r, n, err
		}
	}
	r.ReviewSnippets, m, err = StringsMUS.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return r, n, err
	}
	r.SourceURL, m, err = ord.String.Unmarshal(bs[n:])
	n += m
	return r, n, err
}

func (recordSer) Size(r core.InstructorRecord) int {
	return ord.String.Size(r.Name) +
		ord.String.Size(r.Department) +
		ord.String.Size(r.RatingRaw) +
		StringsMUS.Size(r.ReviewSnippets) +
		ord.String.Size(r.SourceURL)
}

func (s recordSer) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

type indexEntrySer struct{}

func (indexEntrySer) Marshal(e core.IndexEntry, bs []byte) (n int) {
	n = ord.String.Marshal(e.Key, bs)
	n += VectorMUS.Marshal(e.Vector, bs[n:])
	n += RecordMUS.Marshal(e.Record, bs[n:])
	n += varint.Int64.Marshal(unixNano(e.UpdatedAt), bs[n:])
	return n
}

func (indexEntrySer) Unmarshal(bs []byte) (e core.IndexEntry, n int, err error) {
	var m int
	e.Key, m, err = ord.String.Unmarshal(bs)
	n += m
	if err != nil {
		return e, n, err
	}
	e.Vector, m, err = VectorMUS.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return e, n, err
	}
	e.Record, m, err = RecordMUS.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return e, n, err
	}
	ts, m, err := varint.Int64.Unmarshal(bs[n:])
	n += m
	if err != nil {
		return e, n, err
	}
	if ts != 0 {
		e.UpdatedAt = time.Unix(0, ts).UTC()
	}
	return e, n, nil
}

func (indexEntrySer) Size(e core.IndexEntry) int {
	return ord.String.Size(e.Key) +
		VectorMUS.Size(e.Vector) +
		RecordMUS.Size(e.Record) +
		varint.Int64.Size(unixNano(e.UpdatedAt))
}

func (s indexEntrySer) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// MarshalIndexEntry serializes an IndexEntry to bytes.
func MarshalIndexEntry(entry *core.IndexEntry) []byte {
	buf := make([]byte, IndexEntryMUS.Size(*entry))
	IndexEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalIndexEntry deserializes an IndexEntry from bytes.
func UnmarshalIndexEntry(data []byte) (*core.IndexEntry, error) {
	entry, _, err := IndexEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &entry, nil
}

// MarshalVector serializes a vector to bytes.
func MarshalVector(v []float32) []byte {
	buf := make([]byte, VectorMUS.Size(v))
	VectorMUS.Marshal(v, buf)
	return buf
}

// UnmarshalVector deserializes a vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	v, _, err := VectorMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return v, nil
}
