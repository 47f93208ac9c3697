//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package keystonedb

import (
	"container/heap"
	"math/big"
	"time"

	"github.com/cespare/xxhash"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/internal/proto/binary"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/kverr"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/types"
)

// defaultBatchSize bounds the number of rows produced per QueryResult when
// the request does not specify a limit.
const defaultBatchSize = 100

// sortSpec describes the direction and null placement of one ORDER BY field.
type sortSpec struct {
	isDesc     bool
	nullsFirst bool
}

// aggregateFunc identifies an aggregate function computed per group.
type aggregateFunc int

const (
	aggrCount aggregateFunc = iota + 1 // 1
	aggrSum                            // 2
	aggrMin                            // 3
	aggrMax                            // 4
	aggrAvg                            // 5
)

func (f aggregateFunc) isValid() bool {
	return f >= aggrCount && f <= aggrAvg
}

// aggregateSpec describes one aggregate function: the function itself, the
// field it aggregates over and the name of the result column.
type aggregateSpec struct {
	fn    aggregateFunc
	field string
	as    string
}

// queryDriver computes the results of a query that sorts, groups or
// eliminates duplicates across partitions.
//
// The server evaluates such a query one partition at a time and returns each
// partition's rows in the query's order. The driver opens a result stream
// per partition and merges the streams into one globally ordered sequence,
// folding grouped rows and dropping duplicates as it goes.
//
// A driver belongs to one QueryRequest and is not safe for concurrent use.
type queryDriver struct {
	client   *Client
	request  *QueryRequest
	prepStmt *PreparedStatement

	streams []*partitionStream
	heap    streamHeap

	// seen holds the hashes of the primary keys already returned, used for
	// duplicate elimination.
	seen map[uint64]struct{}

	// group holds the open group accumulator when the query groups rows.
	group *groupAccumulator

	// prepareCost is the capacity consumed compiling the statement, charged
	// to the first computed batch.
	prepareCost Capacity

	// batchCost accumulates the capacity consumed fetching partition
	// batches since the last computed result.
	batchCost Capacity

	started bool
	done    bool
	closed  bool
	err     error
}

// newQueryDriver creates a query driver and binds it to the request.
func newQueryDriver(client *Client, req *QueryRequest) *queryDriver {
	d := &queryDriver{
		client:   client,
		request:  req,
		prepStmt: req.PreparedStatement,
	}
	if d.prepStmt.eliminateDuplicates {
		d.seen = make(map[uint64]struct{})
	}
	req.driver = d
	return d
}

func (d *queryDriver) isDone() bool {
	return d.done
}

func (d *queryDriver) close() {
	d.closed = true
	d.streams = nil
	d.heap = nil
	d.seen = nil
	d.group = nil
}

// open creates one stream per partition and primes the merge heap with the
// first row of each non-empty stream.
func (d *queryDriver) open() error {
	n := d.prepStmt.numPartitions
	if n <= 0 {
		return kverr.NewBadProtocol("prepared statement reports %d partitions", n)
	}

	d.streams = make([]*partitionStream, n)
	d.heap = make(streamHeap, 0, n)
	for pid := 0; pid < n; pid++ {
		s := &partitionStream{driver: d, partitionID: pid}
		d.streams[pid] = s
		if err := s.fetch(); err != nil {
			return err
		}
		if s.head() != nil {
			d.heap = append(d.heap, s)
		}
	}
	heap.Init(&d.heap)
	d.started = true
	return nil
}

// compute produces the next batch of results for the query.
func (d *queryDriver) compute(res *QueryResult) error {
	if d.closed {
		return kverr.NewIllegalState("the query has been closed")
	}
	if d.err != nil {
		return d.err
	}

	if !d.started {
		if err := d.open(); err != nil {
			d.err = err
			return err
		}
	}

	limit := int(d.request.Limit)
	if limit == 0 {
		limit = defaultBatchSize
	}

	var results []*types.MapValue
	var err error
	if len(d.prepStmt.groupFields) > 0 {
		results, err = d.nextGroupedBatch(limit)
	} else {
		results, err = d.nextBatch(limit)
	}
	if err != nil {
		d.err = err
		return err
	}

	if d.heap.Len() == 0 && d.group == nil {
		d.done = true
	}

	res.results = results
	res.Capacity = d.takeCost()
	return nil
}

// takeCost returns the capacity consumed since the last computed batch,
// including the one-time statement preparation cost.
func (d *queryDriver) takeCost() Capacity {
	c := d.batchCost
	c.ReadKB += d.prepareCost.ReadKB
	c.ReadUnits += d.prepareCost.ReadUnits
	c.WriteKB += d.prepareCost.WriteKB
	c.WriteUnits += d.prepareCost.WriteUnits
	d.prepareCost = Capacity{}
	d.batchCost = Capacity{}
	return c
}

// nextBatch pops up to limit rows off the merge heap in query order,
// dropping duplicate rows when the query requires it.
func (d *queryDriver) nextBatch(limit int) ([]*types.MapValue, error) {
	results := make([]*types.MapValue, 0, limit)
	for len(results) < limit && d.heap.Len() > 0 {
		row, err := d.popMin()
		if err != nil {
			return nil, err
		}

		if d.seen != nil {
			dup, err := d.isDuplicate(row)
			if err != nil {
				return nil, err
			}
			if dup {
				continue
			}
		}
		results = append(results, row)
	}
	return results, nil
}

// nextGroupedBatch folds the globally ordered rows into groups, emitting a
// result row each time the group key changes. The sort order subsumes the
// group key, so all rows of a group are adjacent in the merged sequence.
func (d *queryDriver) nextGroupedBatch(limit int) ([]*types.MapValue, error) {
	results := make([]*types.MapValue, 0, limit)
	for len(results) < limit && d.heap.Len() > 0 {
		row, err := d.popMin()
		if err != nil {
			return nil, err
		}

		key, err := groupKeyOf(row, d.prepStmt.groupFields)
		if err != nil {
			return nil, err
		}

		if d.group == nil {
			d.group = newGroupAccumulator(key, d.prepStmt)
		} else if !d.group.sameKey(key) {
			results = append(results, d.group.emit())
			d.group = newGroupAccumulator(key, d.prepStmt)
		}

		if err = d.group.accumulate(row); err != nil {
			return nil, err
		}
	}

	// The last group is complete only once every stream is exhausted.
	if d.heap.Len() == 0 && d.group != nil {
		results = append(results, d.group.emit())
		d.group = nil
	}
	return results, nil
}

// popMin removes the smallest row across all streams and restores the heap
// invariant, fetching the next batch of the popped stream as needed.
func (d *queryDriver) popMin() (*types.MapValue, error) {
	s := d.heap[0]
	row := s.head()

	if err := s.advance(); err != nil {
		return nil, err
	}
	if s.head() != nil {
		heap.Fix(&d.heap, 0)
	} else {
		heap.Pop(&d.heap)
	}
	return row, nil
}

// isDuplicate reports whether the row's primary key has been returned
// before, remembering it otherwise.
func (d *queryDriver) isDuplicate(row *types.MapValue) (bool, error) {
	w := binary.NewWriter()
	for _, f := range d.prepStmt.keyFields {
		v, _ := row.Get(f)
		if _, err := w.WriteFieldValue(v); err != nil {
			return false, err
		}
	}

	h := xxhash.Sum64(w.Bytes())
	if _, ok := d.seen[h]; ok {
		return true, nil
	}
	d.seen[h] = struct{}{}
	return false, nil
}

// partitionStream pulls the ordered result rows of one partition, one batch
// per server round trip.
type partitionStream struct {
	driver      *queryDriver
	partitionID int

	rows []*types.MapValue
	idx  int

	contKey []byte
	started bool
	done    bool
}

// head returns the stream's current row, or nil if the stream is exhausted.
func (s *partitionStream) head() *types.MapValue {
	if s.idx < len(s.rows) {
		return s.rows[s.idx]
	}
	return nil
}

// advance moves past the current row, fetching the next batch when the
// buffered rows run out.
func (s *partitionStream) advance() error {
	s.idx++
	if s.idx < len(s.rows) || s.done {
		return nil
	}
	return s.fetch()
}

// fetch retrieves batches from the stream's partition until rows arrive or
// the partition is exhausted. A batch may be empty with more data remaining
// when the server hits its read limit before matching any row.
func (s *partitionStream) fetch() error {
	if s.started && s.contKey == nil {
		s.done = true
		s.rows = nil
		s.idx = 0
		return nil
	}

	d := s.driver
	for {
		req := d.request.copyInternal(s.partitionID)
		req.continuationKey = s.contKey

		res, err := d.client.execute(req)
		if err != nil {
			return err
		}
		qres := res.(*QueryResult)

		d.batchCost.ReadKB += qres.Capacity.ReadKB
		d.batchCost.ReadUnits += qres.Capacity.ReadUnits
		d.batchCost.WriteKB += qres.Capacity.WriteKB
		d.batchCost.WriteUnits += qres.Capacity.WriteUnits

		s.started = true
		s.rows = qres.results
		s.idx = 0
		s.contKey = qres.getContinuationKey()
		if s.contKey == nil {
			s.done = true
		}

		if len(s.rows) > 0 || s.done {
			return nil
		}
	}
}

// streamHeap is a min-heap of partition streams ordered by their current
// rows according to the query's sort specification.
type streamHeap []*partitionStream

func (h streamHeap) Len() int { return len(h) }

func (h streamHeap) Less(i, j int) bool {
	d := h[i].driver
	c, err := compareRows(h[i].head(), h[j].head(), d.prepStmt.sortFields, d.prepStmt.sortSpecs)
	if err != nil {
		// Rows that cannot be compared are ordered arbitrarily; the
		// error surfaces when the incomparable row is consumed.
		return false
	}
	return c < 0
}

func (h streamHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *streamHeap) Push(x interface{}) {
	*h = append(*h, x.(*partitionStream))
}

func (h *streamHeap) Pop() interface{} {
	old := *h
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return s
}

// compareRows compares two rows on the specified sort fields, honoring each
// field's direction and null placement.
func compareRows(a, b *types.MapValue, fields []string, specs []sortSpec) (int, error) {
	for i, f := range fields {
		va, _ := a.Get(f)
		vb, _ := b.Get(f)

		c, err := compareSortValues(va, vb, specs[i].nullsFirst)
		if err != nil {
			return 0, err
		}
		if c == 0 {
			continue
		}
		if specs[i].isDesc {
			c = -c
		}
		return c, nil
	}
	return 0, nil
}

// compareSortValues compares two field values for ordering purposes.
// Null-like values sort among themselves by severity and against regular
// values according to nullsFirst.
func compareSortValues(a, b types.FieldValue, nullsFirst bool) (int, error) {
	ra, rb := nullRankOf(a), nullRankOf(b)
	switch {
	case ra == 0 && rb == 0:
		return compareAtomicValues(a, b)

	case ra != 0 && rb != 0:
		switch {
		case ra < rb:
			return -1, nil
		case ra > rb:
			return 1, nil
		default:
			return 0, nil
		}

	default:
		// Exactly one side is null-like.
		nullSide := 1
		if nullsFirst {
			nullSide = -1
		}
		if ra != 0 {
			return nullSide, nil
		}
		return -nullSide, nil
	}
}

// nullRankOf classifies null-like values: 0 for regular values, then
// EmptyValue, JSONNullValue and NullValue in ascending order.
func nullRankOf(v types.FieldValue) int {
	switch v.(type) {
	case nil:
		return 3
	case *types.EmptyValue:
		return 1
	case *types.JSONNullValue:
		return 2
	case *types.NullValue:
		return 3
	default:
		return 0
	}
}

// compareAtomicValues compares two atomic values of compatible types.
// Numeric values of different numeric types are comparable with each other.
func compareAtomicValues(a, b types.FieldValue) (int, error) {
	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			switch {
			case va < vb:
				return -1, nil
			case va > vb:
				return 1, nil
			default:
				return 0, nil
			}
		}
	case bool:
		if vb, ok := b.(bool); ok {
			switch {
			case va == vb:
				return 0, nil
			case vb:
				return -1, nil
			default:
				return 1, nil
			}
		}
	case time.Time:
		if vb, ok := b.(time.Time); ok {
			switch {
			case va.Before(vb):
				return -1, nil
			case va.After(vb):
				return 1, nil
			default:
				return 0, nil
			}
		}
	case int, int64, float64, *types.Number:
		if isNumeric(b) {
			return compareNumeric(a, b), nil
		}
	}

	return 0, kverr.NewIllegalState("cannot compare values of type %T and %T", a, b)
}

func isNumeric(v types.FieldValue) bool {
	switch v.(type) {
	case int, int64, float64, *types.Number:
		return true
	default:
		return false
	}
}

// compareNumeric compares two numeric values. If either side is an
// arbitrary precision Number the comparison is exact, otherwise the values
// are compared as float64.
func compareNumeric(a, b types.FieldValue) int {
	if _, ok := a.(*types.Number); !ok {
		if _, ok = b.(*types.Number); !ok {
			fa, fb := toFloat64(a), toFloat64(b)
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return toRat(a).Cmp(toRat(b))
}

func toFloat64(v types.FieldValue) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case *types.Number:
		return n.Float64()
	default:
		return 0
	}
}

func toRat(v types.FieldValue) *big.Rat {
	switch n := v.(type) {
	case int:
		return new(big.Rat).SetInt64(int64(n))
	case int64:
		return new(big.Rat).SetInt64(n)
	case float64:
		r, _ := new(big.Rat).SetString(big.NewFloat(n).Text('f', -1))
		return r
	case *types.Number:
		return n.Rat()
	default:
		return new(big.Rat)
	}
}

// groupKeyOf extracts the group key values of a row.
func groupKeyOf(row *types.MapValue, fields []string) ([]types.FieldValue, error) {
	key := make([]types.FieldValue, len(fields))
	for i, f := range fields {
		v, ok := row.Get(f)
		if !ok {
			return nil, kverr.NewBadProtocol("query result row is missing group field %q", f)
		}
		key[i] = v
	}
	return key, nil
}

// groupAccumulator folds the rows of one group and produces the aggregated
// result row.
type groupAccumulator struct {
	stmt *PreparedStatement
	key  []types.FieldValue
	aggs []*aggState
}

// aggState is the running state of one aggregate function over one group.
type aggState struct {
	spec  aggregateSpec
	count int64
	sum   *big.Rat
	// sumIsExact is set while the sum has only seen integral and Number
	// inputs, letting the result keep arbitrary precision.
	sumIsExact bool
	sawFloat   bool
	extreme    types.FieldValue
}

func newGroupAccumulator(key []types.FieldValue, stmt *PreparedStatement) *groupAccumulator {
	g := &groupAccumulator{stmt: stmt, key: key}
	g.aggs = make([]*aggState, len(stmt.aggregates))
	for i, spec := range stmt.aggregates {
		g.aggs[i] = &aggState{spec: spec, sum: new(big.Rat), sumIsExact: true}
	}
	return g
}

func (g *groupAccumulator) sameKey(key []types.FieldValue) bool {
	for i := range g.key {
		if !types.Equal(g.key[i], key[i]) {
			return false
		}
	}
	return true
}

func (g *groupAccumulator) accumulate(row *types.MapValue) error {
	for _, a := range g.aggs {
		if err := a.accumulate(row); err != nil {
			return err
		}
	}
	return nil
}

func (a *aggState) accumulate(row *types.MapValue) error {
	var v types.FieldValue
	if a.spec.field != "*" {
		var ok bool
		if v, ok = row.Get(a.spec.field); !ok || nullRankOf(v) != 0 {
			// Null and missing values do not contribute to aggregates.
			return nil
		}
	}

	switch a.spec.fn {
	case aggrCount:
		a.count++

	case aggrSum, aggrAvg:
		if !isNumeric(v) {
			return kverr.NewIllegalState("cannot aggregate non-numeric value of type %T", v)
		}
		if _, ok := v.(float64); ok {
			a.sawFloat = true
			a.sumIsExact = false
		}
		a.sum.Add(a.sum, toRat(v))
		a.count++

	case aggrMin:
		if a.extreme == nil {
			a.extreme = v
			return nil
		}
		c, err := compareAtomicValues(v, a.extreme)
		if err != nil {
			return err
		}
		if c < 0 {
			a.extreme = v
		}

	case aggrMax:
		if a.extreme == nil {
			a.extreme = v
			return nil
		}
		c, err := compareAtomicValues(v, a.extreme)
		if err != nil {
			return err
		}
		if c > 0 {
			a.extreme = v
		}
	}
	return nil
}

// emit produces the aggregated row for the group: the group key fields
// followed by one field per aggregate, named by its result column.
func (g *groupAccumulator) emit() *types.MapValue {
	row := types.NewOrderedMapValue()
	for i, f := range g.stmt.groupFields {
		row.Put(f, g.key[i])
	}
	for _, a := range g.aggs {
		row.Put(a.spec.as, a.result())
	}
	return row
}

func (a *aggState) result() types.FieldValue {
	switch a.spec.fn {
	case aggrCount:
		return a.count

	case aggrSum:
		return ratValue(a.sum, a.sawFloat)

	case aggrAvg:
		if a.count == 0 {
			return types.NullValueInstance
		}
		avg := new(big.Rat).Quo(a.sum, new(big.Rat).SetInt64(a.count))
		return ratValue(avg, true)

	case aggrMin, aggrMax:
		if a.extreme == nil {
			return types.NullValueInstance
		}
		return a.extreme
	}
	return types.NullValueInstance
}

// ratValue converts an exact rational into the narrowest field value that
// represents it: int64 for integral sums of integral inputs, float64
// otherwise.
func ratValue(r *big.Rat, inexact bool) types.FieldValue {
	if !inexact && r.IsInt() {
		return r.Num().Int64()
	}
	f, _ := r.Float64()
	return f
}
