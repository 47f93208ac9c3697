//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package keystonedb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/internal/proto/binary"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/types"
)

// parsedQuery is the part of a serialized query request the test server
// routes on.
type parsedQuery struct {
	contKey  []byte
	prepared bool
	pid      int
}

func parseQueryRequest(t *testing.T, reqData []byte) parsedQuery {
	r := binary.NewReader(reqData)

	op, err := r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(7), op, "expected a query operation")

	_, err = r.ReadPackedInt() // timeout
	require.NoError(t, err)
	_, err = r.ReadByte() // consistency
	require.NoError(t, err)
	_, err = r.ReadPackedInt() // limit
	require.NoError(t, err)
	_, err = r.ReadPackedInt() // maxReadKB
	require.NoError(t, err)

	var q parsedQuery
	q.contKey, err = r.ReadByteArray()
	require.NoError(t, err)
	q.prepared, err = r.ReadBoolean()
	require.NoError(t, err)
	q.pid, err = r.ReadPackedInt()
	require.NoError(t, err)
	return q
}

// writeQueryResponse writes a query batch: the rows, a capacity block, the
// continuation key and no attached prepared statement.
func writeQueryResponse(t *testing.T, w *binary.Writer, rows []*types.MapValue, contKey []byte) {
	_, err := w.WritePackedInt(len(rows))
	require.NoError(t, err)
	for _, row := range rows {
		_, err = w.WriteMap(row)
		require.NoError(t, err)
	}
	writeCapacity(t, w, 1, 1, 0, 0)
	_, err = w.WriteByteArray(contKey)
	require.NoError(t, err)
	_, err = w.WriteBoolean(false)
	require.NoError(t, err)
}

// partitionServer serves the rows of each partition in fixed size batches,
// tracking progress through the continuation key.
func partitionServer(t *testing.T, partitions [][]*types.MapValue, batchSize int) func(call int, reqData []byte, sv int16) []byte {
	return func(call int, reqData []byte, sv int16) []byte {
		q := parseQueryRequest(t, reqData)
		require.GreaterOrEqual(t, q.pid, 0)
		require.Less(t, q.pid, len(partitions))

		rows := partitions[q.pid]
		start := 0
		if q.contKey != nil {
			start = int(q.contKey[0])
		}

		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		var next []byte
		if end < len(rows) {
			next = []byte{byte(end)}
		}

		return okResponse(t, func(w *binary.Writer) {
			writeQueryResponse(t, w, rows[start:end], next)
		})
	}
}

func orderedRows(field string, values ...interface{}) []*types.MapValue {
	rows := make([]*types.MapValue, len(values))
	for i, v := range values {
		rows[i] = types.NewOrderedMapValue().Put(field, v)
	}
	return rows
}

func sortedPrepStmt(numPartitions int) *PreparedStatement {
	return &PreparedStatement{
		sqlText:       "SELECT id FROM users ORDER BY id",
		tableName:     "users",
		statement:     []byte{0xca, 0xfe},
		numPartitions: numPartitions,
		sortFields:    []string{"id"},
		sortSpecs:     []sortSpec{{}},
	}
}

func collectInts(t *testing.T, rows []*types.MapValue, field string) []int {
	out := make([]int, 0, len(rows))
	for _, row := range rows {
		v, ok := row.GetInt(field)
		require.Truef(t, ok, "row is missing field %q", field)
		out = append(out, v)
	}
	return out
}

// Rows arriving ordered per partition are merged into one globally ordered
// sequence.
func TestQueryMergeSortedPartitions(t *testing.T) {
	partitions := [][]*types.MapValue{
		orderedRows("id", 1, 4, 7),
		orderedRows("id", 2, 5, 8),
		orderedRows("id", 3, 6, 9),
	}

	c, _ := newTestClient(t, Config{}, partitionServer(t, partitions, 2))
	defer c.Close()

	req := &QueryRequest{PreparedStatement: sortedPrepStmt(3)}
	res, err := c.Query(req)
	require.NoError(t, err)

	rows, err := res.GetResults()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, collectInts(t, rows, "id"))
	assert.True(t, req.IsDone())

	capacity, err := res.ConsumedCapacity()
	require.NoError(t, err)
	assert.Greater(t, capacity.ReadUnits, 0)
}

// With a limit set, each Query call produces the next slice of the ordered
// sequence until the query is done.
func TestQueryBatchedContinuation(t *testing.T) {
	partitions := [][]*types.MapValue{
		orderedRows("id", 1, 4, 7),
		orderedRows("id", 2, 5, 8),
		orderedRows("id", 3, 6, 9),
	}

	c, _ := newTestClient(t, Config{}, partitionServer(t, partitions, 2))
	defer c.Close()

	req := &QueryRequest{PreparedStatement: sortedPrepStmt(3), Limit: 4}

	var all []int
	for i := 0; ; i++ {
		require.Less(t, i, 10, "query did not complete")

		res, err := c.Query(req)
		require.NoError(t, err)
		rows, err := res.GetResults()
		require.NoError(t, err)
		all = append(all, collectInts(t, rows, "id")...)

		if req.IsDone() {
			break
		}
		assert.Len(t, rows, 4, "each intermediate batch should be full")
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, all)
}

// Sorting descending reverses the merged order.
func TestQueryMergeDescending(t *testing.T) {
	partitions := [][]*types.MapValue{
		orderedRows("id", 7, 4, 1),
		orderedRows("id", 8, 5, 2),
		orderedRows("id", 9, 6, 3),
	}

	c, _ := newTestClient(t, Config{}, partitionServer(t, partitions, 3))
	defer c.Close()

	p := sortedPrepStmt(3)
	p.sortSpecs = []sortSpec{{isDesc: true}}

	req := &QueryRequest{PreparedStatement: p}
	res, err := c.Query(req)
	require.NoError(t, err)

	rows, err := res.GetResults()
	require.NoError(t, err)
	assert.Equal(t, []int{9, 8, 7, 6, 5, 4, 3, 2, 1}, collectInts(t, rows, "id"))
}

// Adjacent rows with the same group key fold into one aggregated row.
func TestQueryGroupAndAggregate(t *testing.T) {
	mkRow := func(dept string, salary int) *types.MapValue {
		return types.NewOrderedMapValue().Put("dept", dept).Put("salary", salary)
	}
	partitions := [][]*types.MapValue{
		{mkRow("eng", 100), mkRow("sales", 70)},
		{mkRow("eng", 120)},
		{mkRow("eng", 110), mkRow("sales", 90)},
	}

	c, _ := newTestClient(t, Config{}, partitionServer(t, partitions, 2))
	defer c.Close()

	p := &PreparedStatement{
		sqlText:       "SELECT dept, count(*) AS n, sum(salary) AS total, avg(salary) AS mean FROM emp GROUP BY dept",
		tableName:     "emp",
		statement:     []byte{0xca, 0xfe},
		numPartitions: 3,
		sortFields:    []string{"dept"},
		sortSpecs:     []sortSpec{{}},
		groupFields:   []string{"dept"},
		aggregates: []aggregateSpec{
			{fn: aggrCount, field: "*", as: "n"},
			{fn: aggrSum, field: "salary", as: "total"},
			{fn: aggrAvg, field: "salary", as: "mean"},
			{fn: aggrMin, field: "salary", as: "low"},
			{fn: aggrMax, field: "salary", as: "high"},
		},
	}

	req := &QueryRequest{PreparedStatement: p}
	res, err := c.Query(req)
	require.NoError(t, err)

	rows, err := res.GetResults()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, req.IsDone())

	eng := rows[0]
	dept, _ := eng.GetString("dept")
	assert.Equal(t, "eng", dept)
	n, _ := eng.GetInt64("n")
	assert.Equal(t, int64(3), n)
	total, _ := eng.GetInt64("total")
	assert.Equal(t, int64(330), total)
	mean, _ := eng.GetFloat64("mean")
	assert.InDelta(t, 110.0, mean, 0.001)
	low, _ := eng.GetInt("low")
	assert.Equal(t, 100, low)
	high, _ := eng.GetInt("high")
	assert.Equal(t, 120, high)

	sales := rows[1]
	dept, _ = sales.GetString("dept")
	assert.Equal(t, "sales", dept)
	n, _ = sales.GetInt64("n")
	assert.Equal(t, int64(2), n)
	total, _ = sales.GetInt64("total")
	assert.Equal(t, int64(160), total)
}

// A group that spans a batch boundary is emitted once, in the batch that
// sees its last row.
func TestQueryGroupSpansBatches(t *testing.T) {
	mkRow := func(dept string, salary int) *types.MapValue {
		return types.NewOrderedMapValue().Put("dept", dept).Put("salary", salary)
	}
	partitions := [][]*types.MapValue{
		{mkRow("eng", 100), mkRow("eng", 101), mkRow("eng", 102)},
		{mkRow("eng", 103), mkRow("sales", 70)},
	}

	c, _ := newTestClient(t, Config{}, partitionServer(t, partitions, 2))
	defer c.Close()

	p := &PreparedStatement{
		tableName:     "emp",
		statement:     []byte{0xca, 0xfe},
		numPartitions: 2,
		sortFields:    []string{"dept"},
		sortSpecs:     []sortSpec{{}},
		groupFields:   []string{"dept"},
		aggregates:    []aggregateSpec{{fn: aggrCount, field: "*", as: "n"}},
	}

	req := &QueryRequest{PreparedStatement: p, Limit: 1}

	var groups []string
	var counts []int64
	for i := 0; !req.IsDone(); i++ {
		require.Less(t, i, 10, "query did not complete")

		res, err := c.Query(req)
		require.NoError(t, err)
		rows, err := res.GetResults()
		require.NoError(t, err)
		for _, row := range rows {
			dept, _ := row.GetString("dept")
			n, _ := row.GetInt64("n")
			groups = append(groups, dept)
			counts = append(counts, n)
		}
	}

	assert.Equal(t, []string{"eng", "sales"}, groups)
	assert.Equal(t, []int64{4, 1}, counts)
}

// A row surfacing from more than one partition stream is returned once.
func TestQueryEliminatesDuplicates(t *testing.T) {
	partitions := [][]*types.MapValue{
		orderedRows("id", 1, 3, 5),
		orderedRows("id", 2, 3, 5),
		orderedRows("id", 3, 4),
	}

	c, _ := newTestClient(t, Config{}, partitionServer(t, partitions, 2))
	defer c.Close()

	p := sortedPrepStmt(3)
	p.eliminateDuplicates = true
	p.keyFields = []string{"id"}

	req := &QueryRequest{PreparedStatement: p}
	res, err := c.Query(req)
	require.NoError(t, err)

	rows, err := res.GetResults()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, collectInts(t, rows, "id"))
}

// A simple query runs without a driver: each execution returns the server's
// batch as is, and the continuation key round-trips.
func TestQuerySimpleContinuation(t *testing.T) {
	writePrepPayload := func(w *binary.Writer) {
		_, err := w.WriteByteArrayWithInt([]byte{0xca, 0xfe})
		require.NoError(t, err)
		name := "users"
		_, err = w.WriteString(&name)
		require.NoError(t, err)
		_, err = w.WriteBoolean(false) // does not modify data
		require.NoError(t, err)
		_, err = w.WriteBoolean(true) // simple
		require.NoError(t, err)
	}

	c, m := newTestClient(t, Config{}, func(call int, reqData []byte, sv int16) []byte {
		q := parseQueryRequest(t, reqData)
		return okResponse(t, func(w *binary.Writer) {
			var rows []*types.MapValue
			var contKey []byte
			if q.contKey == nil {
				rows = orderedRows("id", 1, 2)
				contKey = []byte{2}
			} else {
				rows = orderedRows("id", 3)
			}

			_, err := w.WritePackedInt(len(rows))
			require.NoError(t, err)
			for _, row := range rows {
				_, err = w.WriteMap(row)
				require.NoError(t, err)
			}
			writeCapacity(t, w, 1, 1, 0, 0)
			_, err = w.WriteByteArray(contKey)
			require.NoError(t, err)

			// The compiled statement rides along with the first batch.
			_, err = w.WriteBoolean(q.contKey == nil)
			require.NoError(t, err)
			if q.contKey == nil {
				writePrepPayload(w)
			}
		})
	})
	defer c.Close()

	req := &QueryRequest{Statement: "SELECT * FROM users"}

	res, err := c.Query(req)
	require.NoError(t, err)
	rows, err := res.GetResults()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, collectInts(t, rows, "id"))
	assert.False(t, req.IsDone())
	assert.True(t, req.isPrepared(), "the compiled statement should be cached on the request")

	res, err = c.Query(req)
	require.NoError(t, err)
	rows, err = res.GetResults()
	require.NoError(t, err)
	assert.Equal(t, []int{3}, collectInts(t, rows, "id"))
	assert.True(t, req.IsDone())
	assert.Equal(t, 2, m.calls)
}

// A statement that turns out to need driver-side sorting comes back from
// its first execution with the compiled plan and no rows; the driver takes
// over transparently.
func TestQueryAdvancedFromStatement(t *testing.T) {
	partitions := [][]*types.MapValue{
		orderedRows("id", 1, 3),
		orderedRows("id", 2, 4),
	}

	writePrepPayload := func(w *binary.Writer) {
		_, err := w.WriteByteArrayWithInt([]byte{0xca, 0xfe})
		require.NoError(t, err)
		name := "users"
		_, err = w.WriteString(&name)
		require.NoError(t, err)
		_, err = w.WriteBoolean(false) // does not modify data
		require.NoError(t, err)
		_, err = w.WriteBoolean(false) // not simple
		require.NoError(t, err)
		_, err = w.WritePackedInt(2) // partitions
		require.NoError(t, err)
		_, err = w.WriteBoolean(false) // no duplicate elimination
		require.NoError(t, err)
		_, err = w.WritePackedInt(1) // sort fields
		require.NoError(t, err)
		field := "id"
		_, err = w.WriteString(&field)
		require.NoError(t, err)
		_, err = w.WriteBoolean(false) // ascending
		require.NoError(t, err)
		_, err = w.WriteBoolean(false) // nulls last
		require.NoError(t, err)
		_, err = w.WritePackedInt(0) // group fields
		require.NoError(t, err)
		_, err = w.WritePackedInt(0) // aggregates
		require.NoError(t, err)
		_, err = w.WritePackedInt(0) // key fields
		require.NoError(t, err)
	}

	c, _ := newTestClient(t, Config{}, func(call int, reqData []byte, sv int16) []byte {
		q := parseQueryRequest(t, reqData)
		if !q.prepared {
			// Compilation pass: no rows, plan attached.
			return okResponse(t, func(w *binary.Writer) {
				_, err := w.WritePackedInt(0)
				require.NoError(t, err)
				writeCapacity(t, w, 2, 2, 0, 0)
				_, err = w.WriteByteArray(nil)
				require.NoError(t, err)
				_, err = w.WriteBoolean(true)
				require.NoError(t, err)
				writePrepPayload(w)
			})
		}
		return partitionServer(t, partitions, 2)(call, reqData, sv)
	})
	defer c.Close()

	req := &QueryRequest{Statement: "SELECT * FROM users ORDER BY id"}
	res, err := c.Query(req)
	require.NoError(t, err)

	rows, err := res.GetResults()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, collectInts(t, rows, "id"))
	assert.True(t, req.IsDone())

	// The compilation cost is charged to the first computed batch.
	capacity, err := res.ConsumedCapacity()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, capacity.ReadUnits, 2)
}

func TestCompareSortValues(t *testing.T) {
	// Numeric values compare across numeric types.
	c, err := compareSortValues(1, int64(2), false)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = compareSortValues(2.5, 2, false)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	// Arbitrary precision values compare exactly.
	a := types.MustParseNumber("12345678901234567890.5")
	b := types.MustParseNumber("12345678901234567890.25")
	c, err = compareSortValues(a, b, false)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	// Null-like values order against regular values per null placement.
	c, err = compareSortValues(types.NullValueInstance, 1, false)
	require.NoError(t, err)
	assert.Equal(t, 1, c, "nulls sort last by default")

	c, err = compareSortValues(types.NullValueInstance, 1, true)
	require.NoError(t, err)
	assert.Equal(t, -1, c, "nulls sort first when requested")

	// Null-like values order among themselves by severity.
	c, err = compareSortValues(types.EmptyValueInstance, types.NullValueInstance, false)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	// Incomparable types report an error.
	_, err = compareSortValues("abc", 1, false)
	assert.Error(t, err)
}

func TestQueryRequestValidate(t *testing.T) {
	req := &QueryRequest{}
	assert.Error(t, req.validate(), "a query needs a statement or a prepared statement")

	req = &QueryRequest{Statement: "SELECT * FROM users"}
	assert.NoError(t, req.validate())

	req = &QueryRequest{PreparedStatement: sortedPrepStmt(1)}
	assert.NoError(t, req.validate())
}
