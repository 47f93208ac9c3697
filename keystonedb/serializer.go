//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package keystonedb

import (
	"time"

	"github.com/keystonedata/keystone-go-sdk/keystonedb/internal/proto"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/kverr"
	"github.com/keystonedata/keystone-go-sdk/keystonedb/types"
)

// serializeOp writes the header common to all operations: the operation
// code, the request timeout and the target table name.
func serializeOp(w proto.Writer, op proto.OpCode, timeout time.Duration, tableName string) (err error) {
	if _, err = w.WriteOpCode(op); err != nil {
		return
	}
	if _, err = w.WriteTimeout(timeout); err != nil {
		return
	}
	return writeNonEmptyString(w, tableName)
}

// serializeTableFreeOp writes the header for operations that do not target
// a table.
func serializeTableFreeOp(w proto.Writer, op proto.OpCode, timeout time.Duration) (err error) {
	if _, err = w.WriteOpCode(op); err != nil {
		return
	}
	_, err = w.WriteTimeout(timeout)
	return
}

func writeNonEmptyString(w proto.Writer, s string) error {
	if s == "" {
		return kverr.NewIllegalArgument("string value must be non-empty")
	}
	_, err := w.WriteString(&s)
	return err
}

// checkRequestSizeLimit returns an error if the serialized request exceeds
// the specified size limit.
func checkRequestSizeLimit(w proto.Writer, limit int) error {
	if sz := w.Size(); sz > limit {
		return kverr.New(kverr.RequestSizeLimitExceeded,
			"the request size of %d exceeds the limit of %d", sz, limit)
	}
	return nil
}

// toUnixTime converts a number of milliseconds since the Unix epoch into a
// time.Time value. Zero maps to the zero time.
func toUnixTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond)).UTC()
}

// deserializeConsumedCapacity reads the capacity block that heads every
// data operation response.
func deserializeConsumedCapacity(r proto.Reader) (c Capacity, err error) {
	if c.ReadUnits, err = r.ReadPackedInt(); err != nil {
		return
	}
	if c.ReadKB, err = r.ReadPackedInt(); err != nil {
		return
	}
	if c.WriteUnits, err = r.ReadPackedInt(); err != nil {
		return
	}
	c.WriteKB, err = r.ReadPackedInt()
	return
}

// deserializeWriteResult reads the information about an existing row
// returned for conditional put and delete operations.
func deserializeWriteResult(r proto.Reader, serialVersion int16) (res WriteResult, err error) {
	hasExisting, err := r.ReadBoolean()
	if err != nil || !hasExisting {
		return
	}

	if res.ExistingValue, err = r.ReadMap(); err != nil {
		return
	}
	if res.ExistingVersion, err = r.ReadVersion(); err != nil {
		return
	}
	if serialVersion >= 2 {
		var ms int64
		if ms, err = r.ReadPackedLong(); err != nil {
			return
		}
		res.ExistingModificationTime = toUnixTime(ms)
	}
	return
}

// serialize writes the GetRequest to the specified writer.
func (req *GetRequest) serialize(w proto.Writer, serialVersion int16) (err error) {
	if err = serializeOp(w, proto.Get, req.Timeout, req.TableName); err != nil {
		return
	}
	if _, err = w.WriteConsistency(req.Consistency); err != nil {
		return
	}
	if _, err = w.WriteMap(req.Key); err != nil {
		return
	}
	return checkRequestSizeLimit(w, proto.RequestSizeLimit)
}

func (req *GetRequest) deserialize(r proto.Reader, serialVersion int16) (Result, error) {
	res := &GetResult{}
	var err error
	if res.Capacity, err = deserializeConsumedCapacity(r); err != nil {
		return nil, err
	}

	hasRow, err := r.ReadBoolean()
	if err != nil || !hasRow {
		return res, err
	}

	if res.Value, err = r.ReadMap(); err != nil {
		return nil, err
	}
	if res.Version, err = r.ReadVersion(); err != nil {
		return nil, err
	}

	expireMs, err := r.ReadPackedLong()
	if err != nil {
		return nil, err
	}
	res.ExpirationTime = toUnixTime(expireMs)

	if serialVersion >= 2 {
		modMs, err := r.ReadPackedLong()
		if err != nil {
			return nil, err
		}
		res.ModificationTime = toUnixTime(modMs)
	}
	return res, nil
}

// serialize writes the PutRequest to the specified writer.
func (req *PutRequest) serialize(w proto.Writer, serialVersion int16) (err error) {
	if err = serializeOp(w, req.opCode(), req.Timeout, req.TableName); err != nil {
		return
	}
	if _, err = w.WriteBoolean(req.ReturnRow); err != nil {
		return
	}
	if _, err = w.WriteBoolean(req.ExactMatch); err != nil {
		return
	}
	if _, err = w.WriteTTL(req.TTL); err != nil {
		return
	}
	if _, err = w.WriteBoolean(req.UseTableTTL); err != nil {
		return
	}
	if req.PutOption == types.PutIfVersion {
		if _, err = w.WriteVersion(req.MatchVersion); err != nil {
			return
		}
	}
	if _, err = w.WriteMap(req.Value); err != nil {
		return
	}
	return checkRequestSizeLimit(w, proto.RequestSizeLimit)
}

func (req *PutRequest) deserialize(r proto.Reader, serialVersion int16) (Result, error) {
	res := &PutResult{}
	var err error
	if res.Capacity, err = deserializeConsumedCapacity(r); err != nil {
		return nil, err
	}

	success, err := r.ReadBoolean()
	if err != nil {
		return nil, err
	}
	if success {
		if res.Version, err = r.ReadVersion(); err != nil {
			return nil, err
		}
	}

	if res.WriteResult, err = deserializeWriteResult(r, serialVersion); err != nil {
		return nil, err
	}
	return res, nil
}

// serialize writes the DeleteRequest to the specified writer.
func (req *DeleteRequest) serialize(w proto.Writer, serialVersion int16) (err error) {
	op := proto.Delete
	if req.MatchVersion != nil {
		op = proto.DeleteIfVersion
	}
	if err = serializeOp(w, op, req.Timeout, req.TableName); err != nil {
		return
	}
	if _, err = w.WriteBoolean(req.ReturnRow); err != nil {
		return
	}
	if _, err = w.WriteMap(req.Key); err != nil {
		return
	}
	if req.MatchVersion != nil {
		if _, err = w.WriteVersion(req.MatchVersion); err != nil {
			return
		}
	}
	return checkRequestSizeLimit(w, proto.RequestSizeLimit)
}

func (req *DeleteRequest) deserialize(r proto.Reader, serialVersion int16) (Result, error) {
	res := &DeleteResult{}
	var err error
	if res.Capacity, err = deserializeConsumedCapacity(r); err != nil {
		return nil, err
	}
	if res.Success, err = r.ReadBoolean(); err != nil {
		return nil, err
	}
	if res.WriteResult, err = deserializeWriteResult(r, serialVersion); err != nil {
		return nil, err
	}
	return res, nil
}

// serialize writes the MultiDeleteRequest to the specified writer.
func (req *MultiDeleteRequest) serialize(w proto.Writer, serialVersion int16) (err error) {
	if err = serializeOp(w, proto.MultiDelete, req.Timeout, req.TableName); err != nil {
		return
	}
	if _, err = w.WriteMap(req.Key); err != nil {
		return
	}
	if req.FieldRange != nil {
		if _, err = w.WriteBoolean(true); err != nil {
			return
		}
		if _, err = w.WriteFieldRange(req.FieldRange); err != nil {
			return
		}
	} else {
		if _, err = w.WriteBoolean(false); err != nil {
			return
		}
	}
	if _, err = w.WritePackedInt(int(req.MaxWriteKB)); err != nil {
		return
	}
	if _, err = w.WriteByteArray(req.ContinuationKey); err != nil {
		return
	}
	return checkRequestSizeLimit(w, proto.RequestSizeLimit)
}

func (req *MultiDeleteRequest) deserialize(r proto.Reader, serialVersion int16) (Result, error) {
	res := &MultiDeleteResult{}
	var err error
	if res.Capacity, err = deserializeConsumedCapacity(r); err != nil {
		return nil, err
	}
	if res.NumDeleted, err = r.ReadPackedInt(); err != nil {
		return nil, err
	}
	if res.ContinuationKey, err = r.ReadByteArray(); err != nil {
		return nil, err
	}
	return res, nil
}

// serialize writes the PrepareRequest to the specified writer.
func (req *PrepareRequest) serialize(w proto.Writer, serialVersion int16) (err error) {
	if err = serializeTableFreeOp(w, proto.Prepare, req.Timeout); err != nil {
		return
	}
	return writeNonEmptyString(w, req.Statement)
}

func (req *PrepareRequest) deserialize(r proto.Reader, serialVersion int16) (Result, error) {
	res := &PrepareResult{}
	var err error
	if res.Capacity, err = deserializeConsumedCapacity(r); err != nil {
		return nil, err
	}

	p, err := deserializePreparedStatement(r, req.Statement)
	if err != nil {
		return nil, err
	}
	res.PreparedStatement = *p
	return res, nil
}

// deserializePreparedStatement reads the prepared statement payload,
// including the driver-side query plan for non-simple queries.
func deserializePreparedStatement(r proto.Reader, sqlText string) (*PreparedStatement, error) {
	p := &PreparedStatement{sqlText: sqlText}
	var err error

	if p.statement, err = r.ReadByteArrayWithInt(); err != nil {
		return nil, err
	}
	if p.tableName, err = r.ReadNonNilString(); err != nil {
		return nil, err
	}
	if p.operatesOnData, err = r.ReadBoolean(); err != nil {
		return nil, err
	}
	if p.simple, err = r.ReadBoolean(); err != nil {
		return nil, err
	}
	if p.simple {
		return p, nil
	}

	if p.numPartitions, err = r.ReadPackedInt(); err != nil {
		return nil, err
	}
	if p.eliminateDuplicates, err = r.ReadBoolean(); err != nil {
		return nil, err
	}

	numSort, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	if numSort > 0 {
		p.sortFields = make([]string, numSort)
		p.sortSpecs = make([]sortSpec, numSort)
		for i := 0; i < numSort; i++ {
			if p.sortFields[i], err = r.ReadNonNilString(); err != nil {
				return nil, err
			}
			if p.sortSpecs[i].isDesc, err = r.ReadBoolean(); err != nil {
				return nil, err
			}
			if p.sortSpecs[i].nullsFirst, err = r.ReadBoolean(); err != nil {
				return nil, err
			}
		}
	}

	numGroup, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	if numGroup > 0 {
		p.groupFields = make([]string, numGroup)
		for i := 0; i < numGroup; i++ {
			if p.groupFields[i], err = r.ReadNonNilString(); err != nil {
				return nil, err
			}
		}
	}

	numAggr, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	if numAggr > 0 {
		p.aggregates = make([]aggregateSpec, numAggr)
		for i := 0; i < numAggr; i++ {
			b, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			op := aggregateFunc(b)
			if !op.isValid() {
				return nil, kverr.NewBadProtocol("unknown aggregate function %d", b)
			}
			p.aggregates[i].fn = op
			if p.aggregates[i].field, err = r.ReadNonNilString(); err != nil {
				return nil, err
			}
			if p.aggregates[i].as, err = r.ReadNonNilString(); err != nil {
				return nil, err
			}
		}
	}

	numKey, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	if numKey > 0 {
		p.keyFields = make([]string, numKey)
		for i := 0; i < numKey; i++ {
			if p.keyFields[i], err = r.ReadNonNilString(); err != nil {
				return nil, err
			}
		}
	}

	return p, nil
}

// serialize writes the QueryRequest to the specified writer.
func (req *QueryRequest) serialize(w proto.Writer, serialVersion int16) (err error) {
	if err = serializeTableFreeOp(w, proto.Query, req.Timeout); err != nil {
		return
	}
	if _, err = w.WriteConsistency(req.Consistency); err != nil {
		return
	}
	if _, err = w.WritePackedInt(int(req.Limit)); err != nil {
		return
	}
	if _, err = w.WritePackedInt(int(req.MaxReadKB)); err != nil {
		return
	}
	if _, err = w.WriteByteArray(req.continuationKey); err != nil {
		return
	}

	prepared := req.isPrepared()
	if _, err = w.WriteBoolean(prepared); err != nil {
		return
	}

	pid := -1
	if req.partitionID != nil {
		pid = *req.partitionID
	}
	if _, err = w.WritePackedInt(pid); err != nil {
		return
	}

	if !prepared {
		if err = writeNonEmptyString(w, req.Statement); err != nil {
			return
		}
		return checkRequestSizeLimit(w, proto.RequestSizeLimit)
	}

	p := req.PreparedStatement
	if _, err = w.WriteByteArrayWithInt(p.statement); err != nil {
		return
	}
	if _, err = w.WritePackedInt(len(p.bindVariables)); err != nil {
		return
	}
	for name, value := range p.bindVariables {
		if err = writeNonEmptyString(w, name); err != nil {
			return
		}
		if _, err = w.WriteFieldValue(value); err != nil {
			return
		}
	}
	return checkRequestSizeLimit(w, proto.RequestSizeLimit)
}

func (req *QueryRequest) deserialize(r proto.Reader, serialVersion int16) (Result, error) {
	res := &QueryResult{request: req, computed: true}

	numRows, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	if numRows < 0 {
		return nil, kverr.NewBadProtocol("invalid number of query results %d", numRows)
	}

	res.results = make([]*types.MapValue, 0, numRows)
	for i := 0; i < numRows; i++ {
		m, err := r.ReadMap()
		if err != nil {
			return nil, err
		}
		res.results = append(res.results, m)
	}

	if res.Capacity, err = deserializeConsumedCapacity(r); err != nil {
		return nil, err
	}
	if res.continuationKey, err = r.ReadByteArray(); err != nil {
		return nil, err
	}

	// A query submitted as a statement gets the compiled form back with
	// its first batch, so subsequent batches skip the compilation.
	hasPrepared, err := r.ReadBoolean()
	if err != nil {
		return nil, err
	}
	if hasPrepared {
		p, err := deserializePreparedStatement(r, req.Statement)
		if err != nil {
			return nil, err
		}
		req.PreparedStatement = p
		req.TableName = p.tableName
	}

	if !req.isInternal {
		req.setContKey(res.continuationKey)
	}
	return res, nil
}

// serialize writes the TableRequest to the specified writer.
func (req *TableRequest) serialize(w proto.Writer, serialVersion int16) (err error) {
	if err = serializeTableFreeOp(w, proto.TableRequest, req.Timeout); err != nil {
		return
	}

	var stmt *string
	if req.Statement != "" {
		stmt = &req.Statement
	}
	if _, err = w.WriteString(stmt); err != nil {
		return
	}

	if req.TableLimits != nil {
		if _, err = w.WriteBoolean(true); err != nil {
			return
		}
		if _, err = w.WritePackedInt(int(req.TableLimits.ReadUnits)); err != nil {
			return
		}
		if _, err = w.WritePackedInt(int(req.TableLimits.WriteUnits)); err != nil {
			return
		}
		if _, err = w.WritePackedInt(int(req.TableLimits.StorageGB)); err != nil {
			return
		}
	} else {
		if _, err = w.WriteBoolean(false); err != nil {
			return
		}
	}

	var tableName *string
	if req.TableName != "" {
		tableName = &req.TableName
	}
	_, err = w.WriteString(tableName)
	return
}

func (req *TableRequest) deserialize(r proto.Reader, serialVersion int16) (Result, error) {
	return deserializeTableResult(r)
}

// deserializeTableResult reads the table state block shared by TableRequest
// and GetTableRequest responses.
func deserializeTableResult(r proto.Reader) (*TableResult, error) {
	res := &TableResult{}
	var err error

	if res.TableName, err = r.ReadNonNilString(); err != nil {
		return nil, err
	}

	state, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	res.State = types.TableState(state)

	hasLimits, err := r.ReadBoolean()
	if err != nil {
		return nil, err
	}
	if hasLimits {
		ru, err := r.ReadPackedInt()
		if err != nil {
			return nil, err
		}
		wu, err := r.ReadPackedInt()
		if err != nil {
			return nil, err
		}
		gb, err := r.ReadPackedInt()
		if err != nil {
			return nil, err
		}
		res.Limits = TableLimits{ReadUnits: uint(ru), WriteUnits: uint(wu), StorageGB: uint(gb)}
	}

	schema, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	if schema != nil {
		res.Schema = *schema
	}

	opID, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	if opID != nil {
		res.OperationID = *opID
	}
	return res, nil
}

// serialize writes the GetTableRequest to the specified writer.
func (req *GetTableRequest) serialize(w proto.Writer, serialVersion int16) (err error) {
	if err = serializeOp(w, proto.GetTable, req.Timeout, req.TableName); err != nil {
		return
	}

	var opID *string
	if req.OperationID != "" {
		opID = &req.OperationID
	}
	_, err = w.WriteString(opID)
	return
}

func (req *GetTableRequest) deserialize(r proto.Reader, serialVersion int16) (Result, error) {
	return deserializeTableResult(r)
}

// serialize writes the ListTablesRequest to the specified writer.
func (req *ListTablesRequest) serialize(w proto.Writer, serialVersion int16) (err error) {
	if err = serializeTableFreeOp(w, proto.ListTables, req.Timeout); err != nil {
		return
	}
	if _, err = w.WritePackedInt(int(req.StartIndex)); err != nil {
		return
	}
	_, err = w.WritePackedInt(int(req.Limit))
	return
}

func (req *ListTablesRequest) deserialize(r proto.Reader, serialVersion int16) (Result, error) {
	res := &ListTablesResult{}

	numTables, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	if numTables < 0 {
		return nil, kverr.NewBadProtocol("invalid number of tables %d", numTables)
	}

	res.Tables = make([]string, 0, numTables)
	for i := 0; i < numTables; i++ {
		name, err := r.ReadNonNilString()
		if err != nil {
			return nil, err
		}
		res.Tables = append(res.Tables, name)
	}

	lastIndex, err := r.ReadPackedInt()
	if err != nil {
		return nil, err
	}
	res.LastIndexReturned = uint(lastIndex)
	return res, nil
}

// serialize writes the SystemStatusRequest to the specified writer.
func (req *SystemStatusRequest) serialize(w proto.Writer, serialVersion int16) (err error) {
	if err = serializeTableFreeOp(w, proto.SystemStatusRequest, req.Timeout); err != nil {
		return
	}
	if err = writeNonEmptyString(w, req.OperationID); err != nil {
		return
	}

	var stmt *string
	if req.Statement != "" {
		stmt = &req.Statement
	}
	_, err = w.WriteString(stmt)
	return
}

func (req *SystemStatusRequest) deserialize(r proto.Reader, serialVersion int16) (Result, error) {
	res := &SystemStatusResult{}

	state, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	res.State = types.OperationState(state)

	if res.OperationID, err = r.ReadNonNilString(); err != nil {
		return nil, err
	}

	stmt, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	if stmt != nil {
		res.Statement = *stmt
	}

	result, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	if result != nil {
		res.ResultString = *result
	}
	return res, nil
}
